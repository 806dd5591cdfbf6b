package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"meurenda/internal/core"
)

const (
	maxBodyBytes = 64 << 10
	dateLayout   = time.DateOnly
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a single JSON object into dst and validates it.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return validate.Struct(dst)
}

// PeriodParams is the parsed period query of the dashboard and report
// endpoints. From and To are only set for the custom preset.
type PeriodParams struct {
	Preset core.Preset
	From   time.Time
	To     time.Time
}

// ParsePeriodParams reads period, from and to. Missing period means the
// current month; dates are YYYY-MM-DD interpreted in loc.
func ParsePeriodParams(query url.Values, loc *time.Location) (PeriodParams, error) {
	preset, err := core.ParsePreset(query.Get("period"))
	if err != nil {
		return PeriodParams{}, err
	}
	p := PeriodParams{Preset: preset}
	if preset != core.PresetCustom {
		return p, nil
	}

	if p.From, err = parseDate(query.Get("from"), loc); err != nil {
		return PeriodParams{}, fmt.Errorf("%w: from: %v", core.ErrInvalidPreset, err)
	}
	if p.To, err = parseDate(query.Get("to"), loc); err != nil {
		return PeriodParams{}, fmt.Errorf("%w: to: %v", core.ErrInvalidPreset, err)
	}
	if p.To.Before(p.From) {
		return PeriodParams{}, fmt.Errorf("%w: to is before from", core.ErrInvalidPreset)
	}
	return p, nil
}

// parseDate parses a YYYY-MM-DD date as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// bearerToken extracts the session token from the Authorization header.
// EventSource cannot set headers, so the access_token query parameter is
// accepted as a fallback.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
