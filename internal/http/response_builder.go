// Package http exposes the JSON API, the SSE dashboard stream and the
// operational endpoints.
//
// This file implements the Builder Pattern for JSON responses and maps
// domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"

	"meurenda/internal/auth"
	"meurenda/internal/core"
	"meurenda/internal/ports"
)

// FieldError is one invalid field of a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorBody struct {
	Error     string       `json:"error"`
	Details   []FieldError `json:"details,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body writes no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	ErrorResponse(status, message).Write(w)
}

var (
	errMalformedBody = errors.New("malformed request body")
	errBodyTooLarge  = errors.New("request body too large")
)

// unprocessable lists the domain validation errors reported as 422.
var unprocessable = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidKind,
	core.ErrInvalidHorizon,
	core.ErrInvalidMarginMode,
	core.ErrInvalidMargin,
	core.ErrInvalidWorkDays,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrMissingDate,
	core.ErrCostNotSale,
	core.ErrCategoryNotExpense,
	core.ErrMissingOwner,
	auth.ErrWeakPassword,
	auth.ErrInvalidEmail,
}

// statusFor maps an error to its HTTP status and the message safe to show.
func statusFor(err error) (int, string) {
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity, target.Error()
		}
	}

	switch {
	case errors.Is(err, errMalformedBody), errors.Is(err, core.ErrInvalidPreset):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, ports.ErrConflict):
		return http.StatusConflict, auth.ErrEmailTaken.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// respondError writes err as JSON. Validation failures carry per-field
// details; unexpected errors are logged and hidden from the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body := errorBody{Error: "request validation failed", RequestID: requestID(r)}
		for _, fe := range verrs {
			body.Details = append(body.Details, FieldError{Field: fe.Field(), Message: validationMessage(fe)})
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}

	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"component", "http",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, errorBody{Error: msg, RequestID: requestID(r)})
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "datetime":
		return "Must be a date formatted as " + e.Param()
	case "required_if":
		return "This field is required here"
	}
	return "Invalid value"
}
