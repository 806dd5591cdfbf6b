package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Sale       Kind = "sale"
	Expense    Kind = "expense"
	Investment Kind = "investment"
)

const (
	Monthly Horizon = "monthly"
	Weekly  Horizon = "weekly"
	Custom  Horizon = "custom"
)

const (
	Automatic MarginMode = "automatic"
	Manual    MarginMode = "manual"
)

// Suggested expense categories. Any non-empty label is accepted.
const (
	CategoryFixed      = "Fixed"
	CategoryVariable   = "Variable"
	CategoryUnexpected = "Unexpected"
	CategoryOther      = "Other"
)

const maxDescriptionLen = 200

type (
	// Kind is the closed set of financial events a Record can describe.
	Kind string

	// Horizon is the period a Goal is measured against.
	Horizon string

	// MarginMode selects where a Goal takes its margin from.
	MarginMode string

	Money struct {
		Cents int64
	}

	// Record is a single financial event. Records are created or deleted
	// whole; nothing in this package mutates them.
	Record struct {
		ID          string
		OwnerID     string
		Kind        Kind
		Amount      Money
		ProductCost Money // Sale only
		Category    string
		Description string
		OccurredAt  time.Time
		RecordedAt  time.Time
	}

	// Goal is a net-profit target over a horizon.
	Goal struct {
		ID                  string
		OwnerID             string
		Horizon             Horizon
		Target              Money
		WorkDays            int // Custom only
		MarginMode          MarginMode
		ManualMarginPercent float64
		CreatedAt           time.Time
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid record kind")
	ErrInvalidHorizon     = errors.New("invalid goal horizon")
	ErrInvalidMarginMode  = errors.New("invalid margin mode")
	ErrInvalidMargin      = errors.New("manual margin must be between 0 and 100")
	ErrInvalidWorkDays    = errors.New("work days must be positive for custom goals")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrMissingDate        = errors.New("occurrence date is required")
	ErrCostNotSale        = errors.New("product cost is only allowed on sales")
	ErrCategoryNotExpense = errors.New("category is only allowed on expenses")
	ErrMissingOwner       = errors.New("owner is required")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Sale, Expense, Investment:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func ParseHorizon(s string) (Horizon, error) {
	switch h := Horizon(strings.ToLower(strings.TrimSpace(s))); h {
	case Monthly, Weekly, Custom:
		return h, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidHorizon, s)
}

// ParseMarginMode defaults to Automatic on empty input.
func ParseMarginMode(s string) (MarginMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Automatic, nil
	}
	switch m := MarginMode(s); m {
	case Automatic, Manual:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMarginMode, s)
}

func (k Kind) Valid() bool {
	return k == Sale || k == Expense || k == Investment
}

func (h Horizon) Valid() bool {
	return h == Monthly || h == Weekly || h == Custom
}

func (m MarginMode) Valid() bool {
	return m == Automatic || m == Manual
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	if r.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if r.ProductCost.Cents < 0 {
		return ErrInvalidAmount
	}
	if r.ProductCost.Cents > 0 && r.Kind != Sale {
		return ErrCostNotSale
	}
	if strings.TrimSpace(r.Category) != "" && r.Kind != Expense {
		return ErrCategoryNotExpense
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if r.OccurredAt.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// CategoryLabel is the label the record is grouped under in expense breakdowns.
func (r Record) CategoryLabel() string {
	if c := strings.TrimSpace(r.Category); c != "" {
		return c
	}
	return CategoryOther
}

// SaleProfit is the per-sale margin shown when entering a sale. It is a
// display hint only and never enters period statistics.
func (r Record) SaleProfit() Money {
	if r.Kind != Sale {
		return Money{}
	}
	return r.Amount.Sub(r.ProductCost)
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !g.Horizon.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidHorizon, g.Horizon)
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.WorkDays < 0 || (g.Horizon == Custom && g.WorkDays == 0) {
		return ErrInvalidWorkDays
	}
	if !g.MarginMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMarginMode, g.MarginMode)
	}
	if g.MarginMode == Manual && (g.ManualMarginPercent < 0 || g.ManualMarginPercent > 100) {
		return ErrInvalidMargin
	}
	return nil
}
