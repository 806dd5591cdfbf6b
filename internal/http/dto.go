package http

import (
	"bytes"
	"encoding/json"
	"time"

	"meurenda/internal/auth"
	"meurenda/internal/core"
	"meurenda/internal/services"
)

// amountField accepts a JSON number or a decimal string such as "12,34".
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountField(n)
	return nil
}

// ─── Requests ───────────────────────────────────────────────────────────────

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type recordRequest struct {
	Kind        string      `json:"kind" validate:"required,oneof=sale expense investment"`
	Amount      amountField `json:"amount" validate:"required"`
	ProductCost amountField `json:"product_cost"`
	Category    string      `json:"category" validate:"max=50"`
	Description string      `json:"description" validate:"required,max=200"`
	Date        string      `json:"date" validate:"required,datetime=2006-01-02"`
}

// toRecord converts the request into a record owned by userID. Dates are
// midnight of the given day in loc.
func (req recordRequest) toRecord(userID string, loc *time.Location) (core.Record, error) {
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return core.Record{}, err
	}
	amount, err := core.ParsePositiveAmount(string(req.Amount))
	if err != nil {
		return core.Record{}, err
	}
	var cost core.Money
	if req.ProductCost != "" {
		if cost, err = core.ParseAmount(string(req.ProductCost)); err != nil {
			return core.Record{}, err
		}
	}
	day, err := parseDate(req.Date, loc)
	if err != nil {
		return core.Record{}, core.ErrMissingDate
	}

	return core.Record{
		OwnerID:     userID,
		Kind:        kind,
		Amount:      amount,
		ProductCost: cost,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		OccurredAt:  day,
	}, nil
}

type goalRequest struct {
	Horizon             string      `json:"horizon" validate:"required,oneof=monthly weekly custom"`
	Target              amountField `json:"target" validate:"required"`
	WorkDays            int         `json:"work_days" validate:"gte=0,lte=366"`
	MarginMode          string      `json:"margin_mode" validate:"omitempty,oneof=automatic manual"`
	ManualMarginPercent float64     `json:"manual_margin_percent" validate:"gte=0,lte=100"`
}

func (req goalRequest) toGoal(userID, id string) (core.Goal, error) {
	horizon, err := core.ParseHorizon(req.Horizon)
	if err != nil {
		return core.Goal{}, err
	}
	target, err := core.ParsePositiveAmount(string(req.Target))
	if err != nil {
		return core.Goal{}, err
	}
	mode, err := core.ParseMarginMode(req.MarginMode)
	if err != nil {
		return core.Goal{}, err
	}
	g := core.Goal{
		ID:                  id,
		OwnerID:             userID,
		Horizon:             horizon,
		Target:              target,
		WorkDays:            req.WorkDays,
		MarginMode:          mode,
		ManualMarginPercent: req.ManualMarginPercent,
	}
	if horizon != core.Custom {
		g.WorkDays = 0
	}
	return g, g.Validate()
}

// ─── Responses ──────────────────────────────────────────────────────────────

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

type sessionResponse struct {
	User  userResponse `json:"user"`
	Token auth.Token   `json:"session"`
}

type recordResponse struct {
	ID          string    `json:"id"`
	Kind        core.Kind `json:"kind"`
	Amount      float64   `json:"amount"`
	ProductCost float64   `json:"product_cost,omitempty"`
	SaleProfit  *float64  `json:"sale_profit,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func newRecordResponse(r core.Record, loc *time.Location) recordResponse {
	resp := recordResponse{
		ID:          r.ID,
		Kind:        r.Kind,
		Amount:      r.Amount.Float(),
		ProductCost: r.ProductCost.Float(),
		Description: r.Description,
		Date:        r.OccurredAt.In(loc).Format(dateLayout),
		RecordedAt:  r.RecordedAt,
	}
	switch r.Kind {
	case core.Sale:
		profit := r.SaleProfit().Float()
		resp.SaleProfit = &profit
	case core.Expense:
		resp.Category = r.CategoryLabel()
	}
	return resp
}

type goalResponse struct {
	ID                  string          `json:"id"`
	Horizon             core.Horizon    `json:"horizon"`
	Target              float64         `json:"target"`
	WorkDays            int             `json:"work_days,omitempty"`
	MarginMode          core.MarginMode `json:"margin_mode"`
	ManualMarginPercent float64         `json:"manual_margin_percent,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

func newGoalResponse(g core.Goal) goalResponse {
	resp := goalResponse{
		ID:         g.ID,
		Horizon:    g.Horizon,
		Target:     g.Target.Float(),
		WorkDays:   g.WorkDays,
		MarginMode: g.MarginMode,
		CreatedAt:  g.CreatedAt,
	}
	if g.MarginMode == core.Manual {
		resp.ManualMarginPercent = g.ManualMarginPercent
	}
	return resp
}

type categoryResponse struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type statsResponse struct {
	Revenue           float64            `json:"revenue"`
	Expenses          float64            `json:"expenses"`
	Investments       float64            `json:"investments"`
	Profit            float64            `json:"profit"`
	Margin            float64            `json:"margin"`
	ExpenseByCategory []categoryResponse `json:"expense_by_category"`
}

func newStatsResponse(s core.Stats) statsResponse {
	resp := statsResponse{
		Revenue:           s.Revenue.Float(),
		Expenses:          s.Expenses.Float(),
		Investments:       s.Investments.Float(),
		Profit:            s.Profit.Float(),
		Margin:            s.Margin,
		ExpenseByCategory: make([]categoryResponse, 0, len(s.ExpenseByCategory)),
	}
	for _, c := range s.ExpenseByCategory {
		resp.ExpenseByCategory = append(resp.ExpenseByCategory, categoryResponse{Name: c.Name, Amount: c.Amount.Float()})
	}
	return resp
}

// windowResponse renders a half-open window as inclusive dates.
type windowResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func newWindowResponse(w core.Window) windowResponse {
	if w.Empty() {
		return windowResponse{}
	}
	return windowResponse{
		From: w.Start.Format(dateLayout),
		To:   w.End.Add(-time.Nanosecond).Format(dateLayout),
	}
}

type dashboardResponse struct {
	Period core.Preset    `json:"period"`
	Window windowResponse `json:"window"`
	Stats  statsResponse  `json:"stats"`
}

func newDashboardResponse(v services.DashboardView) dashboardResponse {
	return dashboardResponse{
		Period: v.Preset,
		Window: newWindowResponse(v.Window),
		Stats:  newStatsResponse(v.Stats),
	}
}

type projectionResponse struct {
	Goal               goalResponse   `json:"goal"`
	Window             windowResponse `json:"window"`
	EffectiveMargin    float64        `json:"effective_margin"`
	CurrentProgress    float64        `json:"current_progress"`
	Remaining          float64        `json:"remaining"`
	ProgressPercent    float64        `json:"progress_percent"`
	EffectiveDays      int            `json:"effective_days"`
	DailyProfitNeeded  float64        `json:"daily_profit_needed"`
	DailyRevenueNeeded float64        `json:"daily_revenue_needed"`
}

func newProjectionResponses(ps []core.Projection) []projectionResponse {
	out := make([]projectionResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, projectionResponse{
			Goal:               newGoalResponse(p.Goal),
			Window:             newWindowResponse(p.Window),
			EffectiveMargin:    p.EffectiveMargin,
			CurrentProgress:    p.CurrentProgress.Float(),
			Remaining:          p.Remaining.Float(),
			ProgressPercent:    p.ProgressPercent,
			EffectiveDays:      p.EffectiveDays,
			DailyProfitNeeded:  p.DailyProfitNeeded,
			DailyRevenueNeeded: p.DailyRevenueNeeded,
		})
	}
	return out
}

type dayResponse struct {
	Day      string  `json:"day"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
	Margin   float64 `json:"margin"`
}

type dailyReportResponse struct {
	Period core.Preset    `json:"period"`
	Window windowResponse `json:"window"`
	Days   []dayResponse  `json:"days"`
	Totals statsResponse  `json:"totals"`
}

func newDailyReportResponse(rep services.DailyReport) dailyReportResponse {
	resp := dailyReportResponse{
		Period: rep.Preset,
		Window: newWindowResponse(rep.Window),
		Days:   make([]dayResponse, 0, len(rep.Days)),
		Totals: newStatsResponse(rep.Totals),
	}
	for _, b := range rep.Days {
		resp.Days = append(resp.Days, dayResponse{
			Day:      b.Key,
			Revenue:  b.Stats.Revenue.Float(),
			Expenses: b.Stats.Expenses.Float(),
			Profit:   b.Stats.Profit.Float(),
			Margin:   b.Stats.Margin,
		})
	}
	return resp
}

// streamPayload is the body of each dashboard SSE event.
type streamPayload struct {
	Reason      string               `json:"reason"`
	Dashboard   dashboardResponse    `json:"dashboard"`
	Projections []projectionResponse `json:"projections"`
}
