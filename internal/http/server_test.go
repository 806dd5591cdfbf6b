package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/auth"
	"meurenda/internal/cache"
	"meurenda/internal/core"
	"meurenda/internal/log"
	"meurenda/internal/notify"
	"meurenda/internal/services"
	"meurenda/internal/storage/memory"
)

var testNow = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	store *memory.Store
	hub   *notify.Hub
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	hub := notify.NewHub()
	tokens := auth.NewTokenService("test-secret-that-is-long-enough-32b", "meurenda", time.Hour,
		cache.NewLRUCache[struct{}](100, time.Hour))
	dash := services.NewDashboardService(store, store,
		core.Calendar{Location: time.UTC, WeekStart: time.Monday},
		services.WithClock(func() time.Time { return testNow }))

	srv := NewServer("", Deps{
		Auth:      auth.NewService(store, tokens),
		Ledger:    services.NewLedgerService(store, nil, dash, hub),
		Dashboard: dash,
		Hub:       hub,
		Ready:     store.Ping,
		Logger:    log.Discard(),
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, hub: hub}
}

// call performs one request against the router. body may be a string sent
// verbatim or any value encoded as JSON.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:4000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rec := e.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Session.Token)
	return resp.Session.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "Ana@Example.com")

	rec := env.call(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me userResponse
	decode(t, rec, &me)
	assert.Equal(t, "ana@example.com", me.Email)

	rec = env.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "another-pass",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), errorOf(t, rec).Error)

	rec = env.call(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ANA@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var session sessionResponse
	decode(t, rec, &session)
	assert.Equal(t, me.ID, session.User.ID)

	rec = env.call(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the session from login is unaffected
	rec = env.call(t, http.MethodGet, "/api/auth/me", session.Token.Value, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "password": "correct-horse"}, http.StatusUnprocessableEntity, "email"},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}, http.StatusUnprocessableEntity, "password"},
		{"missing fields", map[string]string{}, http.StatusUnprocessableEntity, "email"},
		{"unknown field", `{"email":"a@example.com","password":"correct-horse","admin":true}`, http.StatusBadRequest, ""},
		{"trailing data", `{"email":"a@example.com","password":"correct-horse"} {}`, http.StatusBadRequest, ""},
		{"empty body", "", http.StatusBadRequest, ""},
		{"too large", `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.call(t, http.MethodPost, "/api/auth/register", "", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field == "" {
				return
			}
			body := errorOf(t, rec)
			require.NotEmpty(t, body.Details)
			assert.Equal(t, tt.field, body.Details[0].Field)
			assert.NotEmpty(t, body.Details[0].Message)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.call(t, http.MethodGet, "/api/records", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = env.call(t, http.MethodGet, "/api/records", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
}

func createRecord(t *testing.T, env *testEnv, token string, body map[string]any) recordResponse {
	t.Helper()
	rec := env.call(t, http.MethodPost, "/api/records", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out recordResponse
	decode(t, rec, &out)
	assert.Equal(t, "/api/records/"+out.ID, rec.Header().Get("Location"))
	return out
}

// seedLedger writes the fixture used by the read endpoints: June has 1500
// revenue, 200 expenses and 70 invested; one sale falls in May.
func seedLedger(t *testing.T, env *testEnv, token string) {
	t.Helper()
	createRecord(t, env, token, map[string]any{"kind": "sale", "amount": 1000, "product_cost": "400", "description": "bolo", "date": "2024-06-20"})
	createRecord(t, env, token, map[string]any{"kind": "sale", "amount": "500,00", "description": "doces", "date": "2024-06-03"})
	createRecord(t, env, token, map[string]any{"kind": "expense", "amount": 200, "category": "Fixed", "description": "aluguel", "date": "2024-06-03"})
	createRecord(t, env, token, map[string]any{"kind": "investment", "amount": 70, "description": "forno", "date": "2024-06-18"})
	createRecord(t, env, token, map[string]any{"kind": "sale", "amount": 999, "description": "maio", "date": "2024-05-31"})
}

func TestRecords(t *testing.T) {
	env := newTestEnv(t, Options{})
	ana := env.register(t, "ana@example.com")
	bia := env.register(t, "bia@example.com")

	sale := createRecord(t, env, ana, map[string]any{
		"kind": "sale", "amount": "150,50", "product_cost": 50, "description": "  bolo de cenoura ", "date": "2024-06-10",
	})
	assert.InDelta(t, 150.5, sale.Amount, 1e-9)
	require.NotNil(t, sale.SaleProfit)
	assert.InDelta(t, 100.5, *sale.SaleProfit, 1e-9)
	assert.Equal(t, "bolo de cenoura", sale.Description)
	assert.Equal(t, "2024-06-10", sale.Date)
	assert.Empty(t, sale.Category)

	expense := createRecord(t, env, ana, map[string]any{
		"kind": "expense", "amount": 30, "description": "gás", "date": "2024-06-12",
	})
	assert.Equal(t, core.CategoryOther, expense.Category)
	assert.Nil(t, expense.SaleProfit)

	invalid := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"unknown kind", map[string]any{"kind": "gift", "amount": 1, "description": "x", "date": "2024-06-10"}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]any{"kind": "sale", "amount": 0, "description": "x", "date": "2024-06-10"}, http.StatusUnprocessableEntity},
		{"negative amount", map[string]any{"kind": "sale", "amount": "-5", "description": "x", "date": "2024-06-10"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"kind": "sale", "amount": 1, "description": "x", "date": "10/06/2024"}, http.StatusUnprocessableEntity},
		{"category on sale", map[string]any{"kind": "sale", "amount": 1, "category": "Fixed", "description": "x", "date": "2024-06-10"}, http.StatusUnprocessableEntity},
		{"cost on expense", map[string]any{"kind": "expense", "amount": 1, "product_cost": 1, "description": "x", "date": "2024-06-10"}, http.StatusUnprocessableEntity},
		{"missing description", map[string]any{"kind": "sale", "amount": 1, "date": "2024-06-10"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.call(t, http.MethodPost, "/api/records", ana, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := env.call(t, http.MethodGet, "/api/records", ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Records []recordResponse `json:"records"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Records, 2)
	assert.Equal(t, expense.ID, list.Records[0].ID, "most recent date first")
	assert.Equal(t, sale.ID, list.Records[1].ID)

	// another user cannot see or delete the record
	rec = env.call(t, http.MethodDelete, "/api/records/"+sale.ID, bia, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.call(t, http.MethodDelete, "/api/records/"+sale.ID, ana, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.call(t, http.MethodDelete, "/api/records/"+sale.ID, ana, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/records", ana, nil)
	decode(t, rec, &list)
	assert.Len(t, list.Records, 1)
}

func TestGoals(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")

	rec := env.call(t, http.MethodPost, "/api/goals", token, map[string]any{
		"horizon": "weekly", "target": 500, "work_days": 9,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g goalResponse
	decode(t, rec, &g)
	assert.Equal(t, core.Weekly, g.Horizon)
	assert.Equal(t, core.Automatic, g.MarginMode)
	assert.Zero(t, g.WorkDays, "work days only apply to custom goals")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"custom without days", map[string]any{"horizon": "custom", "target": 100}},
		{"unknown horizon", map[string]any{"horizon": "yearly", "target": 100}},
		{"zero target", map[string]any{"horizon": "monthly", "target": 0}},
		{"margin over 100", map[string]any{"horizon": "monthly", "target": 100, "margin_mode": "manual", "manual_margin_percent": 120}},
		{"unknown margin mode", map[string]any{"horizon": "monthly", "target": 100, "margin_mode": "magic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.call(t, http.MethodPost, "/api/goals", token, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}

	rec = env.call(t, http.MethodPut, "/api/goals/"+g.ID, token, map[string]any{
		"horizon": "custom", "target": "800,00", "work_days": 10, "margin_mode": "manual", "manual_margin_percent": 40,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replaced goalResponse
	decode(t, rec, &replaced)
	assert.Equal(t, g.ID, replaced.ID)
	assert.Equal(t, core.Custom, replaced.Horizon)
	assert.Equal(t, 10, replaced.WorkDays)
	assert.InDelta(t, 800.0, replaced.Target, 1e-9)
	assert.InDelta(t, 40.0, replaced.ManualMarginPercent, 1e-9)

	rec = env.call(t, http.MethodPut, "/api/goals/missing", token, map[string]any{"horizon": "monthly", "target": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/goals", token, nil)
	var list struct {
		Goals []goalResponse `json:"goals"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Goals, 1)

	rec = env.call(t, http.MethodDelete, "/api/goals/"+g.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.call(t, http.MethodDelete, "/api/goals/"+g.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")
	seedLedger(t, env, token)

	tests := []struct {
		query   string
		period  core.Preset
		from    string
		to      string
		revenue float64
		profit  float64
	}{
		{"", core.PresetMonth, "2024-06-01", "2024-06-30", 1500, 1300},
		{"?period=today", core.PresetToday, "2024-06-20", "2024-06-20", 1000, 1000},
		{"?period=week", core.PresetWeek, "2024-06-17", "2024-06-23", 1000, 1000},
		{"?period=custom&from=2024-05-31&to=2024-06-03", core.PresetCustom, "2024-05-31", "2024-06-03", 1499, 1299},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			rec := env.call(t, http.MethodGet, "/api/dashboard"+tt.query, token, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var view dashboardResponse
			decode(t, rec, &view)
			assert.Equal(t, tt.period, view.Period)
			assert.Equal(t, tt.from, view.Window.From)
			assert.Equal(t, tt.to, view.Window.To)
			assert.InDelta(t, tt.revenue, view.Stats.Revenue, 1e-9)
			assert.InDelta(t, tt.profit, view.Stats.Profit, 1e-9)
		})
	}

	rec := env.call(t, http.MethodGet, "/api/dashboard", token, nil)
	var month dashboardResponse
	decode(t, rec, &month)
	assert.InDelta(t, 200.0, month.Stats.Expenses, 1e-9)
	assert.InDelta(t, 70.0, month.Stats.Investments, 1e-9)
	assert.InDelta(t, 1300.0/1500.0, month.Stats.Margin, 1e-9)
	require.Len(t, month.Stats.ExpenseByCategory, 1)
	assert.Equal(t, "Fixed", month.Stats.ExpenseByCategory[0].Name)

	for _, q := range []string{
		"?period=year",
		"?period=custom",
		"?period=custom&from=2024-06-10&to=2024-06-01",
		"?period=custom&from=yesterday&to=2024-06-01",
	} {
		rec := env.call(t, http.MethodGet, "/api/dashboard"+q, token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestDashboardReflectsWrites(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")

	monthRevenue := func() float64 {
		rec := env.call(t, http.MethodGet, "/api/dashboard", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var view dashboardResponse
		decode(t, rec, &view)
		return view.Stats.Revenue
	}

	assert.Zero(t, monthRevenue())
	r := createRecord(t, env, token, map[string]any{"kind": "sale", "amount": 42, "description": "x", "date": "2024-06-19"})
	assert.InDelta(t, 42.0, monthRevenue(), 1e-9)

	rec := env.call(t, http.MethodDelete, "/api/records/"+r.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, monthRevenue())
}

func TestProjections(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")
	seedLedger(t, env, token)

	rec := env.call(t, http.MethodPost, "/api/goals", token, map[string]any{"horizon": "monthly", "target": 3000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.call(t, http.MethodGet, "/api/goals/projections", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Projections []projectionResponse `json:"projections"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Projections, 1)

	p := resp.Projections[0]
	assert.InDelta(t, 1300.0, p.CurrentProgress, 1e-9)
	assert.InDelta(t, 1700.0, p.Remaining, 1e-9)
	assert.Equal(t, 11, p.EffectiveDays)
	assert.InDelta(t, 1700.0/11, p.DailyProfitNeeded, 1e-6)
	assert.InDelta(t, 1300.0/1500.0, p.EffectiveMargin, 1e-9)
	assert.InDelta(t, (1700.0/11)/(1300.0/1500.0), p.DailyRevenueNeeded, 1e-6)
	assert.Equal(t, "2024-06-01", p.Window.From)
	assert.Equal(t, "2024-06-20", p.Window.To)
}

func TestDailyReport(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")
	seedLedger(t, env, token)

	rec := env.call(t, http.MethodGet, "/api/reports/daily?period=week", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep dailyReportResponse
	decode(t, rec, &rep)

	require.Len(t, rep.Days, 7)
	assert.Equal(t, "17/06", rep.Days[0].Day)
	assert.Equal(t, "23/06", rep.Days[6].Day)
	assert.InDelta(t, 1000.0, rep.Days[3].Revenue, 1e-9)
	assert.InDelta(t, 1000.0, rep.Totals.Revenue, 1e-9)
	assert.InDelta(t, 70.0, rep.Totals.Investments, 1e-9)

	rec = env.call(t, http.MethodGet, "/api/reports/daily?period=custom&from=2024-06-01&to=2024-06-03", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &rep)
	require.Len(t, rep.Days, 3)
	assert.InDelta(t, 300.0, rep.Days[2].Profit, 1e-9)
}

func TestResetData(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")
	seedLedger(t, env, token)
	rec := env.call(t, http.MethodPost, "/api/goals", token, map[string]any{"horizon": "monthly", "target": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.call(t, http.MethodDelete, "/api/account/data", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/dashboard", token, nil)
	var view dashboardResponse
	decode(t, rec, &view)
	assert.Zero(t, view.Stats.Revenue)

	rec = env.call(t, http.MethodGet, "/api/goals", token, nil)
	assert.JSONEq(t, `{"goals":[]}`, rec.Body.String())

	// the account survives the reset
	rec = env.call(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.call(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meurenda_http_requests_total")

	rec = env.call(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", errorOf(t, rec).Error)

	rec = env.call(t, http.MethodPatch, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestReadyzUnavailable(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.srv.deps.Ready = func(context.Context) error { return assert.AnError }

	rec := env.call(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 3})

	for i := 0; i < 3; i++ {
		rec := env.call(t, http.MethodGet, "/api/records", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.call(t, http.MethodGet, "/api/records", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// operational endpoints are not limited
	rec = env.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// sseEvent is one parsed "event:/data:" block of the stream.
type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, Options{Heartbeat: 20 * time.Millisecond})
	ts := httptest.NewUnstartedServer(env.srv.Handler)
	ts.Config.BaseContext = env.srv.BaseContext
	ts.Start()
	defer ts.Close()

	token := env.register(t, "ana@example.com")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stream?period=month&access_token="+token, nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	assert.Equal(t, "dashboard", first.name)
	var payload streamPayload
	require.NoError(t, json.Unmarshal([]byte(first.data), &payload))
	assert.Equal(t, "initial", payload.Reason)
	assert.Zero(t, payload.Dashboard.Stats.Revenue)
	assert.Equal(t, 1, env.hub.ClientCount())

	createRecord(t, env, token, map[string]any{"kind": "sale", "amount": 250, "description": "x", "date": "2024-06-19"})

	next := readEvent(t, reader)
	require.NoError(t, json.Unmarshal([]byte(next.data), &payload))
	assert.Equal(t, "record.created", payload.Reason)
	assert.InDelta(t, 250.0, payload.Dashboard.Stats.Revenue, 1e-9)
	assert.NotNil(t, payload.Projections)

	// shutting the server down ends the stream
	require.NoError(t, env.srv.Shutdown(context.Background()))
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return env.hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamRequiresAuthAndValidPeriod(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.register(t, "ana@example.com")

	rec := env.call(t, http.MethodGet, "/api/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.call(t, http.MethodGet, "/api/stream?period=decade", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePeriodParams(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	tests := []struct {
		query   string
		want    core.Preset
		wantErr bool
	}{
		{"", core.PresetMonth, false},
		{"period=today", core.PresetToday, false},
		{"period=week", core.PresetWeek, false},
		{"period=custom&from=2024-06-01&to=2024-06-01", core.PresetCustom, false},
		{"period=custom&from=2024-06-01", "", true},
		{"period=custom&from=2024-06-02&to=2024-06-01", "", true},
		{"period=fortnight", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			p, err := ParsePeriodParams(q, loc)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidPreset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Preset)
			if p.Preset == core.PresetCustom {
				assert.Equal(t, loc, p.From.Location())
				assert.Equal(t, 0, p.From.Hour())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"other scheme", "Basic abc", "", ""},
		{"query fallback", "", "access_token=xyz", "xyz"},
		{"header wins", "Bearer abc", "access_token=xyz", "abc"},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/stream?"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, bearerToken(r))
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "bolo", sanitizeInput("  bolo\x00 "))
	assert.Equal(t, "a\tb\nc", sanitizeInput("a\tb\nc\x07"))
}
