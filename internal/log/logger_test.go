package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Component: component, Handler: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
}

func TestSafeQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"no secret", "period=week&from=2024-06-01", "period=week&from=2024-06-01"},
		{"token masked", "period=month&access_token=abc.def.ghi", "access_token=REDACTED&period=month"},
		{"malformed token dropped", "access_token=abc%zz&period=today", "period=today"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &url.URL{Path: "/api/stream", RawQuery: tt.raw}
			assert.Equal(t, tt.want, SafeQuery(u))
		})
	}
}

func TestLogger_WithComponentWritesOnce(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentApp).With(FieldRequestID, "r1").WithComponent(ComponentLedger)

	l.Info("hello")
	l.Log(context.Background(), slog.LevelWarn, "careful")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, "component="), line)
		assert.Contains(t, line, "component=ledger")
		assert.Contains(t, line, "request_id=r1")
	}
}

func TestComponentMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentHTTP)

	h := Middleware(base)(ComponentMiddleware(ComponentAuth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "component=auth")
	assert.NotContains(t, buf.String(), "component=http")
}

func TestStructuredLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentWorker))
	ctx := context.Background()

	sl.LogSheetsAppended(ctx, "u1", "rec-1", "sale", 1500, "Sheet1!A2:J2")
	sl.LogError(ctx, "Export failed", errors.New("quota"), ComponentSheets, OpAppend, nil)

	out := buf.String()
	assert.Contains(t, out, "record_id=rec-1")
	assert.Contains(t, out, "sheets_ref=Sheet1!A2:J2")
	assert.Contains(t, out, "error=quota")
	assert.Contains(t, out, "operation=append")
	assert.Equal(t, 2, strings.Count(out, "component=sheets"))
	assert.NotContains(t, out, "component=worker")
}
