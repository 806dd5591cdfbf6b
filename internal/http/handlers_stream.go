package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meurenda/internal/log"
	"meurenda/internal/metrics"
)

// handleStream serves the dashboard via Server-Sent Events.
// GET /api/stream?period=...
//
// The first event carries the current dashboard; every snapshot change of
// the user triggers a full recomputation and a new event. Bursts of changes
// that arrive while an event is being written collapse into one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	p, err := ParsePeriodParams(r.URL.Query(), s.location())
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := r.Context()
	userID := identity(r).UserID
	logger := log.FromContext(ctx)

	events, unsubscribe := s.deps.Hub.Subscribe(userID)
	defer unsubscribe()
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(reason string) error {
		payload, err := s.streamPayload(ctx, userID, p, reason)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to compute stream payload", log.FieldError, err)
			return writeEvent(w, flusher, "error", map[string]string{"error": "failed to load dashboard"})
		}
		return writeEvent(w, flusher, "dashboard", payload)
	}

	if err := send("initial"); err != nil {
		return
	}
	logger.DebugContext(ctx, "Stream opened")

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "Stream closed")
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			drain(events)
			if err := send(ev.Reason); err != nil {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) streamPayload(ctx context.Context, userID string, p PeriodParams, reason string) (streamPayload, error) {
	view, err := s.deps.Dashboard.Dashboard(ctx, userID, p.Preset, p.From, p.To)
	if err != nil {
		return streamPayload{}, err
	}
	projs, err := s.deps.Dashboard.Projections(ctx, userID)
	if err != nil {
		return streamPayload{}, err
	}
	return streamPayload{
		Reason:      reason,
		Dashboard:   newDashboardResponse(view),
		Projections: newProjectionResponses(projs),
	}, nil
}

// drain discards events already queued; the next send reflects them all.
func drain[T any](ch <-chan T) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
