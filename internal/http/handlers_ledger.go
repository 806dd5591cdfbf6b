package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"meurenda/internal/log"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Dashboard.Records(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	loc := s.location()
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newRecordResponse(rec, loc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id := identity(r)
	loc := s.location()
	rec, err := req.toRecord(id.UserID, loc)
	if err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.deps.Ledger.CreateRecord(r.Context(), rec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogRecordCreated(r.Context(),
		id.UserID, created.ID, string(created.Kind), created.Amount.Cents, created.Category)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/records/"+created.ID).
		JSON(newRecordResponse(created, loc)).
		Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.DeleteRecord(r.Context(), identity(r).UserID, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.Dashboard.Goals(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": out})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	g, err := req.toGoal(identity(r).UserID, "")
	if err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.deps.Ledger.CreateGoal(r.Context(), g)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/"+created.ID).
		JSON(newGoalResponse(created)).
		Write(w)
}

// handleReplaceGoal overwrites every editable field of a goal.
func (s *Server) handleReplaceGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	g, err := req.toGoal(identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	replaced, err := s.deps.Ledger.ReplaceGoal(r.Context(), g)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(replaced))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.DeleteGoal(r.Context(), identity(r).UserID, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetData deletes every record and goal of the caller.
func (s *Server) handleResetData(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.ResetData(r.Context(), identity(r).UserID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
