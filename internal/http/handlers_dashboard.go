package http

import (
	"net/http"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriodParams(r.URL.Query(), s.location())
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := s.deps.Dashboard.Dashboard(r.Context(), identity(r).UserID, p.Preset, p.From, p.To)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(view))
}

func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request) {
	ps, err := s.deps.Dashboard.Projections(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projections": newProjectionResponses(ps)})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriodParams(r.URL.Query(), s.location())
	if err != nil {
		respondError(w, r, err)
		return
	}
	rep, err := s.deps.Dashboard.DailyReport(r.Context(), identity(r).UserID, p.Preset, p.From, p.To)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDailyReportResponse(rep))
}
