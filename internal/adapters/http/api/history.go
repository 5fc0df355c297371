package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// Report listing limits for GET /api/reports.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// handleListReports handles GET /api/reports?limit=N requests.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	const op = "api.reports_list"
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			s.fail(w, r, NewKind(op, fmt.Errorf("%w: limit must be between 1 and %d", ErrBadRequest, maxListLimit)))
			return
		}
		limit = n
	}
	list, err := s.deps.RecentReports(r.Context(), limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetReport handles GET /api/reports/{id} requests.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.reports_get"
	report, err := s.deps.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
