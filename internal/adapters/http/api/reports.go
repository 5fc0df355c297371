package api

import (
	"net/http"
	"strings"

	"github.com/okian/corep/internal/adapters/extraction"
	"github.com/okian/corep/internal/domain/model"
)

// queryRequest mirrors the OpenAPI schema for POST /api/query.
type queryRequest struct {
	Question     string `json:"question" validate:"required,max=4000"`
	Scenario     string `json:"scenario" validate:"max=20000"`
	TemplateType string `json:"template_type" validate:"max=16"`
}

// reportRequest mirrors the OpenAPI schema for POST /api/reports.
type reportRequest struct {
	TemplateType string                    `json:"template_type" validate:"max=16"`
	Fields       []model.FieldMapping      `json:"fields" validate:"dive"`
	Sources      []model.RetrievedDocument `json:"sources" validate:"dive"`
	Reasoning    string                    `json:"reasoning"`
	Confidence   *float64                  `json:"confidence" validate:"omitempty,min=0,max=1"`
	Warnings     []string                  `json:"warnings"`
}

// exportRequest mirrors the OpenAPI schema for POST /api/audit/export.
type exportRequest struct {
	Fields    []model.FieldMapping      `json:"fields" validate:"dive"`
	Sources   []model.RetrievedDocument `json:"sources" validate:"dive"`
	Reasoning string                    `json:"reasoning"`
}

// handleQuery handles POST /api/query requests.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.query"
	var req queryRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.deps.Query(r.Context(), req.Question, req.Scenario, s.templateOr(req.TemplateType))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReport handles POST /api/reports requests.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report"
	var req reportRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tt := s.templateOr(req.TemplateType)
	ext := &model.Extraction{
		TemplateType: tt,
		Fields:       withDefaults(req.Fields),
		Reasoning:    req.Reasoning,
		Confidence:   extraction.DefaultConfidence,
		Warnings:     req.Warnings,
	}
	if req.Confidence != nil {
		ext.Confidence = *req.Confidence
	}
	report, err := s.deps.Assemble(r.Context(), tt, ext, req.Sources)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleExport handles POST /api/audit/export?format=json|csv requests.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.audit_export"
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	var req exportRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := s.deps.ExportAudit(withDefaults(req.Fields), req.Sources, req.Reasoning, format)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if strings.EqualFold(strings.TrimSpace(format), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func withDefaults(fields []model.FieldMapping) []model.FieldMapping {
	out := make([]model.FieldMapping, len(fields))
	for i, f := range fields {
		out[i] = f.WithDefaults()
	}
	return out
}
