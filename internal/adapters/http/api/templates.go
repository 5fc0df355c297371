package api

import (
	"errors"
	"net/http"

	"github.com/okian/corep/internal/domain/template"
)

// handleSchema handles GET /api/templates/{type} requests.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	const op = "api.schema"
	schema, err := s.deps.Schema(r.PathValue("type"))
	if err != nil {
		s.fail(w, r, notFound(op, err))
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// handleRules handles GET /api/validation-rules/{type} requests.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	const op = "api.rules"
	rules, err := s.deps.Rules(r.PathValue("type"))
	if err != nil {
		s.fail(w, r, notFound(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// notFound reclassifies an unknown template type as a missing resource.
func notFound(op string, err error) error {
	if errors.Is(err, template.ErrUnsupportedTemplateType) {
		return WrapKind(op, ErrNotFound, err)
	}
	return Wrap(op, err)
}
