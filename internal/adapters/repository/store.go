// Package repository keeps the history of assembled reports.
package repository

import (
	"context"

	"github.com/okian/corep/internal/domain/types"
)

// Summary is the listing view of a stored report.
type Summary struct {
	ID             string   `json:"id"`
	TemplateType   string   `json:"template_type"`
	Timestamp      string   `json:"timestamp"`
	Blocking       bool     `json:"blocking"`
	FailedRules    int      `json:"failed_rules"`
	Confidence     float64  `json:"confidence"`
	TotalOwnFunds  *float64 `json:"total_own_funds"`
	AuditEntries   int      `json:"audit_entries"`
	UnresolvedRefs int      `json:"unresolved_sources"`
}

// Store provides read/write access to report history.
type Store interface {
	// Save records a report. Saving an ID that is already held replaces it.
	Save(ctx context.Context, r *types.Report) error

	// Get returns the report with id.
	// Returns ErrNotFound if the report is unknown or was evicted.
	Get(ctx context.Context, id string) (*types.Report, error)

	// Recent returns up to n summaries, newest first.
	Recent(ctx context.Context, n int) ([]Summary, error)

	// Count returns the number of reports held.
	Count(ctx context.Context) int
}
