package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/corep/internal/domain/audit"
	"github.com/okian/corep/internal/domain/types"
	"github.com/okian/corep/pkg/metrics"
)

const totalRow = "700"

// MemoryStore is a bounded in-memory Store. Reports are kept in insertion
// order in a ring; once full, each Save evicts the oldest report.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	ring     []string
	head     int // index of the oldest id once the ring is full
	byID     map[string]*types.Report
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	s.ring = make([]string, 0, s.capacity)
	s.byID = make(map[string]*types.Report, s.capacity)
	return s
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, r *types.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil || r.ID == "" {
		return fmt.Errorf("repository.save: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		s.byID[r.ID] = r
		return nil
	}
	if len(s.ring) < s.capacity {
		s.ring = append(s.ring, r.ID)
	} else {
		delete(s.byID, s.ring[s.head])
		s.ring[s.head] = r.ID
		s.head = (s.head + 1) % s.capacity
	}
	s.byID[r.ID] = r
	metrics.UpdateStoredReports(len(s.byID))
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("repository.get %q: %w", id, ErrNotFound)
	}
	return r, nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(ctx context.Context, n int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("repository.recent %d: %w", n, ErrInvalidLimit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	size := len(s.ring)
	if n > size {
		n = size
	}
	out := make([]Summary, 0, n)
	// Newest is just before head in a full ring, or at the end otherwise.
	for i := 1; i <= n; i++ {
		idx := (s.head - i + size) % size
		out = append(out, summarize(s.byID[s.ring[idx]]))
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func summarize(r *types.Report) Summary {
	sum := Summary{
		ID:             r.ID,
		TemplateType:   r.TemplateType,
		Timestamp:      r.Timestamp,
		Blocking:       r.ValidationSummary.Blocking,
		FailedRules:    r.ValidationSummary.ErrorsFailed + r.ValidationSummary.WarningsFailed,
		Confidence:     r.Confidence,
		AuditEntries:   len(r.AuditTrail),
		UnresolvedRefs: audit.Unresolved(r.AuditTrail),
	}
	if r.Template != nil {
		if v := r.Template.Value(totalRow); v != nil {
			total := *v
			sum.TotalOwnFunds = &total
		}
	}
	return sum
}
