// Package service provides the reporting service behind the HTTP API and
// the CLI: retrieval and extraction feed derivation, and the derived
// template is validated and audited into a single report.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/corep/internal/adapters/extraction"
	"github.com/okian/corep/internal/adapters/repository"
	"github.com/okian/corep/internal/adapters/retrieval"
	"github.com/okian/corep/internal/domain/audit"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/template"
	"github.com/okian/corep/internal/domain/types"
	"github.com/okian/corep/internal/domain/validation"
	"github.com/okian/corep/pkg/logger"
	"github.com/okian/corep/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Service assembles reports. It is safe for concurrent use once started.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	retriever retrieval.Retriever
	extractor extraction.Extractor
	engine    *validation.Engine
	store     *retrieval.Store
	cache     *retrieval.Cached
	history   repository.Store

	// Configuration
	topK         int
	excerptChars int
	corpusPath   string
	cacheTTL     time.Duration
	now          func() time.Time

	// State
	started    bool
	reports    atomic.Int64
	blocking   atomic.Int64
	queries    atomic.Int64
	queryFails atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetriever replaces the corpus-backed retriever built at Start.
func WithRetriever(r retrieval.Retriever) Option {
	return func(s *Service) {
		if r != nil {
			s.retriever = r
		}
	}
}

// WithExtractor sets the extraction collaborator.
func WithExtractor(e extraction.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithEngine replaces the validation engine.
func WithEngine(e *validation.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithTopK sets how many passages a query retrieves.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithExcerptChars sets the audit excerpt length.
func WithExcerptChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.excerptChars = n
		}
	}
}

// WithCorpusPath loads the regulatory corpus from a YAML file instead of
// the bundled one.
func WithCorpusPath(path string) Option {
	return func(s *Service) {
		s.corpusPath = path
	}
}

// WithCacheTTL sets how long retrieval results are cached; zero disables
// the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithReportStore sets where assembled reports are kept.
func WithReportStore(r repository.Store) Option {
	return func(s *Service) {
		if r != nil {
			s.history = r
		}
	}
}

// WithClock sets the time source for report and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		topK:         retrieval.DefaultTopK,
		excerptChars: audit.DefaultExcerptChars,
		cacheTTL:     5 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds any collaborators not supplied as options. Without a
// retriever it indexes the regulatory corpus; without an extractor it uses
// an unconfigured one, so queries fail but offline assembly works.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting reporting service...")

	if s.engine == nil {
		s.engine = validation.NewEngine()
	}
	if s.history == nil {
		s.history = repository.NewMemoryStore()
	}
	if s.extractor == nil {
		s.extractor = extraction.NewGeminiExtractor()
		s.logger.Warn(ctx, "no extraction model configured; /api/query will fail")
	}
	if s.retriever == nil {
		passages, err := retrieval.LoadCorpus(s.corpusPath)
		if err != nil {
			return fmt.Errorf("service.start: %w", err)
		}
		store, err := retrieval.NewStore(ctx, retrieval.WithPassages(passages...))
		if err != nil {
			return fmt.Errorf("service.start: %w", err)
		}
		s.store = store
		s.cache = retrieval.NewCached(store, s.cacheTTL)
		s.retriever = s.cache
		s.logger.Info(ctx, "regulatory corpus indexed",
			logger.Int("passages", store.Count()),
			logger.String("path", s.corpusPath),
		)
	}

	s.started = true
	s.logger.Info(ctx, "reporting service started",
		logger.Int("topK", s.topK),
		logger.Int("excerptChars", s.excerptChars),
		logger.Duration("cacheTTL", s.cacheTTL),
	)
	return nil
}

// Stop marks the service stopped and drops cached retrievals.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping reporting service...")
	if s.cache != nil {
		s.cache.Flush()
	}
	s.started = false
	s.logger.Info(context.Background(), "reporting service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Query answers a question end to end: it retrieves passages, asks the
// extractor for field values and assembles the report.
func (s *Service) Query(ctx context.Context, question, scenario, templateType string) (*types.Report, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	if !template.Supported(templateType) {
		return nil, fmt.Errorf("service.query %q: %w", templateType, template.ErrUnsupportedTemplateType)
	}
	s.queries.Add(1)

	docs, err := s.retriever.Retrieve(ctx, question, scenario, s.topK)
	if err != nil {
		s.queryFails.Add(1)
		metrics.RecordErrorByComponent("retrieval", "retrieve_failed")
		s.logger.Error(ctx, "retrieval failed", logger.Error(err))
		return nil, fmt.Errorf("service.query retrieve: %w: %w", ErrUpstream, err)
	}
	s.logger.Debug(ctx, "retrieved sources", logger.Int("count", len(docs)))

	ext, err := s.extractor.Extract(ctx, question, scenario, docs, templateType)
	if err != nil {
		s.queryFails.Add(1)
		metrics.RecordErrorByComponent("extraction", "extract_failed")
		s.logger.Error(ctx, "extraction failed", logger.Error(err))
		return nil, fmt.Errorf("service.query extract: %w: %w", ErrUpstream, err)
	}
	s.logger.Debug(ctx, "extracted fields", logger.Int("count", len(ext.Fields)))

	return s.Assemble(ctx, templateType, ext, docs)
}

// Assemble derives, validates and audits an extraction the caller already
// holds. Validation and audit run concurrently on the derived template.
func (s *Service) Assemble(ctx context.Context, templateType string, ext *model.Extraction, docs []model.RetrievedDocument) (*types.Report, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	if ext == nil {
		return nil, ErrNoInput
	}
	start := time.Now()

	tmpl, err := template.Derive(templateType, ext.Fields)
	if err != nil {
		metrics.RecordDerivationFailure()
		return nil, fmt.Errorf("service.assemble: %w", err)
	}
	unmapped := template.Unmapped(ext.Fields)
	if len(unmapped) > 0 {
		metrics.RecordUnmappedRows(len(unmapped))
		s.logger.Debug(ctx, "ignored rows outside the template", logger.Any("rows", unmapped))
	}

	var (
		results []validation.Result
		entries []audit.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results = s.engine.Validate(tmpl, templateType)
		return gctx.Err()
	})
	g.Go(func() error {
		b := audit.NewBuilder(audit.WithClock(s.now), audit.WithExcerptChars(s.excerptChars))
		entries = b.Build(ext.Fields, docs, ext.Reasoning)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service.assemble: %w", err)
	}

	report := types.NewReport(templateType, s.now())
	report.Template = tmpl
	report.Validation = results
	report.ValidationSummary = validation.Summarize(results)
	report.AuditTrail = entries
	report.RetrievedSources = types.Previews(docs)
	report.Reasoning = ext.Reasoning
	report.Confidence = ext.Confidence
	if ext.Warnings != nil {
		report.Warnings = ext.Warnings
	}
	report.UnmappedRows = unmapped

	if err := s.history.Save(ctx, report); err != nil {
		s.logger.Warn(ctx, "report not kept in history", logger.String("report", report.ID), logger.Error(err))
	}
	s.record(ctx, report, time.Since(start))
	return report, nil
}

func (s *Service) record(ctx context.Context, r *types.Report, took time.Duration) {
	for _, res := range r.Validation {
		metrics.RecordValidationResult(res.RuleID, string(res.Severity), res.Passed)
	}
	unresolved := audit.Unresolved(r.AuditTrail)
	metrics.RecordAuditEntries(len(r.AuditTrail), unresolved)
	metrics.RecordReportAssembled(r.TemplateType, r.ValidationSummary.Blocking)
	metrics.RecordPipelineLatency(float64(took.Milliseconds()))

	s.reports.Add(1)
	if r.ValidationSummary.Blocking {
		s.blocking.Add(1)
	}

	if failed := validation.Failed(r.Validation); len(failed) > 0 {
		ids := make([]string, 0, len(failed))
		for _, f := range failed {
			ids = append(ids, f.RuleID)
		}
		s.logger.Warn(ctx, "validation findings",
			logger.String("report", r.ID),
			logger.Any("rules", ids),
			logger.Bool("blocking", r.ValidationSummary.Blocking),
		)
	}
	s.logger.Info(ctx, "report assembled",
		logger.String("report", r.ID),
		logger.String("templateType", r.TemplateType),
		logger.Int("auditEntries", len(r.AuditTrail)),
		logger.Int("unresolvedSources", unresolved),
		logger.Duration("took", took),
	)
}

// ExportAudit builds an audit trail for the given fields and sources and
// renders it in format.
func (s *Service) ExportAudit(fields []model.FieldMapping, docs []model.RetrievedDocument, reasoning, format string) (string, error) {
	f, err := audit.ParseFormat(format)
	if err != nil {
		return "", err
	}
	b := audit.NewBuilder(audit.WithClock(s.now), audit.WithExcerptChars(s.excerptChars))
	b.Build(fields, docs, reasoning)
	return b.Export(f)
}

// Schema returns the row layout of templateType.
func (s *Service) Schema(templateType string) (template.Schema, error) {
	return template.SchemaFor(templateType)
}

// Rules lists the validation rules registered for templateType.
func (s *Service) Rules(templateType string) ([]validation.Descriptor, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		engine = validation.NewEngine()
	}
	return engine.Rules(templateType)
}

// AddPassages indexes extra regulatory passages and drops cached results.
func (s *Service) AddPassages(ctx context.Context, passages ...retrieval.Passage) error {
	s.mu.RLock()
	store, cache := s.store, s.cache
	s.mu.RUnlock()
	if store == nil {
		return ErrNotStarted
	}
	if err := store.Add(ctx, passages...); err != nil {
		return err
	}
	cache.Flush()
	return nil
}

// Report returns a previously assembled report.
func (s *Service) Report(ctx context.Context, id string) (*types.Report, error) {
	h, err := s.reportStore()
	if err != nil {
		return nil, err
	}
	return h.Get(ctx, id)
}

// RecentReports summarizes up to n reports, newest first.
func (s *Service) RecentReports(ctx context.Context, n int) ([]repository.Summary, error) {
	h, err := s.reportStore()
	if err != nil {
		return nil, err
	}
	return h.Recent(ctx, n)
}

func (s *Service) reportStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil, ErrNotStarted
	}
	return s.history, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"topK":            s.topK,
		"excerptChars":    s.excerptChars,
		"templateTypes":   template.Types(),
		"reports":         s.reports.Load(),
		"blockingReports": s.blocking.Load(),
		"queries":         s.queries.Load(),
		"failedQueries":   s.queryFails.Load(),
	}
	if s.store != nil {
		stats["corpusPassages"] = s.store.Count()
	}
	if s.cache != nil {
		stats["cachedQueries"] = s.cache.Len()
	}
	if s.history != nil {
		stats["storedReports"] = s.history.Count(context.Background())
	}
	if ex, ok := s.extractor.(interface{ Configured() bool }); ok {
		stats["extractionConfigured"] = ex.Configured()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	return stats
}
