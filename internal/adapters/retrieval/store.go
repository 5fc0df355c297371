package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/pkg/metrics"
	"github.com/philippgille/chromem-go"
)

// DefaultTopK is the number of passages returned when k is not positive.
const DefaultTopK = 5

// DefaultCollection names the chromem collection holding the corpus.
const DefaultCollection = "corep_regulations"

// Retriever returns the passages most relevant to a question, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query, scenario string, k int) ([]model.RetrievedDocument, error)
}

// Option configures a Store.
type Option func(*Store)

// WithEmbeddingFunc replaces the hashing embedder.
func WithEmbeddingFunc(fn chromem.EmbeddingFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.embed = fn
		}
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithPassages indexes the given passages when the store is built.
func WithPassages(passages ...Passage) Option {
	return func(s *Store) {
		s.initial = append(s.initial, passages...)
	}
}

// Store is an in-memory vector index over regulatory passages.
type Store struct {
	db         *chromem.DB
	col        *chromem.Collection
	embed      chromem.EmbeddingFunc
	collection string
	initial    []Passage
}

// NewStore builds a store and indexes any passages given via WithPassages.
func NewStore(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{
		embed:      NewHashEmbedder(DefaultDimensions).Func(),
		collection: DefaultCollection,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.db = chromem.NewDB()
	col, err := s.db.GetOrCreateCollection(s.collection, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("retrieval.new: %w", err)
	}
	s.col = col

	if len(s.initial) > 0 {
		if err := s.Add(ctx, s.initial...); err != nil {
			return nil, err
		}
		s.initial = nil
	}
	return s, nil
}

// Add indexes passages. A passage whose ID is already present replaces it.
func (s *Store) Add(ctx context.Context, passages ...Passage) error {
	if len(passages) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(passages))
	for i, p := range passages {
		if strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("retrieval.add: passage %d has no content: %w", i, ErrInvalidEntry)
		}
		id := p.ID
		if id == "" {
			id = "doc_" + strconv.Itoa(s.col.Count()+i)
		}
		docs = append(docs, chromem.Document{
			ID:       id,
			Content:  p.Content,
			Metadata: p.metadata(),
		})
	}
	if err := s.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("retrieval.add: %w", err)
	}
	metrics.UpdateCorpusPassages(s.col.Count())
	return nil
}

// Count returns the number of indexed passages.
func (s *Store) Count() int {
	return s.col.Count()
}

// Retrieve ranks passages against the query joined with the scenario.
// Scores are cosine similarities clamped to [0,1]. An empty store yields
// no passages.
func (s *Store) Retrieve(ctx context.Context, query, scenario string, k int) ([]model.RetrievedDocument, error) {
	text := SearchText(query, scenario)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("retrieval.retrieve: %w", ErrEmptyQuery)
	}
	if k <= 0 {
		k = DefaultTopK
	}
	n := s.col.Count()
	if n == 0 {
		return []model.RetrievedDocument{}, nil
	}
	if k > n {
		k = n
	}

	start := time.Now()
	results, err := s.col.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval.retrieve: %w", err)
	}

	docs := make([]model.RetrievedDocument, 0, len(results))
	for i, r := range results {
		ref := r.Metadata[metaReference]
		if ref == "" {
			ref = "Document " + strconv.Itoa(i+1)
		}
		docs = append(docs, model.RetrievedDocument{
			Content:   r.Content,
			Reference: ref,
			Article:   r.Metadata[metaArticle],
			Section:   r.Metadata[metaSection],
			Score:     clamp(float64(r.Similarity)),
		})
	}
	metrics.RecordRetrieval(float64(time.Since(start).Milliseconds()), len(docs))
	return docs, nil
}

// SearchText is the text embedded for a query: the question, followed by
// the scenario when one is given.
func SearchText(query, scenario string) string {
	if strings.TrimSpace(scenario) == "" {
		return query
	}
	return query + "\n\nScenario: " + scenario
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
