package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

// DefaultDimensions is the vector width of the hashing embedder.
const DefaultDimensions = 512

// HashEmbedder maps text to a normalized bag-of-words vector by hashing
// each lowercased token into a fixed number of buckets. It needs no
// network access and is deterministic, so identical texts always embed
// identically.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder with the given width; non-positive
// widths fall back to DefaultDimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Dimensions returns the vector width.
func (h *HashEmbedder) Dimensions() int { return h.dimensions }

// Embed returns the unit-length vector for text.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dimensions)
	for _, tok := range tokens(text) {
		v[bucket(tok, h.dimensions)]++
	}
	return normalize(v), nil
}

// Func adapts the embedder to chromem-go.
func (h *HashEmbedder) Func() chromem.EmbeddingFunc {
	return h.Embed
}

func tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func bucket(tok string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tok))
	return int(h.Sum32() % uint32(n))
}

// normalize scales v to unit length. A zero vector gets a single unit
// component so chromem never divides by zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		v[0] = 1
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

var stopwords = map[string]bool{
	"the": true, "and": true, "of": true, "to": true, "in": true, "is": true,
	"are": true, "for": true, "on": true, "by": true, "an": true, "as": true,
	"be": true, "or": true, "at": true, "it": true, "its": true, "with": true,
	"that": true, "this": true, "from": true, "which": true, "shall": true,
	"what": true, "how": true, "we": true, "our": true, "has": true, "have": true,
}
