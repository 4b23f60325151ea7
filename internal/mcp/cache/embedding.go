package cache

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// EmbeddingProvider turns prompt text into a fixed-dimension, unit-norm vector. The
// SemanticCache never assumes anything about how the vector was produced, only that
// repeated calls for the same text return comparably-scaled vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// HashedEmbeddingProvider is the zero-dependency default: a deterministic hashed
// bag-of-words embedding. Each token is hashed into one of D buckets with xxhash and
// accumulated with a sign derived from a second hash, à la the hashing trick; the
// result is L2-normalized so cosine similarity behaves like it would over a learned
// embedding. It never calls out to a network, so semantic caching works out of the box
// with no API key configured.
type HashedEmbeddingProvider struct {
	dimension int
}

// NewHashedEmbeddingProvider constructs a provider producing vectors of the given
// dimension.
func NewHashedEmbeddingProvider(dimension int) *HashedEmbeddingProvider {
	if dimension <= 0 {
		dimension = 128
	}
	return &HashedEmbeddingProvider{dimension: dimension}
}

func (p *HashedEmbeddingProvider) Dimension() int { return p.dimension }

func (p *HashedEmbeddingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimension)
	for _, tok := range tokenize(text) {
		h := xxhash.Sum64String(tok)
		bucket := h % uint64(p.dimension)
		sign := float32(1)
		if (h>>1)%2 == 0 {
			sign = -1
		}
		vec[bucket] += sign
	}
	normalize(vec)
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

// cosineSimilarity assumes both vectors are already unit-norm, so it reduces to a
// plain dot product.
func cosineSimilarity(a, b []float32) float32 {
	var dot float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}
