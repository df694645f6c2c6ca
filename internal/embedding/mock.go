package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	MockModelName        = "mock-bow"
	defaultMockDimension = 64
)

// MockClient is a deterministic bag-of-words embedder: each token is hashed
// into a bucket and the counts are L2-normalised. Equal texts embed equally
// and texts sharing words land close together.
type MockClient struct {
	dim int
}

func NewMockClient() *MockClient {
	return &MockClient{dim: defaultMockDimension}
}

func NewMockClientWithDimension(dim int) *MockClient {
	if dim <= 0 {
		dim = defaultMockDimension
	}
	return &MockClient{dim: dim}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, c.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(c.dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
