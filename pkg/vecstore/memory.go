package vecstore

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Index using brute-force cosine distance.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float32
}

// NewMemory creates a new in-memory vector index.
func NewMemory() *Memory {
	return &Memory{
		vectors: make(map[string][]float32),
	}
}

// indexDim is the dimension new vectors must have. An empty index adopts
// the dimension of first.
func (m *Memory) indexDim(first []float32) int {
	if m.dim == 0 || len(m.vectors) == 0 {
		return len(first)
	}
	return m.dim
}

func checkDim(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
	}
	return nil
}

func (m *Memory) Insert(id string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dim := m.indexDim(vector)
	if err := checkDim(vector, dim); err != nil {
		return err
	}
	m.dim = dim
	m.vectors[id] = slices.Clone(vector)
	return nil
}

func (m *Memory) BatchInsert(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("vecstore: BatchInsert length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// All or nothing: check every vector before writing any.
	dim := m.indexDim(vectors[0])
	for i, id := range ids {
		if err := checkDim(vectors[i], dim); err != nil {
			return fmt.Errorf("vecstore: insert %s: %w", id, err)
		}
	}
	m.dim = dim
	for i, id := range ids {
		m.vectors[id] = slices.Clone(vectors[i])
	}
	return nil
}

func (m *Memory) Search(query []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vectors) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), m.dim)
	}

	matches := make([]Match, 0, len(m.vectors))
	for id, vec := range m.vectors {
		matches = append(matches, Match{ID: id, Distance: CosineDistance(query, vec)})
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	delete(m.vectors, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func (m *Memory) Close() error {
	return nil
}

// CosineDistance computes the cosine distance between two vectors, in
// [0, 2]. Mismatched dimensions and zero vectors yield the maximum
// distance.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 2
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	similarity = max(-1, min(1, similarity))
	return float32(1 - similarity)
}
