// Package vecstore provides a nearest-neighbor search interface over dense
// vectors and an in-memory brute-force implementation.
//
// The knowledge base indexes one vector per passage; a few hundred
// articles fit comfortably in [Memory].
package vecstore

import "errors"

// ErrDimensionMismatch is returned when a vector's length differs from the
// dimension fixed by the first insert.
var ErrDimensionMismatch = errors.New("vecstore: dimension mismatch")

// Index is the interface for nearest-neighbor search over dense float32
// vectors.
//
// All implementations must be safe for concurrent use.
type Index interface {
	// Insert adds or updates a vector with the given ID.
	Insert(id string, vector []float32) error

	// BatchInsert adds or updates multiple vectors at once.
	// ids and vectors must have the same length.
	BatchInsert(ids []string, vectors [][]float32) error

	// Search returns the top-k nearest vectors to the query, closest first.
	// Ties are broken by ID.
	Search(query []float32, topK int) ([]Match, error)

	// Delete removes a vector by ID. No error if ID does not exist.
	Delete(id string) error

	// Len returns the number of vectors in the index.
	Len() int

	Close() error
}

// Match is a single result from a vector similarity search.
type Match struct {
	ID string

	// Distance is the cosine distance to the query; lower is closer.
	Distance float32
}
