// Package staff resolves staff display names to staff identifiers.
//
// A [Directory] is a read-only lookup injected into the support actions.
// [Static] serves the built-in table; [KVDirectory] keeps records in a
// [kv.Store] so a real identity export can be imported without touching the
// dispatch code.
package staff

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// ErrNotFound is returned when no record matches a display name.
var ErrNotFound = errors.New("staff: not found")

// Record maps a display name to a staff identifier.
type Record struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	ID   string `json:"id" yaml:"id" msgpack:"id"`
}

// Directory looks up staff by display name.
type Directory interface {
	Lookup(ctx context.Context, name string) (Record, error)
}

// Lister is implemented by directories that can enumerate their records.
type Lister interface {
	List(ctx context.Context) ([]Record, error)
}

// DefaultRecords returns the built-in staff table.
func DefaultRecords() []Record {
	return []Record{
		{Name: "John Doe", ID: "JD12345"},
		{Name: "Alice Smith", ID: "AS67890"},
		{Name: "Bob Johnson", ID: "BJ11223"},
	}
}

// NormalizeName folds case and collapses whitespace. It is the storage
// key for a name; lookups compare the stored name exactly unless folding
// is enabled.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Static is an immutable in-memory Directory.
type Static struct {
	byName map[string]Record

	// Fold makes lookups ignore case and extra whitespace. Off by default:
	// a display name must match the record exactly.
	Fold bool
}

// NewStatic builds a Static directory. Later records win on duplicate
// names. With no records it serves [DefaultRecords].
func NewStatic(records ...Record) *Static {
	if len(records) == 0 {
		records = DefaultRecords()
	}
	s := &Static{byName: make(map[string]Record, len(records))}
	for _, r := range records {
		s.byName[NormalizeName(r.Name)] = r
	}
	return s
}

func (s *Static) Lookup(_ context.Context, name string) (Record, error) {
	r, ok := s.byName[NormalizeName(name)]
	if !ok || !matches(r, name, s.Fold) {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func matches(r Record, name string, fold bool) bool {
	if fold {
		return NormalizeName(r.Name) == NormalizeName(name)
	}
	return r.Name == name
}

// List returns all records sorted by name.
func (s *Static) List(context.Context) ([]Record, error) {
	out := make([]Record, 0, len(s.byName))
	for _, r := range s.byName {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

var (
	_ Directory = (*Static)(nil)
	_ Lister    = (*Static)(nil)
)
