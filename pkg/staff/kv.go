package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haivivi/deskmate/pkg/kv"
	"github.com/vmihailenco/msgpack/v5"
)

// KVDirectory stores records in a kv.Store.
//
// Key layout:
//
//	{prefix}:{normalized name} → msgpack Record
type KVDirectory struct {
	store  kv.Store
	prefix kv.Key

	// Fold makes lookups ignore case and extra whitespace. Keys are always
	// normalized, so toggling Fold needs no re-import.
	Fold bool
}

// DefaultPrefix is the key prefix used when NewKVDirectory gets nil.
var DefaultPrefix = kv.Key{"staff"}

// NewKVDirectory returns a directory over store scoped under prefix.
func NewKVDirectory(store kv.Store, prefix kv.Key) *KVDirectory {
	if len(prefix) == 0 {
		prefix = DefaultPrefix
	}
	return &KVDirectory{store: store, prefix: prefix}
}

func (d *KVDirectory) key(name string) kv.Key {
	k := make(kv.Key, len(d.prefix)+1)
	copy(k, d.prefix)
	// The kv separator may not appear inside a segment.
	k[len(d.prefix)] = strings.ReplaceAll(NormalizeName(name), ":", " ")
	return k
}

func (d *KVDirectory) Lookup(ctx context.Context, name string) (Record, error) {
	r, err := kv.GetValue[Record](ctx, d.store, d.key(name))
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("staff: lookup %q: %w", name, err)
	}
	if !matches(*r, name, d.Fold) {
		return Record{}, ErrNotFound
	}
	return *r, nil
}

// Put stores records in one batch.
func (d *KVDirectory) Put(ctx context.Context, records ...Record) error {
	entries := make([]kv.Entry, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("staff: record %+v: name and id are required", r)
		}
		data, err := msgpack.Marshal(&r)
		if err != nil {
			return err
		}
		entries = append(entries, kv.Entry{Key: d.key(r.Name), Value: data})
	}
	return d.store.BatchSet(ctx, entries)
}

// List returns all records in key order.
func (d *KVDirectory) List(ctx context.Context) ([]Record, error) {
	var out []Record
	for entry, err := range d.store.List(ctx, d.prefix) {
		if err != nil {
			return nil, err
		}
		var r Record
		if err := msgpack.Unmarshal(entry.Value, &r); err != nil {
			continue // skip malformed entries
		}
		out = append(out, r)
	}
	return out, nil
}

var (
	_ Directory = (*KVDirectory)(nil)
	_ Lister    = (*KVDirectory)(nil)
)
