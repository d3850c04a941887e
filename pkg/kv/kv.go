// Package kv provides a key-value store with hierarchical path-based keys.
// Keys are string slices (e.g. ["conversations", "3f0c..."]) encoded with a
// configurable separator (default ':').
//
// deskmate keeps persisted conversations, the staff directory and the
// knowledge-base embedding cache in a Store. [Badger] is the on-disk
// backend; [Memory] serves tests and throwaway sessions.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path represented as a slice of string segments.
// Key{"staff", "John Doe"} encodes to "staff:John Doe" with the default
// separator.
//
// Segments must not contain the configured separator character.
type Key []string

// String returns the key joined with ':'. Display only.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries whose key starts with the given prefix,
	// in lexicographic order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	Close() error
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator joins key segments when encoding to storage. Default ':'.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	s := o.sep()
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, s)
		}
		buf = append(buf, seg...)
	}
	return buf
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}

// prefixBytes returns the encoded prefix followed by the separator, so that
// "a:b" does not match "a:bc". An empty prefix matches everything.
func (o *Options) prefixBytes(prefix Key) []byte {
	p := o.encode(prefix)
	if len(p) == 0 {
		return nil
	}
	return append(p, o.sep())
}

// GetValue reads key and decodes the msgpack value into a T.
func GetValue[T any](ctx context.Context, s Store, key Key) (*T, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return &v, nil
}

// SetValue msgpack-encodes v and stores it under key.
func SetValue[T any](ctx context.Context, s Store, key Key, v *T) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, b)
}
