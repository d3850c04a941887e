package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/haivivi/deskmate/pkg/kv"
)

// backends runs each test against every Store implementation.
var backends = []struct {
	name string
	new  func(t *testing.T, opts *kv.Options) kv.Store
}{
	{"memory", func(t *testing.T, opts *kv.Options) kv.Store {
		s := kv.NewMemory(opts)
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"badger", func(t *testing.T, opts *kv.Options) kv.Store {
		s, err := kv.NewBadger(kv.BadgerOptions{Options: opts, InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func TestGetSetDelete(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.new(t, nil)
			key := kv.Key{"conversations", "0b8e"}

			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := s.Set(ctx, key, []byte("v1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, key, []byte("v2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "v2" {
				t.Fatalf("Get = %q, want %q", got, "v2")
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
				t.Fatalf("Delete non-existent: %v", err)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.new(t, nil)
			entries := []kv.Entry{
				{Key: kv.Key{"staff", "John Doe"}, Value: []byte("JD12345")},
				{Key: kv.Key{"staff", "Alice Smith"}, Value: []byte("AS67890")},
				{Key: kv.Key{"staffing", "x"}, Value: []byte("no")},
				{Key: kv.Key{"conversations", "1"}, Value: []byte("c")},
			}
			if err := s.BatchSet(ctx, entries); err != nil {
				t.Fatalf("BatchSet: %v", err)
			}

			var got []string
			for e, err := range s.List(ctx, kv.Key{"staff"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				got = append(got, e.Key.String()+"="+string(e.Value))
			}
			want := []string{"staff:Alice Smith=AS67890", "staff:John Doe=JD12345"}
			if !slices.Equal(got, want) {
				t.Fatalf("List staff = %v, want %v", got, want)
			}

			n := 0
			for _, err := range s.List(ctx, nil) {
				if err != nil {
					t.Fatalf("List all: %v", err)
				}
				n++
			}
			if n != 4 {
				t.Fatalf("List all = %d entries, want 4", n)
			}
		})
	}
}

func TestListEarlyStop(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.new(t, nil)
			for _, id := range []string{"a", "b", "c"} {
				if err := s.Set(ctx, kv.Key{"p", id}, []byte(id)); err != nil {
					t.Fatal(err)
				}
			}
			n := 0
			for range s.List(ctx, kv.Key{"p"}) {
				n++
				if n == 2 {
					break
				}
			}
			if n != 2 {
				t.Fatalf("iterated %d, want 2", n)
			}
		})
	}
}

func TestCustomSeparator(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.new(t, &kv.Options{Separator: '/'})
			// ':' is an ordinary byte under a '/' separator.
			key := kv.Key{"cache", "sha256:ab"}
			if err := s.Set(ctx, key, []byte("x")); err != nil {
				t.Fatal(err)
			}
			for e, err := range s.List(ctx, kv.Key{"cache"}) {
				if err != nil {
					t.Fatal(err)
				}
				if !slices.Equal(e.Key, key) {
					t.Fatalf("decoded key = %v, want %v", e.Key, key)
				}
			}
		})
	}
}

func TestGetSetValue(t *testing.T) {
	type record struct {
		Name string
		ID   string
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.new(t, nil)
			key := kv.Key{"staff", "Bob Johnson"}
			if err := kv.SetValue(ctx, s, key, &record{Name: "Bob Johnson", ID: "BJ11223"}); err != nil {
				t.Fatalf("SetValue: %v", err)
			}
			got, err := kv.GetValue[record](ctx, s, key)
			if err != nil {
				t.Fatalf("GetValue: %v", err)
			}
			if got.ID != "BJ11223" {
				t.Fatalf("GetValue = %+v", got)
			}
			if _, err := kv.GetValue[record](ctx, s, kv.Key{"staff", "nobody"}); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestNewBadgerRequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}
