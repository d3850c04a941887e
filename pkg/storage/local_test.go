package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, fs FileStore, p, data string) {
	t.Helper()
	w, err := fs.Write(context.Background(), p)
	if err != nil {
		t.Fatalf("Write(%s): %v", p, err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(%s): %v", p, err)
	}
}

func readFile(t *testing.T, fs FileStore, p string) string {
	t.Helper()
	r, err := fs.Read(context.Background(), p)
	if err != nil {
		t.Fatalf("Read(%s): %v", p, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestLocalWriteRead(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, l, "conversations/a.json", `{"id":"a"}`)
	writeFile(t, l, "conversations/a.json", `{"id":"a","conversation":[]}`)
	if got := readFile(t, l, "conversations/a.json"); got != `{"id":"a","conversation":[]}` {
		t.Fatalf("Read = %q", got)
	}
}

func TestLocalReadMissing(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = l.Read(context.Background(), "nope.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestLocalWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, l, "c/x.json", "old")

	w, err := l.Write(context.Background(), "c/x.json")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "new")
	// Target keeps old content until Close.
	b, err := os.ReadFile(filepath.Join(dir, "c", "x.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "old" {
		t.Fatalf("target changed before Close: %q", b)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, l, "c/x.json"); got != "new" {
		t.Fatalf("Read = %q", got)
	}
}

func TestLocalList(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, l, "conversations/b.json", "b")
	writeFile(t, l, "conversations/a.json", "a")
	writeFile(t, l, "other/c.json", "c")

	got, err := l.List(context.Background(), "conversations")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"conversations/a.json", "conversations/b.json"}
	if !slices.Equal(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}

	got, err = l.List(context.Background(), "missing")
	if err != nil {
		t.Fatalf("List missing: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("List missing = %v", got)
	}
}
