package staff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/deskmate/pkg/kv"
)

func TestStaticDefaults(t *testing.T) {
	d := NewStatic()
	tests := []struct {
		name   string
		wantID string
	}{
		{"John Doe", "JD12345"},
		{"Alice Smith", "AS67890"},
		{"Bob Johnson", "BJ11223"},
	}
	for _, tt := range tests {
		r, err := d.Lookup(context.Background(), tt.name)
		if err != nil {
			t.Errorf("Lookup(%q): %v", tt.name, err)
			continue
		}
		if r.ID != tt.wantID {
			t.Errorf("Lookup(%q) = %q, want %q", tt.name, r.ID, tt.wantID)
		}
	}
}

func TestStaticUnknown(t *testing.T) {
	d := NewStatic()
	for _, name := range []string{"", "Jane Roe", "John", "JD12345", "john doe", "  John   Doe "} {
		if _, err := d.Lookup(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%q) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestStaticFold(t *testing.T) {
	d := NewStatic()
	d.Fold = true
	for _, name := range []string{"John Doe", "john doe", "  JOHN   doe "} {
		r, err := d.Lookup(context.Background(), name)
		if err != nil || r.ID != "JD12345" {
			t.Errorf("Lookup(%q) = %+v, %v", name, r, err)
		}
	}
	if _, err := d.Lookup(context.Background(), "John"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(John) = %v, want ErrNotFound", err)
	}
}

func TestStaticList(t *testing.T) {
	got, err := NewStatic().List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Name != "Alice Smith" {
		t.Fatalf("List = %v", got)
	}
}

func TestKVDirectoryPutLookup(t *testing.T) {
	ctx := context.Background()
	d := NewKVDirectory(kv.NewMemory(nil), nil)

	records, err := ReadRecords(strings.NewReader(`
- name: Carol White
  id: CW55555
- name: "Dan: Ops"
  id: DO00001
`))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if err := d.Put(ctx, records...); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := d.Lookup(ctx, "Carol White")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if r.ID != "CW55555" || r.Name != "Carol White" {
		t.Fatalf("Lookup = %+v", r)
	}
	if _, err := d.Lookup(ctx, "carol white"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup folded name = %v, want ErrNotFound", err)
	}
	d.Fold = true
	if r, err := d.Lookup(ctx, "carol  WHITE"); err != nil || r.ID != "CW55555" {
		t.Fatalf("Lookup with Fold = %+v, %v", r, err)
	}
	d.Fold = false
	if r, err := d.Lookup(ctx, "Dan: Ops"); err != nil || r.ID != "DO00001" {
		t.Fatalf("Lookup with separator = %+v, %v", r, err)
	}
	if _, err := d.Lookup(ctx, "John Doe"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup unknown = %v, want ErrNotFound", err)
	}

	all, err := d.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("List = %v", all)
	}
}

func TestKVDirectoryPutValidates(t *testing.T) {
	d := NewKVDirectory(kv.NewMemory(nil), kv.Key{"dir"})
	if err := d.Put(context.Background(), Record{Name: "No Id"}); err == nil {
		t.Fatal("expected error for record without id")
	}
	if err := d.Put(context.Background(), DefaultRecords()...); err != nil {
		t.Fatal(err)
	}
	r, err := d.Lookup(context.Background(), "Bob Johnson")
	if err != nil || r.ID != "BJ11223" {
		t.Fatalf("Lookup = %+v, %v", r, err)
	}
}

func TestReadRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Records
	}{
		{"list", "- name: Jane Smith\n  id: JS67890\n", Records{{"Jane Smith", "JS67890"}}},
		{"json", `[{"name":"Jane Smith","id":"JS67890"}]`, Records{{"Jane Smith", "JS67890"}}},
		{"mapping", "Jane Smith: JS67890\nBob Johnson: BJ11223\n", Records{{"Jane Smith", "JS67890"}, {"Bob Johnson", "BJ11223"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadRecords(strings.NewReader(tt.input))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ReadRecords = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReadRecordsErrors(t *testing.T) {
	for name, input := range map[string]string{
		"scalar":    "just text",
		"missing":   "- name: Jane Smith\n",
		"duplicate": "- {name: Jane Smith, id: A1}\n- {name: jane smith, id: A2}\n",
		"nested":    "Jane Smith: [A1]\n",
	} {
		if _, err := ReadRecords(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.json")
	if err := os.WriteFile(path, []byte(`[{"name":"Jane Smith","id":"JS67890"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadRecords(path, nil)
	if err != nil || len(got) != 1 || got[0].ID != "JS67890" {
		t.Fatalf("LoadRecords(file) = %+v, %v", got, err)
	}
	got, err = LoadRecords("-", strings.NewReader("Jane Smith: JS67890"))
	if err != nil || len(got) != 1 || got[0].Name != "Jane Smith" {
		t.Fatalf("LoadRecords(-) = %+v, %v", got, err)
	}
	if _, err := LoadRecords(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("missing file should fail")
	}
}
