package desk

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/haivivi/deskmate/pkg/kb"
	"github.com/haivivi/deskmate/pkg/staff"
)

func mustCatalogue(t *testing.T, h Handlers) *Registry {
	t.Helper()
	r, err := NewCatalogue(h)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func run(t *testing.T, r *Registry, name string, args Args) string {
	t.Helper()
	a, err := r.Lookup(name)
	if err != nil {
		t.Fatal(err)
	}
	out, err := a.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out
}

func TestStaffVerification(t *testing.T) {
	r := mustCatalogue(t, Handlers{})
	tests := []struct {
		name string
		want string
	}{
		{"John Doe", "JD12345"},
		{"Alice Smith", "AS67890"},
		{"Bob Johnson", "BJ11223"},
		{"Jane Roe", StaffNotFound},
		{"", StaffNotFound},
		{"JD12345", StaffNotFound},
		{"john doe", StaffNotFound},
		{"JOHN  DOE", StaffNotFound},
	}
	for _, tt := range tests {
		if got := run(t, r, ActionStaffIDVerification, Args{"user_name": tt.name}); got != tt.want {
			t.Errorf("verify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
	if StaffNotFound != "Staff ID not found" {
		t.Fatalf("StaffNotFound = %q", StaffNotFound)
	}
}

type failingDirectory struct{}

func (failingDirectory) Lookup(context.Context, string) (staff.Record, error) {
	return staff.Record{}, errors.New("directory offline")
}

func TestStaffVerificationUpstreamError(t *testing.T) {
	r := mustCatalogue(t, Handlers{Staff: failingDirectory{}})
	a, _ := r.Lookup(ActionStaffIDVerification)
	if _, err := a.Handler(context.Background(), Args{"user_name": "John Doe"}); err == nil {
		t.Fatal("expected upstream error")
	}
}

var keyShape = regexp.MustCompile(`[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}`)

func TestBitLockerRecovery(t *testing.T) {
	r := mustCatalogue(t, Handlers{})
	for _, dev := range []string{"PC1001", "NB42", "TB7", "pc1001", "nb-88"} {
		args := Args{"device_id": dev, "staff_id": "JD12345"}
		got := run(t, r, ActionBitLockerRecovery, args)
		if !strings.Contains(got, dev) {
			t.Errorf("%s: output %q lacks device id", dev, got)
		}
		if !keyShape.MatchString(got) || !strings.Contains(got, BitLockerKey) {
			t.Errorf("%s: output %q lacks recovery key", dev, got)
		}
		if again := run(t, r, ActionBitLockerRecovery, args); again != got {
			t.Errorf("%s: not deterministic: %q vs %q", dev, got, again)
		}
	}
	want := "BitLocker recovery key for device PC1001 is ABCD-1234-EFGH-5678."
	if got := run(t, r, ActionBitLockerRecovery, Args{"device_id": "PC1001", "staff_id": "JD12345"}); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestBitLockerRejectsDevice(t *testing.T) {
	r := mustCatalogue(t, Handlers{})
	for _, dev := range []string{"XY1", "PC", "", "1001PC"} {
		got := run(t, r, ActionBitLockerRecovery, Args{"device_id": dev, "staff_id": "JD12345"})
		if strings.Contains(got, BitLockerKey) {
			t.Errorf("%q: key returned for invalid device: %q", dev, got)
		}
		if !strings.Contains(got, "must start with PC, NB or TB") {
			t.Errorf("%q: rejection = %q", dev, got)
		}
	}
	got := run(t, r, ActionBitLockerRecovery, Args{"device_id": "XY1"})
	if got != `Device ID "XY1" is not valid: it must start with PC, NB or TB.` {
		t.Errorf("rejection = %q", got)
	}
}

func TestResets(t *testing.T) {
	r := mustCatalogue(t, Handlers{})
	tests := []struct {
		action string
		args   Args
		want   string
	}{
		{ActionAvivaPasswordReset, Args{"staff_id": "JD12345"}, "Aviva password reset for JD12345 was successful. Check your email for details."},
		{ActionEtechLogPINReset, Args{"staff_id": "AS67890"}, "Etech Log PIN reset for AS67890 was successful."},
		{ActionGenericPasswordReset, Args{"staff_id": "BJ11223", "password_type": "Windows"}, "Generic password reset for BJ11223 (Windows) was successful."},
	}
	for _, tt := range tests {
		if got := run(t, r, tt.action, tt.args); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestGenericResetAsksForType(t *testing.T) {
	r := mustCatalogue(t, Handlers{})
	for _, typ := range []string{"", "   "} {
		got := run(t, r, ActionGenericPasswordReset, Args{"staff_id": "JD12345", "password_type": typ})
		if strings.Contains(got, "successful") {
			t.Errorf("reset performed without type: %q", got)
		}
		if !strings.Contains(got, "which password") {
			t.Errorf("no clarification request: %q", got)
		}
	}
}

func TestIncidentCreation(t *testing.T) {
	r := mustCatalogue(t, Handlers{})
	issue := `Outlook crashes when opening "Q3 report.xlsx", since Monday 9:00`
	got := run(t, r, ActionIncidentCreation, Args{"staff_id": "JD12345", "issue": issue, "impact": "High"})
	if !strings.Contains(got, issue) {
		t.Fatalf("output %q lacks verbatim issue", got)
	}
	ticket := TicketNumber("JD12345", issue)
	if want := "IT support ticket " + ticket + " created for issue: " + issue + "."; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if !regexp.MustCompile(`^INC\d{7}$`).MatchString(ticket) {
		t.Fatalf("ticket = %q", ticket)
	}
	if TicketNumber("JD12345", issue) != ticket {
		t.Fatal("ticket not deterministic")
	}
	if TicketNumber("AS67890", issue) == ticket {
		t.Fatal("ticket ignores staff id")
	}
}

type fakeSearcher struct {
	query string
	topK  int
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, q string, k int) ([]kb.Result, error) {
	f.query, f.topK = q, k
	if f.err != nil {
		return nil, f.err
	}
	return []kb.Result{{Passage: kb.Passage{Title: "VPN setup", Text: "Install the client."}, Score: 1}}, nil
}

func TestKnowledgeBaseSearch(t *testing.T) {
	s := &fakeSearcher{}
	r := mustCatalogue(t, Handlers{KB: s})
	got := run(t, r, ActionKnowledgeBaseSearch, Args{"query": "vpn"})
	if got != "1. VPN setup\nInstall the client." {
		t.Fatalf("output = %q", got)
	}
	if s.query != "vpn" || s.topK != DefaultKBTopK {
		t.Fatalf("search called with %q, %d", s.query, s.topK)
	}

	none := mustCatalogue(t, Handlers{})
	if got := run(t, none, ActionKnowledgeBaseSearch, Args{"query": "vpn"}); !strings.Contains(got, "not configured") {
		t.Fatalf("unconfigured output = %q", got)
	}
}
