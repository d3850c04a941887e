package desk

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/haivivi/deskmate/pkg/kb"
	"github.com/haivivi/deskmate/pkg/staff"
)

// Action names.
const (
	ActionStaffIDVerification  = "staff_id_verification"
	ActionBitLockerRecovery    = "bitlocker_recovery"
	ActionAvivaPasswordReset   = "aviva_password_reset"
	ActionGenericPasswordReset = "generic_password_reset"
	ActionEtechLogPINReset     = "etech_log_pin_reset"
	ActionKnowledgeBaseSearch  = "knowledge_base_search"
	ActionIncidentCreation     = "incident_creation"
)

// StaffNotFound is the exact result of a failed staff verification.
const StaffNotFound = "Staff ID not found"

// BitLockerKey is the recovery key returned by the stub handler.
const BitLockerKey = "ABCD-1234-EFGH-5678"

// DefaultKBTopK is the number of passages knowledge_base_search returns.
const DefaultKBTopK = 3

var devicePrefixes = []string{"PC", "NB", "TB"}

// Handlers holds the collaborators of the built-in actions.
type Handlers struct {
	// Staff resolves display names. Defaults to staff.NewStatic().
	Staff staff.Directory

	// KB answers knowledge_base_search. Nil makes the action report that
	// no knowledge base is configured.
	KB kb.Searcher

	// KBTopK defaults to DefaultKBTopK.
	KBTopK int
}

// NewCatalogue returns a Registry of the built-in support actions.
func NewCatalogue(h Handlers) (*Registry, error) {
	if h.Staff == nil {
		h.Staff = staff.NewStatic()
	}
	if h.KBTopK <= 0 {
		h.KBTopK = DefaultKBTopK
	}
	staffArg := Arg{Name: "staff_id", Description: "The verified staff ID of the user, e.g. JD12345", Required: true}
	return NewRegistry(
		&Action{
			Name:        ActionStaffIDVerification,
			Description: "Verify Staff ID for a user. Must be called with the user's full name before any other action.",
			Args:        []Arg{{Name: "user_name", Description: "The user's full name, e.g. John Doe", Required: true}},
			Handler:     h.verifyStaff,
			Verifies:    true,
		},
		&Action{
			Name:        ActionBitLockerRecovery,
			Description: "Retrieve a BitLocker recovery key for a device",
			Args: []Arg{
				{Name: "device_id", Description: "Device ID starting with PC, NB or TB, e.g. PC1001", Required: true},
				staffArg,
			},
			Handler:               bitLockerRecovery,
			RequiresVerifiedStaff: true,
		},
		&Action{
			Name:                  ActionAvivaPasswordReset,
			Description:           "Reset Aviva password for a user",
			Args:                  []Arg{staffArg},
			Handler:               avivaPasswordReset,
			RequiresVerifiedStaff: true,
		},
		&Action{
			Name:        ActionGenericPasswordReset,
			Description: "Reset a generic password for a user. Leave password_type empty when the user has not said which password to reset.",
			Args: []Arg{
				staffArg,
				{Name: "password_type", Description: "Which password to reset, e.g. Windows, email or VPN"},
			},
			Handler:               genericPasswordReset,
			RequiresVerifiedStaff: true,
		},
		&Action{
			Name:                  ActionEtechLogPINReset,
			Description:           "Reset Etech Log PIN for a user",
			Args:                  []Arg{staffArg},
			Handler:               etechLogPINReset,
			RequiresVerifiedStaff: true,
		},
		&Action{
			Name:                  ActionKnowledgeBaseSearch,
			Description:           "Search the IT knowledge base for troubleshooting articles",
			Args:                  []Arg{{Name: "query", Description: "Free-text description of the problem", Required: true}},
			Handler:               h.searchKB,
			RequiresVerifiedStaff: true,
		},
		&Action{
			Name:        ActionIncidentCreation,
			Description: "Create an IT support incident with the specified impact, category, and issue. Only call after the user agrees to log an incident.",
			Args: []Arg{
				staffArg,
				{Name: "issue", Description: "The user's description of the issue, verbatim", Required: true},
				{Name: "category", Description: "Incident category, e.g. Hardware, Software, Network"},
				{Name: "impact", Description: "Impact on the user's work, e.g. Low, Medium, High"},
			},
			Handler:               incidentCreation,
			RequiresVerifiedStaff: true,
		},
	)
}

func (h Handlers) verifyStaff(ctx context.Context, args Args) (string, error) {
	r, err := h.Staff.Lookup(ctx, args.Get("user_name"))
	if errors.Is(err, staff.ErrNotFound) {
		return StaffNotFound, nil
	}
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// ValidDeviceID reports whether id starts with a known device prefix,
// case-insensitively, and has a suffix.
func ValidDeviceID(id string) bool {
	u := strings.ToUpper(strings.TrimSpace(id))
	for _, p := range devicePrefixes {
		if len(u) > len(p) && strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func bitLockerRecovery(_ context.Context, args Args) (string, error) {
	id := strings.TrimSpace(args.Get("device_id"))
	if !ValidDeviceID(id) {
		return fmt.Sprintf("Device ID %q is not valid: it must start with PC, NB or TB.", id), nil
	}
	return fmt.Sprintf("BitLocker recovery key for device %s is %s.", id, BitLockerKey), nil
}

func avivaPasswordReset(_ context.Context, args Args) (string, error) {
	return fmt.Sprintf("Aviva password reset for %s was successful. Check your email for details.", args.Get("staff_id")), nil
}

func genericPasswordReset(_ context.Context, args Args) (string, error) {
	id := args.Get("staff_id")
	typ := strings.TrimSpace(args.Get("password_type"))
	if typ == "" {
		return fmt.Sprintf("No password was reset for %s. Ask the user which password should be reset (for example Windows, email or VPN).", id), nil
	}
	return fmt.Sprintf("Generic password reset for %s (%s) was successful.", id, typ), nil
}

func etechLogPINReset(_ context.Context, args Args) (string, error) {
	return fmt.Sprintf("Etech Log PIN reset for %s was successful.", args.Get("staff_id")), nil
}

func (h Handlers) searchKB(ctx context.Context, args Args) (string, error) {
	if h.KB == nil {
		return "The knowledge base is not configured. Offer to log an incident instead.", nil
	}
	results, err := h.KB.Search(ctx, args.Get("query"), h.KBTopK)
	if err != nil {
		return "", err
	}
	return kb.Format(results), nil
}

// TicketNumber derives a stable incident number from the staff id and
// issue text: "INC" followed by seven digits.
func TicketNumber(staffID, issue string) string {
	h := fnv.New32a()
	h.Write([]byte(staffID))
	h.Write([]byte{0})
	h.Write([]byte(issue))
	return fmt.Sprintf("INC%07d", h.Sum32()%10_000_000)
}

func incidentCreation(_ context.Context, args Args) (string, error) {
	issue := args.Get("issue")
	return fmt.Sprintf("IT support ticket %s created for issue: %s.", TicketNumber(args.Get("staff_id"), issue), issue), nil
}
