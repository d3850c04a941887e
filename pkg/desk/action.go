package desk

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrUnknownAction is returned when a name is not in the Registry.
	ErrUnknownAction = errors.New("desk: unknown action")

	// ErrDuplicateAction is returned when registering a name twice.
	ErrDuplicateAction = errors.New("desk: duplicate action")
)

// Arg describes one string argument of an Action.
type Arg struct {
	Name        string
	Description string
	Required    bool
}

// Args holds the decoded arguments of one invocation.
type Args map[string]string

// Get returns the named argument, or "" when absent.
func (a Args) Get(name string) string { return a[name] }

// HandlerFunc runs an action. Invalid input is reported as a human-readable
// result string with a nil error; a non-nil error means an upstream failure.
type HandlerFunc func(ctx context.Context, args Args) (string, error)

// Action is one entry of the catalogue offered to the model.
type Action struct {
	Name        string
	Description string
	Args        []Arg
	Handler     HandlerFunc

	// RequiresVerifiedStaff gates the action behind staff verification.
	RequiresVerifiedStaff bool

	// Verifies marks the action whose result is the verified staff id.
	// The result StaffNotFound leaves the session unverified.
	Verifies bool
}

// Schema returns the JSON schema of the action's argument object.
func (a *Action) Schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(a.Args)),
	}
	for _, arg := range a.Args {
		s.Properties[arg.Name] = &jsonschema.Schema{Type: "string", Description: arg.Description}
		if arg.Required {
			s.Required = append(s.Required, arg.Name)
		}
	}
	return s
}

func (a *Action) validate() error {
	if a.Name == "" {
		return errors.New("desk: action name is required")
	}
	if a.Handler == nil {
		return fmt.Errorf("desk: action %s has no handler", a.Name)
	}
	seen := make(map[string]bool, len(a.Args))
	for _, arg := range a.Args {
		if arg.Name == "" || seen[arg.Name] {
			return fmt.Errorf("desk: action %s has an empty or repeated argument name %q", a.Name, arg.Name)
		}
		seen[arg.Name] = true
	}
	return nil
}

// Registry is the action catalogue. Registration order is preserved.
// A Registry is not safe for concurrent registration; build it once and
// share it read-only.
type Registry struct {
	actions []*Action
	byName  map[string]*Action
}

// NewRegistry returns a Registry holding actions.
func NewRegistry(actions ...*Action) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Action)}
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an action. Names are unique.
func (r *Registry) Register(a *Action) error {
	if err := a.validate(); err != nil {
		return err
	}
	if _, ok := r.byName[a.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, a.Name)
	}
	r.actions = append(r.actions, a)
	r.byName[a.Name] = a
	return nil
}

// Lookup returns the named action.
func (r *Registry) Lookup(name string) (*Action, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a, nil
}

// Actions returns the catalogue in registration order.
func (r *Registry) Actions() []*Action {
	return append([]*Action(nil), r.actions...)
}

// Names returns the sorted action names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for _, a := range r.actions {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}
