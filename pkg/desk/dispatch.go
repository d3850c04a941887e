package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haivivi/deskmate/pkg/genx"
)

// Refusal texts returned to the model in place of an action result.
const (
	RefusalUnverified = "Staff identity has not been verified. Ask the user for their full name and call staff_id_verification first."
	RefusalMismatch   = "The staff_id argument does not match the verified staff ID. Use the staff ID returned by staff_id_verification."
)

// Invoker runs one model-selected action.
type Invoker interface {
	Invoke(ctx context.Context, callID, action, arguments string) Invocation
}

// Dispatcher executes actions for one Session and enforces the
// verify-first guard.
type Dispatcher struct {
	Registry *Registry
	Session  *Session
	Logger   *slog.Logger
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Invoke never fails: unknown actions, malformed arguments, guard
// refusals and handler errors all become result text for the model.
func (d *Dispatcher) Invoke(ctx context.Context, callID, action, arguments string) Invocation {
	inv := Invocation{ID: callID, Action: action, Arguments: arguments}
	log := d.logger().With("session", d.Session.ID, "action", action)

	a, err := d.Registry.Lookup(action)
	if err != nil {
		log.Warn("model requested unknown action")
		inv.Result = fmt.Sprintf("Unknown action %q. Available actions: %s.", action, strings.Join(d.Registry.Names(), ", "))
		return inv
	}

	args, err := decodeArgs(arguments)
	if err != nil {
		log.Warn("malformed action arguments", "error", err)
		inv.Result = fmt.Sprintf("The arguments for %s are not a valid JSON object.", action)
		return inv
	}

	if reason := d.guard(a, args); reason != "" {
		log.Info("action refused", "reason", reason)
		inv.Result = reason
		inv.Refused = true
		return inv
	}

	var missing []string
	for _, arg := range a.Args {
		if arg.Required && strings.TrimSpace(args[arg.Name]) == "" {
			missing = append(missing, arg.Name)
		}
	}
	if len(missing) > 0 {
		inv.Result = fmt.Sprintf("Missing required argument(s) for %s: %s.", action, strings.Join(missing, ", "))
		return inv
	}

	result, err := a.Handler(ctx, args)
	if err != nil {
		log.Error("action failed", "error", err)
		inv.Result = fmt.Sprintf("The %s action failed: %v", action, err)
		return inv
	}
	inv.Result = result

	if a.Verifies {
		if result == StaffNotFound || result == "" {
			d.Session.SetVerifiedStaff("")
		} else {
			d.Session.SetVerifiedStaff(result)
			log.Info("staff verified", "staff", result)
		}
	}
	log.Debug("action done")
	return inv
}

// guard returns a refusal text, or "" when the action may run.
func (d *Dispatcher) guard(a *Action, args Args) string {
	if !a.RequiresVerifiedStaff {
		return ""
	}
	verified := d.Session.VerifiedStaff()
	if verified == "" {
		return RefusalUnverified
	}
	if id, ok := args["staff_id"]; ok && strings.TrimSpace(id) != "" && !strings.EqualFold(strings.TrimSpace(id), verified) {
		return RefusalMismatch
	}
	return ""
}

// decodeArgs parses a JSON object of arguments. Non-string values are
// kept in their JSON form.
func decodeArgs(raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		return Args{}, nil
	}
	var m map[string]any
	if err := genx.UnmarshalJSON([]byte(raw), &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("arguments are not an object")
	}
	args := make(Args, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case string:
			args[k] = x
		case nil:
		default:
			args[k] = fmt.Sprint(x)
		}
	}
	return args, nil
}
