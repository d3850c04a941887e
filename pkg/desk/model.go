package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/deskmate/pkg/genx"
	"github.com/sethvargo/go-retry"
)

// Model produces the assistant Turn for a transcript, running any actions
// it selects through invoker.
type Model interface {
	Submit(ctx context.Context, turns []Turn, invoker Invoker) (*Reply, error)
}

// Reply is the outcome of one Submit.
type Reply struct {
	Text  string
	Calls []Invocation
	Usage genx.Usage
}

// Fallback texts used when the model output cannot be shown as is.
const (
	ReplyBlocked     = "Sorry, I can't help with that request. Please contact the IT service desk directly."
	ReplyIncomplete  = "Sorry, I couldn't put together a complete answer. Could you rephrase your request?"
	ReplyTooManyRuns = "Sorry, that request needed more steps than I can take at once. Could you break it into smaller requests?"
)

// Defaults for GenxModel.
const (
	DefaultMaxToolRounds = 8
	DefaultRetries       = 3
	DefaultRetryBackoff  = 500 * time.Millisecond
)

// GenxModel implements Model over a genx.Generator with automatic function
// calling: the generator sees the whole catalogue and every requested call
// is executed and fed back until it answers in text.
type GenxModel struct {
	Generator genx.Generator
	Registry  *Registry
	Params    *genx.ModelParams

	// MaxToolRounds bounds generate-then-invoke rounds per Submit.
	MaxToolRounds int

	// Retries and RetryBackoff control retry of transient generator errors.
	// Retries < 0 disables retry.
	Retries      int
	RetryBackoff time.Duration

	Logger *slog.Logger
}

var _ Model = (*GenxModel)(nil)

func (m *GenxModel) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Submit returns an error only when the generator keeps failing with
// transient or upstream errors. Unusable completions (blocked, truncated,
// empty) degrade to a fallback reply.
func (m *GenxModel) Submit(ctx context.Context, turns []Turn, invoker Invoker) (*Reply, error) {
	mcb := &genx.ModelContextBuilder{Params: m.Params}
	for _, a := range m.Registry.Actions() {
		mcb.AddTool(genx.NewFuncTool(a.Name, a.Description, a.Schema(), nil))
	}
	if err := appendTurns(mcb, turns); err != nil {
		return nil, err
	}

	rounds := m.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}

	reply := &Reply{}
	for round := 0; round < rounds; round++ {
		out, err := m.generate(ctx, mcb.Build())
		if err != nil {
			var st *genx.State
			if errors.As(err, &st) {
				reply.Usage = reply.Usage.Add(st.Usage())
				m.logger().Warn("unusable model output", "status", st.Status().String(), "error", err)
				reply.Text = fallbackText(st.Status())
				return reply, nil
			}
			return nil, err
		}
		reply.Usage = reply.Usage.Add(out.Usage)

		if !out.HasToolCalls() {
			reply.Text = out.Text
			return reply, nil
		}
		if out.Text != "" {
			mcb.ModelText("", out.Text)
		}
		for _, tc := range out.ToolCalls {
			if tc.FuncCall == nil {
				continue
			}
			inv := invoker.Invoke(ctx, tc.ID, tc.FuncCall.Name, tc.FuncCall.Arguments)
			reply.Calls = append(reply.Calls, inv)
			if err := mcb.AddToolCallResult(inv.ID, inv.Action, inv.Arguments, inv.Result); err != nil {
				return nil, err
			}
		}
	}
	m.logger().Warn("tool round limit reached", "rounds", rounds)
	reply.Text = ReplyTooManyRuns
	return reply, nil
}

func (m *GenxModel) generate(ctx context.Context, mctx genx.ModelContext) (*genx.Reply, error) {
	retries := m.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	if retries < 0 {
		retries = 0
	}
	backoff := m.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	var out *genx.Reply
	attempt := 0
	b := retry.WithMaxRetries(uint64(retries), retry.NewExponential(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		r, err := m.Generator.Generate(ctx, mctx)
		if err != nil {
			if genx.IsTransient(err) {
				m.logger().Warn("transient model error", "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("desk: generate: %w", err)
	}
	return out, nil
}

func fallbackText(s genx.Status) string {
	if s == genx.StatusBlocked {
		return ReplyBlocked
	}
	return ReplyIncomplete
}

// appendTurns converts the transcript into genx prompts and messages.
// Calls recorded on an assistant Turn are replayed before its text.
func appendTurns(mcb *genx.ModelContextBuilder, turns []Turn) error {
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			mcb.PromptText("policy", t.Content)
		case RoleUser:
			mcb.UserText("", t.Content)
		case RoleAssistant:
			for _, c := range t.Calls {
				if err := mcb.AddToolCallResult(c.ID, c.Action, c.Arguments, c.Result); err != nil {
					return err
				}
			}
			if t.Content != "" {
				mcb.ModelText("", t.Content)
			}
		default:
			return fmt.Errorf("desk: unknown turn role %q", t.Role)
		}
	}
	return nil
}
