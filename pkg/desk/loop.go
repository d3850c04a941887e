package desk

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Loop defaults.
const (
	DefaultUserLabel      = "User > "
	DefaultAssistantLabel = "Assistant > "
	DefaultExitWord       = "exit"
)

// ReplyUnavailable is printed when the model cannot be reached.
const ReplyUnavailable = "Sorry, I couldn't reach the support service just now. Please try again in a moment."

// Loop is the interactive read, submit, print, persist cycle for one
// Session.
type Loop struct {
	Session   *Session
	Model     Model
	Invoker   Invoker
	Persister *Persister

	In  io.Reader
	Out io.Writer

	// Labels printed before input and replies. Empty means the defaults.
	UserLabel      string
	AssistantLabel string

	// ExitWord ends the loop when a line equals it exactly.
	ExitWord string

	// MaxTurns stops the loop after that many model turns. Zero is
	// unlimited.
	MaxTurns int

	// TurnTimeout bounds one Submit. Zero is no timeout.
	TurnTimeout time.Duration

	Logger *slog.Logger
}

type line struct {
	text string
	err  error
}

// Run reads lines until the exit word, end of input, MaxTurns or ctx
// cancellation. Buffered transcripts are flushed before it returns.
// Model and persistence failures are reported to the user and logged but do
// not end the loop.
func (l *Loop) Run(ctx context.Context) (err error) {
	log := l.logger().With("session", l.Session.ID)
	userLabel := cmp.Or(l.UserLabel, DefaultUserLabel)
	exitWord := cmp.Or(l.ExitWord, DefaultExitWord)

	defer func() {
		if l.Persister == nil {
			return
		}
		n, ferr := l.Persister.Flush(context.WithoutCancel(ctx))
		if ferr != nil {
			log.Error("conversations left unsaved", "pending", n, "error", ferr)
			err = errors.Join(err, fmt.Errorf("desk: %d conversation document(s) not saved: %w", n, ferr))
		}
	}()

	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		send := func(ln line) bool {
			select {
			case lines <- ln:
				return true
			case <-done:
				return false
			}
		}
		sc := bufio.NewScanner(l.In)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if !send(line{text: sc.Text()}) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			send(line{err: err})
		}
	}()

	turns := 0
	for {
		if l.MaxTurns > 0 && turns >= l.MaxTurns {
			log.Info("turn limit reached", "turns", turns)
			return nil
		}
		if _, err := io.WriteString(l.Out, userLabel); err != nil {
			return err
		}

		var in line
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case in, ok = <-lines:
		}
		if !ok {
			return nil
		}
		if in.err != nil {
			return fmt.Errorf("desk: read input: %w", in.err)
		}
		text := strings.TrimSuffix(in.text, "\r")
		if text == exitWord {
			return nil
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		turns++
		l.turn(ctx, log.With("turn", turns), text)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Loop) turn(ctx context.Context, log *slog.Logger, text string) {
	l.Session.Append(Turn{Role: RoleUser, Content: text})

	tctx := ctx
	if l.TurnTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, l.TurnTimeout)
		defer cancel()
	}

	reply, err := l.Model.Submit(tctx, l.Session.Turns(), l.Invoker)
	if err != nil {
		log.Error("model call failed", "error", err)
		if ctx.Err() == nil {
			l.say(ReplyUnavailable)
		}
	} else {
		l.Session.Append(Turn{Role: RoleAssistant, Content: reply.Text, Calls: reply.Calls})
		log.Debug("model replied", "calls", len(reply.Calls), "usage", reply.Usage.String())
		l.say(reply.Text)
	}

	if l.Persister == nil {
		return
	}
	if id, err := l.Persister.Save(ctx, l.Session.Turns()); err != nil {
		log.Error("save conversation", "doc", id, "error", err)
	} else {
		log.Debug("conversation saved", "doc", id)
	}
}

func (l *Loop) say(text string) {
	fmt.Fprintf(l.Out, "%s%s\n", cmp.Or(l.AssistantLabel, DefaultAssistantLabel), text)
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
