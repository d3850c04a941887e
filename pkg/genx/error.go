package genx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

type Status int

const (
	StatusOK Status = iota
	StatusTruncated
	StatusBlocked
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTruncated:
		return "truncated"
	case StatusBlocked:
		return "blocked"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func Blocked(stats Usage, refusal string) *State {
	return &State{
		usage:  stats,
		status: StatusBlocked,
		err:    fmt.Errorf("genx: generate blocked: %s", refusal),
	}
}

func Truncated(stats Usage) *State {
	return &State{
		usage:  stats,
		status: StatusTruncated,
		err:    errors.New("genx: generate truncated"),
	}
}

func Error(stats Usage, err error) *State {
	return &State{
		usage:  stats,
		status: StatusError,
		err:    fmt.Errorf("genx: generate error: %w", err),
	}
}

// State describes a completion the model finished but that cannot be used
// as a normal reply. It is returned as an error from Generate.
type State struct {
	usage  Usage
	status Status
	err    error
}

func (ss State) Usage() Usage {
	return ss.usage
}

func (ss State) Status() Status {
	return ss.status
}

func (ss State) Unwrap() error {
	return ss.err
}

func (ss State) Error() string {
	switch ss.status {
	case StatusTruncated, StatusBlocked, StatusError:
		return ss.err.Error()
	default:
		return fmt.Sprintf("genx: unexpected generate status: %v", ss.status)
	}
}

// IsModelState reports whether err carries a *State, i.e. the model answered
// but the answer is unusable. Such errors are not worth retrying.
func IsModelState(err error) bool {
	var st *State
	return errors.As(err, &st)
}

// IsTransient reports whether a Generate error is worth retrying: network
// failures and HTTP 408, 409, 429 or 5xx from either provider. Model states
// and context cancellation are not transient.
func IsTransient(err error) bool {
	if err == nil || IsModelState(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var oe *openai.Error
	if errors.As(err, &oe) {
		return transientStatus(oe.StatusCode)
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return transientStatus(ge.Code)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
