package desk

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Role attributes a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation. Turns are never modified after
// they are appended to a Session.
type Turn struct {
	Role    Role         `json:"role"`
	Content string       `json:"content"`
	Calls   []Invocation `json:"calls,omitempty"`
}

// Invocation records one action call made while producing an assistant
// Turn.
type Invocation struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Refused   bool   `json:"refused,omitempty"`
}

// Session is the transcript of one conversation and its verified staff
// identity. It is safe for concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	turns    []Turn
	verified string
}

// NewSession starts a session whose first Turn is the system policy.
func NewSession(policy string) *Session {
	return &Session{
		ID:    uuid.NewString(),
		turns: []Turn{{Role: RoleSystem, Content: policy}},
	}
}

// Append adds a Turn to the transcript.
func (s *Session) Append(t Turn) {
	t.Calls = slices.Clone(t.Calls)
	s.mu.Lock()
	s.turns = append(s.turns, t)
	s.mu.Unlock()
}

// Turns returns a snapshot of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.turns)
}

// Len returns the number of Turns, including the system Turn.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// VerifiedStaff returns the verified staff id, or "".
func (s *Session) VerifiedStaff() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified
}

// SetVerifiedStaff records a verified staff id. An empty id clears it.
func (s *Session) SetVerifiedStaff(id string) {
	s.mu.Lock()
	s.verified = id
	s.mu.Unlock()
}
