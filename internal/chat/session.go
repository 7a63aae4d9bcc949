// Package chat holds the coach conversation transcript and the reconciler
// that folds a streamed response into it.
package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderModel Sender = "model"
)

type Turn struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// TurnHandle refers to a turn appended by AppendPlaceholder. Text replacement
// is only accepted while the handle still names the last turn, which guards
// against a stale stream writing after a cancel and restart.
type TurnHandle int

var (
	ErrEmptyMessage = errors.New("message text cannot be empty")
	ErrStaleTurn    = errors.New("turn is no longer the last in the session")
	ErrStreamActive = errors.New("a stream is already attached to this session")
)

// Session is an ordered, append-only transcript owned by one chat screen at
// a time. Earlier turns are immutable once appended; only the text of the
// most recently appended placeholder may be replaced, and only while it is
// still the last turn. The transcript is not persisted: it lives and dies
// with the screen that created it.
type Session struct {
	ID string

	mu     sync.Mutex
	turns  []Turn
	stream *Attachment // live attachment, nil when idle
}

// NewSession creates a transcript seeded with the coach greeting.
func NewSession(greeting string) *Session {
	s := &Session{ID: uuid.NewString()}
	if greeting != "" {
		s.turns = append(s.turns, Turn{Sender: SenderModel, Text: greeting})
	}
	return s
}

// AppendUserTurn appends an immutable user turn. Text that is empty after
// trimming is rejected.
func (s *Session) AppendUserTurn(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Sender: SenderUser, Text: trimmed})
	return nil
}

// AppendPlaceholder appends an empty model turn and returns a handle to it.
func (s *Session) AppendPlaceholder() TurnHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Sender: SenderModel})
	return TurnHandle(len(s.turns) - 1)
}

// ReplaceText overwrites the text of the turn named by handle. It fails with
// ErrStaleTurn unless the handle refers to the current last turn.
func (s *Session) ReplaceText(handle TurnHandle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(handle) != len(s.turns)-1 {
		return ErrStaleTurn
	}
	s.turns[handle].Text = text
	return nil
}

// History returns an ordered copy of the transcript as sent to the AI
// collaborator. The session never truncates; any windowing belongs to the
// collaborator.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// beginStream claims the session for a new attachment and appends its
// placeholder in one step. Fails fast if another attachment is live.
func (s *Session) beginStream(a *Attachment) (TurnHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return 0, ErrStreamActive
	}
	s.stream = a
	s.turns = append(s.turns, Turn{Sender: SenderModel})
	return TurnHandle(len(s.turns) - 1), nil
}

// endStream releases the session if the attachment still owns it. A
// cancelled attachment may race a newer one here; only the owner clears.
func (s *Session) endStream(a *Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == a {
		s.stream = nil
	}
}
