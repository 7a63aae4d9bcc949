package chat

import (
	"io"
	"log"
	"strings"
	"sync"
)

// FallbackApology replaces the streamed turn when the fragment sequence
// aborts, so the transcript never ends on a broken or empty model turn.
const FallbackApology = "I'm having a little trouble thinking right now. Could you ask me again?"

// FragmentStream is an ordered, finite, non-restartable sequence of text
// chunks from a single in-flight request. Next returns io.EOF on normal
// close; any other error means the stream aborted.
type FragmentStream interface {
	Next() (string, error)
}

// Attachment is the handle for one reconciliation run. It is returned by
// Attach and consumed until the stream closes, aborts, or is cancelled.
type Attachment struct {
	session *Session
	handle  TurnHandle

	mu        sync.Mutex
	cancelled bool

	commit     func()
	commitOnce sync.Once
	done       chan struct{}
}

// Attach appends a placeholder model turn to the session and starts folding
// the fragment stream into it: after every chunk the turn text becomes the
// monotonic concatenation of all chunks seen so far, in delivery order.
//
// When the stream ends normally, onCommit runs exactly once, after the last
// chunk is applied. If the stream aborts, the turn is replaced with
// FallbackApology and onCommit never runs. At most one attachment may be
// live per session; a second Attach fails fast with ErrStreamActive.
func Attach(session *Session, fragments FragmentStream, onCommit func()) (*Attachment, error) {
	a := &Attachment{
		session: session,
		commit:  onCommit,
		done:    make(chan struct{}),
	}
	handle, err := session.beginStream(a)
	if err != nil {
		return nil, err
	}
	a.handle = handle

	go a.consume(fragments)
	return a, nil
}

// Cancel stops further mutation of the session. Text already applied stays;
// fragments that arrive later are discarded. The underlying request is not
// interrupted, its late output simply has nowhere to go.
func (a *Attachment) Cancel() {
	a.mu.Lock()
	a.cancelled = true
	a.mu.Unlock()
	a.session.endStream(a)
}

// Wait blocks until the consumer has stopped. Cancelled attachments may
// still be draining their stream; Wait returns once they have.
func (a *Attachment) Wait() {
	<-a.done
}

// Done is closed when the consumer stops.
func (a *Attachment) Done() <-chan struct{} {
	return a.done
}

func (a *Attachment) consume(fragments FragmentStream) {
	defer close(a.done)
	defer a.session.endStream(a)

	var accumulated strings.Builder
	for {
		chunk, err := fragments.Next()
		if err == io.EOF {
			a.finish()
			return
		}
		if err != nil {
			log.Printf("Coach stream aborted for session %s: %v", a.session.ID, err)
			a.abort()
			return
		}
		accumulated.WriteString(chunk)
		a.apply(accumulated.String())
	}
}

// apply writes the accumulated text into the placeholder turn unless the
// attachment was cancelled. The cancel check and the write happen under the
// same lock so a late fragment can never slip in after Cancel.
func (a *Attachment) apply(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}
	if err := a.session.ReplaceText(a.handle, text); err != nil {
		log.Printf("Dropping stream fragment for session %s: %v", a.session.ID, err)
	}
}

func (a *Attachment) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}
	if a.commit != nil {
		a.commitOnce.Do(a.commit)
	}
}

func (a *Attachment) abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}
	if err := a.session.ReplaceText(a.handle, FallbackApology); err != nil {
		log.Printf("Could not place fallback message for session %s: %v", a.session.ID, err)
	}
}
