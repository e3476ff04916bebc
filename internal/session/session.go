// Package session owns the mapping from session identifier to live
// conversation context.
//
// The registry's id-to-session map is the only state shared across sessions;
// ConversationState itself is owned exclusively by its session. Within one
// session, turns are strictly sequential; across sessions no ordering is
// guaranteed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/embykit/filem/internal/aimsg"
	"github.com/embykit/filem/internal/orch"
)

// ErrClosed indicates a turn was requested on, or finished after, a closed
// session. A turn already in flight when the session closes is allowed to
// complete, but its result is discarded.
var ErrClosed = errors.New("session closed")

// eventBufferSize bounds each subscriber's queue. A subscriber that falls
// behind loses events rather than stalling the turn.
const eventBufferSize = 16

// Session is one live conversational context. It owns its orchestrator and
// serializes turns with a mutex; the transport may route concurrent requests
// at it safely.
type Session struct {
	id      string
	created time.Time
	logger  *slog.Logger

	turnMu sync.Mutex
	orch   *orch.Orchestrator

	mu          sync.Mutex
	closed      bool
	subscribers map[int]chan aimsg.Message
	nextSub     int
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.created }

// Chat runs one turn. Turns for the same session never overlap.
func (s *Session) Chat(ctx context.Context, userMessage string) (aimsg.Message, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if s.isClosed() {
		return aimsg.Message{}, ErrClosed
	}

	msg, err := s.orch.Turn(ctx, userMessage)

	// The session may have closed while the turn was in flight; the turn was
	// allowed to finish but its result is discarded.
	if s.isClosed() {
		return aimsg.Message{}, ErrClosed
	}
	if err != nil {
		return aimsg.Message{}, err
	}

	s.publish(msg)
	return msg, nil
}

// Notify implements orch.Notifier: progress events fan out to subscribers.
func (s *Session) Notify(msg aimsg.Message) {
	s.publish(msg)
}

// Subscribe registers an event listener. The returned cancel function must
// be called when the listener is done; the channel is closed on session
// close or cancel.
func (s *Session) Subscribe() (<-chan aimsg.Message, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrClosed
	}

	id := s.nextSub
	s.nextSub++
	ch := make(chan aimsg.Message, eventBufferSize)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

func (s *Session) publish(msg aimsg.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for id, ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
			s.logger.Warn("dropping event for slow subscriber", "session", s.id, "subscriber", id)
		}
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close marks the session closed and detaches all subscribers. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// String implements fmt.Stringer without exposing internals.
func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.id)
}
