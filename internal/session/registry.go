package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/embykit/filem/internal/aimsg"
	"github.com/embykit/filem/internal/orch"
)

// OrchestratorFactory builds the orchestrator for a new session. The factory
// receives the session so it can wire the session in as the progress
// notifier.
type OrchestratorFactory func(s *Session) (*orch.Orchestrator, error)

// Registry maps session identifiers to live sessions. It is safe for
// concurrent use; it is the only state shared across sessions.
type Registry struct {
	factory OrchestratorFactory
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(factory OrchestratorFactory, logger *slog.Logger) (*Registry, error) {
	if factory == nil {
		return nil, fmt.Errorf("orchestrator factory is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Registry{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Create allocates a session with a fresh unguessable identifier and
// installs it before returning, so the id is resolvable the moment any
// response referencing it goes out.
func (r *Registry) Create() (*Session, error) {
	s := &Session{
		id:          uuid.NewString(),
		created:     time.Now(),
		logger:      r.logger,
		subscribers: make(map[int]chan aimsg.Message),
	}

	o, err := r.factory(s)
	if err != nil {
		return nil, fmt.Errorf("creating session orchestrator: %w", err)
	}
	s.orch = o

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logger.Info("session created", "session", s.id)
	return s, nil
}

// Resolve looks up a session. A false return means the id never existed or
// was closed.
func (r *Registry) Resolve(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close terminates a session and removes it from the registry. Closing an
// unknown id is a no-op; ids are never reused.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.close()
		r.logger.Info("session closed", "session", id)
	}
}

// CloseAll terminates every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for id, s := range sessions {
		s.close()
		r.logger.Debug("session closed", "session", id)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
