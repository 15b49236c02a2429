// internal/app/features/fairdash/hub.go
package fairdash

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/system/metrics"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub is the registry of open sessions. It is the only structure shared
// between sessions.
type Hub struct {
	deps Deps
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates an empty registry that opens sessions with deps.
func NewHub(deps Deps) *Hub {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		deps:     deps,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Open starts a new session with the given initial theme.
func (h *Hub) Open(theme models.Theme) (*Session, error) {
	s, err := NewSession(uuid.NewString(), h.deps, theme)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return s, nil
}

// Get returns the open session with id.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close tears down the session with id, if open.
func (h *Hub) Close(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()

	if ok {
		s.Close()
		metrics.ActiveSessions.Set(float64(n))
	}
}

// Reap closes sessions that have had no client for longer than idle and
// returns how many it closed.
func (h *Hub) Reap(ctx context.Context, idle time.Duration) int {
	now := time.Now()
	h.mu.Lock()
	var stale []*Session
	for id, s := range h.sessions {
		if s.IdleFor(now) > idle {
			stale = append(stale, s)
			delete(h.sessions, id)
		}
	}
	n := len(h.sessions)
	h.mu.Unlock()

	for _, s := range stale {
		if ctx.Err() != nil {
			// Already unregistered; finish teardown without blocking shutdown.
			go s.Close()
			continue
		}
		s.Close()
	}
	metrics.ActiveSessions.Set(float64(n))
	return len(stale)
}

// CloseAll tears down every session. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		all = append(all, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
	metrics.ActiveSessions.Set(0)
	if len(all) > 0 {
		h.log.Info("closed dashboard sessions", zap.Int("count", len(all)))
	}
}
