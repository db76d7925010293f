package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Manager is the call registry owned by the orchestrator. It hands out the
// session for a call, creating it on first use, and forgets it when the call
// ends.
type Manager struct {
	store Store

	mu            sync.Mutex
	evictIdle     time.Duration
	evictInterval time.Duration
	evictRunning  bool
	onEvict       func(int)
}

// NewManager wraps a Store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session for callID, creating a default one if the call is new.
func (m *Manager) Get(ctx context.Context, callID string) (*Session, error) {
	if callID == "" {
		return nil, ErrMissingCallID
	}
	s, err := m.store.Get(ctx, callID)
	if err != nil {
		return nil, errors.Wrapf(err, "get session %s", callID)
	}
	if s != nil {
		return s, nil
	}
	s = New(callID)
	if err := m.store.Create(ctx, s); err != nil {
		return nil, errors.Wrapf(err, "create session %s", callID)
	}
	return s, nil
}

// Save writes the session back. A call that expired between read and write
// is recreated rather than lost.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	err := m.store.Update(ctx, s)
	if errors.Is(err, ErrNotFound) {
		return errors.Wrapf(m.store.Create(ctx, s), "recreate session %s", s.CallID)
	}
	return errors.Wrapf(err, "save session %s", s.CallID)
}

// Delete forgets the call.
func (m *Manager) Delete(ctx context.Context, callID string) error {
	return errors.Wrapf(m.store.Delete(ctx, callID), "delete session %s", callID)
}

// Active reports how many calls the store holds, or -1 if it cannot tell.
func (m *Manager) Active() int {
	if c, ok := m.store.(Counter); ok {
		return c.Len()
	}
	return -1
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// StartEvictionLoop runs idle eviction until ctx is done. It is a no-op when
// eviction is not configured or the store expires keys on its own.
func (m *Manager) StartEvictionLoop(ctx context.Context) {
	if ctx == nil {
		panic("session: StartEvictionLoop requires non-nil ctx")
	}
	evictor, ok := m.store.(IdleEvictor)
	if !ok {
		return
	}
	m.mu.Lock()
	if m.evictRunning || m.evictIdle <= 0 || m.evictInterval <= 0 {
		m.mu.Unlock()
		return
	}
	m.evictRunning = true
	idle, interval := m.evictIdle, m.evictInterval
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.mu.Lock()
				m.evictRunning = false
				m.mu.Unlock()
				return
			case now := <-ticker.C:
				n := evictor.EvictIdle(now, idle)
				if n > 0 && m.onEvict != nil {
					m.onEvict(n)
				}
			}
		}
	}()
}
