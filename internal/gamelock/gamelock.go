// Package gamelock implements the per-game reentrant critical section: a
// channel-backed mutex per game id, with reentrancy tracked on the context
// so a nested call already holding a game's lock does not deadlock against
// itself.
package gamelock

import (
	"context"
	"sync"
)

type heldSetKey struct{}

// entry is one game id's exclusive-access token, plus a reference count so
// the table entry can be garbage-collected once every waiter has drained.
type entry struct {
	token chan struct{} // buffered 1; a value present means the lock is free
	refs  int
}

// Manager is the production ports.GameLock.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

func (m *Manager) acquireEntry(gameID string) *entry {
	m.mu.Lock()
	e, ok := m.entries[gameID]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		e.token <- struct{}{}
		m.entries[gameID] = e
	}
	e.refs++
	m.mu.Unlock()
	return e
}

func (m *Manager) releaseEntry(gameID string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, gameID)
	}
	m.mu.Unlock()
}

func heldSet(ctx context.Context) map[string]struct{} {
	if s, ok := ctx.Value(heldSetKey{}).(map[string]struct{}); ok {
		return s
	}
	return nil
}

// Acquire implements ports.GameLock. If gameID is already held by this
// call chain (present in ctx's held set), it returns immediately with a
// no-op release, the reentrant case. Otherwise it blocks on the game's
// token channel until available or ctx is canceled.
func (m *Manager) Acquire(ctx context.Context, gameID string) (context.Context, func(), error) {
	held := heldSet(ctx)
	if _, already := held[gameID]; already {
		return ctx, func() {}, nil
	}

	e := m.acquireEntry(gameID)
	select {
	case <-e.token:
	case <-ctx.Done():
		m.releaseEntry(gameID, e)
		return ctx, nil, ctx.Err()
	}

	next := make(map[string]struct{}, len(held)+1)
	for id := range held {
		next[id] = struct{}{}
	}
	next[gameID] = struct{}{}
	heldCtx := context.WithValue(ctx, heldSetKey{}, next)

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.token <- struct{}{}
			m.releaseEntry(gameID, e)
		})
	}
	return heldCtx, release, nil
}
