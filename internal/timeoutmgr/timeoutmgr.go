// Package timeoutmgr implements the multi-class timer registry:
// independent timer families (action, disconnect, idle,
// continue-confirmation, matchmaking, display), each keyed by
// (gameID, playerID) or gameID alone.
package timeoutmgr

import (
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/ports"
)

type slot struct {
	timer    *time.Timer
	deadline time.Time
}

type compositeKey struct {
	class ports.TimerClass
	key   ports.TimerKey
}

// Manager is the production ports.TimeoutManager. Timer callbacks run on
// their own goroutine (the way time.AfterFunc always does) and must
// re-enter the game lock themselves; a panicking callback is recovered and
// logged rather than allowed to take the process down.
type Manager struct {
	log slog.Logger

	mu    sync.Mutex
	slots map[compositeKey]*slot
}

// New returns an empty Manager.
func New(log slog.Logger) *Manager {
	return &Manager{log: log, slots: make(map[compositeKey]*slot)}
}

// Start arms a timer, replacing any existing timer in the same class+key
// slot.
func (m *Manager) Start(class ports.TimerClass, key ports.TimerKey, d time.Duration, onFire func()) {
	ck := compositeKey{class, key}

	m.mu.Lock()
	if existing, ok := m.slots[ck]; ok {
		existing.timer.Stop()
	}
	s := &slot{deadline: time.Now().Add(d)}
	s.timer = time.AfterFunc(d, func() {
		defer func() {
			if r := recover(); r != nil {
				m.log.Errorf("timer callback panic (class=%s game=%s player=%s): %v", class, key.GameID, key.PlayerID, r)
			}
		}()
		// A Stop that lost the race against this callback leaves a newer slot
		// in ck; only the slot that armed this callback may fire it.
		m.mu.Lock()
		stillArmed := m.slots[ck] == s
		if stillArmed {
			delete(m.slots, ck)
		}
		m.mu.Unlock()
		if stillArmed {
			onFire()
		}
	})
	m.slots[ck] = s
	m.mu.Unlock()
}

// Clear cancels the timer in one slot, if any.
func (m *Manager) Clear(class ports.TimerClass, key ports.TimerKey) {
	ck := compositeKey{class, key}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[ck]; ok {
		s.timer.Stop()
		delete(m.slots, ck)
	}
}

// ClearAllForGame cancels every timer class for gameID, invoked on game
// finish.
func (m *Manager) ClearAllForGame(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ck, s := range m.slots {
		if ck.key.GameID == gameID {
			s.timer.Stop()
			delete(m.slots, ck)
		}
	}
}

// Has reports whether a timer is currently armed in that slot.
func (m *Manager) Has(class ports.TimerClass, key ports.TimerKey) bool {
	ck := compositeKey{class, key}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[ck]
	return ok
}

// RemainingSeconds reports the time left on a slot's timer, used to
// populate GameSnapshotRestore.remaining_action_seconds on reconnect.
func (m *Manager) RemainingSeconds(class ports.TimerClass, key ports.TimerKey) (float64, bool) {
	ck := compositeKey{class, key}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[ck]
	if !ok {
		return 0, false
	}
	remaining := time.Until(s.deadline).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
