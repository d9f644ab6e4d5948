// Package connstore is the per-game, per-player subscriber registry. It is
// transport-agnostic: the SSE handler in internal/httpapi implements
// ports.Subscriber and registers itself here; this package only tracks who
// is listening and fans out writes to them.
package connstore

import (
	"sync"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/ports"
)

// Store is the production ports.ConnectionStore.
type Store struct {
	log slog.Logger

	mu   sync.RWMutex
	subs map[string]map[string]ports.Subscriber // gameID -> playerID -> subscriber
}

// New returns an empty Store.
func New(log slog.Logger) *Store {
	return &Store{subs: make(map[string]map[string]ports.Subscriber), log: log}
}

// Subscribe attaches sub as gameID/playerID's current subscriber, replacing
// any prior one (a reconnect supersedes the stale stream).
func (s *Store) Subscribe(gameID, playerID string, sub ports.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPlayer, ok := s.subs[gameID]
	if !ok {
		byPlayer = make(map[string]ports.Subscriber)
		s.subs[gameID] = byPlayer
	}
	byPlayer[playerID] = sub
}

// Unsubscribe removes gameID/playerID's subscriber, if it is still sub
// (guards against a stale unsubscribe racing a newer Subscribe call).
func (s *Store) Unsubscribe(gameID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPlayer, ok := s.subs[gameID]
	if !ok {
		return
	}
	delete(byPlayer, playerID)
	if len(byPlayer) == 0 {
		delete(s.subs, gameID)
	}
}

// Drop removes gameID/playerID's subscriber and closes its stream, for
// server-initiated disconnects.
func (s *Store) Drop(gameID, playerID string) {
	s.mu.Lock()
	var sub ports.Subscriber
	if byPlayer, ok := s.subs[gameID]; ok {
		sub = byPlayer[playerID]
		delete(byPlayer, playerID)
		if len(byPlayer) == 0 {
			delete(s.subs, gameID)
		}
	}
	s.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// Broadcast writes ev to every subscriber of gameID. One subscriber's write
// failure is isolated and logged, never affecting the others.
func (s *Store) Broadcast(gameID string, ev ports.Event) {
	s.mu.RLock()
	byPlayer := s.subs[gameID]
	subs := make(map[string]ports.Subscriber, len(byPlayer))
	for playerID, sub := range byPlayer {
		subs[playerID] = sub
	}
	s.mu.RUnlock()

	for playerID, sub := range subs {
		if err := sub.Send(ev); err != nil {
			s.log.Warnf("subscriber write failed (game=%s player=%s type=%s): %v", gameID, playerID, ev.EventType, err)
		}
	}
}

// SendToPlayer writes ev to one player's subscriber, used for
// GameSnapshotRestore on reconnection. It reports whether a
// live subscriber was found.
func (s *Store) SendToPlayer(gameID, playerID string, ev ports.Event) bool {
	s.mu.RLock()
	sub, ok := s.subs[gameID][playerID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := sub.Send(ev); err != nil {
		s.log.Warnf("subscriber write failed (game=%s player=%s type=%s): %v", gameID, playerID, ev.EventType, err)
		return false
	}
	return true
}

// IsConnected reports whether gameID/playerID currently has a live
// subscriber attached.
func (s *Store) IsConnected(gameID, playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subs[gameID][playerID]
	return ok
}
