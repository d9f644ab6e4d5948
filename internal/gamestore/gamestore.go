// Package gamestore is the in-memory ports.GameStore: the sole source of
// truth for in-progress games.
package gamestore

import (
	"sync"

	"github.com/vctt94/koikoisrv/internal/cardgame"
)

// Store is the production ports.GameStore.
type Store struct {
	mu    sync.RWMutex
	games map[string]*cardgame.Game
}

// New returns an empty Store.
func New() *Store {
	return &Store{games: make(map[string]*cardgame.Game)}
}

// Get implements ports.GameStore.
func (s *Store) Get(gameID string) (*cardgame.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	return g, ok
}

// Set implements ports.GameStore.
func (s *Store) Set(gameID string, game *cardgame.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[gameID] = game
}

// Delete implements ports.GameStore.
func (s *Store) Delete(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, gameID)
}

// FindWaiting implements ports.GameStore. Iteration order over a Go map is
// randomized, which is fine here: any WAITING game with an open seat is an
// equally valid match for JoinGame.
func (s *Store) FindWaiting() (*cardgame.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.games {
		if g.Status == cardgame.StatusWaiting && len(g.SeatedPlayerIDs()) == 1 {
			return g, true
		}
	}
	return nil, false
}

// All returns every tracked game, for diagnostics.
func (s *Store) All() []*cardgame.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*cardgame.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out
}
