package gamestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vctt94/koikoisrv/internal/cardgame"
)

func TestGetSetDelete(t *testing.T) {
	s := New()
	_, ok := s.Get("g1")
	require.False(t, ok)

	g := cardgame.NewWaitingGame("g1", cardgame.Player{ID: "p1"}, cardgame.Ruleset{}, time.Unix(0, 0))
	s.Set("g1", g)

	got, ok := s.Get("g1")
	require.True(t, ok)
	require.Same(t, g, got)

	s.Delete("g1")
	_, ok = s.Get("g1")
	require.False(t, ok)
}

func TestFindWaitingReturnsGameWithOneSeat(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	waiting := cardgame.NewWaitingGame("g1", cardgame.Player{ID: "p1"}, cardgame.Ruleset{}, now)
	full := cardgame.NewWaitingGame("g2", cardgame.Player{ID: "p2"}, cardgame.Ruleset{}, now).Seat(cardgame.Player{ID: "p3"}, now)
	s.Set("g1", waiting)
	s.Set("g2", full)

	found, ok := s.FindWaiting()
	require.True(t, ok)
	require.Equal(t, "g1", found.ID)
}

func TestFindWaitingNoneAvailable(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	full := cardgame.NewWaitingGame("g1", cardgame.Player{ID: "p1"}, cardgame.Ruleset{}, now).Seat(cardgame.Player{ID: "p2"}, now)
	s.Set("g1", full)

	_, ok := s.FindWaiting()
	require.False(t, ok)
}

func TestAllReturnsEveryTrackedGame(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	s.Set("g1", cardgame.NewWaitingGame("g1", cardgame.Player{ID: "p1"}, cardgame.Ruleset{}, now))
	s.Set("g2", cardgame.NewWaitingGame("g2", cardgame.Player{ID: "p2"}, cardgame.Ruleset{}, now))

	all := s.All()
	require.Len(t, all, 2)
}
