package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/eventpayload"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// streamSub is a minimal ports.Subscriber for connection-store assertions.
type streamSub struct {
	closed bool
}

func (s *streamSub) Send(ports.Event) error { return nil }
func (s *streamSub) Close()                 { s.closed = true }

func TestJoinGameCreatesWaitingGameWhenNoneOpen(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	res, err := h.it.JoinGame(context.Background(), JoinGameInput{PlayerID: "p1", DisplayName: "Alice"})
	require.NoError(t, err)
	require.Equal(t, eventpayload.ResponseGameWaiting, res.Payload.ResponseType)
	require.NotEmpty(t, res.Payload.GameID)

	g, ok := h.store.Get(res.Payload.GameID)
	require.True(t, ok)
	require.Equal(t, cardgame.StatusWaiting, g.Status)
}

func TestJoinGameSeatsSecondPlayerIntoWaitingGameAndDeals(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	ctx := context.Background()

	first, err := h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p1"})
	require.NoError(t, err)

	second, err := h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p2"})
	require.NoError(t, err)
	require.Equal(t, eventpayload.ResponseGameStarted, second.Payload.ResponseType)
	require.Equal(t, first.Payload.GameID, second.Payload.GameID)

	g, ok := h.store.Get(first.Payload.GameID)
	require.True(t, ok)
	require.Equal(t, cardgame.StatusInProgress, g.Status)
	require.NotNil(t, g.CurrentRound)

	types := h.publisher.eventTypes()
	require.Contains(t, types, string(eventpayload.KindGameStarted))
	require.Contains(t, types, string(eventpayload.KindRoundDealt))
	require.Len(t, h.scheduler.armed, 1, "ArmNext should be called once the round is dealt")
}

func TestJoinGameSpecificGameRejectsThirdPlayer(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	ctx := context.Background()

	first, err := h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p1"})
	require.NoError(t, err)
	_, err = h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p2", GameID: first.Payload.GameID})
	require.NoError(t, err)

	_, err = h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p3", GameID: first.Payload.GameID})
	require.Error(t, err)
}

func TestJoinGameSpecificMissingGameReturnsExpired(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	res, err := h.it.JoinGame(context.Background(), JoinGameInput{PlayerID: "p1", GameID: "nonexistent"})
	require.NoError(t, err)
	require.Equal(t, eventpayload.ResponseGameExpired, res.Payload.ResponseType)
}

func TestJoinGameAIRoomRegistersOpponentBusAndAnnounces(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	res, err := h.it.JoinGame(context.Background(), JoinGameInput{PlayerID: "p1", RoomType: "ai"})
	require.NoError(t, err)

	gameID := res.Payload.GameID
	require.Equal(t, []string{gameID}, h.bus.registeredGames())
	require.Contains(t, h.publisher.eventTypes(), string(eventpayload.KindRoomCreated))

	// If the room is abandoned before the AI joins, its channel is released.
	h.it.abandonIfStillWaiting(gameID)
	require.Contains(t, h.bus.unregisteredGames(), gameID)
}

func TestJoinGameSeatsAISecondPlayer(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	ctx := context.Background()

	first, err := h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p1", RoomType: "ai"})
	require.NoError(t, err)
	_, err = h.it.JoinGame(ctx, JoinGameInput{PlayerID: "ai-1", GameID: first.Payload.GameID, IsAI: true})
	require.NoError(t, err)

	g, ok := h.store.Get(first.Payload.GameID)
	require.True(t, ok)
	require.Equal(t, cardgame.StatusInProgress, g.Status)
	require.True(t, g.Players[1].IsAI)
}

func TestMatchmakingTimeoutFinishesGameAndClosesLoneStream(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	res, err := h.it.JoinGame(context.Background(), JoinGameInput{PlayerID: "p1"})
	require.NoError(t, err)
	gameID := res.Payload.GameID

	sub := &streamSub{}
	h.conn.Subscribe(gameID, "p1", sub)

	h.it.abandonIfStillWaiting(gameID)

	_, ok := h.store.Get(gameID)
	require.False(t, ok, "abandoned game leaves the store")
	require.True(t, sub.closed, "the lone player's stream is closed, not left dangling")
	require.Contains(t, h.publisher.eventTypes(), string(eventpayload.KindGameFinished))

	summary, found, err := h.repo.LoadGameSummary(context.Background(), gameID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, cardgame.StatusFinished, summary.Status)
	require.Equal(t, cardgame.FinishMatchmakingTimeout, summary.FinishReason)
}

func TestMatchmakingTimeoutNoopOnceSeated(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	ctx := context.Background()
	first, err := h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p1"})
	require.NoError(t, err)
	_, err = h.it.JoinGame(ctx, JoinGameInput{PlayerID: "p2"})
	require.NoError(t, err)

	h.it.abandonIfStillWaiting(first.Payload.GameID)

	g, ok := h.store.Get(first.Payload.GameID)
	require.True(t, ok)
	require.Equal(t, cardgame.StatusInProgress, g.Status)
}

func TestJoinGameReconnectsAlreadySeatedPlayerWithSnapshot(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	gameID := "g1"
	h.seatedInProgressGame(t, gameID, "p1", "p2")

	res, err := h.it.JoinGame(context.Background(), JoinGameInput{PlayerID: "p1", GameID: gameID})
	require.NoError(t, err)
	require.Equal(t, eventpayload.ResponseSnapshot, res.Payload.ResponseType)
	require.NotNil(t, res.Payload.Snapshot)
}

func TestJoinGameReconnectFinishedGameReturnsGameFinished(t *testing.T) {
	h := newHarness(time.Unix(0, 0))
	g := h.seatedInProgressGame(t, "g1", "p1", "p2")
	finished := g.Clone()
	finished.Status = cardgame.StatusFinished
	finished.FinishReason = cardgame.FinishCompleted
	finished.WinnerID = "p1"
	h.store.Set("g1", finished)

	res, err := h.it.JoinGame(context.Background(), JoinGameInput{PlayerID: "p2", GameID: "g1"})
	require.NoError(t, err)
	require.Equal(t, eventpayload.ResponseGameFinished, res.Payload.ResponseType)
	require.Equal(t, "p1", res.Payload.GameFinished.WinnerID)
}
