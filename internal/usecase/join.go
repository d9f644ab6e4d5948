package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/eventpayload"
	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
	"github.com/vctt94/koikoisrv/internal/snapshot"
)

// JoinGameInput is the command payload for JoinGame. GameID is optional:
// empty requests matchmaking into any open WAITING game (or a freshly
// created one); non-empty targets a specific game, for reconnection or
// joining a room a player was invited to.
type JoinGameInput struct {
	PlayerID    string
	DisplayName string
	GameID      string
	// RoomType requests an AI second seat. AI opponent policy lives outside
	// this server; the room registers an opponent-bus channel and announces
	// RoomCreated on it, and the AI subsystem answers by calling JoinGame
	// itself with IsAI set.
	RoomType string
	// IsAI marks the joining player as the AI opponent. Never set by the
	// HTTP layer; only the in-process AI subsystem joins this way.
	IsAI bool
}

// JoinGameResult mirrors the InitialState envelope the HTTP layer streams
// back as the first SSE event on this connection.
type JoinGameResult struct {
	Payload eventpayload.InitialStatePayload
	Game    *cardgame.Game
}

// JoinGame identifies an existing WAITING game, creates one, seats a
// second player (dealing round 1), or reconnects a previously-seated
// player.
func (it *Interactors) JoinGame(ctx context.Context, in JoinGameInput) (JoinGameResult, error) {
	it.logCommand(ctx, in.GameID, in.PlayerID, "JoinGame", in)

	if in.GameID != "" {
		return it.joinSpecificGame(ctx, in)
	}
	return it.joinOrCreateWaitingGame(ctx, in)
}

func (it *Interactors) joinSpecificGame(ctx context.Context, in JoinGameInput) (JoinGameResult, error) {
	heldCtx, release, err := it.Lock.Acquire(ctx, in.GameID)
	if err != nil {
		return JoinGameResult{}, gameerr.Wrap(gameerr.CodeInternal, "failed to acquire game lock", err)
	}
	defer release()
	ctx = heldCtx

	game, ok := it.Store.Get(in.GameID)
	if !ok {
		return JoinGameResult{Payload: eventpayload.InitialStatePayload{
			ResponseType: eventpayload.ResponseGameExpired,
			GameID:       in.GameID,
		}}, nil
	}

	for _, p := range game.Players {
		if p.ID == in.PlayerID {
			return it.reconnect(ctx, game, in.PlayerID)
		}
	}

	if game.Status != cardgame.StatusWaiting || len(game.SeatedPlayerIDs()) != 1 {
		return JoinGameResult{}, gameerr.Newf(gameerr.CodeInvalidState, "game %s is not open to a new player", in.GameID)
	}
	return it.seatSecondPlayer(ctx, game, in)
}

func (it *Interactors) joinOrCreateWaitingGame(ctx context.Context, in JoinGameInput) (JoinGameResult, error) {
	if g, ok := it.Store.FindWaiting(); ok {
		heldCtx, release, err := it.Lock.Acquire(ctx, g.ID)
		if err != nil {
			return JoinGameResult{}, gameerr.Wrap(gameerr.CodeInternal, "failed to acquire game lock", err)
		}
		defer release()
		ctx = heldCtx

		// Re-fetch: the waiting game found above may have been seated by a
		// concurrent JoinGame between FindWaiting and acquiring its lock.
		g, ok = it.Store.Get(g.ID)
		if ok && g.Status == cardgame.StatusWaiting && len(g.SeatedPlayerIDs()) == 1 && g.Players[0].ID != in.PlayerID {
			return it.seatSecondPlayer(ctx, g, in)
		}
	}

	gameID := uuid.NewString()
	heldCtx, release, err := it.Lock.Acquire(ctx, gameID)
	if err != nil {
		return JoinGameResult{}, gameerr.Wrap(gameerr.CodeInternal, "failed to acquire game lock", err)
	}
	defer release()
	ctx = heldCtx

	first := cardgame.Player{ID: in.PlayerID, DisplayName: in.DisplayName}
	game := cardgame.NewWaitingGame(gameID, first, it.Ruleset, it.now())
	it.persist(ctx, game)
	it.Timeouts.Start(ports.MatchmakingTimer, gameKey(gameID), it.MatchmakingTimeout, func() {
		it.abandonIfStillWaiting(gameID)
	})

	if in.RoomType == "ai" && it.Bus != nil {
		// Open the game's opponent-bus channel before announcing the room,
		// so the AI subsystem cannot miss events between the two.
		it.Bus.Register(gameID, opponentBusBufferSize)
		it.publishBroadcast(ctx, gameID, "", eventpayload.RoomCreatedPayload{
			GameID:   gameID,
			RoomType: in.RoomType,
		})
		it.Log.Infof("room created awaiting an AI opponent (game=%s)", gameID)
	}

	return JoinGameResult{
		Payload: eventpayload.InitialStatePayload{ResponseType: eventpayload.ResponseGameWaiting, GameID: gameID},
		Game:    game,
	}, nil
}

// abandonIfStillWaiting runs on the matchmaking timer's fire: a WAITING
// game nobody joined in time is finished with no winner and removed from
// the store. The lone seated player is still streaming heartbeats, so they
// get a terminal GameFinished and their stream is closed rather than left
// dangling against a game that no longer exists.
func (it *Interactors) abandonIfStillWaiting(gameID string) {
	ctx, release, err := it.Lock.Acquire(context.Background(), gameID)
	if err != nil {
		return
	}
	defer release()

	game, ok := it.Store.Get(gameID)
	if !ok || game.Status != cardgame.StatusWaiting {
		return
	}

	finished := game.Clone()
	finished.Status = cardgame.StatusFinished
	finished.FinishReason = cardgame.FinishMatchmakingTimeout
	finished.UpdatedAt = it.now()
	it.persist(ctx, finished)
	it.Store.Delete(gameID)

	it.publishBroadcast(ctx, gameID, "", eventpayload.GameFinishedPayload{
		GameID:           gameID,
		Reason:           finished.FinishReason,
		CumulativeScores: finished.CumulativeScores,
	})
	it.ReleaseOpponentBus(gameID)
	for _, pid := range finished.SeatedPlayerIDs() {
		it.Conn.Drop(gameID, pid)
	}
}

func (it *Interactors) seatSecondPlayer(ctx context.Context, game *cardgame.Game, in JoinGameInput) (JoinGameResult, error) {
	it.Timeouts.Clear(ports.MatchmakingTimer, gameKey(game.ID))

	second := cardgame.Player{ID: in.PlayerID, DisplayName: in.DisplayName, IsAI: in.IsAI}
	seated := game.Seat(second, it.now())

	dealt, outcome := it.dealRound(seated, seated.Players[0].ID)
	it.persist(ctx, dealt)

	it.publishBroadcast(ctx, dealt.ID, "", eventpayload.GameStartedPayload{
		GameID:      dealt.ID,
		PlayerIDs:   dealt.SeatedPlayerIDs(),
		TotalRounds: dealt.Ruleset.TotalRounds,
	})

	var instantEnd *eventpayload.RoundEndedPayload
	if outcome.Kind == cardgame.DealInstantEnd {
		instantEnd = RoundEndedPayloadFrom(dealt, *outcome.RoundEnded)
	}
	it.PublishRoundDealt(ctx, dealt, instantEnd)

	if outcome.Kind == cardgame.DealInstantEnd {
		it.scheduler.PublishRoundEndedAlreadyApplied(ctx, dealt, *outcome.RoundEnded)
	} else {
		it.scheduler.ArmNext(ctx, dealt)
	}

	return JoinGameResult{
		Payload: eventpayload.InitialStatePayload{
			ResponseType: eventpayload.ResponseGameStarted,
			GameID:       dealt.ID,
			GameStarted: &eventpayload.GameStartedPayload{
				GameID: dealt.ID, PlayerIDs: dealt.SeatedPlayerIDs(), TotalRounds: dealt.Ruleset.TotalRounds,
			},
		},
		Game: dealt,
	}, nil
}

func (it *Interactors) reconnect(ctx context.Context, game *cardgame.Game, playerID string) (JoinGameResult, error) {
	if game.Status == cardgame.StatusFinished {
		return JoinGameResult{
			Payload: eventpayload.InitialStatePayload{
				ResponseType: eventpayload.ResponseGameFinished,
				GameID:       game.ID,
				GameFinished: &eventpayload.GameFinishedPayload{
					GameID: game.ID, WinnerID: game.WinnerID, Reason: game.FinishReason,
					CumulativeScores: game.CumulativeScores,
				},
			},
			Game: game,
		}, nil
	}

	it.Timeouts.Clear(ports.DisconnectTimer, keyFor(game.ID, playerID))
	reconnected := game
	if game.ConnectionStatuses[playerID] != cardgame.Connected {
		reconnected = game.SetConnectionStatus(playerID, cardgame.Connected)
		it.persist(ctx, reconnected)
	}

	// Reopening one's own not-yet-started game is a plain wait, not a
	// mid-round restore.
	if reconnected.Status == cardgame.StatusWaiting {
		return JoinGameResult{
			Payload: eventpayload.InitialStatePayload{
				ResponseType: eventpayload.ResponseGameWaiting,
				GameID:       reconnected.ID,
			},
			Game: reconnected,
		}, nil
	}

	var remaining float64
	var hasRemaining bool
	if reconnected.CurrentRound != nil {
		remaining, hasRemaining = snapshot.BuildTimeoutLookup(it.Timeouts, reconnected.ID, reconnected.CurrentRound.ActivePlayerID)
	}
	snap := snapshot.Build(reconnected, playerID, remaining, hasRemaining)

	return JoinGameResult{
		Payload: eventpayload.InitialStatePayload{
			ResponseType: eventpayload.ResponseSnapshot,
			GameID:       reconnected.ID,
			Snapshot:     &snap,
		},
		Game: reconnected,
	}, nil
}

// PublishRoundDealt sends a personalized RoundDealt to each seated player:
// own hand in full, opponent's hand count only.
func (it *Interactors) PublishRoundDealt(ctx context.Context, game *cardgame.Game, instantEnd *eventpayload.RoundEndedPayload) {
	round := game.CurrentRound
	for _, p := range game.Players {
		if p.ID == "" {
			continue
		}
		opponentID := ""
		for _, other := range game.Players {
			if other.ID != "" && other.ID != p.ID {
				opponentID = other.ID
			}
		}
		it.publishToPlayer(ctx, game.ID, p.ID, eventpayload.RoundDealtPayload{
			RoundNumber:       game.RoundNumber,
			DealerID:          game.DealerID,
			Field:             append([]cardgame.Card(nil), round.Field...),
			Hand:              append([]cardgame.Card(nil), round.Hands[p.ID]...),
			OpponentHandCount: len(round.Hands[opponentID]),
			DeckCount:         round.Deck.Size(),
			ActivePlayerID:    round.ActivePlayerID,
			InstantEnd:        instantEnd,
		})
	}
}

// RoundEndedPayloadFrom builds the RoundEnded wire payload from a domain
// RoundEndedInfo. Exported for the turn-flow service, which
// owns publishing every round-end event.
func RoundEndedPayloadFrom(game *cardgame.Game, info cardgame.RoundEndedInfo) *eventpayload.RoundEndedPayload {
	winnerMultiplier := info.Multiplier
	if winnerMultiplier == 0 {
		winnerMultiplier = 1
	}
	// Every seated player gets an entry; the loser's multiplier is 1 since
	// no doubling applies to a score of zero.
	multipliers := map[string]int{}
	for _, p := range game.Players {
		if p.ID == "" {
			continue
		}
		if !info.Draw && p.ID == info.WinnerID {
			multipliers[p.ID] = winnerMultiplier
		} else {
			multipliers[p.ID] = 1
		}
	}
	return &eventpayload.RoundEndedPayload{
		Reason:           info.Reason,
		WinnerID:         info.WinnerID,
		Draw:             info.Draw,
		BaseScore:        info.BaseScore,
		FinalScore:       info.FinalScore,
		RoundNumber:      game.RoundNumber,
		CumulativeScores: game.CumulativeScores,
		Multipliers: eventpayload.ScoreMultipliers{
			PlayerMultipliers: multipliers,
			KoiKoiApplied:     info.KoiKoiApplied,
			SevenPointApplied: info.BaseScore >= 7 && info.Multiplier > 1,
		},
	}
}
