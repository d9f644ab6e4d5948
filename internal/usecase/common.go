// Package usecase implements the per-command application services, each
// following the shared prelude: log the command, acquire the per-game lock,
// clear the pending action timeout, load the game, validate, delegate to
// the domain, publish events, persist, and arm the next timeout.
package usecase

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/eventpayload"
	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// Scheduler is the turn-flow service's half of a dependency cycle: use
// cases need to arm the next timeout and hand off round-boundary decisions
// after every transition, but the turn-flow service that does that also
// drives these same use cases on timeout (auto-action). Interactors holds a
// Scheduler set via SetScheduler after turnflow.Service is constructed, so
// usecase never imports turnflow and the cycle never exists at the package
// level.
type Scheduler interface {
	// ArmNext arms the timer appropriate to game's current flow state and
	// its active player's connection status.
	ArmNext(ctx context.Context, game *cardgame.Game)
	// FinalizeRoundEnd applies the OPPONENT_LEFT override if warranted,
	// folds info into game, persists, publishes RoundEnded/GameFinished,
	// and continues the round-boundary policy.
	// Use for a round-ending TransitionResult from PlayHandCard,
	// SelectTarget, or HandleDecision, whose RoundEndedInfo has not yet
	// been applied to the game.
	FinalizeRoundEnd(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo)
	// PublishRoundEndedAlreadyApplied is for a round that ended inside
	// DealNextRound itself (teshi, kuttsuki): the domain already folded
	// info into game, so this only publishes and continues the
	// round-boundary policy.
	PublishRoundEndedAlreadyApplied(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo)
	// NoteManualAction resets playerID's idle counter: they acted on their
	// own, not via auto-action.
	NoteManualAction(gameID, playerID string)
	// NoteAutoAction increments playerID's idle counter: turn-flow played on
	// their behalf because their action timer expired.
	NoteAutoAction(gameID, playerID string)
	// DealNextRoundIfReady deals the next round immediately if gameID has no
	// more pending continue-confirmations, skipping the display delay: the
	// delay is for normal round ends, not for a prompt that already took
	// longer than the delay to resolve.
	DealNextRoundIfReady(ctx context.Context, gameID string)
}

// opponentBusBufferSize bounds how many unread events an AI game's bus
// channel can queue before new ones are dropped, mirroring the SSE
// subscriber buffer on the human side.
const opponentBusBufferSize = 256

// Interactors groups every per-command use case.
type Interactors struct {
	Log       slog.Logger
	Store     ports.GameStore
	Lock      ports.GameLock
	Timeouts  ports.TimeoutManager
	Publisher ports.EventPublisher
	Conn      ports.ConnectionStore
	Bus       ports.OpponentBus // nil when no AI opponent subsystem is wired
	Repo      ports.Repository
	GameLog   ports.GameLogStore
	Clock     ports.Clock
	Ruleset   cardgame.Ruleset

	// MatchmakingTimeout bounds how long a WAITING game waits for a second
	// player before it is abandoned.
	MatchmakingTimeout time.Duration

	scheduler Scheduler

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an Interactors. Call SetScheduler once the turn-flow service
// exists, before serving any command.
func New(
	log slog.Logger,
	store ports.GameStore,
	lock ports.GameLock,
	timeouts ports.TimeoutManager,
	publisher ports.EventPublisher,
	conn ports.ConnectionStore,
	bus ports.OpponentBus,
	repo ports.Repository,
	gamelog ports.GameLogStore,
	clock ports.Clock,
	ruleset cardgame.Ruleset,
	matchmakingTimeout time.Duration,
	seed int64,
) *Interactors {
	return &Interactors{
		Log:                log,
		Store:              store,
		Lock:               lock,
		Timeouts:           timeouts,
		Publisher:          publisher,
		Conn:               conn,
		Bus:                bus,
		Repo:               repo,
		GameLog:            gamelog,
		Clock:              clock,
		Ruleset:            ruleset,
		MatchmakingTimeout: matchmakingTimeout,
		rng:                rand.New(rand.NewSource(seed)),
	}
}

// SetScheduler installs the turn-flow service pointer, closing the cycle
// described on Scheduler.
func (it *Interactors) SetScheduler(s Scheduler) { it.scheduler = s }

func (it *Interactors) now() time.Time {
	if it.Clock != nil {
		return it.Clock.Now()
	}
	return time.Now()
}

func newEventID() string { return uuid.NewString() }

// dealRound serializes access to the shared rand.Rand: two different games
// can deal concurrently (each under its own per-game lock), but a
// *rand.Rand is not itself safe for concurrent use.
func (it *Interactors) dealRound(game *cardgame.Game, dealerID string) (*cardgame.Game, cardgame.DealOutcome) {
	it.rngMu.Lock()
	defer it.rngMu.Unlock()
	return game.DealNextRound(it.rng, dealerID, it.now())
}

// DealNextRound deals the next round for game under the shared rng lock,
// exported for the turn-flow service's round-boundary scheduling.
func (it *Interactors) DealNextRound(game *cardgame.Game, dealerID string) (*cardgame.Game, cardgame.DealOutcome) {
	return it.dealRound(game, dealerID)
}

// Now exposes the Interactors' clock for the turn-flow service.
func (it *Interactors) Now() time.Time { return it.now() }

// logCommand appends an audit record for an inbound command, fire and
// forget like every other game-log write.
func (it *Interactors) logCommand(ctx context.Context, gameID, playerID, cmdType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		it.Log.Warnf("command log marshal failed (game=%s cmd=%s): %v", gameID, cmdType, err)
		return
	}
	_ = it.GameLog.Append(ctx, ports.LogRecord{
		GameID:    gameID,
		PlayerID:  playerID,
		EventType: "cmd:" + cmdType,
		Payload:   data,
		CreatedAt: it.now(),
	})
}

// loadGame fetches gameID or returns a typed GAME_NOT_FOUND error.
func (it *Interactors) loadGame(gameID string) (*cardgame.Game, error) {
	g, ok := it.Store.Get(gameID)
	if !ok {
		return nil, gameerr.Newf(gameerr.CodeGameNotFound, "game %s not found", gameID)
	}
	return g, nil
}

// requirePlayerInGame validates playerID is seated in game.
func requirePlayerInGame(game *cardgame.Game, playerID string) error {
	for _, p := range game.Players {
		if p.ID == playerID {
			return nil
		}
	}
	return gameerr.Newf(gameerr.CodePlayerNotInGame, "player %s is not seated in game %s", playerID, game.ID)
}

func requireInProgress(game *cardgame.Game) error {
	if game.Status != cardgame.StatusInProgress {
		return gameerr.Newf(gameerr.CodeInvalidState, "game %s is %s, not IN_PROGRESS", game.ID, game.Status)
	}
	if game.CurrentRound == nil {
		return gameerr.Newf(gameerr.CodeInvalidState, "game %s has no round in play", game.ID)
	}
	return nil
}

// persist saves game to the in-memory store and, best-effort, its
// restart-survivable summary.
func (it *Interactors) persist(ctx context.Context, game *cardgame.Game) {
	it.Store.Set(game.ID, game)
	summary := ports.GameSummary{
		GameID:           game.ID,
		PlayerIDs:        game.SeatedPlayerIDs(),
		RoundsPlayed:     game.RoundsPlayed,
		CumulativeScores: game.CumulativeScores,
		Status:           game.Status,
		FinishReason:     game.FinishReason,
		WinnerID:         game.WinnerID,
		UpdatedAt:        game.UpdatedAt,
	}
	if err := it.Repo.SaveGameSummary(ctx, summary); err != nil {
		it.Log.Warnf("save game summary failed (game=%s): %v", game.ID, err)
	}
}

// withRound returns a clone of game with its current round replaced by
// round, the shape every PlayHandCard/SelectTarget/HandleDecision caller
// needs since those domain functions operate on *cardgame.Round, not
// *cardgame.Game.
func (it *Interactors) withRound(game *cardgame.Game, round *cardgame.Round) *cardgame.Game {
	updated := game.Clone()
	updated.CurrentRound = round
	updated.UpdatedAt = it.now()
	return updated
}

// Persist exposes persist for the turn-flow service's round-boundary
// bookkeeping.
func (it *Interactors) Persist(ctx context.Context, game *cardgame.Game) { it.persist(ctx, game) }

// ReleaseOpponentBus drops gameID's AI event channel, if one was registered.
// The turn-flow service calls this wherever it clears a finished game's
// timers.
func (it *Interactors) ReleaseOpponentBus(gameID string) {
	if it.Bus != nil {
		it.Bus.Unregister(gameID)
	}
}

// PublishBroadcast exposes publishBroadcast for the turn-flow service.
func (it *Interactors) PublishBroadcast(ctx context.Context, gameID, playerID string, payload eventpayload.Payload) {
	it.publishBroadcast(ctx, gameID, playerID, payload)
}

func nextStateOf(round *cardgame.Round) eventpayload.NextState {
	return eventpayload.NextState{FlowState: round.FlowState, ActivePlayerID: round.ActivePlayerID}
}

// publishBroadcast wraps Publisher.Publish with the envelope fields common
// to every event.
func (it *Interactors) publishBroadcast(ctx context.Context, gameID, playerID string, payload eventpayload.Payload) {
	it.Publisher.Publish(ctx, ports.Event{
		EventType: string(payload.Kind()),
		EventID:   newEventID(),
		Timestamp: it.now(),
		GameID:    gameID,
		PlayerID:  playerID,
		Payload:   payload,
	})
}

// publishToPlayer wraps Publisher.PublishToPlayer for a payload that must
// differ per viewer.
func (it *Interactors) publishToPlayer(ctx context.Context, gameID, recipientID string, payload eventpayload.Payload) {
	it.Publisher.PublishToPlayer(ctx, recipientID, ports.Event{
		EventType: string(payload.Kind()),
		EventID:   newEventID(),
		Timestamp: it.now(),
		GameID:    gameID,
		PlayerID:  recipientID,
		Payload:   payload,
	})
}

// keyFor builds the TimerKey for a player-scoped timer class.
func keyFor(gameID, playerID string) ports.TimerKey {
	return ports.TimerKey{GameID: gameID, PlayerID: playerID}
}

// gameKey builds the TimerKey for a game-scoped timer class.
func gameKey(gameID string) ports.TimerKey {
	return ports.TimerKey{GameID: gameID}
}

// translateDomainError maps the sentinel errors cardgame's Round functions
// return into the typed taxonomy the HTTP boundary renders.
func translateDomainError(err error) error {
	switch err {
	case cardgame.ErrWrongPlayer:
		return gameerr.New(gameerr.CodeWrongPlayer, "it is not this player's turn")
	case cardgame.ErrInvalidState:
		return gameerr.New(gameerr.CodeInvalidState, "action is not valid in the round's current flow state")
	case cardgame.ErrCardNotInHand:
		return gameerr.New(gameerr.CodeInvalidInput, "card is not in the player's hand")
	case cardgame.ErrInvalidSelection:
		return gameerr.New(gameerr.CodeInvalidSelection, "target is not a valid selection")
	case cardgame.ErrNoPendingSelection:
		return gameerr.New(gameerr.CodeInvalidState, "no selection is pending")
	default:
		return gameerr.Wrap(gameerr.CodeInternal, "domain transition failed", err)
	}
}

func toHeldYakuPayload(held []cardgame.HeldYaku) []eventpayload.HeldYakuPayload {
	out := make([]eventpayload.HeldYakuPayload, len(held))
	for i, h := range held {
		out[i] = eventpayload.HeldYakuPayload{ID: h.ID, Score: h.Score}
	}
	return out
}

// publishTurnCompleted emits TurnCompleted or TurnProgressAfterSelection
// (same payload shape) from a TurnCompletedInfo.
func (it *Interactors) publishTurnCompleted(ctx context.Context, game *cardgame.Game, kind eventpayload.Kind, info *cardgame.TurnCompletedInfo) {
	it.publishBroadcast(ctx, game.ID, info.PlayerID, eventpayload.TurnCompletedPayload{
		EventType:       kind,
		PlayerID:        info.PlayerID,
		HandCaptured:    info.HandCaptured,
		HandCardToField: info.HandCardToField,
		DrawnCard:       info.DrawnCard,
		DrawCaptured:    info.DrawCaptured,
		DrawCardToField: info.DrawCardToField,
		NextState:       nextStateOf(game.CurrentRound),
	})
}

func (it *Interactors) publishSelectionRequired(ctx context.Context, game *cardgame.Game, info *cardgame.SelectionRequiredInfo) {
	it.publishBroadcast(ctx, game.ID, info.PlayerID, eventpayload.SelectionRequiredPayload{
		PlayerID:        info.PlayerID,
		SourceCard:      info.SourceCard,
		PossibleTargets: info.PossibleTargets,
		NextState:       nextStateOf(game.CurrentRound),
	})
}

func (it *Interactors) publishDecisionRequired(ctx context.Context, game *cardgame.Game, info *cardgame.DecisionRequiredInfo) {
	it.publishBroadcast(ctx, game.ID, info.PlayerID, eventpayload.DecisionRequiredPayload{
		PlayerID:  info.PlayerID,
		HeldYaku:  toHeldYakuPayload(info.HeldYaku),
		BaseScore: info.BaseScore,
		NextState: nextStateOf(game.CurrentRound),
	})
}

func (it *Interactors) publishDecisionMade(ctx context.Context, game *cardgame.Game, info *cardgame.DecisionMadeInfo) {
	it.publishBroadcast(ctx, game.ID, info.PlayerID, eventpayload.DecisionMadePayload{
		PlayerID:      info.PlayerID,
		Decision:      info.Decision,
		KoiKoiApplied: info.KoiKoiApplied,
		NextState:     nextStateOf(game.CurrentRound),
	})
}

// dispatchTransition publishes the right event for every non-round-ending
// TransitionResult outcome and, for OutcomeRoundEnded, hands off to the
// scheduler. It returns nothing; on a round end the scheduler stores the
// post-round-end game via FinalizeRoundEnd, so callers that need that
// state re-fetch it from the store.
func (it *Interactors) dispatchTransition(ctx context.Context, game *cardgame.Game, result cardgame.TransitionResult) {
	switch result.Outcome {
	case cardgame.OutcomeTurnCompleted:
		it.publishTurnCompleted(ctx, game, eventpayload.KindTurnCompleted, result.TurnCompleted)
	case cardgame.OutcomeTurnProgressAfterSelection:
		it.publishTurnCompleted(ctx, game, eventpayload.KindTurnProgressAfterSelection, result.TurnCompleted)
	case cardgame.OutcomeSelectionRequired:
		it.publishSelectionRequired(ctx, game, result.SelectionRequired)
	case cardgame.OutcomeDecisionRequired:
		it.publishDecisionRequired(ctx, game, result.DecisionRequired)
	case cardgame.OutcomeDecisionMade:
		it.publishDecisionMade(ctx, game, result.DecisionMade)
	case cardgame.OutcomeRoundEnded:
		it.scheduler.FinalizeRoundEnd(ctx, game, *result.RoundEnded)
		return
	}
	it.persist(ctx, game)
	it.scheduler.ArmNext(ctx, game)
}
