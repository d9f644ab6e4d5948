// Package turnflow implements the turn-flow service: the owner of the
// action, continue-confirmation, display and disconnect timers (the
// matchmaking timer is armed by internal/usecase) and the round-boundary policy (finish, prompt idle players,
// or deal the next round). It sits in a dependency cycle with the use
// cases, broken by implementing usecase.Scheduler, installed on an
// already-constructed *usecase.Interactors via SetScheduler, so neither
// package imports the other's concrete type.
package turnflow

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/eventpayload"
	"github.com/vctt94/koikoisrv/internal/ports"
	"github.com/vctt94/koikoisrv/internal/usecase"
)

// IdleThreshold is how many consecutive auto-actions flag a player for a
// continue-confirmation prompt at the next round boundary. Chosen so one
// slow turn never triggers a prompt, but a player who has stopped
// responding does.
const IdleThreshold = 2

// Config groups the durations Service arms its timers with. The disconnect
// grace period is not among them: internal/httpapi passes that duration to
// OnUnsubscribe on each call.
type Config struct {
	Action               time.Duration
	AcceleratedAction    time.Duration
	ContinueConfirmation time.Duration
	Display              time.Duration
}

// Service is the production usecase.Scheduler.
type Service struct {
	log slog.Logger
	uc  *usecase.Interactors
	tm  ports.TimeoutManager
	cfg Config

	mu         sync.Mutex
	idleCounts map[string]int // "gameID:playerID" -> consecutive auto-actions
}

// New builds a Service. Call uc.SetScheduler(svc) once construction is
// done to close the cyclic dependency.
func New(log slog.Logger, uc *usecase.Interactors, tm ports.TimeoutManager, cfg Config) *Service {
	return &Service{log: log, uc: uc, tm: tm, cfg: cfg, idleCounts: make(map[string]int)}
}

func idleKey(gameID, playerID string) string { return gameID + ":" + playerID }

// NoteManualAction implements usecase.Scheduler.
func (s *Service) NoteManualAction(gameID, playerID string) {
	s.mu.Lock()
	delete(s.idleCounts, idleKey(gameID, playerID))
	s.mu.Unlock()
}

// NoteAutoAction implements usecase.Scheduler.
func (s *Service) NoteAutoAction(gameID, playerID string) {
	s.mu.Lock()
	s.idleCounts[idleKey(gameID, playerID)]++
	s.mu.Unlock()
}

func (s *Service) idleCount(gameID, playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleCounts[idleKey(gameID, playerID)]
}

// ArmNext implements usecase.Scheduler: arms the action timer for the
// round's active player, using the accelerated duration for a disconnected
// or left player so the opponent is never stuck waiting the full window on
// someone who has already gone.
func (s *Service) ArmNext(ctx context.Context, game *cardgame.Game) {
	if game == nil || game.Status != cardgame.StatusInProgress || game.CurrentRound == nil {
		return
	}
	round := game.CurrentRound
	if round.FlowState == cardgame.RoundEnded {
		return
	}
	active := round.ActivePlayerID
	d := s.cfg.Action
	if status := game.ConnectionStatuses[active]; status == cardgame.Disconnected || status == cardgame.Left {
		d = s.cfg.AcceleratedAction
	}
	gameID := game.ID
	s.tm.Start(ports.ActionTimer, ports.TimerKey{GameID: gameID, PlayerID: active}, d, func() {
		if err := s.uc.AutoAction(context.Background(), gameID, active); err != nil {
			s.log.Warnf("auto-action failed (game=%s player=%s): %v", gameID, active, err)
		}
	})
}

// FinalizeRoundEnd implements usecase.Scheduler.
func (s *Service) FinalizeRoundEnd(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo) {
	if game.HasLeftOrDisconnectedPlayer() {
		info.Reason = cardgame.ReasonOpponentLeft
	}
	applied := game.ApplyRoundEnd(info, s.uc.Now())
	s.publishAndContinue(ctx, applied, info)
}

// PublishRoundEndedAlreadyApplied implements usecase.Scheduler.
func (s *Service) PublishRoundEndedAlreadyApplied(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo) {
	s.publishAndContinue(ctx, game, info)
}

// publishAndContinue publishes RoundEnded (and GameFinished, if this round
// ended the game), persists, and either finishes bookkeeping, flags idle
// players for a continue-confirmation prompt, or schedules the next deal
// after the display delay.
func (s *Service) publishAndContinue(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo) {
	s.uc.Persist(ctx, game)
	s.uc.PublishBroadcast(ctx, game.ID, "", *usecase.RoundEndedPayloadFrom(game, info))

	if game.Status == cardgame.StatusFinished {
		s.tm.ClearAllForGame(game.ID)
		s.uc.PublishBroadcast(ctx, game.ID, "", eventpayload.GameFinishedPayload{
			GameID: game.ID, WinnerID: game.WinnerID, Reason: game.FinishReason, CumulativeScores: game.CumulativeScores,
		})
		s.uc.ReleaseOpponentBus(game.ID)
		s.uc.RecordGameStats(ctx, game)
		return
	}

	flagged := game
	anyPending := false
	for _, p := range game.Players {
		if p.ID == "" {
			continue
		}
		if s.idleCount(game.ID, p.ID) < IdleThreshold {
			continue
		}
		if status := game.ConnectionStatuses[p.ID]; status == cardgame.Left {
			continue // already leaving; no prompt needed
		}
		flagged = flagged.FlagPendingContinueConfirmation(p.ID)
		anyPending = true
		playerID := p.ID
		gameID := game.ID
		s.tm.Start(ports.ContinueConfirmationTimer, ports.TimerKey{GameID: gameID, PlayerID: playerID}, s.cfg.ContinueConfirmation, func() {
			s.onContinueConfirmationTimeout(gameID, playerID)
		})
	}
	if anyPending {
		s.uc.Persist(ctx, flagged)
		return
	}

	gameID := game.ID
	s.tm.Start(ports.DisplayTimer, ports.TimerKey{GameID: gameID}, s.cfg.Display, func() {
		s.DealNextRoundIfReady(context.Background(), gameID)
	})
}

func (s *Service) onContinueConfirmationTimeout(gameID, playerID string) {
	if err := s.uc.ConfirmContinue(context.Background(), usecase.ConfirmContinueInput{
		GameID: gameID, PlayerID: playerID, Continue: false,
	}); err != nil {
		s.log.Warnf("continue-confirmation timeout handling failed (game=%s player=%s): %v", gameID, playerID, err)
	}
}

// DealNextRoundIfReady implements usecase.Scheduler: deals the next round
// (or finishes the game on forfeit) once gameID has no more pending
// continue-confirmations.
func (s *Service) DealNextRoundIfReady(ctx context.Context, gameID string) {
	game, ok := s.uc.Store.Get(gameID)
	if !ok || game.Status != cardgame.StatusInProgress {
		return
	}
	if len(game.PendingContinueConfirmations) > 0 {
		return
	}

	if game.HasLeftOrDisconnectedPlayer() {
		finished := game.FinishForfeit(s.uc.Now())
		s.uc.Persist(ctx, finished)
		s.tm.ClearAllForGame(gameID)
		s.uc.PublishBroadcast(ctx, gameID, "", eventpayload.GameFinishedPayload{
			GameID: gameID, WinnerID: finished.WinnerID, Reason: finished.FinishReason, CumulativeScores: finished.CumulativeScores,
		})
		s.uc.ReleaseOpponentBus(gameID)
		s.uc.RecordGameStats(ctx, finished)
		return
	}

	dealerID := game.NextDealerID()
	dealt, outcome := s.uc.DealNextRound(game, dealerID)
	s.uc.Persist(ctx, dealt)

	var instantEnd *eventpayload.RoundEndedPayload
	if outcome.Kind == cardgame.DealInstantEnd {
		instantEnd = usecase.RoundEndedPayloadFrom(dealt, *outcome.RoundEnded)
	}
	s.uc.PublishRoundDealt(ctx, dealt, instantEnd)

	if outcome.Kind == cardgame.DealInstantEnd {
		s.PublishRoundEndedAlreadyApplied(ctx, dealt, *outcome.RoundEnded)
	} else {
		s.ArmNext(ctx, dealt)
	}
}

// OnSubscribe marks playerID connected and clears its disconnect timer,
// called by internal/httpapi when an SSE stream attaches.
func (s *Service) OnSubscribe(ctx context.Context, gameID, playerID string) {
	s.tm.Clear(ports.DisconnectTimer, ports.TimerKey{GameID: gameID, PlayerID: playerID})
	game, ok := s.uc.Store.Get(gameID)
	if !ok || game.ConnectionStatuses[playerID] == cardgame.Connected {
		return
	}
	updated := game.SetConnectionStatus(playerID, cardgame.Connected)
	s.uc.Persist(ctx, updated)
}

// OnUnsubscribe marks playerID disconnected and starts its disconnect
// grace-period timer, called by internal/httpapi when an SSE stream closes.
// If the grace period elapses without a reconnect, the player is marked
// LEFT via LeaveGame.
func (s *Service) OnUnsubscribe(ctx context.Context, gameID, playerID string, disconnectTimeout time.Duration) {
	game, ok := s.uc.Store.Get(gameID)
	if !ok || game.ConnectionStatuses[playerID] == cardgame.Left {
		return
	}
	updated := game.SetConnectionStatus(playerID, cardgame.Disconnected)
	s.uc.Persist(ctx, updated)
	if updated.CurrentRound != nil && updated.CurrentRound.ActivePlayerID == playerID {
		s.ArmNext(ctx, updated)
	}
	s.tm.Start(ports.DisconnectTimer, ports.TimerKey{GameID: gameID, PlayerID: playerID}, disconnectTimeout, func() {
		if err := s.uc.LeaveGame(context.Background(), usecase.LeaveGameInput{GameID: gameID, PlayerID: playerID}); err != nil {
			s.log.Warnf("disconnect-grace leave failed (game=%s player=%s): %v", gameID, playerID, err)
		}
	})
}
