package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/gameerr"
)

// AutoAction plays the active player's turn on their behalf: the first
// legal hand card in AWAITING_HAND_PLAY, the first listed target in
// AWAITING_SELECTION, or END_ROUND in AWAITING_DECISION; never KOI_KOI,
// which would gamble an absent player's already-formed yaku. The turn-flow
// service invokes this when a player's action timer expires, whether they
// are merely slow, disconnected, or LEFT.
func (it *Interactors) AutoAction(ctx context.Context, gameID, playerID string) error {
	it.logCommand(ctx, gameID, playerID, "AutoAction", map[string]string{"player_id": playerID})

	heldCtx, release, err := it.Lock.Acquire(ctx, gameID)
	if err != nil {
		return gameerr.Wrap(gameerr.CodeInternal, "failed to acquire game lock", err)
	}
	defer release()
	ctx = heldCtx

	game, err := it.loadGame(gameID)
	if err != nil {
		return err
	}
	if err := requireInProgress(game); err != nil {
		return err
	}
	round := game.CurrentRound
	if round.ActivePlayerID != playerID {
		// Stale timer: the player already acted before this fired.
		return nil
	}

	var newRound *cardgame.Round
	var result cardgame.TransitionResult
	var derr error

	switch round.FlowState {
	case cardgame.AwaitingHandPlay:
		legal := cardgame.LegalHandCards(round)
		if len(legal) == 0 {
			return gameerr.Newf(gameerr.CodeInternal, "no legal hand card for %s in game %s", playerID, gameID)
		}
		newRound, result, derr = cardgame.PlayHandCard(round, playerID, legal[0], it.Ruleset.YakuPoints)
	case cardgame.AwaitingSelection:
		ps := round.PendingSelection
		if ps == nil || len(ps.PossibleTargets) == 0 {
			return gameerr.Newf(gameerr.CodeInternal, "no pending selection for %s in game %s", playerID, gameID)
		}
		newRound, result, derr = cardgame.SelectTarget(round, playerID, ps.SourceCard, ps.PossibleTargets[0], it.Ruleset.YakuPoints)
	case cardgame.AwaitingDecision:
		newRound, result, derr = cardgame.HandleDecision(round, playerID, cardgame.DecisionEndRound, it.Ruleset.YakuPoints)
	default:
		return nil
	}
	if derr != nil {
		return translateDomainError(derr)
	}

	updated := it.withRound(game, newRound)
	it.scheduler.NoteAutoAction(gameID, playerID)
	it.dispatchTransition(ctx, updated, result)
	return nil
}
