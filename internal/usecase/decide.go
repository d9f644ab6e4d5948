package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// MakeDecisionInput is the command payload for MakeDecision.
type MakeDecisionInput struct {
	GameID   string
	PlayerID string
	Decision cardgame.Decision
}

// MakeDecision applies a KOI_KOI or END_ROUND decision in
// AWAITING_DECISION.
func (it *Interactors) MakeDecision(ctx context.Context, in MakeDecisionInput) error {
	it.logCommand(ctx, in.GameID, in.PlayerID, "MakeDecision", in)

	heldCtx, release, err := it.Lock.Acquire(ctx, in.GameID)
	if err != nil {
		return gameerr.Wrap(gameerr.CodeInternal, "failed to acquire game lock", err)
	}
	defer release()
	ctx = heldCtx

	it.Timeouts.Clear(ports.ActionTimer, keyFor(in.GameID, in.PlayerID))

	game, err := it.loadGame(in.GameID)
	if err != nil {
		return err
	}
	if err := requirePlayerInGame(game, in.PlayerID); err != nil {
		return err
	}
	if err := requireInProgress(game); err != nil {
		return err
	}
	if game.CurrentRound.ActivePlayerID != in.PlayerID {
		return gameerr.Newf(gameerr.CodeWrongPlayer, "it is not %s's turn", in.PlayerID)
	}

	newRound, result, derr := cardgame.HandleDecision(game.CurrentRound, in.PlayerID, in.Decision, it.Ruleset.YakuPoints)
	if derr != nil {
		return translateDomainError(derr)
	}

	updated := it.withRound(game, newRound)
	it.scheduler.NoteManualAction(in.GameID, in.PlayerID)

	// A decision that ends the round still announces itself first: clients
	// see DecisionMade, then RoundEnded.
	if result.Outcome == cardgame.OutcomeRoundEnded {
		it.publishDecisionMade(ctx, updated, &cardgame.DecisionMadeInfo{
			PlayerID:      in.PlayerID,
			Decision:      string(in.Decision),
			KoiKoiApplied: newRound.KoiKoiApplied,
		})
	}
	it.dispatchTransition(ctx, updated, result)
	return nil
}
