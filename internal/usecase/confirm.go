package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// ConfirmContinueInput is the answer to the "continue?" prompt an idle
// player receives at a round boundary.
type ConfirmContinueInput struct {
	GameID   string
	PlayerID string
	Continue bool
}

// ConfirmContinue resolves a pending continue-confirmation prompt.
// Declining is treated exactly like LeaveGame.
func (it *Interactors) ConfirmContinue(ctx context.Context, in ConfirmContinueInput) error {
	it.logCommand(ctx, in.GameID, in.PlayerID, "ConfirmContinue", in)

	heldCtx, release, err := it.Lock.Acquire(ctx, in.GameID)
	if err != nil {
		return gameerr.Wrap(gameerr.CodeInternal, "failed to acquire game lock", err)
	}
	defer release()
	ctx = heldCtx

	game, err := it.loadGame(in.GameID)
	if err != nil {
		return err
	}
	if err := requirePlayerInGame(game, in.PlayerID); err != nil {
		return err
	}
	if !game.PendingContinueConfirmations[in.PlayerID] {
		return gameerr.Newf(gameerr.CodeConfirmationNotNeeded, "player %s has no pending continue confirmation", in.PlayerID)
	}

	it.Timeouts.Clear(ports.ContinueConfirmationTimer, keyFor(in.GameID, in.PlayerID))

	if !in.Continue {
		updated := game.MarkLeft(in.PlayerID)
		updated.UpdatedAt = it.now()
		it.persist(ctx, updated)
		it.scheduler.NoteManualAction(in.GameID, in.PlayerID)
		it.scheduler.DealNextRoundIfReady(ctx, in.GameID)
		return nil
	}

	updated := game.ResolveContinueConfirmation(in.PlayerID)
	updated.UpdatedAt = it.now()
	it.persist(ctx, updated)
	it.scheduler.NoteManualAction(in.GameID, in.PlayerID)
	it.scheduler.DealNextRoundIfReady(ctx, in.GameID)
	return nil
}
