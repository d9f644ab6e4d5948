package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/gameerr"
)

// LeaveGameInput is the command payload for LeaveGame.
type LeaveGameInput struct {
	GameID   string
	PlayerID string
}

// LeaveGame marks playerID LEFT, which is terminal within this game. It
// does not finish the game itself: the turn-flow service auto-serves the
// left player's turns and finishes the game at the next round boundary.
func (it *Interactors) LeaveGame(ctx context.Context, in LeaveGameInput) error {
	it.logCommand(ctx, in.GameID, in.PlayerID, "LeaveGame", in)

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

	updated := game.MarkLeft(in.PlayerID)
	updated.UpdatedAt = it.now()
	it.persist(ctx, updated)

	if updated.CurrentRound != nil {
		it.scheduler.ArmNext(ctx, updated)
	}
	return nil
}
