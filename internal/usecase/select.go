package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// SelectTargetInput is the command payload for SelectTarget.
type SelectTargetInput struct {
	GameID     string
	PlayerID   string
	SourceCard cardgame.Card
	TargetCard cardgame.Card
}

// SelectTarget resolves an AWAITING_SELECTION ambiguity.
func (it *Interactors) SelectTarget(ctx context.Context, in SelectTargetInput) error {
	it.logCommand(ctx, in.GameID, in.PlayerID, "SelectTarget", in)

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

	newRound, result, derr := cardgame.SelectTarget(game.CurrentRound, in.PlayerID, in.SourceCard, in.TargetCard, it.Ruleset.YakuPoints)
	if derr != nil {
		return translateDomainError(derr)
	}

	updated := it.withRound(game, newRound)
	it.scheduler.NoteManualAction(in.GameID, in.PlayerID)
	it.dispatchTransition(ctx, updated, result)
	return nil
}
