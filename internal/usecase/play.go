package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/gameerr"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// PlayHandCardInput is the command payload for PlayHandCard.
type PlayHandCardInput struct {
	GameID   string
	PlayerID string
	Card     cardgame.Card
}

// PlayHandCard plays a card from playerID's hand, following the common
// command prelude: log, lock, clear the action timer, load, validate,
// delegate to the domain, publish, persist, arm the next timeout.
func (it *Interactors) PlayHandCard(ctx context.Context, in PlayHandCardInput) error {
	it.logCommand(ctx, in.GameID, in.PlayerID, "PlayHandCard", in)

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

	newRound, result, derr := cardgame.PlayHandCard(game.CurrentRound, in.PlayerID, in.Card, it.Ruleset.YakuPoints)
	if derr != nil {
		return translateDomainError(derr)
	}

	updated := it.withRound(game, newRound)
	it.scheduler.NoteManualAction(in.GameID, in.PlayerID)
	it.dispatchTransition(ctx, updated, result)
	return nil
}
