package usecase

import (
	"context"

	"github.com/vctt94/koikoisrv/internal/cardgame"
)

// RecordGameStats is invoked once a game reaches FINISHED. The final
// summary is already durable (persist runs on every command); this logs the
// outcome and is the extension point a leaderboard consumer would replace,
// without ever blocking the finishing command.
func (it *Interactors) RecordGameStats(ctx context.Context, game *cardgame.Game) {
	it.Log.Infof("game finished (game=%s reason=%s winner=%q rounds=%d scores=%v)",
		game.ID, game.FinishReason, game.WinnerID, game.RoundsPlayed, game.CumulativeScores)
}
