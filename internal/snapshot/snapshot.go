// Package snapshot builds the reconnection payload from the live in-memory
// aggregate; snapshots are never themselves persisted.
package snapshot

import (
	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/eventpayload"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// Build assembles a GameSnapshotRestorePayload for selfID from game's
// current state. remainingActionSeconds and hasRemaining come from the
// timeout manager so a reconnecting player's timer reads as restored, not
// restarted.
func Build(game *cardgame.Game, selfID string, remainingActionSeconds float64, hasRemaining bool) eventpayload.GameSnapshotRestorePayload {
	opponentID := ""
	for _, p := range game.Players {
		if p.ID != "" && p.ID != selfID {
			opponentID = p.ID
		}
	}

	payload := eventpayload.GameSnapshotRestorePayload{
		GameStatus:       game.Status,
		RoundNumber:      game.RoundNumber,
		CumulativeScores: cloneScores(game.CumulativeScores),
	}

	round := game.CurrentRound
	if round == nil {
		payload.Self = eventpayload.PlayerSnapshotPayload{
			PlayerID:   selfID,
			Depository: nil,
			HeldYaku:   nil,
			Connection: game.ConnectionStatuses[selfID],
		}
		payload.Opponent = eventpayload.PlayerSnapshotPayload{
			PlayerID:   opponentID,
			Connection: game.ConnectionStatuses[opponentID],
		}
		return payload
	}

	points := game.Ruleset.YakuPoints
	selfDepo := round.Deposits[selfID]
	opponentDepo := round.Deposits[opponentID]

	payload.Self = eventpayload.PlayerSnapshotPayload{
		PlayerID:   selfID,
		Hand:       append([]cardgame.Card(nil), round.Hands[selfID]...),
		Depository: append([]cardgame.Card(nil), selfDepo...),
		HeldYaku:   toHeldYakuPayload(cardgame.Detect(selfDepo, points)),
		Score:      game.CumulativeScores[selfID],
		Connection: game.ConnectionStatuses[selfID],
	}
	payload.Opponent = eventpayload.PlayerSnapshotPayload{
		PlayerID:   opponentID,
		HandCount:  len(round.Hands[opponentID]),
		Depository: append([]cardgame.Card(nil), opponentDepo...),
		HeldYaku:   toHeldYakuPayload(cardgame.Detect(opponentDepo, points)),
		Score:      game.CumulativeScores[opponentID],
		Connection: game.ConnectionStatuses[opponentID],
	}

	payload.FieldCards = append([]cardgame.Card(nil), round.Field...)
	payload.DeckCount = round.Deck.Size()
	payload.FlowState = round.FlowState
	payload.ActivePlayerID = round.ActivePlayerID
	if round.PendingSelection != nil {
		payload.PendingSelection = &eventpayload.PendingSelectionPayload{
			SourceCard:      round.PendingSelection.SourceCard,
			PossibleTargets: append([]cardgame.Card(nil), round.PendingSelection.PossibleTargets...),
		}
	}
	if hasRemaining {
		payload.RemainingActionSeconds = remainingActionSeconds
	}

	return payload
}

// BuildTimeoutLookup adapts a ports.TimeoutManager into the (seconds, ok)
// pair Build wants, scoped to the active player's action timer, the one a
// reconnecting client needs to redraw its countdown.
func BuildTimeoutLookup(tm ports.TimeoutManager, gameID, activePlayerID string) (float64, bool) {
	if activePlayerID == "" {
		return 0, false
	}
	return tm.RemainingSeconds(ports.ActionTimer, ports.TimerKey{GameID: gameID, PlayerID: activePlayerID})
}

func toHeldYakuPayload(held []cardgame.HeldYaku) []eventpayload.HeldYakuPayload {
	out := make([]eventpayload.HeldYakuPayload, len(held))
	for i, h := range held {
		out[i] = eventpayload.HeldYakuPayload{ID: h.ID, Score: h.Score}
	}
	return out
}

func cloneScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}
