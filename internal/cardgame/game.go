package cardgame

import (
	"math/rand"
	"time"
)

// GameStatus is the game aggregate's top-level lifecycle state.
type GameStatus string

const (
	StatusWaiting    GameStatus = "WAITING"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusFinished   GameStatus = "FINISHED"
)

// ConnectionStatus tracks one player's presence in the game. LEFT is
// terminal: a player cannot return to CONNECTED or DISCONNECTED once LEFT.
type ConnectionStatus string

const (
	Connected    ConnectionStatus = "CONNECTED"
	Disconnected ConnectionStatus = "DISCONNECTED"
	Left         ConnectionStatus = "LEFT"
)

// GameFinishReason distinguishes a game that ran its full course from one
// ended by forfeit.
type GameFinishReason string

const (
	FinishNone         GameFinishReason = ""
	FinishCompleted    GameFinishReason = "COMPLETED"
	FinishOpponentLeft GameFinishReason = "OPPONENT_LEFT"
	// FinishMatchmakingTimeout marks a WAITING game abandoned because no
	// second player arrived in time; such a game has no winner.
	FinishMatchmakingTimeout GameFinishReason = "MATCHMAKING_TIMEOUT"
)

// Player is one seat's identity.
type Player struct {
	ID          string
	DisplayName string
	IsAI        bool
}

// Game is the aggregate root. CurrentRound is nil unless
// Status == StatusInProgress with a round currently being played; it is
// replaced, never mutated in place: DealNextRound installs a new round,
// command handlers swap in the *Round returned by the Round package-level
// functions, and ApplyRoundEnd folds a finished round's result back in.
type Game struct {
	ID      string
	Players [2]Player
	Ruleset Ruleset

	Status       GameStatus
	CurrentRound *Round
	RoundNumber  int // 1-based; 0 before the first deal
	DealerID     string

	// CumulativeScores is keyed by player id and only ever grows.
	CumulativeScores map[string]int
	RoundsPlayed     int

	ConnectionStatuses map[string]ConnectionStatus
	// PendingContinueConfirmations holds the player ids currently being
	// asked "continue?" at a round boundary.
	PendingContinueConfirmations map[string]bool

	FinishReason GameFinishReason
	WinnerID     string // set once Status == StatusFinished and not a tie

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWaitingGame creates a game with its first seat filled.
func NewWaitingGame(id string, first Player, ruleset Ruleset, now time.Time) *Game {
	return &Game{
		ID:                           id,
		Players:                      [2]Player{first},
		Ruleset:                      ruleset,
		Status:                       StatusWaiting,
		CumulativeScores:             map[string]int{first.ID: 0},
		ConnectionStatuses:           map[string]ConnectionStatus{first.ID: Connected},
		PendingContinueConfirmations: map[string]bool{},
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}
}

// Clone deep-copies the game, preserving the immutable-by-replacement
// discipline used throughout this package.
func (g *Game) Clone() *Game {
	clone := *g
	if g.CurrentRound != nil {
		clone.CurrentRound = g.CurrentRound.Clone()
	}
	clone.CumulativeScores = make(map[string]int, len(g.CumulativeScores))
	for k, v := range g.CumulativeScores {
		clone.CumulativeScores[k] = v
	}
	clone.ConnectionStatuses = make(map[string]ConnectionStatus, len(g.ConnectionStatuses))
	for k, v := range g.ConnectionStatuses {
		clone.ConnectionStatuses[k] = v
	}
	clone.PendingContinueConfirmations = make(map[string]bool, len(g.PendingContinueConfirmations))
	for k, v := range g.PendingContinueConfirmations {
		clone.PendingContinueConfirmations[k] = v
	}
	return &clone
}

// SeatedPlayerIDs returns the ids of every filled seat, in seating order.
func (g *Game) SeatedPlayerIDs() []string {
	var ids []string
	for _, p := range g.Players {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (g *Game) opponentOf(playerID string) string {
	for _, p := range g.Players {
		if p.ID != "" && p.ID != playerID {
			return p.ID
		}
	}
	return ""
}

// Seat fills the second seat and moves the game to IN_PROGRESS. The caller
// is responsible for dealing round 1 afterward with DealNextRound.
func (g *Game) Seat(second Player, now time.Time) *Game {
	clone := g.Clone()
	clone.Players[1] = second
	clone.CumulativeScores[second.ID] = 0
	clone.ConnectionStatuses[second.ID] = Connected
	clone.Status = StatusInProgress
	clone.UpdatedAt = now
	return clone
}

// DealNextRound deals the next round. For round 1, dealerID should be one
// of the two seated players; callers rotate it (the non-dealer of the
// previous round deals next) for subsequent rounds.
func (g *Game) DealNextRound(rng *rand.Rand, dealerID string, now time.Time) (*Game, DealOutcome) {
	clone := g.Clone()
	players := [2]string{g.Players[0].ID, g.Players[1].ID}
	round, outcome := DealRound(rng, dealerID, players, g.Ruleset)
	clone.CurrentRound = round
	clone.DealerID = dealerID
	clone.RoundNumber++
	clone.UpdatedAt = now
	if outcome.Kind == DealInstantEnd {
		clone.applyRoundEnd(*outcome.RoundEnded, now)
	}
	return clone, outcome
}

// applyRoundEnd folds a finished round's result into cumulative scores and
// advances or finishes the game.
// Callers (internal/turnflow) pass the TransitionResult.RoundEnded payload
// produced by PlayHandCard/SelectTarget/HandleDecision/DealRound, after
// optionally overriding Reason to OPPONENT_LEFT.
func (g *Game) applyRoundEnd(info RoundEndedInfo, now time.Time) {
	if !info.Draw && info.WinnerID != "" {
		g.CumulativeScores[info.WinnerID] += info.FinalScore
	}
	g.RoundsPlayed++
	g.CurrentRound = nil
	g.UpdatedAt = now

	leftOrGone := info.Reason == ReasonOpponentLeft
	if leftOrGone || g.RoundsPlayed >= g.Ruleset.TotalRounds {
		g.Status = StatusFinished
		g.WinnerID = g.leadingScorer()
		if leftOrGone {
			g.FinishReason = FinishOpponentLeft
		} else {
			g.FinishReason = FinishCompleted
		}
	}
}

// leadingScorer returns the player with the higher cumulative score, or
// "" if tied (a tied game has no overall winner).
func (g *Game) leadingScorer() string {
	a, b := g.Players[0].ID, g.Players[1].ID
	sa, sb := g.CumulativeScores[a], g.CumulativeScores[b]
	switch {
	case sa > sb:
		return a
	case sb > sa:
		return b
	default:
		return ""
	}
}

// ApplyRoundEnd is the exported entry point internal/turnflow uses once a
// round-ending TransitionResult comes back from a command, returning a new
// Game value with the result folded in.
func (g *Game) ApplyRoundEnd(info RoundEndedInfo, now time.Time) *Game {
	clone := g.Clone()
	clone.applyRoundEnd(info, now)
	return clone
}

// SetConnectionStatus returns a new Game with one player's connection
// status updated. Transitioning a LEFT player away from LEFT is rejected.
func (g *Game) SetConnectionStatus(playerID string, status ConnectionStatus) *Game {
	if g.ConnectionStatuses[playerID] == Left {
		return g
	}
	clone := g.Clone()
	clone.ConnectionStatuses[playerID] = status
	return clone
}

// MarkLeft records a LeaveGame command or a continue-confirmation timeout.
// It never finishes the game by itself; internal/turnflow decides that at
// the next round boundary.
func (g *Game) MarkLeft(playerID string) *Game {
	clone := g.Clone()
	clone.ConnectionStatuses[playerID] = Left
	delete(clone.PendingContinueConfirmations, playerID)
	return clone
}

// FlagPendingContinueConfirmation marks a player as needing the "continue?"
// prompt at the next round boundary.
func (g *Game) FlagPendingContinueConfirmation(playerID string) *Game {
	clone := g.Clone()
	clone.PendingContinueConfirmations[playerID] = true
	return clone
}

// ResolveContinueConfirmation clears the pending prompt for playerID.
func (g *Game) ResolveContinueConfirmation(playerID string) *Game {
	clone := g.Clone()
	delete(clone.PendingContinueConfirmations, playerID)
	return clone
}

// HasLeftOrDisconnectedPlayer reports whether either seated player has
// status LEFT or DISCONNECTED, the trigger for finishing the game with
// reason OPPONENT_LEFT at the next round boundary.
func (g *Game) HasLeftOrDisconnectedPlayer() bool {
	for _, status := range g.ConnectionStatuses {
		if status == Left || status == Disconnected {
			return true
		}
	}
	return false
}

// FinishForfeit finishes the game with reason OPPONENT_LEFT when a round
// boundary is reached while a player is LEFT or DISCONNECTED and no round
// is in play to fold a RoundEndedInfo through.
// Unlike applyRoundEnd this never increments RoundsPlayed: no round was
// played at this boundary. The remaining connected player is declared the
// winner outright; leadingScorer is only a fallback for the degenerate case
// of both players being gone at once.
func (g *Game) FinishForfeit(now time.Time) *Game {
	clone := g.Clone()
	clone.Status = StatusFinished
	clone.FinishReason = FinishOpponentLeft
	clone.CurrentRound = nil
	clone.UpdatedAt = now
	for _, p := range clone.Players {
		if p.ID == "" {
			continue
		}
		if status := clone.ConnectionStatuses[p.ID]; status != Left && status != Disconnected {
			clone.WinnerID = p.ID
			return clone
		}
	}
	clone.WinnerID = clone.leadingScorer()
	return clone
}

// NextDealerID rotates the dealer seat to the other player.
func (g *Game) NextDealerID() string {
	return g.opponentOf(g.DealerID)
}
