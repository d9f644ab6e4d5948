// Package eventpayload defines the flat, JSON-tagged payload for every SSE
// event type, as a Kind()-discriminated union rather than a hierarchy.
package eventpayload

import "github.com/vctt94/koikoisrv/internal/cardgame"

// Kind names one SSE event type.
type Kind string

const (
	KindInitialState               Kind = "InitialState"
	KindRoomCreated                Kind = "RoomCreated"
	KindGameStarted                Kind = "GameStarted"
	KindRoundDealt                 Kind = "RoundDealt"
	KindTurnCompleted              Kind = "TurnCompleted"
	KindSelectionRequired          Kind = "SelectionRequired"
	KindTurnProgressAfterSelection Kind = "TurnProgressAfterSelection"
	KindDecisionRequired           Kind = "DecisionRequired"
	KindDecisionMade               Kind = "DecisionMade"
	KindRoundEnded                 Kind = "RoundEnded"
	KindGameFinished               Kind = "GameFinished"
	KindGameSnapshotRestore        Kind = "GameSnapshotRestore"
)

// Payload is implemented by every event payload so callers that only need
// the discriminator don't have to switch on the concrete type.
type Payload interface {
	Kind() Kind
}

// NextState is the nested record every post-turn event carries in common:
// the flow state the round moved to and whose input it now awaits.
type NextState struct {
	FlowState      cardgame.FlowState `json:"flow_state"`
	ActivePlayerID string             `json:"active_player_id"`
}

// ScoreMultipliers is the descriptor the turn-flow service builds for
// publication.
type ScoreMultipliers struct {
	PlayerMultipliers map[string]int `json:"player_multipliers"`
	KoiKoiApplied     bool           `json:"koi_koi_applied"`
	SevenPointApplied bool           `json:"seven_point_applied"`
}

// RoomCreatedPayload is the internal signal that a room was created with an
// AI second seat requested. It rides the opponent bus so the AI subsystem
// knows to join; no human client subscribes to the game yet when it fires,
// and it is never durably logged.
type RoomCreatedPayload struct {
	GameID   string `json:"game_id"`
	RoomType string `json:"room_type"`
}

func (RoomCreatedPayload) Kind() Kind { return KindRoomCreated }

// GameStartedPayload is emitted once both seats are filled.
type GameStartedPayload struct {
	GameID      string   `json:"game_id"`
	PlayerIDs   []string `json:"player_ids"`
	TotalRounds int      `json:"total_rounds"`
}

func (GameStartedPayload) Kind() Kind { return KindGameStarted }

// RoundDealtPayload is personalized per recipient: Hand carries the
// recipient's own cards, OpponentHandCount the opponent's card count only.
type RoundDealtPayload struct {
	RoundNumber       int             `json:"round_number"`
	DealerID          string          `json:"dealer_id"`
	Field             []cardgame.Card `json:"field_cards"`
	Hand              []cardgame.Card `json:"hand"`
	OpponentHandCount int             `json:"opponent_hand_count"`
	DeckCount         int             `json:"deck_count"`
	ActivePlayerID    string          `json:"active_player_id"`
	// InstantEnd is non-nil when the deal immediately ended the round
	// (teshi, kuttsuki).
	InstantEnd *RoundEndedPayload `json:"instant_end,omitempty"`
}

func (RoundDealtPayload) Kind() Kind { return KindRoundDealt }

// TurnCompletedPayload covers both TurnCompleted (hand-card play with 0 or 1
// field match) and TurnProgressAfterSelection (a selection resolved): two
// event_type strings over one payload family. EventType distinguishes which
// was actually emitted.
type TurnCompletedPayload struct {
	EventType       Kind            `json:"event_type"`
	PlayerID        string          `json:"player_id"`
	HandCaptured    []cardgame.Card `json:"hand_captured,omitempty"`
	HandCardToField *cardgame.Card  `json:"hand_card_to_field,omitempty"`
	DrawnCard       *cardgame.Card  `json:"drawn_card,omitempty"`
	DrawCaptured    []cardgame.Card `json:"draw_captured,omitempty"`
	DrawCardToField *cardgame.Card  `json:"draw_card_to_field,omitempty"`
	NextState       NextState       `json:"next_state"`
}

func (p TurnCompletedPayload) Kind() Kind { return p.EventType }

// SelectionRequiredPayload is emitted when a play has two or more possible
// field matches.
type SelectionRequiredPayload struct {
	PlayerID        string          `json:"player_id"`
	SourceCard      cardgame.Card   `json:"source_card"`
	PossibleTargets []cardgame.Card `json:"possible_targets"`
	NextState       NextState       `json:"next_state"`
}

func (SelectionRequiredPayload) Kind() Kind { return KindSelectionRequired }

// HeldYakuPayload is the wire shape of one formed yaku.
type HeldYakuPayload struct {
	ID    cardgame.YakuID `json:"id"`
	Score int             `json:"score"`
}

// DecisionRequiredPayload is emitted when the acting player's depository
// just formed a new yaku.
type DecisionRequiredPayload struct {
	PlayerID  string            `json:"player_id"`
	HeldYaku  []HeldYakuPayload `json:"yaku"`
	BaseScore int               `json:"base_score"`
	NextState NextState         `json:"next_state"`
}

func (DecisionRequiredPayload) Kind() Kind { return KindDecisionRequired }

// DecisionMadePayload is emitted for a KOI_KOI decision; END_ROUND instead
// produces RoundEndedPayload.
type DecisionMadePayload struct {
	PlayerID      string    `json:"player_id"`
	Decision      string    `json:"decision"`
	KoiKoiApplied bool      `json:"koi_koi_applied"`
	NextState     NextState `json:"next_state"`
}

func (DecisionMadePayload) Kind() Kind { return KindDecisionMade }

// RoundEndedPayload unifies every way a round can end (scored, drawn,
// instant-end, forfeit), discriminated by Reason.
type RoundEndedPayload struct {
	Reason           cardgame.EndReason `json:"reason"`
	WinnerID         string             `json:"winner_id,omitempty"`
	Draw             bool               `json:"draw"`
	BaseScore        int                `json:"base_score"`
	FinalScore       int                `json:"final_score"`
	Multipliers      ScoreMultipliers   `json:"multipliers"`
	RoundNumber      int                `json:"round_number"`
	CumulativeScores map[string]int     `json:"cumulative_scores"`
}

func (RoundEndedPayload) Kind() Kind { return KindRoundEnded }

// GameFinishedPayload is emitted once the game aggregate reaches FINISHED.
type GameFinishedPayload struct {
	GameID           string                    `json:"game_id"`
	WinnerID         string                    `json:"winner_id,omitempty"`
	Reason           cardgame.GameFinishReason `json:"reason"`
	CumulativeScores map[string]int            `json:"cumulative_scores"`
}

func (GameFinishedPayload) Kind() Kind { return KindGameFinished }

// PendingSelectionPayload is the wire shape of cardgame.PendingSelection for
// GameSnapshotRestore.
type PendingSelectionPayload struct {
	SourceCard      cardgame.Card   `json:"source_card"`
	PossibleTargets []cardgame.Card `json:"possible_targets"`
}

// PlayerSnapshotPayload is one side of a GameSnapshotRestore: the
// recipient's own full hand, or the opponent's hand_count only.
type PlayerSnapshotPayload struct {
	PlayerID   string                    `json:"player_id"`
	Hand       []cardgame.Card           `json:"hand,omitempty"`
	HandCount  int                       `json:"hand_count,omitempty"`
	Depository []cardgame.Card           `json:"depository"`
	HeldYaku   []HeldYakuPayload         `json:"yaku"`
	Score      int                       `json:"score"`
	Connection cardgame.ConnectionStatus `json:"connection_status"`
}

// GameSnapshotRestorePayload carries everything a reconnecting client
// needs to resume rendering mid-round.
type GameSnapshotRestorePayload struct {
	GameStatus             cardgame.GameStatus      `json:"game_status"`
	RoundNumber            int                      `json:"round_number"`
	Self                   PlayerSnapshotPayload    `json:"self"`
	Opponent               PlayerSnapshotPayload    `json:"opponent"`
	FieldCards             []cardgame.Card          `json:"field_cards"`
	DeckCount              int                      `json:"deck_count"`
	FlowState              cardgame.FlowState       `json:"flow_state"`
	ActivePlayerID         string                   `json:"active_player_id"`
	PendingSelection       *PendingSelectionPayload `json:"pending_selection,omitempty"`
	RemainingActionSeconds float64                  `json:"remaining_action_seconds"`
	CumulativeScores       map[string]int           `json:"cumulative_scores"`
}

func (GameSnapshotRestorePayload) Kind() Kind { return KindGameSnapshotRestore }

// InitialStateResponseType discriminates the five outcomes JoinGame's
// connect endpoint can produce.
type InitialStateResponseType string

const (
	ResponseGameWaiting  InitialStateResponseType = "game_waiting"
	ResponseGameStarted  InitialStateResponseType = "game_started"
	ResponseSnapshot     InitialStateResponseType = "snapshot"
	ResponseGameFinished InitialStateResponseType = "game_finished"
	ResponseGameExpired  InitialStateResponseType = "game_expired"
)

// InitialStatePayload is the first event on every new SSE connection.
// At most one of the data fields is set, selected by ResponseType:
// GameStarted for game_started, Snapshot for snapshot, GameFinished for
// game_finished; game_waiting/game_expired carry no further data.
type InitialStatePayload struct {
	ResponseType InitialStateResponseType    `json:"response_type"`
	GameID       string                      `json:"game_id"`
	GameStarted  *GameStartedPayload         `json:"game_started,omitempty"`
	Snapshot     *GameSnapshotRestorePayload `json:"snapshot,omitempty"`
	GameFinished *GameFinishedPayload        `json:"game_finished,omitempty"`
}

func (InitialStatePayload) Kind() Kind { return KindInitialState }
