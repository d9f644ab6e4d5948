package cardgame

import (
	"errors"
	"math/rand"
)

// FlowState is the round's sub-state machine.
type FlowState string

const (
	AwaitingHandPlay  FlowState = "AWAITING_HAND_PLAY"
	AwaitingSelection FlowState = "AWAITING_SELECTION"
	AwaitingDecision  FlowState = "AWAITING_DECISION"
	RoundEnded        FlowState = "ROUND_ENDED"
)

// EndReason names why a round ended. The
// OPPONENT_LEFT variant is never produced here (this package has no
// concept of player connection status); it is applied by internal/turnflow
// when a round that would otherwise end SCORED or DRAW involves a player
// who has left or disconnected.
type EndReason string

const (
	ReasonScored          EndReason = "SCORED"
	ReasonDraw            EndReason = "DRAW"
	ReasonInstantTeshi    EndReason = "INSTANT_TESHI"
	ReasonInstantKuttsuki EndReason = "INSTANT_KUTTSUKI"
	// ReasonOpponentLeft is never produced by this package; internal/turnflow
	// stamps it onto a RoundEndedInfo that would otherwise read SCORED or
	// DRAW when the round involved a LEFT or DISCONNECTED player.
	ReasonOpponentLeft EndReason = "OPPONENT_LEFT"
)

// KoiStatus tracks one player's continue declarations within the current
// round.
type KoiStatus struct {
	TimesContinued int
}

// PendingSelection records an in-flight ambiguous match.
type PendingSelection struct {
	SourceCard      Card
	PossibleTargets []Card
	// FromHandPlay is true when SourceCard came from the player's hand (so
	// resolving the selection must still run the draw phase); false when it
	// came from the flipped deck card (so resolving it completes the turn).
	FromHandPlay bool
}

// Ruleset is the configuration the domain layer consults: how many rounds
// make a game, the special-rules toggles and instant-end bonus, and the
// yaku point table. internal/config
// builds this from flags/environment and hands it down unchanged.
type Ruleset struct {
	TotalRounds       int
	InstantEndBonus   int
	TeshiEnabled      bool
	KuttsukiEnabled   bool
	FieldTeshiEnabled bool
	YakuPoints        map[string]int
}

// Round is the per-deal aggregate. Every exported function in
// this file treats Round as immutable: each takes a *Round and returns a
// freshly cloned *Round reflecting the transition, never mutating its
// argument. Card identity (not index) is how the domain addresses cards,
// matching how the HTTP layer and event payloads carry them.
type Round struct {
	DealerID  string
	Players   [2]string
	Field     []Card
	Deck      *Deck
	Hands     map[string][]Card
	Deposits  map[string][]Card
	FlowState FlowState

	ActivePlayerID string

	KoiStatuses   map[string]*KoiStatus
	KoiKoiApplied bool

	PendingSelection *PendingSelection

	Ended     bool
	EndReason EndReason
	WinnerID  string // empty when Draw
	Draw      bool
	BaseScore int
	// FinalScore is the round's scored total after multipliers, credited to
	// WinnerID, for an END_ROUND finish. Zero for a draw (including
	// Kuttsuki); for Teshi it equals the fixed bonus, also held in BaseScore.
	FinalScore int
}

var (
	ErrWrongPlayer        = errors.New("cardgame: wrong player")
	ErrInvalidState       = errors.New("cardgame: invalid flow state for this action")
	ErrCardNotInHand      = errors.New("cardgame: card not in hand")
	ErrInvalidSelection   = errors.New("cardgame: target is not a valid selection")
	ErrNoPendingSelection = errors.New("cardgame: no pending selection")
)

func otherPlayer(players [2]string, playerID string) string {
	if players[0] == playerID {
		return players[1]
	}
	return players[0]
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the argument.
func (r *Round) Clone() *Round {
	clone := *r
	clone.Field = append([]Card(nil), r.Field...)
	clone.Deck = r.Deck.Clone()

	clone.Hands = make(map[string][]Card, len(r.Hands))
	for k, v := range r.Hands {
		clone.Hands[k] = append([]Card(nil), v...)
	}
	clone.Deposits = make(map[string][]Card, len(r.Deposits))
	for k, v := range r.Deposits {
		clone.Deposits[k] = append([]Card(nil), v...)
	}
	clone.KoiStatuses = make(map[string]*KoiStatus, len(r.KoiStatuses))
	for k, v := range r.KoiStatuses {
		cp := *v
		clone.KoiStatuses[k] = &cp
	}
	if r.PendingSelection != nil {
		ps := *r.PendingSelection
		ps.PossibleTargets = append([]Card(nil), r.PendingSelection.PossibleTargets...)
		clone.PendingSelection = &ps
	}
	return &clone
}

// TotalCards returns the card count across every zone the conservation
// invariant must sum to 48.
func (r *Round) TotalCards() int {
	n := len(r.Field) + r.Deck.Size()
	for _, h := range r.Hands {
		n += len(h)
	}
	for _, d := range r.Deposits {
		n += len(d)
	}
	if r.PendingSelection != nil {
		n++ // the source card is held aside, out of hand/field/deposit
	}
	return n
}

func fieldMatches(field []Card, card Card) []Card {
	var matches []Card
	for _, f := range field {
		if f.Matches(card) {
			matches = append(matches, f)
		}
	}
	return matches
}

func removeCard(cards []Card, target Card) []Card {
	out := make([]Card, 0, len(cards))
	removed := false
	for _, c := range cards {
		if !removed && c == target {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}

func removeHandCard(hands map[string][]Card, playerID string, target Card) bool {
	hand := hands[playerID]
	for i, c := range hand {
		if c == target {
			hands[playerID] = append(append([]Card(nil), hand[:i]...), hand[i+1:]...)
			return true
		}
	}
	return false
}

// handsEmpty reports whether neither player has a hand card left.
func (r *Round) handsEmpty() bool {
	return len(r.Hands[r.Players[0]]) == 0 && len(r.Hands[r.Players[1]]) == 0
}

// DealOutcomeKind distinguishes a normal deal from an instant end.
type DealOutcomeKind int

const (
	DealNormal DealOutcomeKind = iota
	DealInstantEnd
)

// DealOutcome is the result of DealRound.
type DealOutcome struct {
	Kind       DealOutcomeKind
	RoundEnded *RoundEndedInfo // set when Kind == DealInstantEnd
}

// DealRound shuffles a fresh deck, deals the field and both hands, and
// applies the instant-end rules before the first play, in the order:
// field-teshi (mutates the field, does not end the round), then teshi (ends
// the round for whichever player holds it), then kuttsuki (ends the round
// as a draw).
func DealRound(rng *rand.Rand, dealerID string, players [2]string, rules Ruleset) (*Round, DealOutcome) {
	deck := NewShuffledDeck(rng)

	field := deck.DrawN(8)
	hands := map[string][]Card{
		players[0]: deck.DrawN(8),
		players[1]: deck.DrawN(8),
	}
	deposits := map[string][]Card{
		players[0]: nil,
		players[1]: nil,
	}

	r := &Round{
		DealerID:       dealerID,
		Players:        players,
		Field:          field,
		Deck:           deck,
		Hands:          hands,
		Deposits:       deposits,
		FlowState:      AwaitingHandPlay,
		ActivePlayerID: otherPlayer(players, dealerID),
		KoiStatuses: map[string]*KoiStatus{
			players[0]: {},
			players[1]: {},
		},
	}

	if rules.FieldTeshiEnabled {
		applyFieldTeshi(r)
	}

	if rules.TeshiEnabled {
		if winner, ok := detectTeshi(r); ok {
			r.Ended = true
			r.FlowState = RoundEnded
			r.EndReason = ReasonInstantTeshi
			r.WinnerID = winner
			r.BaseScore = rules.InstantEndBonus
			r.FinalScore = rules.InstantEndBonus
			return r, DealOutcome{Kind: DealInstantEnd, RoundEnded: &RoundEndedInfo{
				Reason: ReasonInstantTeshi, WinnerID: winner, BaseScore: rules.InstantEndBonus,
				FinalScore: rules.InstantEndBonus, Multiplier: 1,
			}}
		}
	}

	if rules.KuttsukiEnabled && detectKuttsuki(r) {
		r.Ended = true
		r.FlowState = RoundEnded
		r.EndReason = ReasonInstantKuttsuki
		r.Draw = true
		return r, DealOutcome{Kind: DealInstantEnd, RoundEnded: &RoundEndedInfo{
			Reason: ReasonInstantKuttsuki, Draw: true,
		}}
	}

	return r, DealOutcome{Kind: DealNormal}
}

func monthCounts(cards []Card) map[int]int {
	counts := make(map[int]int)
	for _, c := range cards {
		counts[c.Month]++
	}
	return counts
}

// applyFieldTeshi transfers all four cards of a month to the dealer's
// depository when the field happens to contain them all. The eight-card
// field can hold two complete months; both are transferred.
func applyFieldTeshi(r *Round) {
	for month, count := range monthCounts(r.Field) {
		if count != 4 {
			continue
		}
		var kept []Card
		for _, c := range r.Field {
			if c.Month == month {
				r.Deposits[r.DealerID] = append(r.Deposits[r.DealerID], c)
			} else {
				kept = append(kept, c)
			}
		}
		r.Field = kept
	}
}

func detectTeshi(r *Round) (winner string, ok bool) {
	for _, p := range r.Players {
		for _, count := range monthCounts(r.Hands[p]) {
			if count == 4 {
				return p, true
			}
		}
	}
	return "", false
}

func detectKuttsuki(r *Round) bool {
	pairs := 0
	for _, count := range monthCounts(r.Field) {
		if count == 2 {
			pairs++
		}
	}
	return pairs >= 2
}

// Outcome discriminates the kind of TransitionResult a command produced.
type Outcome int

const (
	OutcomeTurnCompleted Outcome = iota
	OutcomeTurnProgressAfterSelection
	OutcomeSelectionRequired
	OutcomeDecisionRequired
	OutcomeDecisionMade
	OutcomeRoundEnded
)

// TurnCompletedInfo is emitted after a hand play resolves without
// ambiguity and without forming a new yaku.
type TurnCompletedInfo struct {
	PlayerID           string
	HandCaptured       []Card // nil if the hand card went to the field
	HandCardToField    *Card
	DrawnCard          *Card // nil if the deck was empty
	DrawCaptured       []Card
	DrawCardToField    *Card
	NextActivePlayerID string
}

// SelectionRequiredInfo is emitted when a play has two or more possible
// field matches.
type SelectionRequiredInfo struct {
	PlayerID        string
	SourceCard      Card
	PossibleTargets []Card
}

// DecisionRequiredInfo is emitted when the acting player's captured pile
// just formed a new yaku.
type DecisionRequiredInfo struct {
	PlayerID  string
	HeldYaku  []HeldYaku
	BaseScore int
}

// DecisionMadeInfo is emitted for a KOI_KOI decision; an END_ROUND
// decision instead produces a RoundEndedInfo.
type DecisionMadeInfo struct {
	PlayerID           string
	Decision           string
	KoiKoiApplied      bool
	NextActivePlayerID string
}

// RoundEndedInfo is emitted for every way a round can end.
type RoundEndedInfo struct {
	Reason        EndReason
	WinnerID      string // empty when Draw
	Draw          bool
	BaseScore     int
	FinalScore    int
	Multiplier    int
	KoiKoiApplied bool
}

// TransitionResult is the uniform return shape of every Round operation:
// exactly one of the embedded *Info fields is non-nil, matching Outcome.
type TransitionResult struct {
	Outcome           Outcome
	TurnCompleted     *TurnCompletedInfo
	SelectionRequired *SelectionRequiredInfo
	DecisionRequired  *DecisionRequiredInfo
	DecisionMade      *DecisionMadeInfo
	RoundEnded        *RoundEndedInfo
}

// PlayHandCard validates and applies a hand-card play.
func PlayHandCard(round *Round, playerID string, handCard Card, points map[string]int) (*Round, TransitionResult, error) {
	if playerID != round.ActivePlayerID {
		return nil, TransitionResult{}, ErrWrongPlayer
	}
	if round.FlowState != AwaitingHandPlay {
		return nil, TransitionResult{}, ErrInvalidState
	}

	r := round.Clone()
	if !removeHandCard(r.Hands, playerID, handCard) {
		return nil, TransitionResult{}, ErrCardNotInHand
	}

	matches := fieldMatches(r.Field, handCard)
	switch len(matches) {
	case 0:
		r.Field = append(r.Field, handCard)
		return runDrawPhase(r, playerID, nil, &handCard, points, OutcomeTurnCompleted)
	case 1:
		r.Field = removeCard(r.Field, matches[0])
		r.Deposits[playerID] = append(r.Deposits[playerID], handCard, matches[0])
		return runDrawPhase(r, playerID, []Card{handCard, matches[0]}, nil, points, OutcomeTurnCompleted)
	default:
		r.PendingSelection = &PendingSelection{SourceCard: handCard, PossibleTargets: matches, FromHandPlay: true}
		r.FlowState = AwaitingSelection
		return r, TransitionResult{
			Outcome:           OutcomeSelectionRequired,
			SelectionRequired: &SelectionRequiredInfo{PlayerID: playerID, SourceCard: handCard, PossibleTargets: matches},
		}, nil
	}
}

// runDrawPhase flips the top deck card and resolves its matches, then hands
// off to finalizeTurn. handCaptured/handCardToField carry whatever the hand
// phase already committed so the eventual TurnCompletedInfo reports both
// phases together. completionOutcome is OutcomeTurnCompleted when called
// from PlayHandCard directly, or OutcomeTurnProgressAfterSelection when
// called after resolving a hand-card selection.
func runDrawPhase(r *Round, playerID string, handCaptured []Card, handCardToField *Card, points map[string]int, completionOutcome Outcome) (*Round, TransitionResult, error) {
	drawn, ok := r.Deck.Draw()
	if !ok {
		return finalizeTurn(r, playerID, handCaptured, handCardToField, nil, nil, nil, points, completionOutcome)
	}

	matches := fieldMatches(r.Field, drawn)
	switch len(matches) {
	case 0:
		r.Field = append(r.Field, drawn)
		return finalizeTurn(r, playerID, handCaptured, handCardToField, &drawn, nil, &drawn, points, completionOutcome)
	case 1:
		r.Field = removeCard(r.Field, matches[0])
		r.Deposits[playerID] = append(r.Deposits[playerID], drawn, matches[0])
		drawCaptured := []Card{drawn, matches[0]}
		return finalizeTurn(r, playerID, handCaptured, handCardToField, &drawn, drawCaptured, nil, points, completionOutcome)
	default:
		r.PendingSelection = &PendingSelection{SourceCard: drawn, PossibleTargets: matches, FromHandPlay: false}
		r.FlowState = AwaitingSelection
		return r, TransitionResult{
			Outcome:           OutcomeSelectionRequired,
			SelectionRequired: &SelectionRequiredInfo{PlayerID: playerID, SourceCard: drawn, PossibleTargets: matches},
		}, nil
	}
}

// finalizeTurn runs yaku detection over everything captured this turn,
// branching to AWAITING_DECISION, a round-ending draw, or the plain
// turn-completed/turn-progress outcome.
func finalizeTurn(r *Round, playerID string, handCaptured []Card, handCardToField *Card, drawnCard *Card, drawCaptured []Card, drawCardToField *Card, points map[string]int, completionOutcome Outcome) (*Round, TransitionResult, error) {
	totalCaptured := len(handCaptured) + len(drawCaptured)

	if totalCaptured > 0 {
		pile := r.Deposits[playerID]
		prevPile := pile[:len(pile)-totalCaptured]
		prevHeld := Detect(prevPile, points)
		newHeld := Detect(pile, points)
		if StrictlyExtends(HeldSet(prevHeld), HeldSet(newHeld)) {
			r.FlowState = AwaitingDecision
			return r, TransitionResult{
				Outcome:          OutcomeDecisionRequired,
				DecisionRequired: &DecisionRequiredInfo{PlayerID: playerID, HeldYaku: newHeld, BaseScore: TotalScore(newHeld)},
			}, nil
		}
	}

	if r.handsEmpty() {
		r.Ended = true
		r.Draw = true
		r.FlowState = RoundEnded
		r.EndReason = ReasonDraw
		return r, TransitionResult{
			Outcome:    OutcomeRoundEnded,
			RoundEnded: &RoundEndedInfo{Reason: ReasonDraw, Draw: true},
		}, nil
	}

	next := otherPlayer(r.Players, playerID)
	r.ActivePlayerID = next
	r.FlowState = AwaitingHandPlay
	return r, TransitionResult{
		Outcome: completionOutcome,
		TurnCompleted: &TurnCompletedInfo{
			PlayerID:           playerID,
			HandCaptured:       handCaptured,
			HandCardToField:    handCardToField,
			DrawnCard:          drawnCard,
			DrawCaptured:       drawCaptured,
			DrawCardToField:    drawCardToField,
			NextActivePlayerID: next,
		},
	}, nil
}

// SelectTarget resolves an AWAITING_SELECTION.
func SelectTarget(round *Round, playerID string, sourceCard, targetCard Card, points map[string]int) (*Round, TransitionResult, error) {
	if playerID != round.ActivePlayerID {
		return nil, TransitionResult{}, ErrWrongPlayer
	}
	if round.FlowState != AwaitingSelection || round.PendingSelection == nil {
		return nil, TransitionResult{}, ErrNoPendingSelection
	}
	ps := round.PendingSelection
	if ps.SourceCard != sourceCard {
		return nil, TransitionResult{}, ErrInvalidSelection
	}
	validTarget := false
	for _, t := range ps.PossibleTargets {
		if t == targetCard {
			validTarget = true
			break
		}
	}
	if !validTarget {
		return nil, TransitionResult{}, ErrInvalidSelection
	}

	r := round.Clone()
	r.Field = removeCard(r.Field, targetCard)
	r.Deposits[playerID] = append(r.Deposits[playerID], ps.SourceCard, targetCard)
	fromHandPlay := ps.FromHandPlay
	r.PendingSelection = nil
	r.FlowState = AwaitingHandPlay

	captured := []Card{ps.SourceCard, targetCard}
	if fromHandPlay {
		return runDrawPhase(r, playerID, captured, nil, points, OutcomeTurnProgressAfterSelection)
	}
	return finalizeTurn(r, playerID, nil, nil, &ps.SourceCard, captured, nil, points, OutcomeTurnProgressAfterSelection)
}

// Decision is the player's choice in AWAITING_DECISION.
type Decision string

const (
	DecisionKoiKoi   Decision = "KOI_KOI"
	DecisionEndRound Decision = "END_ROUND"
)

// HandleDecision applies a KOI_KOI or END_ROUND decision.
func HandleDecision(round *Round, playerID string, decision Decision, points map[string]int) (*Round, TransitionResult, error) {
	if playerID != round.ActivePlayerID {
		return nil, TransitionResult{}, ErrWrongPlayer
	}
	if round.FlowState != AwaitingDecision {
		return nil, TransitionResult{}, ErrInvalidState
	}

	r := round.Clone()

	switch decision {
	case DecisionKoiKoi:
		r.KoiStatuses[playerID].TimesContinued++
		r.KoiKoiApplied = true
		next := otherPlayer(r.Players, playerID)
		r.ActivePlayerID = next

		if r.handsEmpty() {
			r.Ended = true
			r.Draw = true
			r.FlowState = RoundEnded
			r.EndReason = ReasonDraw
			return r, TransitionResult{
				Outcome:    OutcomeRoundEnded,
				RoundEnded: &RoundEndedInfo{Reason: ReasonDraw, Draw: true, KoiKoiApplied: true},
			}, nil
		}

		r.FlowState = AwaitingHandPlay
		return r, TransitionResult{
			Outcome: OutcomeDecisionMade,
			DecisionMade: &DecisionMadeInfo{
				PlayerID: playerID, Decision: string(DecisionKoiKoi), KoiKoiApplied: true, NextActivePlayerID: next,
			},
		}, nil

	case DecisionEndRound:
		held := Detect(r.Deposits[playerID], points)
		base := TotalScore(held)
		multiplier := 1
		if r.KoiKoiApplied {
			multiplier *= 2
		}
		if base >= 7 {
			multiplier *= 2
		}
		final := base * multiplier

		r.Ended = true
		r.FlowState = RoundEnded
		r.EndReason = ReasonScored
		r.WinnerID = playerID
		r.BaseScore = base
		r.FinalScore = final
		return r, TransitionResult{
			Outcome: OutcomeRoundEnded,
			RoundEnded: &RoundEndedInfo{
				Reason: ReasonScored, WinnerID: playerID, BaseScore: base, FinalScore: final,
				Multiplier: multiplier, KoiKoiApplied: r.KoiKoiApplied,
			},
		}, nil

	default:
		return nil, TransitionResult{}, ErrInvalidSelection
	}
}

// LegalHandCards returns the active player's playable hand cards, in hand
// order, for the auto-action use case, which always plays the first one.
func LegalHandCards(round *Round) []Card {
	return append([]Card(nil), round.Hands[round.ActivePlayerID]...)
}
