package cardgame

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRound(dealer string, players [2]string, field []Card, hands map[string][]Card, deckCards []Card) *Round {
	deposits := map[string][]Card{players[0]: nil, players[1]: nil}
	return &Round{
		DealerID:       dealer,
		Players:        players,
		Field:          field,
		Deck:           NewDeckFromCards(deckCards),
		Hands:          hands,
		Deposits:       deposits,
		FlowState:      AwaitingHandPlay,
		ActivePlayerID: otherPlayer(players, dealer),
		KoiStatuses: map[string]*KoiStatus{
			players[0]: {},
			players[1]: {},
		},
	}
}

func TestPlayHandCardNoMatchGoesToField(t *testing.T) {
	players := [2]string{"p1", "p2"}
	hand := Card{Month: 2, Type: Ribbon, Index: 2}
	round := newTestRound("p1", players, nil, map[string][]Card{
		"p1": {{Month: 8, Type: Plain, Index: 1}},
		"p2": {hand},
	}, nil)

	next, res, err := PlayHandCard(round, "p2", hand, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeTurnCompleted, res.Outcome)
	require.Contains(t, next.Field, hand)
	require.Equal(t, "p1", next.ActivePlayerID)
}

func TestPlayHandCardSingleMatchCaptures(t *testing.T) {
	players := [2]string{"p1", "p2"}
	hand := Card{Month: 5, Type: Ribbon, Index: 2}
	fieldMatch := Card{Month: 5, Type: Plain, Index: 1}
	round := newTestRound("p1", players, []Card{fieldMatch}, map[string][]Card{
		"p1": {{Month: 8, Type: Plain, Index: 1}},
		"p2": {hand},
	}, nil)

	next, res, err := PlayHandCard(round, "p2", hand, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeTurnCompleted, res.Outcome)
	require.NotContains(t, next.Field, fieldMatch)
	require.ElementsMatch(t, []Card{hand, fieldMatch}, next.Deposits["p2"])
}

func TestPlayHandCardMultipleMatchesRequiresSelection(t *testing.T) {
	players := [2]string{"p1", "p2"}
	hand := Card{Month: 5, Type: Ribbon, Index: 2}
	m1 := Card{Month: 5, Type: Plain, Index: 1}
	m2 := Card{Month: 5, Type: Animal, Index: 1}
	round := newTestRound("p1", players, []Card{m1, m2}, map[string][]Card{
		"p1": nil,
		"p2": {hand},
	}, nil)

	next, res, err := PlayHandCard(round, "p2", hand, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeSelectionRequired, res.Outcome)
	require.Equal(t, AwaitingSelection, next.FlowState)
	require.ElementsMatch(t, []Card{m1, m2}, res.SelectionRequired.PossibleTargets)
}

func TestPlayHandCardWrongPlayerRejected(t *testing.T) {
	players := [2]string{"p1", "p2"}
	hand := Card{Month: 2, Type: Ribbon, Index: 2}
	round := newTestRound("p1", players, nil, map[string][]Card{
		"p1": {hand},
		"p2": nil,
	}, nil)

	_, _, err := PlayHandCard(round, "p1", hand, nil)
	require.ErrorIs(t, err, ErrWrongPlayer)
}

func TestPlayHandCardCardNotInHandRejected(t *testing.T) {
	players := [2]string{"p1", "p2"}
	round := newTestRound("p1", players, nil, map[string][]Card{
		"p1": nil,
		"p2": {{Month: 2, Type: Ribbon, Index: 2}},
	}, nil)

	_, _, err := PlayHandCard(round, "p2", Card{Month: 9, Type: Plain, Index: 1}, nil)
	require.ErrorIs(t, err, ErrCardNotInHand)
}

func TestSelectTargetResolvesPendingSelection(t *testing.T) {
	players := [2]string{"p1", "p2"}
	hand := Card{Month: 5, Type: Ribbon, Index: 2}
	m1 := Card{Month: 5, Type: Plain, Index: 1}
	m2 := Card{Month: 5, Type: Animal, Index: 1}
	round := newTestRound("p1", players, []Card{m1, m2}, map[string][]Card{
		"p1": {{Month: 8, Type: Plain, Index: 1}},
		"p2": {hand},
	}, nil)

	pending, res, err := PlayHandCard(round, "p2", hand, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeSelectionRequired, res.Outcome)

	resolved, res2, err := SelectTarget(pending, "p2", hand, m1, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeTurnProgressAfterSelection, res2.Outcome)
	require.Contains(t, resolved.Field, m2) // unmatched target stays on the field
	require.ElementsMatch(t, []Card{hand, m1}, resolved.Deposits["p2"])
}

func TestSelectTargetRejectsInvalidTarget(t *testing.T) {
	players := [2]string{"p1", "p2"}
	hand := Card{Month: 5, Type: Ribbon, Index: 2}
	m1 := Card{Month: 5, Type: Plain, Index: 1}
	m2 := Card{Month: 5, Type: Animal, Index: 1}
	round := newTestRound("p1", players, []Card{m1, m2}, map[string][]Card{
		"p1": nil,
		"p2": {hand},
	}, nil)
	pending, _, err := PlayHandCard(round, "p2", hand, nil)
	require.NoError(t, err)

	_, _, err = SelectTarget(pending, "p2", hand, Card{Month: 1, Type: Bright, Index: 1}, nil)
	require.ErrorIs(t, err, ErrInvalidSelection)
}

func TestHandleDecisionKoiKoiContinues(t *testing.T) {
	players := [2]string{"p1", "p2"}
	round := newTestRound("p1", players, nil, map[string][]Card{
		"p1": {{Month: 1, Type: Bright, Index: 1}},
		"p2": {{Month: 2, Type: Ribbon, Index: 2}},
	}, nil)
	round.FlowState = AwaitingDecision
	round.ActivePlayerID = "p2"

	next, res, err := HandleDecision(round, "p2", DecisionKoiKoi, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeDecisionMade, res.Outcome)
	require.True(t, next.KoiKoiApplied)
	require.Equal(t, 1, next.KoiStatuses["p2"].TimesContinued)
	require.Equal(t, "p1", next.ActivePlayerID)
	require.Equal(t, AwaitingHandPlay, next.FlowState)
}

func TestHandleDecisionEndRoundScoresAndDoublesOnKoiKoi(t *testing.T) {
	players := [2]string{"p1", "p2"}
	round := newTestRound("p1", players, nil, map[string][]Card{
		"p1": {{Month: 1, Type: Bright, Index: 1}},
		"p2": {{Month: 2, Type: Ribbon, Index: 2}},
	}, nil)
	round.FlowState = AwaitingDecision
	round.ActivePlayerID = "p2"
	round.KoiKoiApplied = true
	round.Deposits["p2"] = []Card{BoarCard, DeerCard, ButterflyCard}

	next, res, err := HandleDecision(round, "p2", DecisionEndRound, testPoints)
	require.NoError(t, err)
	require.Equal(t, OutcomeRoundEnded, res.Outcome)
	require.Equal(t, ReasonScored, next.EndReason)
	require.Equal(t, "p2", next.WinnerID)
	require.Equal(t, 5, next.BaseScore)
	require.Equal(t, 10, next.FinalScore) // koi-koi multiplier x2, base 5 < 7 so no second double
	require.Equal(t, 2, res.RoundEnded.Multiplier)
}

func TestHandleDecisionWrongFlowStateRejected(t *testing.T) {
	players := [2]string{"p1", "p2"}
	round := newTestRound("p1", players, nil, map[string][]Card{"p1": nil, "p2": nil}, nil)
	_, _, err := HandleDecision(round, "p2", DecisionKoiKoi, nil)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestDealRoundConservesCards(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	players := [2]string{"p1", "p2"}
	round, outcome := DealRound(rng, "p1", players, Ruleset{})
	require.Equal(t, DealNormal, outcome.Kind)
	require.Equal(t, 48, round.TotalCards())
	require.Len(t, round.Field, 8)
	require.Len(t, round.Hands["p1"], 8)
	require.Len(t, round.Hands["p2"], 8)
	require.Equal(t, 48-8-8-8, round.Deck.Size())
}

// TestRoundInvariantsAcrossFullRounds plays whole rounds to completion with
// first-legal moves over many seeds, checking after every transition that
// the 48-card conservation and selection/pending-state invariants hold.
func TestRoundInvariantsAcrossFullRounds(t *testing.T) {
	players := [2]string{"p1", "p2"}
	for seed := int64(0); seed < 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		round, outcome := DealRound(rng, "p1", players, Ruleset{})
		require.Equal(t, DealNormal, outcome.Kind)
		require.Equal(t, 48, round.TotalCards())

		for steps := 0; !round.Ended; steps++ {
			require.Less(t, steps, 200, "seed %d: round did not terminate", seed)

			var err error
			switch round.FlowState {
			case AwaitingHandPlay:
				legal := LegalHandCards(round)
				require.NotEmpty(t, legal)
				round, _, err = PlayHandCard(round, round.ActivePlayerID, legal[0], testPoints)
			case AwaitingSelection:
				ps := round.PendingSelection
				require.NotNil(t, ps)
				round, _, err = SelectTarget(round, round.ActivePlayerID, ps.SourceCard, ps.PossibleTargets[0], testPoints)
			case AwaitingDecision:
				round, _, err = HandleDecision(round, round.ActivePlayerID, DecisionEndRound, testPoints)
			}
			require.NoError(t, err)
			require.Equalf(t, 48, round.TotalCards(), "seed %d: card conservation broken", seed)
			require.Equal(t, round.FlowState == AwaitingSelection, round.PendingSelection != nil,
				"seed %d: AWAITING_SELECTION iff pendingSelection set", seed)
		}
		require.True(t, round.Draw || round.WinnerID != "", "seed %d: a finished round has a winner or is a draw", seed)
	}
}

func TestDetectTeshiFindsFourOfAMonthInHand(t *testing.T) {
	players := [2]string{"p1", "p2"}
	round := &Round{
		Players: players,
		Hands: map[string][]Card{
			"p1": {
				{Month: 1, Type: Bright, Index: 1},
				{Month: 1, Type: Ribbon, Index: 1},
				{Month: 1, Type: Plain, Index: 1},
				{Month: 1, Type: Plain, Index: 2},
			},
			"p2": {{Month: 2, Type: Animal, Index: 1}},
		},
	}
	winner, ok := detectTeshi(round)
	require.True(t, ok)
	require.Equal(t, "p1", winner)
}

func TestDetectTeshiNoFourOfAMonth(t *testing.T) {
	round := &Round{
		Players: [2]string{"p1", "p2"},
		Hands: map[string][]Card{
			"p1": {{Month: 1, Type: Bright, Index: 1}, {Month: 2, Type: Animal, Index: 1}},
			"p2": {{Month: 3, Type: Ribbon, Index: 1}},
		},
	}
	_, ok := detectTeshi(round)
	require.False(t, ok)
}

func TestDetectKuttsukiRequiresTwoPairedMonthsOnField(t *testing.T) {
	round := &Round{
		Field: []Card{
			{Month: 1, Type: Bright, Index: 1}, {Month: 1, Type: Ribbon, Index: 1},
			{Month: 2, Type: Animal, Index: 1}, {Month: 2, Type: Ribbon, Index: 1},
			{Month: 3, Type: Plain, Index: 1}, {Month: 4, Type: Plain, Index: 1},
			{Month: 5, Type: Plain, Index: 1}, {Month: 6, Type: Plain, Index: 1},
		},
	}
	require.True(t, detectKuttsuki(round))

	round.Field[1] = Card{Month: 7, Type: Ribbon, Index: 1} // break one pair
	require.False(t, detectKuttsuki(round))
}

func TestApplyFieldTeshiMovesFourOfAMonthToDealer(t *testing.T) {
	round := &Round{
		DealerID: "p1",
		Field: []Card{
			{Month: 1, Type: Bright, Index: 1}, {Month: 1, Type: Ribbon, Index: 1},
			{Month: 1, Type: Plain, Index: 1}, {Month: 1, Type: Plain, Index: 2},
			{Month: 2, Type: Animal, Index: 1},
		},
		Deposits: map[string][]Card{"p1": nil, "p2": nil},
	}
	applyFieldTeshi(round)
	require.Len(t, round.Field, 1)
	require.Len(t, round.Deposits["p1"], 4)
}
