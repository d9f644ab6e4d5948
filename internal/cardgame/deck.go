package cardgame

import "math/rand"

// monthComposition lists, for each month, the type of its four cards in a
// fixed canonical order. A card's Index is its 1-based occurrence count of
// that type within the month (so a month with two Plain cards gets Index 1
// and 2 for them, in this order).
var monthComposition = map[int][]Type{
	1:  {Bright, Ribbon, Plain, Plain},
	2:  {Animal, Ribbon, Plain, Plain},
	3:  {Bright, Ribbon, Plain, Plain},
	4:  {Animal, Ribbon, Plain, Plain},
	5:  {Animal, Ribbon, Plain, Plain},
	6:  {Animal, Ribbon, Plain, Plain},
	7:  {Animal, Ribbon, Plain, Plain},
	8:  {Bright, Animal, Plain, Plain},
	9:  {Animal, Ribbon, Plain, Plain},
	10: {Animal, Ribbon, Plain, Plain},
	11: {Bright, Animal, Ribbon, Plain},
	12: {Bright, Plain, Plain, Plain},
}

// AllCards returns the 48 cards of a standard hanafuda deck in a fixed,
// deterministic order (month ascending, then composition order): exactly
// 4 cards per month, globally unique codes.
func AllCards() []Card {
	cards := make([]Card, 0, 48)
	for month := 1; month <= 12; month++ {
		seen := make(map[Type]int, 4)
		for _, typ := range monthComposition[month] {
			seen[typ]++
			cards = append(cards, Card{Month: month, Type: typ, Index: seen[typ]})
		}
	}
	return cards
}

// Deck is the draw pile for one round: the 48-card deck minus whatever has
// already been dealt to the field, the hands, and drawn during play.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewShuffledDeck builds a full 48-card deck and shuffles it with rng.
func NewShuffledDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: AllCards(), rng: rng}
	d.Shuffle()
	return d
}

// NewDeckFromCards restores a deck from its remaining cards, for rebuilding
// round state from a snapshot.
func NewDeckFromCards(cards []Card) *Deck {
	cp := make([]Card, len(cards))
	copy(cp, cards)
	return &Deck{cards: cp}
}

// Shuffle randomizes the remaining cards in place.
func (d *Deck) Shuffle() {
	if d.rng == nil {
		return
	}
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the top card, reporting false if the deck is
// empty.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DrawN removes and returns the top n cards. It panics if n exceeds the
// deck's size; callers deal fixed, known-in-advance counts (8 to the
// field, 8 per hand) and a short deal is a programmer error, not a runtime
// condition.
func (d *Deck) DrawN(n int) []Card {
	if n > len(d.cards) {
		panic("cardgame: DrawN exceeds deck size")
	}
	out := make([]Card, n)
	copy(out, d.cards[:n])
	d.cards = d.cards[n:]
	return out
}

// Size returns the number of cards left to draw.
func (d *Deck) Size() int { return len(d.cards) }

// Cards returns the remaining cards, in draw order, for snapshotting.
func (d *Deck) Cards() []Card {
	cp := make([]Card, len(d.cards))
	copy(cp, d.cards)
	return cp
}

// Clone returns an independent copy, preserving the immutable-by-replacement
// discipline the Round aggregate relies on.
func (d *Deck) Clone() *Deck {
	return &Deck{cards: d.Cards(), rng: d.rng}
}
