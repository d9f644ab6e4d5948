package cardgame

// YakuID names one entry in the scoring catalog.
type YakuID string

const (
	YakuGoko         YakuID = "GOKO"          // Five Brights
	YakuShiko        YakuID = "SHIKO"         // Four Brights (without the Rain Man)
	YakuAmeShiko     YakuID = "AME_SHIKO"     // Rain Four Brights (with the Rain Man)
	YakuSanko        YakuID = "SANKO"         // Three Brights
	YakuAkatan       YakuID = "AKATAN"        // Red (poetry) Ribbons
	YakuAotan        YakuID = "AOTAN"         // Blue Ribbons
	YakuInoshikachou YakuID = "INOSHIKACHOU"  // Boar-Deer-Butterfly
	YakuHanami       YakuID = "HANAMI"        // Cherry-Viewing
	YakuTsukimi      YakuID = "TSUKIMI"       // Moon-Viewing
	YakuTane         YakuID = "TANE"          // Animal cards, 5 or more
	YakuTan          YakuID = "TAN"           // Ribbon cards, 5 or more
	YakuKasu         YakuID = "KASU"          // Plain cards, 10 or more
)

// countThresholdYaku is the minimum card count and the name for the three
// "grows with extra cards" yaku.
type countThresholdYaku struct {
	id        YakuID
	threshold int
	matches   func(Card) bool
}

var countThresholds = []countThresholdYaku{
	{YakuTane, 5, func(c Card) bool { return c.Type == Animal }},
	{YakuTan, 5, func(c Card) bool { return c.Type == Ribbon }},
	{YakuKasu, 10, func(c Card) bool { return c.Type == Plain }},
}

// HeldYaku is one currently-formed yaku and its contribution to the base
// score.
type HeldYaku struct {
	ID    YakuID
	Score int
}

func contains(pile []Card, target Card) bool {
	for _, c := range pile {
		if c == target {
			return true
		}
	}
	return false
}

// Detect runs the pure yaku-detection function over a captured pile.
// points supplies the base score for every fixed-value yaku; the three
// count-threshold yaku score independent of the points table, one point at
// the threshold plus one per extra card.
func Detect(pile []Card, points map[string]int) []HeldYaku {
	var held []HeldYaku

	brights := 0
	hasRainMan := contains(pile, RainManCard)
	for _, c := range pile {
		if c.Type == Bright {
			brights++
		}
	}
	switch {
	case brights == 5:
		held = append(held, HeldYaku{YakuGoko, points[string(YakuGoko)]})
	case brights == 4 && hasRainMan:
		held = append(held, HeldYaku{YakuAmeShiko, points[string(YakuAmeShiko)]})
	case brights == 4:
		held = append(held, HeldYaku{YakuShiko, points[string(YakuShiko)]})
	case brights == 3:
		held = append(held, HeldYaku{YakuSanko, points[string(YakuSanko)]})
	}

	redRibbons, blueRibbons := 0, 0
	for _, c := range pile {
		switch c.RibbonColor() {
		case RibbonColorRed:
			redRibbons++
		case RibbonColorBlue:
			blueRibbons++
		}
	}
	if redRibbons >= 3 {
		held = append(held, HeldYaku{YakuAkatan, points[string(YakuAkatan)]})
	}
	if blueRibbons >= 3 {
		held = append(held, HeldYaku{YakuAotan, points[string(YakuAotan)]})
	}

	if contains(pile, BoarCard) && contains(pile, DeerCard) && contains(pile, ButterflyCard) {
		held = append(held, HeldYaku{YakuInoshikachou, points[string(YakuInoshikachou)]})
	}
	if contains(pile, CurtainCard) && contains(pile, SakeCupCard) {
		held = append(held, HeldYaku{YakuHanami, points[string(YakuHanami)]})
	}
	if contains(pile, MoonCard) && contains(pile, SakeCupCard) {
		held = append(held, HeldYaku{YakuTsukimi, points[string(YakuTsukimi)]})
	}

	for _, ct := range countThresholds {
		count := 0
		for _, c := range pile {
			if ct.matches(c) {
				count++
			}
		}
		if count >= ct.threshold {
			held = append(held, HeldYaku{ct.id, count - ct.threshold + 1})
		}
	}

	return held
}

// TotalScore sums the base score across every held yaku.
func TotalScore(held []HeldYaku) int {
	total := 0
	for _, h := range held {
		total += h.Score
	}
	return total
}

// HeldSet turns a held-yaku slice into a set for the strictly-extends
// comparison deciding whether a new yaku formed this turn.
func HeldSet(held []HeldYaku) map[YakuID]bool {
	set := make(map[YakuID]bool, len(held))
	for _, h := range held {
		set[h.ID] = true
	}
	return set
}

// StrictlyExtends reports whether next holds every yaku in prev plus at
// least one more, the trigger for entering AWAITING_DECISION.
func StrictlyExtends(prev, next map[YakuID]bool) bool {
	if len(next) <= len(prev) {
		return false
	}
	for id := range prev {
		if !next[id] {
			return false
		}
	}
	return true
}
