package cardgame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testPoints = map[string]int{
	string(YakuGoko):         10,
	string(YakuShiko):        8,
	string(YakuAmeShiko):     7,
	string(YakuSanko):        5,
	string(YakuAkatan):       5,
	string(YakuAotan):        5,
	string(YakuInoshikachou): 5,
	string(YakuHanami):       3,
	string(YakuTsukimi):      3,
}

func TestDetectGoko(t *testing.T) {
	pile := []Card{CraneCard, CurtainCard, MoonCard, RainManCard, PhoenixCard}
	held := Detect(pile, testPoints)
	require.Len(t, held, 1)
	require.Equal(t, YakuGoko, held[0].ID)
	require.Equal(t, 10, held[0].Score)
}

func TestDetectShikoVsAmeShiko(t *testing.T) {
	withoutRain := []Card{CraneCard, CurtainCard, MoonCard, PhoenixCard}
	held := Detect(withoutRain, testPoints)
	require.Len(t, held, 1)
	require.Equal(t, YakuShiko, held[0].ID)

	withRain := []Card{CraneCard, CurtainCard, MoonCard, RainManCard}
	held = Detect(withRain, testPoints)
	require.Len(t, held, 1)
	require.Equal(t, YakuAmeShiko, held[0].ID)
}

func TestDetectInoshikachou(t *testing.T) {
	pile := []Card{BoarCard, DeerCard, ButterflyCard}
	held := Detect(pile, testPoints)
	require.Len(t, held, 1)
	require.Equal(t, YakuInoshikachou, held[0].ID)
}

func TestDetectCountThresholdsGrowPastMinimum(t *testing.T) {
	pile := make([]Card, 0, 6)
	for _, c := range AllCards() {
		if c.Type == Animal {
			pile = append(pile, c)
		}
		if len(pile) == 6 {
			break
		}
	}
	held := Detect(pile, testPoints)
	require.Len(t, held, 1)
	require.Equal(t, YakuTane, held[0].ID)
	require.Equal(t, 2, held[0].Score) // 6 animals: threshold 5, +1 extra => 2
}

func TestDetectNoYakuBelowThreshold(t *testing.T) {
	held := Detect([]Card{CraneCard}, testPoints)
	require.Empty(t, held)
}

func TestStrictlyExtends(t *testing.T) {
	prev := map[YakuID]bool{YakuTane: true}
	same := map[YakuID]bool{YakuTane: true}
	require.False(t, StrictlyExtends(prev, same))

	superset := map[YakuID]bool{YakuTane: true, YakuTan: true}
	require.True(t, StrictlyExtends(prev, superset))

	disjointLarger := map[YakuID]bool{YakuTan: true, YakuKasu: true}
	require.False(t, StrictlyExtends(prev, disjointLarger))
}

func TestTotalScore(t *testing.T) {
	held := []HeldYaku{{YakuTane, 2}, {YakuTan, 1}}
	require.Equal(t, 3, TotalScore(held))
}
