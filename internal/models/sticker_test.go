package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStickerLevelListOrdered(t *testing.T) {
	list := StickerLevelList()
	require.Len(t, list, 7)

	for i, meta := range list {
		assert.Equal(t, i+1, meta.Order)
	}
	assert.Equal(t, StickerSeed, list[0].Level)
	assert.Equal(t, StickerToTheMoon, list[6].Level)
}

func TestValidStickerLevel(t *testing.T) {
	assert.True(t, ValidStickerLevel(StickerRocket))
	assert.False(t, ValidStickerLevel(StickerLevel("platinum")))
}

func TestCalcTotalPoints(t *testing.T) {
	counts := map[StickerLevel]int{
		StickerSeed:      3,
		StickerRocket:    2,
		StickerToTheMoon: 1,
	}
	assert.Equal(t, 3*10+2*50+100, CalcTotalPoints(counts))
}

func TestCalcTotalPointsIgnoresUnknownLevels(t *testing.T) {
	counts := map[StickerLevel]int{
		StickerLevel("platinum"): 5,
		StickerBloom:             1,
	}
	assert.Equal(t, 20, CalcTotalPoints(counts))
}

func TestCalcTotalPointsEmpty(t *testing.T) {
	assert.Zero(t, CalcTotalPoints(nil))
	assert.Zero(t, CalcTotalPoints(map[StickerLevel]int{}))
}
