package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBars(n int) (highs, lows, closes []float64) {
	highs = make([]float64, n)
	lows = make([]float64, n)
	closes = make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 12
		lows[i] = 10
		closes[i] = 11
	}
	return highs, lows, closes
}

func TestCalculateATRInsufficientData(t *testing.T) {
	highs, lows, closes := flatBars(3)
	assert.Nil(t, CalculateATR(highs, lows, closes, 14))
	assert.Nil(t, CalculateATR(highs, lows, closes, 0))

	// Mismatched series lengths.
	h, l, c := flatBars(30)
	assert.Nil(t, CalculateATR(h[:20], l, c, 14))
}

func TestLatestATRConstantRange(t *testing.T) {
	highs, lows, closes := flatBars(40)
	atr := LatestATR(highs, lows, closes, 14)
	require.NotNil(t, atr)
	// Constant 2-point true range converges to an ATR of 2.
	assert.InDelta(t, 2.0, *atr, 0.01)
}

func TestATRRatio(t *testing.T) {
	// Stable volatility: current ATR equals its trailing average.
	highs, lows, closes := flatBars(40)
	ratio := ATRRatio(highs, lows, closes, 14, 14)
	require.NotNil(t, ratio)
	assert.InDelta(t, 1.0, *ratio, 0.01)

	// Too short for the lookback window.
	h, l, c := flatBars(20)
	assert.Nil(t, ATRRatio(h, l, c, 14, 14))
}
