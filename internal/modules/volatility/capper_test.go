package volatility

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// calmSeries returns n identical bars with a 2-point true range.
func calmSeries(n int) Series {
	s := Series{
		Highs:  make([]float64, n),
		Lows:   make([]float64, n),
		Closes: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.Highs[i] = 12
		s.Lows[i] = 10
		s.Closes[i] = 11
	}
	return s
}

// withSpike appends one wide-range bar to a calm series.
func withSpike(s Series, rng float64) Series {
	s.Highs = append(s.Highs, 11+rng)
	s.Lows = append(s.Lows, 11)
	s.Closes = append(s.Closes, 11+rng/2)
	return s
}

func TestSizeMultiplierNormalRegime(t *testing.T) {
	c := NewCapper(DefaultConfig(), zerolog.Nop())

	mult, regime := c.SizeMultiplier("BTC", calmSeries(40))

	assert.Equal(t, RegimeNormal, regime)
	assert.Equal(t, 1.0, mult)
}

func TestSizeMultiplierHighRegime(t *testing.T) {
	c := NewCapper(DefaultConfig(), zerolog.Nop())

	// One 20-point bar after a calm 2-point history: ATR jumps to roughly
	// (2*13+20)/14 = 3.29 against a trailing average near 2.
	mult, regime := c.SizeMultiplier("BTC", withSpike(calmSeries(40), 20))

	assert.Equal(t, RegimeHigh, regime)
	assert.Equal(t, 0.5, mult)
}

func TestSizeMultiplierExtremeHighRegime(t *testing.T) {
	c := NewCapper(DefaultConfig(), zerolog.Nop())

	// A 50-point bar drives the ratio well past 2.5x.
	mult, regime := c.SizeMultiplier("BTC", withSpike(calmSeries(40), 50))

	assert.Equal(t, RegimeExtremeHigh, regime)
	assert.Equal(t, 0.25, mult)
}

func TestSizeMultiplierFailsOpenOnMissingData(t *testing.T) {
	c := NewCapper(DefaultConfig(), zerolog.Nop())

	tests := []struct {
		name   string
		series Series
	}{
		{"empty series", Series{}},
		{"too short", calmSeries(10)},
		{"mismatched lengths", Series{Highs: make([]float64, 40), Lows: make([]float64, 40), Closes: make([]float64, 20)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mult, regime := c.SizeMultiplier("BTC", tt.series)
			assert.Equal(t, RegimeNormal, regime)
			assert.Equal(t, 1.0, mult)
		})
	}
}

func TestApplyCapNeverIncreases(t *testing.T) {
	c := NewCapper(DefaultConfig(), zerolog.Nop())

	// Calm regime: unchanged.
	size, _ := c.ApplyCap("BTC", 1000, calmSeries(40))
	assert.Equal(t, 1000.0, size)

	// Hot regime: halved.
	size, regime := c.ApplyCap("BTC", 1000, withSpike(calmSeries(40), 20))
	assert.Equal(t, RegimeHigh, regime)
	assert.Equal(t, 500.0, size)
}

func TestRegimesTracking(t *testing.T) {
	c := NewCapper(DefaultConfig(), zerolog.Nop())

	c.SizeMultiplier("BTC", withSpike(calmSeries(40), 20))
	c.SizeMultiplier("ETH", calmSeries(40))

	regimes := c.Regimes()
	assert.Equal(t, RegimeHigh, regimes["BTC"])
	assert.Equal(t, RegimeNormal, regimes["ETH"])
}
