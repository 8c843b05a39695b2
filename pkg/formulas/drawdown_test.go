package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawdownPct(t *testing.T) {
	assert.InDelta(t, 10.0, DrawdownPct(10000, 9000), 0.0001)
	assert.InDelta(t, 0.0, DrawdownPct(10000, 10000), 0.0001)
	assert.InDelta(t, 0.0, DrawdownPct(10000, 11000), 0.0001)
	assert.Equal(t, 0.0, DrawdownPct(0, 9000))
}

func TestMaxDrawdownPct(t *testing.T) {
	// Peak 120, trough 90: 25% drawdown, later recovery does not matter.
	values := []float64{100, 120, 110, 90, 115}
	assert.InDelta(t, 25.0, MaxDrawdownPct(values), 0.0001)

	// Monotonic rise: no drawdown.
	assert.Equal(t, 0.0, MaxDrawdownPct([]float64{100, 110, 120}))
	assert.Equal(t, 0.0, MaxDrawdownPct([]float64{100}))
}
