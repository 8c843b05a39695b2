package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []float64
	}{
		{
			name:   "simple up and down",
			prices: []float64{100, 110, 99},
			want:   []float64{0.10, -0.10},
		},
		{
			name:   "single price",
			prices: []float64{100},
			want:   []float64{},
		},
		{
			name:   "zero price treated as gap",
			prices: []float64{100, 0, 50},
			want:   []float64{-1.0, 0.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReturns(tt.prices)
			assert.Equal(t, len(tt.want), len(got))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 0.0001)
			}
		})
	}
}

func TestPearsonCorrelation(t *testing.T) {
	a := []float64{0.01, 0.02, -0.01, 0.03, -0.02}
	b := []float64{0.01, 0.02, -0.01, 0.03, -0.02}
	assert.InDelta(t, 1.0, PearsonCorrelation(a, b), 0.0001)

	inverse := []float64{-0.01, -0.02, 0.01, -0.03, 0.02}
	assert.InDelta(t, -1.0, PearsonCorrelation(a, inverse), 0.0001)

	// Degenerate: zero variance returns 0, not NaN.
	flat := []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	assert.Equal(t, 0.0, PearsonCorrelation(a, flat))

	// Mismatched lengths.
	assert.Equal(t, 0.0, PearsonCorrelation(a, a[:3]))
}

func TestHerfindahlAndDiversification(t *testing.T) {
	// Four equal positions: HHI = 4 * 0.25^2 = 0.25, ratio = 4.
	equal := []float64{2500, 2500, 2500, 2500}
	assert.InDelta(t, 0.25, HerfindahlIndex(equal), 0.0001)
	assert.InDelta(t, 4.0, DiversificationRatio(equal), 0.0001)

	// Single position: fully concentrated.
	single := []float64{10000}
	assert.InDelta(t, 1.0, HerfindahlIndex(single), 0.0001)
	assert.InDelta(t, 1.0, DiversificationRatio(single), 0.0001)

	assert.Equal(t, 0.0, HerfindahlIndex(nil))
	assert.Equal(t, 0.0, DiversificationRatio(nil))
}
