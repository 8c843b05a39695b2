// Package formulas provides the statistical building blocks shared by the
// risk modules: return series, correlation, tail-risk and drawdown measures.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CalculateReturns calculates simple percentage returns from a price series.
// Returns an empty slice when fewer than two prices are available.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 && !math.IsNaN(prices[i]) && !math.IsNaN(prices[i-1]) {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		} else {
			returns[i-1] = 0.0
		}
	}
	return returns
}

// PearsonCorrelation calculates the Pearson correlation coefficient between
// two equal-length return series. Returns 0 when the series are too short,
// mismatched, or degenerate (zero variance).
func PearsonCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0.0
	}

	corr := stat.Correlation(a, b, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		return 0.0
	}
	return corr
}

// HerfindahlIndex calculates the Herfindahl concentration index of a set of
// position weights. Weights are normalized internally, so callers can pass
// raw USD sizes. Returns 0 for an empty portfolio.
func HerfindahlIndex(weights []float64) float64 {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0.0
	}

	hhi := 0.0
	for _, w := range weights {
		if w > 0 {
			frac := w / total
			hhi += frac * frac
		}
	}
	return hhi
}

// DiversificationRatio is the inverse Herfindahl index: the effective number
// of independent positions. A single position yields 1.0; n equally sized
// positions yield n. Returns 0 for an empty portfolio.
func DiversificationRatio(weights []float64) float64 {
	hhi := HerfindahlIndex(weights)
	if hhi <= 0 {
		return 0.0
	}
	return 1.0 / hhi
}

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return stat.Mean(values, nil)
}
