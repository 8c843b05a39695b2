package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Closed-form normal-distribution expected-shortfall multipliers.
// CVaR = VaR * multiplier at the matching confidence level.
const (
	CVaRMultiplier95 = 1.252
	CVaRMultiplier99 = 1.159
)

// ZScore returns the standard normal quantile for a confidence level,
// e.g. 1.6449 for 0.95 and 2.3263 for 0.99.
func ZScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 0.0
	}
	return distuv.Normal{Mu: 0, Sigma: 1}.Quantile(confidence)
}

// ParametricVaR calculates value-at-risk under the normal assumption:
// exposure * portfolioVolatility * z(confidence). Never negative.
func ParametricVaR(exposure, portfolioVolatility, confidence float64) float64 {
	if exposure <= 0 || portfolioVolatility <= 0 {
		return 0.0
	}
	return math.Max(0, exposure*portfolioVolatility*ZScore(confidence))
}

// HistoricalVaR calculates value-at-risk from a series of realized USD losses
// (positive = loss). Losses are sorted worst-first and the VaR is the loss at
// rank ceil(tail*n)-1 where tail = 1-confidence. Returns 0 when the series is
// empty. The result is clamped to be non-negative.
func HistoricalVaR(losses []float64, confidence float64) float64 {
	if len(losses) == 0 {
		return 0.0
	}

	sorted := sortLossesDescending(losses)
	rank := tailRank(len(sorted), confidence)
	return math.Max(0, sorted[rank])
}

// HistoricalCVaR calculates the expected shortfall from a series of realized
// USD losses: the mean of every loss at or beyond the VaR rank.
func HistoricalCVaR(losses []float64, confidence float64) float64 {
	if len(losses) == 0 {
		return 0.0
	}

	sorted := sortLossesDescending(losses)
	rank := tailRank(len(sorted), confidence)

	sum := 0.0
	for i := 0; i <= rank; i++ {
		sum += sorted[i]
	}
	return math.Max(0, sum/float64(rank+1))
}

// tailRank returns the index of the VaR observation within a worst-first
// sorted loss series: ceil(tail*n)-1, clamped to [0, n-1].
func tailRank(n int, confidence float64) int {
	tail := 1.0 - confidence
	rank := int(math.Ceil(tail*float64(n))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= n {
		rank = n - 1
	}
	return rank
}

func sortLossesDescending(losses []float64) []float64 {
	sorted := make([]float64, len(losses))
	copy(sorted, losses)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return sorted
}
