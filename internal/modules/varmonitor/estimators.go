package varmonitor

import (
	"math"

	"github.com/aristath/bastion/pkg/formulas"
)

// varEstimate is one method's four tail-risk figures.
type varEstimate struct {
	var95, var99, cvar95, cvar99 float64
}

// parametricEstimate computes VaR/CVaR under independent per-position normal
// returns: portfolio volatility = sigma * sqrt(n). Correlation is deliberately
// ignored here; the trade-off is speed and robustness over precision.
func parametricEstimate(exposureUSD float64, positionCount int, dailyVolatility float64) varEstimate {
	if exposureUSD <= 0 || positionCount <= 0 || dailyVolatility <= 0 {
		return varEstimate{}
	}

	vol := dailyVolatility * math.Sqrt(float64(positionCount))
	v95 := formulas.ParametricVaR(exposureUSD, vol, 0.95)
	v99 := formulas.ParametricVaR(exposureUSD, vol, 0.99)
	return varEstimate{
		var95:  v95,
		var99:  v99,
		cvar95: v95 * formulas.CVaRMultiplier95,
		cvar99: v99 * formulas.CVaRMultiplier99,
	}
}

// historicalEstimate runs a historical simulation: realized percentage
// returns are converted to USD losses at the current portfolio value and the
// empirical tail is read off directly. Below minObservations every figure is
// zero, the explicit insufficient-data sentinel.
func historicalEstimate(returns []float64, portfolioValue float64, minObservations int) varEstimate {
	if len(returns) < minObservations || portfolioValue <= 0 {
		return varEstimate{}
	}

	losses := make([]float64, len(returns))
	for i, r := range returns {
		losses[i] = -r * portfolioValue
	}

	return varEstimate{
		var95:  formulas.HistoricalVaR(losses, 0.95),
		var99:  formulas.HistoricalVaR(losses, 0.99),
		cvar95: formulas.HistoricalCVaR(losses, 0.95),
		cvar99: formulas.HistoricalCVaR(losses, 0.99),
	}
}

// returnsRing is a bounded FIFO of realized portfolio returns.
type returnsRing struct {
	values []float64
	max    int
}

func newReturnsRing(max int) *returnsRing {
	return &returnsRing{max: max}
}

func (r *returnsRing) add(v float64) {
	r.values = append(r.values, v)
	if len(r.values) > r.max {
		r.values = r.values[len(r.values)-r.max:]
	}
}

func (r *returnsRing) len() int { return len(r.values) }

func (r *returnsRing) snapshot() []float64 {
	return append([]float64(nil), r.values...)
}
