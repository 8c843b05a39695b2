package portfolio

import (
	"math"

	"github.com/aristath/bastion/pkg/formulas"
)

// CalculateMetrics computes the aggregate risk picture of the portfolio.
// The VaR/CVaR figures use the configured fixed per-position daily
// volatility scaled by sqrt(n) and the mean pairwise correlation; they are a
// rough diagnostic, not the authoritative estimate (see the VaR monitor).
func (e *Engine) CalculateMetrics(portfolioValue float64) Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := Metrics{PortfolioValue: portfolioValue, PositionCount: len(e.positions)}
	if portfolioValue <= 0 || len(e.positions) == 0 {
		return m
	}

	sizes := make([]float64, 0, len(e.positions))
	groupExposure := make(map[string]float64)
	for _, p := range e.positions {
		m.TotalExposureUSD += p.SizeUSD
		if p.Direction == DirectionShort {
			m.ShortExposureUSD += p.SizeUSD
		} else {
			m.LongExposureUSD += p.SizeUSD
		}
		sizes = append(sizes, p.SizeUSD)
		if g := e.groupForLocked(p.Symbol); g != "" {
			groupExposure[g] += p.SizeUSD
		}
	}
	m.NetExposureUSD = m.LongExposureUSD - m.ShortExposureUSD
	m.TotalExposurePct = m.TotalExposureUSD / portfolioValue
	m.DiversificationRatio = formulas.DiversificationRatio(sizes)

	for _, exposure := range groupExposure {
		if frac := exposure / portfolioValue; frac > m.MaxCorrelatedExposure {
			m.MaxCorrelatedExposure = frac
		}
	}

	m.CorrelationRisk = e.correlationRiskLocked()

	// Diagnostic parametric VaR: fixed per-position volatility, sqrt(n)
	// aggregation, widened by the mean pairwise correlation.
	n := float64(len(e.positions))
	avgSize := m.TotalExposureUSD / n
	volUSD := avgSize * e.cfg.DailyVolatility * math.Sqrt(n) * (1.0 + m.CorrelationRisk)
	m.DiagnosticVaR95 = volUSD * formulas.ZScore(0.95)
	m.DiagnosticVaR99 = volUSD * formulas.ZScore(0.99)
	m.DiagnosticCVaR95 = m.DiagnosticVaR95 * formulas.CVaRMultiplier95
	m.DiagnosticCVaR99 = m.DiagnosticVaR99 * formulas.CVaRMultiplier99

	return m
}

// correlationRiskLocked is the mean absolute pairwise correlation among held
// symbols, 0 with fewer than two positions or no matrix.
func (e *Engine) correlationRiskLocked() float64 {
	if len(e.positions) < 2 || e.matrix == nil {
		return 0.0
	}

	held := make([]string, 0, len(e.positions))
	for s := range e.positions {
		held = append(held, s)
	}

	var pairs []float64
	for i := 0; i < len(held); i++ {
		for j := i + 1; j < len(held); j++ {
			if c := e.matrix.At(held[i], held[j]); c != 0 {
				pairs = append(pairs, math.Abs(c))
			}
		}
	}
	return formulas.Mean(pairs)
}
