// Package portfolio implements the portfolio risk engine: correlation
// matrix and group maintenance, aggregate exposure accounting and the
// exposure gates applied when positions are added.
package portfolio

import "time"

// Direction of a position.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// PositionExposure tracks one open position's contribution to portfolio risk.
// The correlation group is an assigned label owned by the engine's clustering,
// not by the position itself.
type PositionExposure struct {
	Symbol           string    `json:"symbol"`
	SizeUSD          float64   `json:"size_usd"`
	PctOfPortfolio   float64   `json:"pct_of_portfolio"`
	Direction        string    `json:"direction"`
	EntryTime        time.Time `json:"entry_time"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	CorrelationGroup string    `json:"correlation_group"`
}

// CorrelationMatrix is an immutable snapshot of pairwise Pearson correlations
// between tracked symbols. It is recomputed wholesale on each refresh cycle,
// never patched in place.
type CorrelationMatrix struct {
	Symbols         []string    `json:"symbols"`
	Values          [][]float64 `json:"values"`
	Timestamp       time.Time   `json:"timestamp"`
	LookbackPeriods int         `json:"lookback_periods"`
	Confidence      float64     `json:"confidence"` // 0..1, sample sufficiency
}

// At returns the correlation between two symbols, 0 when either is unknown.
func (m *CorrelationMatrix) At(a, b string) float64 {
	ia, ib := -1, -1
	for i, s := range m.Symbols {
		if s == a {
			ia = i
		}
		if s == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0.0
	}
	return m.Values[ia][ib]
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (m *CorrelationMatrix) Clone() *CorrelationMatrix {
	if m == nil {
		return nil
	}
	c := &CorrelationMatrix{
		Symbols:         append([]string(nil), m.Symbols...),
		Values:          make([][]float64, len(m.Values)),
		Timestamp:       m.Timestamp,
		LookbackPeriods: m.LookbackPeriods,
		Confidence:      m.Confidence,
	}
	for i, row := range m.Values {
		c.Values[i] = append([]float64(nil), row...)
	}
	return c
}

// CorrelationGroup is a cluster of symbols whose pairwise absolute
// correlation meets the clustering threshold. Groups are mutually exclusive;
// singleton clusters are discarded.
type CorrelationGroup struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// Metrics is the aggregate risk picture of the current portfolio. The VaR
// figures here use a fixed per-position volatility assumption and are a rough
// diagnostic only; the VaR monitor is the authoritative estimator.
type Metrics struct {
	PortfolioValue        float64 `json:"portfolio_value"`
	PositionCount         int     `json:"position_count"`
	TotalExposureUSD      float64 `json:"total_exposure_usd"`
	LongExposureUSD       float64 `json:"long_exposure_usd"`
	ShortExposureUSD      float64 `json:"short_exposure_usd"`
	NetExposureUSD        float64 `json:"net_exposure_usd"`
	TotalExposurePct      float64 `json:"total_exposure_pct"`
	CorrelationRisk       float64 `json:"correlation_risk"`        // mean |pairwise correlation| among held symbols
	DiversificationRatio  float64 `json:"diversification_ratio"`   // inverse Herfindahl index
	MaxCorrelatedExposure float64 `json:"max_correlated_exposure"` // largest group exposure fraction
	DiagnosticVaR95       float64 `json:"diagnostic_var_95"`
	DiagnosticVaR99       float64 `json:"diagnostic_var_99"`
	DiagnosticCVaR95      float64 `json:"diagnostic_cvar_95"`
	DiagnosticCVaR99      float64 `json:"diagnostic_cvar_99"`
}

// SizeAdjustment is the result of correlation-aware position size shrinking.
type SizeAdjustment struct {
	OriginalSize    float64 `json:"original_size"`
	AdjustedSize    float64 `json:"adjusted_size"`
	MeanCorrelation float64 `json:"mean_correlation"`
	ReductionPct    float64 `json:"reduction_pct"`
}
