// Package varmonitor implements the authoritative dual-method VaR/CVaR
// engine: a closed-form parametric estimator, a historical simulation over
// realized portfolio returns, breach detection against configured limits and
// a background polling loop.
package varmonitor

import "time"

// Estimation methods.
const (
	MethodParametric = "parametric"
	MethodHistorical = "historical"
)

// Position is the caller-supplied view of one open position, as delivered by
// the positions callback.
type Position struct {
	Symbol    string  `json:"symbol"`
	SizeUSD   float64 `json:"size_usd"`
	Direction string  `json:"direction,omitempty"`
	PnL       float64 `json:"pnl,omitempty"`
}

// Snapshot is one immutable VaR/CVaR observation. Snapshots are appended to
// a bounded in-memory ring and optionally archived via the Store.
type Snapshot struct {
	Timestamp        time.Time `json:"timestamp" msgpack:"timestamp"`
	PortfolioValue   float64   `json:"portfolio_value" msgpack:"portfolio_value"`
	ExposureUSD      float64   `json:"exposure_usd" msgpack:"exposure_usd"`
	PositionCount    int       `json:"position_count" msgpack:"position_count"`
	ScenarioCount    int       `json:"scenario_count" msgpack:"scenario_count"`
	PrimaryMethod    string    `json:"primary_method" msgpack:"primary_method"`
	ParametricVaR95  float64   `json:"parametric_var_95" msgpack:"parametric_var_95"`
	ParametricVaR99  float64   `json:"parametric_var_99" msgpack:"parametric_var_99"`
	ParametricCVaR95 float64   `json:"parametric_cvar_95" msgpack:"parametric_cvar_95"`
	ParametricCVaR99 float64   `json:"parametric_cvar_99" msgpack:"parametric_cvar_99"`
	HistoricalVaR95  float64   `json:"historical_var_95" msgpack:"historical_var_95"`
	HistoricalVaR99  float64   `json:"historical_var_99" msgpack:"historical_var_99"`
	HistoricalCVaR95 float64   `json:"historical_cvar_95" msgpack:"historical_cvar_95"`
	HistoricalCVaR99 float64   `json:"historical_cvar_99" msgpack:"historical_cvar_99"`
	Breach95         bool      `json:"breach_95" msgpack:"breach_95"`
	Breach99         bool      `json:"breach_99" msgpack:"breach_99"`
}

// PrimaryVaR returns the VaR value of the primary method at a confidence
// level (0.95 or 0.99).
func (s Snapshot) PrimaryVaR(confidence float64) float64 {
	if s.PrimaryMethod == MethodHistorical {
		if confidence >= 0.99 {
			return s.HistoricalVaR99
		}
		return s.HistoricalVaR95
	}
	if confidence >= 0.99 {
		return s.ParametricVaR99
	}
	return s.ParametricVaR95
}

// Breach records one VaR limit violation.
type Breach struct {
	ID             string    `json:"id" msgpack:"id"`
	Timestamp      time.Time `json:"timestamp" msgpack:"timestamp"`
	Confidence     float64   `json:"confidence" msgpack:"confidence"`
	VaRValue       float64   `json:"var_value" msgpack:"var_value"`
	VaRLimit       float64   `json:"var_limit" msgpack:"var_limit"`
	PortfolioValue float64   `json:"portfolio_value" msgpack:"portfolio_value"`
	Method         string    `json:"method" msgpack:"method"`
	Acknowledged   bool      `json:"acknowledged" msgpack:"acknowledged"`
}
