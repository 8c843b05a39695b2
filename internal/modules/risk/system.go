// Package risk wires the individual protection components into one
// pre-trade gate and sizing surface for the execution engine.
package risk

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/drawdown"
	"github.com/aristath/bastion/internal/modules/exposure"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/varmonitor"
	"github.com/aristath/bastion/internal/modules/volatility"
)

// GateDecision is the outcome of a pre-trade check. Reason is empty when
// approved; on rejection it is prefixed with the component that vetoed.
type GateDecision struct {
	Approved bool               `json:"approved"`
	Reason   string             `json:"reason,omitempty"`
	Exposure *exposure.Decision `json:"exposure,omitempty"`
}

// SizedPosition is a base size after volatility and drawdown scaling, with
// both intermediate factors kept for audit.
type SizedPosition struct {
	Symbol           string            `json:"symbol"`
	BaseSize         float64           `json:"base_size"`
	FinalSize        float64           `json:"final_size"`
	VolatilityFactor float64           `json:"volatility_factor"`
	Regime           volatility.Regime `json:"regime"`
	DrawdownFactor   float64           `json:"drawdown_factor"`
}

// Status is the full read-only view across all components.
type Status struct {
	Timestamp        time.Time                    `json:"timestamp"`
	CanTrade         bool                         `json:"can_trade"`
	TradeBlockReason string                       `json:"trade_block_reason,omitempty"`
	SizeMultiplier   float64                      `json:"size_multiplier"`
	Drawdown         drawdown.State               `json:"drawdown"`
	Metrics          portfolio.Metrics            `json:"metrics"`
	VaR              *varmonitor.Snapshot         `json:"var,omitempty"`
	Regimes          map[string]volatility.Regime `json:"regimes"`
	MonitorRunning   bool                         `json:"monitor_running"`
}

// Summary is the condensed view for dashboards and logs.
type Summary struct {
	CanTrade        bool    `json:"can_trade"`
	ProtectionLevel string  `json:"protection_level"`
	DrawdownPct     float64 `json:"drawdown_pct"`
	SizeMultiplier  float64 `json:"size_multiplier"`
	PositionCount   int     `json:"position_count"`
	TotalExposure   float64 `json:"total_exposure_pct"`
	VaRBreach95     bool    `json:"var_breach_95"`
	VaRBreach99     bool    `json:"var_breach_99"`
}

// System aggregates the circuit breaker, exposure controller, volatility
// capper, portfolio engine and VaR monitor behind the consumer API. All
// collaborators are injected; the system owns no background work of its own.
type System struct {
	breaker  *drawdown.CircuitBreaker
	exposure *exposure.Controller
	capper   *volatility.Capper
	engine   *portfolio.Engine
	monitor  *varmonitor.Monitor
	log      zerolog.Logger
}

// NewSystem creates the orchestrator over fully constructed components.
func NewSystem(
	breaker *drawdown.CircuitBreaker,
	exposureCtrl *exposure.Controller,
	capper *volatility.Capper,
	engine *portfolio.Engine,
	monitor *varmonitor.Monitor,
	log zerolog.Logger,
) *System {
	return &System{
		breaker:  breaker,
		exposure: exposureCtrl,
		capper:   capper,
		engine:   engine,
		monitor:  monitor,
		log:      log.With().Str("component", "risk_system").Logger(),
	}
}

// CanOpenPosition evaluates the hard gates in fixed priority order: the
// drawdown circuit breaker first, then correlation-group exposure.
// Volatility never hard-blocks a trade, it only scales the size. A panic in
// any gate is converted to a reject: approving on an internal fault would be
// strictly worse than turning away one trade.
func (s *System) CanOpenPosition(symbol string, proposedSizeUSD float64, positions []portfolio.PositionExposure, accountBalance float64) (decision GateDecision) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("symbol", symbol).
				Interface("panic", r).
				Msg("Gate check panicked, rejecting")
			decision = GateDecision{Approved: false, Reason: fmt.Sprintf("InternalError:%v", r)}
		}
	}()

	if ok, reason := s.breaker.CanTrade(); !ok {
		s.log.Warn().Str("symbol", symbol).Str("reason", reason).Msg("Trade blocked by circuit breaker")
		return GateDecision{Approved: false, Reason: "CircuitBreaker:" + reason}
	}

	d := s.exposure.Check(symbol, proposedSizeUSD, positions, accountBalance)
	if !d.Approved {
		s.log.Warn().Str("symbol", symbol).Str("reason", d.Reason).Msg("Trade blocked by exposure controller")
		return GateDecision{Approved: false, Reason: "CorrelationControl:" + d.Reason, Exposure: &d}
	}

	return GateDecision{Approved: true, Exposure: &d}
}

// AdjustedPositionSize composes the volatility cap with the drawdown level
// multiplier. Each factor is at most 1, so the
// result never exceeds the base size.
func (s *System) AdjustedPositionSize(symbol string, baseSize float64, series volatility.Series) SizedPosition {
	if baseSize <= 0 {
		return SizedPosition{Symbol: symbol, Regime: volatility.RegimeNormal, VolatilityFactor: 1.0, DrawdownFactor: s.breaker.SizeMultiplier()}
	}

	volFactor, regime := s.capper.SizeMultiplier(symbol, series)
	ddFactor := s.breaker.SizeMultiplier()

	sized := SizedPosition{
		Symbol:           symbol,
		BaseSize:         baseSize,
		FinalSize:        baseSize * volFactor * ddFactor,
		VolatilityFactor: volFactor,
		Regime:           regime,
		DrawdownFactor:   ddFactor,
	}

	if sized.FinalSize < baseSize {
		s.log.Debug().
			Str("symbol", symbol).
			Float64("base_size", baseSize).
			Float64("final_size", sized.FinalSize).
			Float64("volatility_factor", volFactor).
			Float64("drawdown_factor", ddFactor).
			Msg("Position size reduced")
	}
	return sized
}

// UpdateCapital forwards a new account capital reading to the circuit
// breaker, which reclassifies its protection level.
func (s *System) UpdateCapital(newCapital float64) {
	s.breaker.Update(newCapital)
}

// RecordTradeResult forwards a closed trade's P&L to the circuit breaker's
// streak tracking.
func (s *System) RecordTradeResult(pnl float64) {
	s.breaker.RecordTrade(pnl)
}

// Status aggregates a read-only view of every component. Portfolio metrics
// are computed against the breaker's current capital.
func (s *System) Status() Status {
	dd := s.breaker.Snapshot()
	canTrade, reason := s.breaker.CanTrade()

	st := Status{
		Timestamp:        time.Now(),
		CanTrade:         canTrade,
		SizeMultiplier:   s.breaker.SizeMultiplier(),
		Drawdown:         dd,
		Metrics:          s.engine.CalculateMetrics(dd.CurrentCapital),
		Regimes:          s.capper.Regimes(),
		MonitorRunning:   s.monitor.Running(),
	}
	if !canTrade {
		st.TradeBlockReason = reason
	}
	if snap, ok := s.monitor.Latest(); ok {
		st.VaR = &snap
	}
	return st
}

// Summary returns the condensed cross-component view.
func (s *System) Summary() Summary {
	dd := s.breaker.Snapshot()
	canTrade, _ := s.breaker.CanTrade()
	metrics := s.engine.CalculateMetrics(dd.CurrentCapital)

	sum := Summary{
		CanTrade:        canTrade,
		ProtectionLevel: dd.ProtectionLevel,
		DrawdownPct:     dd.DrawdownPct,
		SizeMultiplier:  s.breaker.SizeMultiplier(),
		PositionCount:   metrics.PositionCount,
		TotalExposure:   metrics.TotalExposurePct,
	}
	if snap, ok := s.monitor.Latest(); ok {
		sum.VaRBreach95 = snap.Breach95
		sum.VaRBreach99 = snap.Breach99
	}
	return sum
}
