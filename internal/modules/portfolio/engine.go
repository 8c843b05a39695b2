package portfolio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/pkg/formulas"
)

// Config holds risk engine configuration.
type Config struct {
	MaxTotalExposure     float64       // fraction of portfolio value, default 0.80
	MaxGroupExposure     float64       // fraction per correlation group, default 0.30
	CorrelationThreshold float64       // clustering threshold, default 0.70
	MinMatrixConfidence  float64       // below this, dynamic groups are not trusted
	RefreshInterval      time.Duration // correlation recompute interval
	LookbackPeriods      int           // price history window per symbol
	MinSamples           int           // minimum common return samples for a refresh
	DailyVolatility      float64       // per-position volatility for the diagnostic VaR
}

// DefaultConfig returns the canonical engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxTotalExposure:     0.80,
		MaxGroupExposure:     0.30,
		CorrelationThreshold: 0.70,
		MinMatrixConfidence:  0.50,
		RefreshInterval:      5 * time.Minute,
		LookbackPeriods:      100,
		MinSamples:           20,
		DailyVolatility:      0.02,
	}
}

// Engine maintains the correlation matrix and groups, tracks per-position
// exposure and enforces the exposure limits when positions are added. It is
// the single source of truth for correlation group membership.
type Engine struct {
	mu           sync.RWMutex
	cfg          Config
	positions    map[string]*PositionExposure
	priceHistory map[string][]float64
	matrix       *CorrelationMatrix
	groups       []CorrelationGroup
	symbolGroup  map[string]string
	lastRefresh  time.Time
	log          zerolog.Logger
}

// NewEngine creates a portfolio risk engine.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		positions:    make(map[string]*PositionExposure),
		priceHistory: make(map[string][]float64),
		symbolGroup:  make(map[string]string),
		log:          log.With().Str("component", "risk_engine").Logger(),
	}
}

// AddPosition registers a new position after validating exposure limits.
// Degenerate inputs and limit violations reject without mutating state.
func (e *Engine) AddPosition(symbol string, sizeUSD float64, direction string, portfolioValue float64) (bool, string) {
	if portfolioValue <= 0 {
		return false, "portfolio value must be positive"
	}
	if sizeUSD <= 0 {
		return false, "position size must be positive"
	}
	if direction != DirectionLong && direction != DirectionShort {
		return false, fmt.Sprintf("unknown direction %q", direction)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	totalAfter := sizeUSD
	for _, p := range e.positions {
		totalAfter += p.SizeUSD
	}
	if totalAfter/portfolioValue > e.cfg.MaxTotalExposure {
		return false, fmt.Sprintf(
			"total exposure %.1f%% would exceed limit %.1f%%",
			totalAfter/portfolioValue*100, e.cfg.MaxTotalExposure*100)
	}

	group := e.groupForLocked(symbol)
	if group != "" {
		groupAfter := sizeUSD
		for _, p := range e.positions {
			if e.groupForLocked(p.Symbol) == group {
				groupAfter += p.SizeUSD
			}
		}
		if groupAfter/portfolioValue > e.cfg.MaxGroupExposure {
			return false, fmt.Sprintf(
				"correlation group %s exposure %.1f%% would exceed limit %.1f%%",
				group, groupAfter/portfolioValue*100, e.cfg.MaxGroupExposure*100)
		}
	}

	e.positions[symbol] = &PositionExposure{
		Symbol:           symbol,
		SizeUSD:          sizeUSD,
		PctOfPortfolio:   sizeUSD / portfolioValue,
		Direction:        direction,
		EntryTime:        time.Now(),
		CorrelationGroup: group,
	}

	e.log.Debug().
		Str("symbol", symbol).
		Float64("size_usd", sizeUSD).
		Str("direction", direction).
		Str("group", group).
		Msg("Position added")

	return true, ""
}

// RemovePosition drops a position from exposure tracking.
func (e *Engine) RemovePosition(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.positions, symbol)
}

// UpdatePositionPnL records the unrealized P&L of an open position.
func (e *Engine) UpdatePositionPnL(symbol string, pnl float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.positions[symbol]; ok {
		p.UnrealizedPnL = pnl
	}
}

// Positions returns a copy of all tracked positions.
func (e *Engine) Positions() []PositionExposure {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]PositionExposure, 0, len(e.positions))
	for _, p := range e.positions {
		cp := *p
		cp.CorrelationGroup = e.groupForLocked(p.Symbol)
		out = append(out, cp)
	}
	return out
}

// RecordPrice appends a price observation for a symbol, bounded by the
// lookback window, and refreshes correlations when the interval has elapsed.
func (e *Engine) RecordPrice(symbol string, price float64) {
	if price <= 0 || math.IsNaN(price) {
		return
	}

	e.mu.Lock()
	history := append(e.priceHistory[symbol], price)
	if max := e.cfg.LookbackPeriods + 1; len(history) > max {
		history = history[len(history)-max:]
	}
	e.priceHistory[symbol] = history
	due := time.Since(e.lastRefresh) >= e.cfg.RefreshInterval
	e.mu.Unlock()

	if due {
		e.RefreshCorrelations()
	}
}

// Matrix returns a deep copy of the latest correlation matrix, nil when no
// refresh has produced one yet.
func (e *Engine) Matrix() *CorrelationMatrix {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matrix.Clone()
}

// Groups returns a copy of the current correlation groups.
func (e *Engine) Groups() []CorrelationGroup {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]CorrelationGroup, len(e.groups))
	for i, g := range e.groups {
		out[i] = CorrelationGroup{Name: g.Name, Symbols: append([]string(nil), g.Symbols...)}
	}
	return out
}

// ResolveGroup reports the dynamic correlation group of a symbol. It returns
// ok=false when the symbol is ungrouped or the matrix confidence is below the
// configured minimum, signalling callers to fall back to static groups.
func (e *Engine) ResolveGroup(symbol string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matrix == nil || e.matrix.Confidence < e.cfg.MinMatrixConfidence {
		return "", false
	}
	group, ok := e.symbolGroup[symbol]
	return group, ok
}

// SizeAdjustmentFor shrinks a proposed position size proportionally to the
// symbol's mean absolute correlation with existing holdings, up to a 50%
// reduction at perfect correlation.
func (e *Engine) SizeAdjustmentFor(symbol string, proposedSize float64) SizeAdjustment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	adj := SizeAdjustment{OriginalSize: proposedSize, AdjustedSize: proposedSize}
	if proposedSize <= 0 || e.matrix == nil || len(e.positions) == 0 {
		return adj
	}

	var corrs []float64
	for held := range e.positions {
		if held == symbol {
			continue
		}
		if c := e.matrix.At(symbol, held); c != 0 {
			corrs = append(corrs, math.Abs(c))
		}
	}
	if len(corrs) == 0 {
		return adj
	}

	adj.MeanCorrelation = formulas.Mean(corrs)
	adj.ReductionPct = 0.5 * adj.MeanCorrelation
	adj.AdjustedSize = proposedSize * (1.0 - adj.ReductionPct)
	return adj
}

// groupForLocked resolves a symbol's correlation group, empty when ungrouped
// or the matrix is not trustworthy. Caller must hold at least a read lock.
func (e *Engine) groupForLocked(symbol string) string {
	if e.matrix == nil || e.matrix.Confidence < e.cfg.MinMatrixConfidence {
		return ""
	}
	return e.symbolGroup[symbol]
}
