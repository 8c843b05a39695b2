// Package volatility implements the volatility position capper: position
// sizes are scaled down when a symbol's ATR runs abnormally hot relative to
// its own trailing average.
package volatility

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/pkg/formulas"
)

// Regime classifies current ATR relative to its trailing average.
type Regime string

const (
	RegimeExtremeHigh Regime = "EXTREME_HIGH" // >= 2.5x
	RegimeHigh        Regime = "HIGH"         // >= 1.5x
	RegimeNormal      Regime = "NORMAL"
	RegimeLow         Regime = "LOW"         // < 0.8x
	RegimeExtremeLow  Regime = "EXTREME_LOW" // < 0.5x
)

// Series is the OHLC price history of one symbol, oldest first.
type Series struct {
	Highs  []float64
	Lows   []float64
	Closes []float64
}

// Config holds volatility capper configuration.
type Config struct {
	ATRPeriod             int     // ATR period, default 14
	Lookback              int     // trailing average window, default 14
	ExtremeHighRatio      float64 // default 2.5
	HighRatio             float64 // default 1.5
	LowRatio              float64 // default 0.8
	ExtremeLowRatio       float64 // default 0.5
	ExtremeHighMultiplier float64 // default 0.25
	HighMultiplier        float64 // default 0.5
}

// DefaultConfig returns the canonical capper configuration.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:             14,
		Lookback:              14,
		ExtremeHighRatio:      2.5,
		HighRatio:             1.5,
		LowRatio:              0.8,
		ExtremeLowRatio:       0.5,
		ExtremeHighMultiplier: 0.25,
		HighMultiplier:        0.5,
	}
}

// Capper scales position sizes down in abnormal volatility. It only ever
// reduces: multipliers are 1.0 outside the HIGH regimes, and missing or
// insufficient data fails open to NORMAL so data gaps never block trading.
type Capper struct {
	mu          sync.RWMutex
	cfg         Config
	lastRegimes map[string]Regime
	log         zerolog.Logger
}

// NewCapper creates a volatility capper.
func NewCapper(cfg Config, log zerolog.Logger) *Capper {
	return &Capper{
		cfg:         cfg,
		lastRegimes: make(map[string]Regime),
		log:         log.With().Str("component", "volatility_capper").Logger(),
	}
}

// SizeMultiplier classifies the symbol's volatility regime and returns the
// corresponding size multiplier.
func (c *Capper) SizeMultiplier(symbol string, series Series) (float64, Regime) {
	ratio := formulas.ATRRatio(series.Highs, series.Lows, series.Closes, c.cfg.ATRPeriod, c.cfg.Lookback)
	if ratio == nil {
		// Explicit fail-open policy: a data gap must never block trading.
		c.recordRegime(symbol, RegimeNormal)
		return 1.0, RegimeNormal
	}

	regime := c.classify(*ratio)
	c.recordRegime(symbol, regime)

	switch regime {
	case RegimeExtremeHigh:
		return c.cfg.ExtremeHighMultiplier, regime
	case RegimeHigh:
		return c.cfg.HighMultiplier, regime
	default:
		// Low-side boosting is out of scope: this capper only reduces.
		return 1.0, regime
	}
}

// ApplyCap multiplies a base size by the volatility multiplier, clamped so
// the result never exceeds the base size.
func (c *Capper) ApplyCap(symbol string, baseSize float64, series Series) (float64, Regime) {
	multiplier, regime := c.SizeMultiplier(symbol, series)
	capped := baseSize * multiplier
	if capped > baseSize {
		capped = baseSize
	}
	if regime == RegimeHigh || regime == RegimeExtremeHigh {
		c.log.Debug().
			Str("symbol", symbol).
			Str("regime", string(regime)).
			Float64("base_size", baseSize).
			Float64("capped_size", capped).
			Msg("Position size capped for volatility")
	}
	return capped, regime
}

// Regimes returns the last observed regime per symbol.
func (c *Capper) Regimes() map[string]Regime {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Regime, len(c.lastRegimes))
	for s, r := range c.lastRegimes {
		out[s] = r
	}
	return out
}

func (c *Capper) classify(ratio float64) Regime {
	switch {
	case ratio >= c.cfg.ExtremeHighRatio:
		return RegimeExtremeHigh
	case ratio >= c.cfg.HighRatio:
		return RegimeHigh
	case ratio < c.cfg.ExtremeLowRatio:
		return RegimeExtremeLow
	case ratio < c.cfg.LowRatio:
		return RegimeLow
	default:
		return RegimeNormal
	}
}

func (c *Capper) recordRegime(symbol string, regime Regime) {
	c.mu.Lock()
	c.lastRegimes[symbol] = regime
	c.mu.Unlock()
}
