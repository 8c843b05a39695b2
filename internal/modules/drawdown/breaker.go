package drawdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/pkg/formulas"
)

// Thresholds maps drawdown percentages to protection levels. The values are
// ordered: Caution < Warning < Danger < Halt.
type Thresholds struct {
	CautionPct float64
	WarningPct float64
	DangerPct  float64
	HaltPct    float64
}

// Multipliers maps protection levels to position size multipliers.
type Multipliers struct {
	Normal  float64
	Caution float64
	Warning float64
	Danger  float64
	Halt    float64
}

// Config holds circuit breaker configuration.
type Config struct {
	BaseCapital             float64
	Thresholds              Thresholds
	Multipliers             Multipliers
	ProtectedCapitalPct     float64 // hard capital floor as fraction of base capital
	RecoveryWinStreak       int     // consecutive wins required before de-escalation
	RecoveryProfitThreshold float64 // fraction of the drawdown that must be recovered
	StatePath               string  // file the state is persisted to
}

// DefaultConfig returns the canonical circuit breaker configuration for the
// given base capital.
func DefaultConfig(baseCapital float64) Config {
	return Config{
		BaseCapital: baseCapital,
		Thresholds: Thresholds{
			CautionPct: 5,
			WarningPct: 10,
			DangerPct:  15,
			HaltPct:    20,
		},
		Multipliers: Multipliers{
			Normal:  1.0,
			Caution: 0.75,
			Warning: 0.5,
			Danger:  0.25,
			Halt:    0.0,
		},
		ProtectedCapitalPct:     0.80,
		RecoveryWinStreak:       3,
		RecoveryProfitThreshold: 0.50,
		StatePath:               "drawdown_protection.json",
	}
}

// CircuitBreaker halts or throttles trading based on portfolio drawdown from
// its historical peak. State survives restarts via an atomically written JSON
// file; a missing or corrupt file falls back to a fresh state at base capital.
type CircuitBreaker struct {
	mu    sync.RWMutex
	cfg   Config
	state State
	level ProtectionLevel
	log   zerolog.Logger
}

// NewCircuitBreaker creates a circuit breaker, restoring persisted state when
// a usable state file exists.
func NewCircuitBreaker(cfg Config, log zerolog.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		cfg: cfg,
		log: log.With().Str("component", "circuit_breaker").Logger(),
	}

	if state, ok := LoadState(cfg.StatePath); ok {
		cb.state = state
		cb.level = ParseProtectionLevel(state.ProtectionLevel)
		cb.log.Info().
			Float64("peak_capital", state.PeakCapital).
			Float64("current_capital", state.CurrentCapital).
			Str("protection_level", cb.level.String()).
			Msg("Restored drawdown protection state")
	} else {
		cb.state = newState(cfg.BaseCapital)
		cb.level = LevelNormal
		cb.log.Info().
			Float64("base_capital", cfg.BaseCapital).
			Msg("Starting with fresh drawdown protection state")
	}

	return cb
}

// Update records a new portfolio capital value and reclassifies the
// protection level. A new all-time high resets the peak and clears any prior
// escalation; otherwise the level escalates freely with drawdown but only
// steps down one rung per qualifying recovery update.
func (cb *CircuitBreaker) Update(newCapital float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if newCapital < 0 {
		newCapital = 0
	}

	if newCapital > cb.state.PeakCapital {
		cb.state.PeakCapital = newCapital
		cb.state.CurrentCapital = newCapital
		cb.state.DrawdownAmount = 0
		cb.state.DrawdownPct = 0
		cb.state.MaxDrawdownAmount = 0
		cb.state.TradesSincePeak = 0
		if cb.level != LevelNormal {
			cb.log.Info().
				Str("from", cb.level.String()).
				Float64("new_peak", newCapital).
				Msg("New all-time high, protection cleared")
		}
		cb.level = LevelNormal
		cb.persistLocked()
		return
	}

	cb.state.CurrentCapital = newCapital
	cb.state.DrawdownAmount = cb.state.PeakCapital - newCapital
	cb.state.DrawdownPct = formulas.DrawdownPct(cb.state.PeakCapital, newCapital)
	if cb.state.DrawdownAmount > cb.state.MaxDrawdownAmount {
		cb.state.MaxDrawdownAmount = cb.state.DrawdownAmount
	}

	classified := cb.classify(cb.state.DrawdownPct)
	switch {
	case classified > cb.level:
		cb.log.Warn().
			Str("from", cb.level.String()).
			Str("to", classified.String()).
			Float64("drawdown_pct", cb.state.DrawdownPct).
			Msg("Protection level escalated")
		cb.level = classified
	case classified < cb.level && cb.recoveryQualifiesLocked():
		// Hysteresis: step down exactly one rung, never more.
		cb.level--
		cb.log.Info().
			Str("to", cb.level.String()).
			Int("winning_streak", cb.state.WinningStreak).
			Float64("drawdown_pct", cb.state.DrawdownPct).
			Msg("Protection level stepped down after recovery")
	}

	cb.persistLocked()
}

// RecordTrade updates win/loss streaks from a closed trade's P&L.
func (cb *CircuitBreaker) RecordTrade(pnl float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case pnl > 0:
		cb.state.WinningStreak++
		cb.state.LosingStreak = 0
	case pnl < 0:
		cb.state.LosingStreak++
		cb.state.WinningStreak = 0
	}
	cb.state.TradesSincePeak++

	cb.persistLocked()
}

// CanTrade reports whether new positions may be opened. Trading stops at
// HALT and, independently of the level table, once capital falls to the
// protected floor.
func (cb *CircuitBreaker) CanTrade() (bool, string) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.level == LevelHalt {
		return false, fmt.Sprintf("protection level HALT (drawdown %.1f%%)", cb.state.DrawdownPct)
	}

	floor := cb.cfg.BaseCapital * cb.cfg.ProtectedCapitalPct
	if cb.state.CurrentCapital <= floor {
		return false, fmt.Sprintf("capital %.2f at or below protected floor %.2f", cb.state.CurrentCapital, floor)
	}

	return true, ""
}

// SizeMultiplier returns the position size multiplier for the current level.
func (cb *CircuitBreaker) SizeMultiplier() float64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	switch cb.level {
	case LevelCaution:
		return cb.cfg.Multipliers.Caution
	case LevelWarning:
		return cb.cfg.Multipliers.Warning
	case LevelDanger:
		return cb.cfg.Multipliers.Danger
	case LevelHalt:
		return cb.cfg.Multipliers.Halt
	default:
		return cb.cfg.Multipliers.Normal
	}
}

// Level returns the current protection level.
func (cb *CircuitBreaker) Level() ProtectionLevel {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.level
}

// Snapshot returns a copy of the current state.
func (cb *CircuitBreaker) Snapshot() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	s := cb.state
	s.ProtectionLevel = cb.level.String()
	return s
}

// classify maps a drawdown percentage to its protection level.
func (cb *CircuitBreaker) classify(ddPct float64) ProtectionLevel {
	t := cb.cfg.Thresholds
	switch {
	case ddPct >= t.HaltPct:
		return LevelHalt
	case ddPct >= t.DangerPct:
		return LevelDanger
	case ddPct >= t.WarningPct:
		return LevelWarning
	case ddPct >= t.CautionPct:
		return LevelCaution
	default:
		return LevelNormal
	}
}

// recoveryQualifiesLocked reports whether the de-escalation gate is open:
// enough consecutive wins and enough of the worst drawdown recovered.
func (cb *CircuitBreaker) recoveryQualifiesLocked() bool {
	if cb.state.WinningStreak < cb.cfg.RecoveryWinStreak {
		return false
	}
	if cb.state.MaxDrawdownAmount <= 0 {
		return true
	}
	recovered := (cb.state.MaxDrawdownAmount - cb.state.DrawdownAmount) / cb.state.MaxDrawdownAmount
	return recovered >= cb.cfg.RecoveryProfitThreshold
}

// persistLocked writes the state to disk. Failures are logged, never fatal:
// a persistence outage must not take down the trading gate.
func (cb *CircuitBreaker) persistLocked() {
	cb.state.ProtectionLevel = cb.level.String()
	cb.state.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := SaveState(cb.cfg.StatePath, cb.state); err != nil {
		cb.log.Error().Err(err).Str("path", cb.cfg.StatePath).Msg("Failed to persist drawdown state")
	}
}
