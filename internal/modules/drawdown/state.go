// Package drawdown implements the capital protection circuit breaker: a
// hysteresis-based state machine over portfolio drawdown with crash-safe
// persistence of its state.
package drawdown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProtectionLevel is the ordered escalation level of the circuit breaker.
// Escalation may jump several levels in one update; de-escalation moves at
// most one level per qualifying update.
type ProtectionLevel int

const (
	LevelNormal ProtectionLevel = iota
	LevelCaution
	LevelWarning
	LevelDanger
	LevelHalt
)

var levelNames = [...]string{"NORMAL", "CAUTION", "WARNING", "DANGER", "HALT"}

func (l ProtectionLevel) String() string {
	if l < LevelNormal || l > LevelHalt {
		return "NORMAL"
	}
	return levelNames[l]
}

// ParseProtectionLevel converts a persisted level name back to its enum
// value. Unknown names map to NORMAL so a damaged state file can never load
// into an undefined level.
func ParseProtectionLevel(s string) ProtectionLevel {
	for i, name := range levelNames {
		if name == s {
			return ProtectionLevel(i)
		}
	}
	return LevelNormal
}

// State is the persisted circuit breaker state. Unknown fields in the file
// are ignored and missing fields fall back to zero values, so older or newer
// schema revisions load without error.
type State struct {
	PeakCapital       float64 `json:"peak_capital"`
	CurrentCapital    float64 `json:"current_capital"`
	DrawdownAmount    float64 `json:"drawdown_amount"`
	DrawdownPct       float64 `json:"drawdown_pct"`
	MaxDrawdownAmount float64 `json:"max_drawdown_amount"`
	ProtectionLevel   string  `json:"protection_level"`
	LosingStreak      int     `json:"losing_streak"`
	WinningStreak     int     `json:"winning_streak"`
	TradesSincePeak   int     `json:"trades_since_peak"`
	LastUpdated       string  `json:"last_updated"`
}

// newState returns a fresh state at the given base capital.
func newState(baseCapital float64) State {
	return State{
		PeakCapital:     baseCapital,
		CurrentCapital:  baseCapital,
		ProtectionLevel: LevelNormal.String(),
		LastUpdated:     time.Now().UTC().Format(time.RFC3339),
	}
}

// LoadState reads the persisted state from path. The boolean reports whether
// a usable state was found; on a missing, unreadable or corrupt file it is
// false and the caller should start fresh.
func LoadState(path string) (State, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, false
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, false
	}
	if s.PeakCapital <= 0 || s.CurrentCapital < 0 {
		return State{}, false
	}
	return s, true
}

// SaveState writes the state atomically: serialize to a temp file in the
// same directory, then rename over the target. A crash mid-write leaves the
// previous file intact.
func SaveState(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal drawdown state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".drawdown_state_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file into place: %w", err)
	}
	return nil
}
