package drawdown

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig(10000)
	cfg.StatePath = filepath.Join(t.TempDir(), "drawdown_protection.json")
	return cfg
}

func TestNormalBelowCautionThreshold(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	for _, capital := range []float64{10000, 9900, 9700, 9501} {
		cb.Update(capital)
		assert.Equal(t, LevelNormal, cb.Level(), "capital %v should stay NORMAL", capital)
		assert.Equal(t, 1.0, cb.SizeMultiplier())
	}
}

func TestEscalationAtTenPercent(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	cb.Update(9000)

	assert.Equal(t, LevelWarning, cb.Level())
	assert.InDelta(t, 10.0, cb.Snapshot().DrawdownPct, 0.001)
	assert.Equal(t, 0.5, cb.SizeMultiplier())
}

func TestEscalationJumpsMultipleLevels(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	// 16% drawdown in one update: straight to DANGER, skipping rungs.
	cb.Update(8400)
	assert.Equal(t, LevelDanger, cb.Level())

	// 22%: HALT.
	cb.Update(7800)
	assert.Equal(t, LevelHalt, cb.Level())
}

func TestNoDeEscalationWithoutRecoveryGate(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	cb.Update(8500) // 15% -> DANGER
	require.Equal(t, LevelDanger, cb.Level())

	// Drawdown improves but no winning streak: level must hold.
	cb.Update(9400)
	assert.Equal(t, LevelDanger, cb.Level())
}

func TestDeEscalationStepsOneRungOnly(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	cb.Update(8500) // 15% -> DANGER
	require.Equal(t, LevelDanger, cb.Level())

	// Three consecutive wins recovering 60% of the drawdown.
	cb.RecordTrade(100)
	cb.RecordTrade(200)
	cb.RecordTrade(300)
	cb.Update(9400) // drawdown amount 600 of worst 1500 -> 60% recovered

	assert.Equal(t, LevelWarning, cb.Level(), "should step down exactly one rung, not to NORMAL")
}

func TestLosingTradeResetsWinningStreak(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	cb.Update(8500)
	cb.RecordTrade(100)
	cb.RecordTrade(100)
	cb.RecordTrade(-50)
	cb.Update(9400)

	assert.Equal(t, LevelDanger, cb.Level(), "broken streak must not open the recovery gate")
	assert.Equal(t, 1, cb.Snapshot().LosingStreak)
}

func TestNewAllTimeHighClearsEscalation(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	cb.Update(7800) // HALT
	require.Equal(t, LevelHalt, cb.Level())

	cb.Update(10500)

	assert.Equal(t, LevelNormal, cb.Level())
	s := cb.Snapshot()
	assert.Equal(t, 10500.0, s.PeakCapital)
	assert.Equal(t, 0.0, s.DrawdownPct)
	assert.Equal(t, 0, s.TradesSincePeak)
}

func TestCanTradeHaltAndCapitalFloor(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(t), zerolog.Nop())

	ok, reason := cb.CanTrade()
	assert.True(t, ok)
	assert.Empty(t, reason)

	// 12% drawdown: WARNING, still tradeable (floor is 80% of base).
	cb.Update(8800)
	ok, _ = cb.CanTrade()
	assert.True(t, ok)

	// Deep drawdown: HALT.
	cb.Update(7000)
	ok, reason = cb.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "HALT")
}

func TestCanTradeCapitalFloorIndependentOfLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProtectedCapitalPct = 0.90 // floor at 9000

	cb := NewCircuitBreaker(cfg, zerolog.Nop())
	cb.Update(8900) // 11% drawdown: WARNING, but below the floor

	require.Equal(t, LevelWarning, cb.Level())
	ok, reason := cb.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "protected floor")
}

func TestPersistReloadRoundTrip(t *testing.T) {
	cfg := testConfig(t)

	cb := NewCircuitBreaker(cfg, zerolog.Nop())
	cb.Update(9000)
	cb.RecordTrade(-100)

	reloaded := NewCircuitBreaker(cfg, zerolog.Nop())
	original := cb.Snapshot()
	restored := reloaded.Snapshot()

	assert.Equal(t, original.PeakCapital, restored.PeakCapital)
	assert.Equal(t, original.CurrentCapital, restored.CurrentCapital)
	assert.Equal(t, original.ProtectionLevel, restored.ProtectionLevel)
	assert.Equal(t, original.LosingStreak, restored.LosingStreak)
	assert.Equal(t, cb.Level(), reloaded.Level())
}

func TestCorruptStateFileFallsBackFresh(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.StatePath, []byte("{not json"), 0644))

	cb := NewCircuitBreaker(cfg, zerolog.Nop())

	assert.Equal(t, LevelNormal, cb.Level())
	assert.Equal(t, 10000.0, cb.Snapshot().PeakCapital)
}

func TestLoadStateToleratesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	payload := `{"peak_capital": 12000, "current_capital": 11000, "protection_level": "CAUTION", "future_field": 42}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

	s, ok := LoadState(path)
	require.True(t, ok)
	assert.Equal(t, 12000.0, s.PeakCapital)
	assert.Equal(t, LevelCaution, ParseProtectionLevel(s.ProtectionLevel))
}

func TestParseProtectionLevelUnknownDefaultsNormal(t *testing.T) {
	assert.Equal(t, LevelNormal, ParseProtectionLevel("PANIC"))
	assert.Equal(t, LevelHalt, ParseProtectionLevel("HALT"))
}
