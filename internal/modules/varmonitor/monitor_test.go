package varmonitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMonitor(cfg Config) *Monitor {
	return NewMonitor(cfg, nil, nil, zerolog.Nop())
}

// seedReturns fills the historical window directly.
func seedReturns(m *Monitor, returns []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range returns {
		m.ring.add(r)
	}
}

func TestParametricEstimate(t *testing.T) {
	est := parametricEstimate(100000, 4, 0.02)

	// vol = 0.02 * sqrt(4) = 0.04
	assert.InDelta(t, 100000*0.04*1.6449, est.var95, 1.0)
	assert.InDelta(t, 100000*0.04*2.3263, est.var99, 1.0)
	assert.InDelta(t, est.var95*1.252, est.cvar95, 1.0)
	assert.InDelta(t, est.var99*1.159, est.cvar99, 1.0)

	assert.Equal(t, varEstimate{}, parametricEstimate(0, 4, 0.02))
	assert.Equal(t, varEstimate{}, parametricEstimate(100000, 0, 0.02))
}

func TestHistoricalEstimateInsufficientData(t *testing.T) {
	returns := make([]float64, 29)
	for i := range returns {
		returns[i] = -0.01
	}
	assert.Equal(t, varEstimate{}, historicalEstimate(returns, 10000, 30))
}

func TestHistoricalEstimateOrdering(t *testing.T) {
	// Five 2% losses among 25 small gains.
	returns := make([]float64, 30)
	for i := range returns {
		if i < 5 {
			returns[i] = -0.02
		} else {
			returns[i] = 0.005
		}
	}

	est := historicalEstimate(returns, 10000, 30)

	assert.InDelta(t, 200.0, est.var95, 0.001)
	assert.InDelta(t, 200.0, est.var99, 0.001)
	assert.LessOrEqual(t, est.var95, est.var99)
	assert.GreaterOrEqual(t, est.cvar95, est.var95)
	assert.GreaterOrEqual(t, est.cvar99, est.var99)
}

func TestRecordPortfolioReturn(t *testing.T) {
	m := testMonitor(DefaultConfig())

	m.RecordPortfolioReturn(10000) // first value: no return yet
	assert.Equal(t, 0, m.ObservationCount())

	m.RecordPortfolioReturn(10100) // +1%
	m.RecordPortfolioReturn(9999)
	assert.Equal(t, 2, m.ObservationCount())

	// Non-positive values are ignored.
	m.RecordPortfolioReturn(0)
	m.RecordPortfolioReturn(-5)
	assert.Equal(t, 2, m.ObservationCount())
}

func TestReturnsRingBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryWindow = 10
	m := testMonitor(cfg)

	value := 10000.0
	for i := 0; i < 50; i++ {
		m.RecordPortfolioReturn(value)
		value *= 1.001
	}
	assert.Equal(t, 10, m.ObservationCount())
}

func TestComputeSnapshotParametricPrimary(t *testing.T) {
	m := testMonitor(DefaultConfig())

	positions := []Position{
		{Symbol: "BTC", SizeUSD: 3000},
		{Symbol: "ETH", SizeUSD: -2000, Direction: "short"},
	}
	s := m.ComputeSnapshot(10000, positions)

	assert.Equal(t, MethodParametric, s.PrimaryMethod, "no history yet, fail open to parametric")
	assert.Equal(t, 2, s.PositionCount)
	assert.InDelta(t, 5000, s.ExposureUSD, 0.001, "short size counts as absolute exposure")
	assert.Equal(t, 0, s.ScenarioCount)
	assert.Greater(t, s.ParametricVaR95, 0.0)
	assert.Equal(t, 0.0, s.HistoricalVaR95, "insufficient-data sentinel")

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, s.Timestamp, latest.Timestamp)
}

func TestComputeSnapshotHistoricalPrimaryAndBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit95Pct = 0.01 // 100 USD at a 10k portfolio
	m := testMonitor(cfg)

	returns := make([]float64, 30)
	for i := range returns {
		if i < 5 {
			returns[i] = -0.02
		} else {
			returns[i] = 0.005
		}
	}
	seedReturns(m, returns)

	var notified []Breach
	m.RegisterBreachCallback(func(b Breach) { notified = append(notified, b) })

	s := m.ComputeSnapshot(10000, []Position{{Symbol: "BTC", SizeUSD: 5000}})

	assert.Equal(t, MethodHistorical, s.PrimaryMethod)
	assert.True(t, s.Breach95, "historical VaR95 of 200 exceeds the 100 limit")
	assert.False(t, s.Breach99, "limit99 at 800 is not breached")

	require.Len(t, notified, 1)
	assert.Equal(t, 0.95, notified[0].Confidence)
	assert.Equal(t, MethodHistorical, notified[0].Method)
	assert.NotEmpty(t, notified[0].ID)

	breaches := m.Breaches()
	require.Len(t, breaches, 1)
	assert.False(t, breaches[0].Acknowledged)
}

func TestAcknowledgeBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit95Pct = 0.0001
	m := testMonitor(cfg)

	m.ComputeSnapshot(10000, []Position{{Symbol: "BTC", SizeUSD: 8000}})
	breaches := m.Breaches()
	require.NotEmpty(t, breaches)

	assert.True(t, m.AcknowledgeBreach(breaches[0].ID))
	assert.True(t, m.Breaches()[0].Acknowledged)
	assert.False(t, m.AcknowledgeBreach("no-such-id"))
}

func TestSnapshotHistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SnapshotCapacity = 5
	m := testMonitor(cfg)

	for i := 0; i < 20; i++ {
		m.ComputeSnapshot(10000, nil)
	}
	assert.Len(t, m.Snapshots(0), 5)
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond

	value := 10000.0
	m := NewMonitor(cfg,
		func() float64 { value *= 1.001; return value },
		func() []Position { return []Position{{Symbol: "BTC", SizeUSD: 1000}} },
		zerolog.Nop())

	m.Start()
	m.Start() // second start warns, no-op
	assert.True(t, m.Running())

	assert.Eventually(t, func() bool {
		_, ok := m.Latest()
		return ok
	}, time.Second, 10*time.Millisecond, "background loop should produce snapshots")

	m.Stop()
	m.Stop() // second stop warns, no-op
	assert.False(t, m.Running())
}

func TestCycleSurvivesPanickingCallback(t *testing.T) {
	cfg := DefaultConfig()
	m := NewMonitor(cfg,
		func() float64 { panic("market data feed down") },
		func() []Position { return nil },
		zerolog.Nop())

	assert.NotPanics(t, func() {
		m.cycle()
		m.cycle()
		m.cycle()
	})
	_, ok := m.Latest()
	assert.False(t, ok, "failed cycles must not produce snapshots")
}
