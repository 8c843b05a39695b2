package varmonitor

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds VaR monitor configuration.
type Config struct {
	DailyVolatility  float64       // parametric per-position volatility, default 0.02
	Limit95Pct       float64       // VaR95 limit as fraction of portfolio value
	Limit99Pct       float64       // VaR99 limit as fraction of portfolio value
	Interval         time.Duration // background polling interval
	HistoryWindow    int           // realized returns kept for historical simulation
	MinObservations  int           // observations required before historical kicks in
	SnapshotCapacity int           // in-memory snapshot ring size
	BreachCapacity   int           // in-memory breach list size
	StopTimeout      time.Duration // bound on waiting for the loop to exit
}

// DefaultConfig returns the canonical monitor configuration.
func DefaultConfig() Config {
	return Config{
		DailyVolatility:  0.02,
		Limit95Pct:       0.05,
		Limit99Pct:       0.08,
		Interval:         60 * time.Second,
		HistoryWindow:    500,
		MinObservations:  30,
		SnapshotCapacity: 1000,
		BreachCapacity:   500,
		StopTimeout:      5 * time.Second,
	}
}

// ValueFn supplies the current portfolio value.
type ValueFn func() float64

// PositionsFn supplies the current open positions.
type PositionsFn func() []Position

// BreachCallback receives breach notifications, invoked synchronously from
// ComputeSnapshot before it returns.
type BreachCallback func(Breach)

// Monitor is the authoritative dual-method VaR/CVaR engine. Readers always
// receive copies; the background loop is cancellable via a done channel with
// worst-case shutdown latency of one interval.
type Monitor struct {
	mu        sync.RWMutex
	cfg       Config
	valueFn   ValueFn
	posFn     PositionsFn
	ring      *returnsRing
	lastValue float64
	haveLast  bool
	snapshots []Snapshot
	breaches  []Breach
	callbacks []BreachCallback
	running   bool
	done      chan struct{}
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewMonitor creates a VaR monitor. The callbacks are caller-supplied and
// must not block indefinitely; a panicking callback skips one cycle only.
func NewMonitor(cfg Config, valueFn ValueFn, posFn PositionsFn, log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		valueFn: valueFn,
		posFn:   posFn,
		ring:    newReturnsRing(cfg.HistoryWindow),
		log:     log.With().Str("component", "var_monitor").Logger(),
	}
}

// RegisterBreachCallback adds a breach notification callback.
func (m *Monitor) RegisterBreachCallback(cb BreachCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// RecordPortfolioReturn derives a percentage return from consecutive
// portfolio values and appends it to the historical window.
func (m *Monitor) RecordPortfolioReturn(value float64) {
	if value <= 0 || math.IsNaN(value) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.haveLast && m.lastValue > 0 {
		m.ring.add((value - m.lastValue) / m.lastValue)
	}
	m.lastValue = value
	m.haveLast = true
}

// ObservationCount returns the number of realized returns collected so far.
func (m *Monitor) ObservationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ring.len()
}

// ComputeSnapshot computes both VaR families, detects limit breaches using
// the primary method (historical once enough observations exist, parametric
// until then) and stores the snapshot. Registered breach callbacks run
// synchronously before return, so a subsequent Latest() on the same
// goroutine observes the just-computed snapshot.
func (m *Monitor) ComputeSnapshot(value float64, positions []Position) Snapshot {
	m.mu.Lock()

	exposure := 0.0
	for _, p := range positions {
		exposure += math.Abs(p.SizeUSD)
	}

	param := parametricEstimate(exposure, len(positions), m.cfg.DailyVolatility)
	returns := m.ring.snapshot()
	hist := historicalEstimate(returns, value, m.cfg.MinObservations)

	s := Snapshot{
		Timestamp:        time.Now(),
		PortfolioValue:   value,
		ExposureUSD:      exposure,
		PositionCount:    len(positions),
		ScenarioCount:    len(returns),
		PrimaryMethod:    MethodParametric,
		ParametricVaR95:  param.var95,
		ParametricVaR99:  param.var99,
		ParametricCVaR95: param.cvar95,
		ParametricCVaR99: param.cvar99,
		HistoricalVaR95:  hist.var95,
		HistoricalVaR99:  hist.var99,
		HistoricalCVaR95: hist.cvar95,
		HistoricalCVaR99: hist.cvar99,
	}
	if len(returns) >= m.cfg.MinObservations {
		s.PrimaryMethod = MethodHistorical
	}

	limit95 := value * m.cfg.Limit95Pct
	limit99 := value * m.cfg.Limit99Pct
	s.Breach95 = value > 0 && s.PrimaryVaR(0.95) > limit95
	s.Breach99 = value > 0 && s.PrimaryVaR(0.99) > limit99

	m.snapshots = append(m.snapshots, s)
	if len(m.snapshots) > m.cfg.SnapshotCapacity {
		m.snapshots = m.snapshots[len(m.snapshots)-m.cfg.SnapshotCapacity:]
	}

	var fired []Breach
	if s.Breach95 {
		fired = append(fired, m.recordBreachLocked(s, 0.95, s.PrimaryVaR(0.95), limit95))
	}
	if s.Breach99 {
		fired = append(fired, m.recordBreachLocked(s, 0.99, s.PrimaryVaR(0.99), limit99))
	}
	callbacks := append([]BreachCallback(nil), m.callbacks...)
	m.mu.Unlock()

	// Notify outside the lock so a callback may read the monitor, but still
	// strictly before ComputeSnapshot returns.
	for _, b := range fired {
		m.log.Warn().
			Float64("confidence", b.Confidence).
			Float64("var_value", b.VaRValue).
			Float64("var_limit", b.VaRLimit).
			Str("method", b.Method).
			Msg("VaR limit breached")
		for _, cb := range callbacks {
			cb(b)
		}
	}

	return s
}

func (m *Monitor) recordBreachLocked(s Snapshot, confidence, varValue, limit float64) Breach {
	b := Breach{
		ID:             uuid.New().String(),
		Timestamp:      s.Timestamp,
		Confidence:     confidence,
		VaRValue:       varValue,
		VaRLimit:       limit,
		PortfolioValue: s.PortfolioValue,
		Method:         s.PrimaryMethod,
	}
	m.breaches = append(m.breaches, b)
	if len(m.breaches) > m.cfg.BreachCapacity {
		m.breaches = m.breaches[len(m.breaches)-m.cfg.BreachCapacity:]
	}
	return b
}

// Latest returns the most recent snapshot.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.snapshots) == 0 {
		return Snapshot{}, false
	}
	return m.snapshots[len(m.snapshots)-1], true
}

// Snapshots returns a copy of up to the n most recent snapshots, newest last.
func (m *Monitor) Snapshots(n int) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.snapshots) {
		n = len(m.snapshots)
	}
	return append([]Snapshot(nil), m.snapshots[len(m.snapshots)-n:]...)
}

// Breaches returns a copy of the recorded breaches, oldest first.
func (m *Monitor) Breaches() []Breach {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Breach(nil), m.breaches...)
}

// AcknowledgeBreach marks a breach as acknowledged.
func (m *Monitor) AcknowledgeBreach(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.breaches {
		if m.breaches[i].ID == id {
			m.breaches[i].Acknowledged = true
			return true
		}
	}
	return false
}

// Start launches the background polling loop. Double-start warns and is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn().Msg("Monitor already running, ignoring Start")
		return
	}
	m.running = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()
	m.log.Info().Dur("interval", m.cfg.Interval).Msg("VaR monitor started")
}

// Stop signals the loop to exit and waits for it with a bounded timeout.
// Stop on a stopped monitor warns and is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.log.Warn().Msg("Monitor not running, ignoring Stop")
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		m.log.Info().Msg("VaR monitor stopped")
	case <-time.After(m.cfg.StopTimeout):
		m.log.Warn().Msg("Timed out waiting for VaR monitor to stop")
	}
}

// Running reports whether the background loop is active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cycle()
		}
	}
}

// cycle runs one monitoring pass. A panicking caller-supplied callback is
// caught here: the cycle is skipped, the loop survives arbitrarily many
// consecutive failures.
func (m *Monitor) cycle() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("Monitoring cycle failed, skipping")
		}
	}()

	if m.valueFn == nil || m.posFn == nil {
		return
	}

	value := m.valueFn()
	if value <= 0 {
		m.log.Debug().Float64("value", value).Msg("Skipping cycle, non-positive portfolio value")
		return
	}
	positions := m.posFn()

	m.RecordPortfolioReturn(value)
	m.ComputeSnapshot(value, positions)
}
