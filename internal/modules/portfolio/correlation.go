package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/bastion/pkg/formulas"
)

// RefreshCorrelations recomputes the correlation matrix and groups from the
// recorded price history. The computation is skipped (previous snapshot kept)
// when fewer than two symbols have history or the common trailing window is
// shorter than the configured minimum sample count.
func (e *Engine) RefreshCorrelations() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastRefresh = time.Now()

	symbols := make([]string, 0, len(e.priceHistory))
	for symbol, prices := range e.priceHistory {
		if len(prices) >= 2 {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) < 2 {
		e.log.Debug().Int("symbols", len(symbols)).Msg("Skipping correlation refresh, not enough symbols")
		return
	}
	sort.Strings(symbols)

	// Common trailing window: bounded by the shortest history.
	window := math.MaxInt
	for _, s := range symbols {
		if n := len(e.priceHistory[s]); n < window {
			window = n
		}
	}
	samples := window - 1 // returns, not prices
	if samples < e.cfg.MinSamples {
		e.log.Debug().
			Int("samples", samples).
			Int("min_samples", e.cfg.MinSamples).
			Msg("Skipping correlation refresh, insufficient common history")
		return
	}

	returns := make(map[string][]float64, len(symbols))
	for _, s := range symbols {
		prices := e.priceHistory[s]
		returns[s] = formulas.CalculateReturns(prices[len(prices)-window:])
	}

	n := len(symbols)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			corr := formulas.PearsonCorrelation(returns[symbols[i]], returns[symbols[j]])
			values[i][j] = corr
			values[j][i] = corr
		}
	}

	confidence := math.Min(1.0, float64(samples)/float64(e.cfg.LookbackPeriods))
	e.matrix = &CorrelationMatrix{
		Symbols:         symbols,
		Values:          values,
		Timestamp:       time.Now(),
		LookbackPeriods: e.cfg.LookbackPeriods,
		Confidence:      confidence,
	}

	e.groups = clusterSymbols(symbols, values, e.cfg.CorrelationThreshold)
	e.symbolGroup = make(map[string]string, len(symbols))
	for _, g := range e.groups {
		for _, s := range g.Symbols {
			e.symbolGroup[s] = g.Name
		}
	}

	e.log.Info().
		Int("symbols", n).
		Int("samples", samples).
		Float64("confidence", confidence).
		Int("groups", len(e.groups)).
		Msg("Correlation matrix refreshed")
}

// clusterSymbols performs single-pass greedy clustering: each unassigned
// symbol seeds a cluster and absorbs every remaining symbol whose absolute
// correlation with all current members meets the threshold. Clusters are
// mutually exclusive and singletons are discarded.
func clusterSymbols(symbols []string, values [][]float64, threshold float64) []CorrelationGroup {
	index := make(map[string]int, len(symbols))
	for i, s := range symbols {
		index[s] = i
	}

	assigned := make(map[string]bool, len(symbols))
	var groups []CorrelationGroup

	for _, seed := range symbols {
		if assigned[seed] {
			continue
		}

		members := []string{seed}
		for _, candidate := range symbols {
			if candidate == seed || assigned[candidate] {
				continue
			}
			fits := true
			for _, member := range members {
				if math.Abs(values[index[candidate]][index[member]]) < threshold {
					fits = false
					break
				}
			}
			if fits {
				members = append(members, candidate)
			}
		}

		if len(members) < 2 {
			continue
		}
		for _, m := range members {
			assigned[m] = true
		}
		groups = append(groups, CorrelationGroup{
			Name:    fmt.Sprintf("CORR_GROUP_%d", len(groups)+1),
			Symbols: members,
		})
	}

	return groups
}
