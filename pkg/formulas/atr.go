package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateATR calculates the Average True Range series from OHLC data.
// Returns nil when fewer than period+1 bars are available. Leading values
// produced during the talib warm-up window are zero.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	n := len(closes)
	if n < period+1 || len(highs) != n || len(lows) != n {
		return nil
	}

	return talib.Atr(highs, lows, closes, period)
}

// LatestATR returns the most recent ATR value, or nil when there is not
// enough data or the value is not finite.
func LatestATR(highs, lows, closes []float64, period int) *float64 {
	atr := CalculateATR(highs, lows, closes, period)
	if len(atr) == 0 {
		return nil
	}

	last := atr[len(atr)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) || last <= 0 {
		return nil
	}
	return &last
}

// ATRRatio compares the latest ATR value against the trailing average of the
// ATR series over the lookback window (excluding the latest bar). Returns nil
// when the series is too short or the trailing average is degenerate.
func ATRRatio(highs, lows, closes []float64, period, lookback int) *float64 {
	if lookback <= 0 {
		return nil
	}

	atr := CalculateATR(highs, lows, closes, period)
	// Need the warm-up window, the lookback window and the current bar.
	if len(atr) < period+lookback+1 {
		return nil
	}

	current := atr[len(atr)-1]
	if math.IsNaN(current) || current <= 0 {
		return nil
	}

	window := atr[len(atr)-1-lookback : len(atr)-1]
	sum := 0.0
	count := 0
	for _, v := range window {
		if !math.IsNaN(v) && v > 0 {
			sum += v
			count++
		}
	}
	if count == 0 {
		return nil
	}

	avg := sum / float64(count)
	if avg <= 0 {
		return nil
	}

	ratio := current / avg
	return &ratio
}
