package formulas

// DrawdownPct calculates the percentage decline from peak to current value,
// expressed as a positive percentage (10.0 = 10% below peak). Returns 0 when
// the peak is non-positive or the current value is at or above the peak.
func DrawdownPct(peak, current float64) float64 {
	if peak <= 0 || current >= peak {
		return 0.0
	}
	return (peak - current) / peak * 100.0
}

// MaxDrawdownPct calculates the maximum peak-to-trough decline over a value
// series, as a positive percentage. Returns 0 for fewer than two values.
func MaxDrawdownPct(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}

	maxDD := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if dd := DrawdownPct(peak, v); dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
