package indicator

import "autotrader/internal/core"

// Params holds the lookbacks of the indicator pipeline.
type Params struct {
	SMAShort        int
	SMALong         int
	VolumePeriod    int
	TrendLookback   int
	TrendMultiplier float64
}

func DefaultParams() Params {
	return Params{
		SMAShort:        20,
		SMALong:         100,
		VolumePeriod:    10,
		TrendLookback:   7,
		TrendMultiplier: 3.0,
	}
}

// Compute enriches a bar series with moving averages, volume intensity and
// the trend bands. Pure and deterministic: same input, same output. The
// result has the same length and order as the input; derived fields stay nil
// until their lookback window is filled.
func Compute(bars []core.Bar, p Params) []core.IndicatorRow {
	rows := make([]core.IndicatorRow, len(bars))
	if len(bars) == 0 {
		return rows
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		rows[i].Bar = b
		closes[i] = b.Close
	}

	smaShort := sma(closes, p.SMAShort)
	smaLong := sma(closes, p.SMALong)
	vi := volumeIntensity(bars, p.VolumePeriod)
	lower, upper := trendBands(bars, p.TrendLookback, p.TrendMultiplier)

	for i := range rows {
		rows[i].SMAShort = smaShort[i]
		rows[i].SMALong = smaLong[i]
		rows[i].VolumeIntensity = vi[i]
		rows[i].TrendLongBand = lower[i]
		rows[i].TrendShortBand = upper[i]
	}
	return rows
}

// sma returns the simple moving average over n values, nil for the first
// n-1 rows. A series shorter than n is all nil, never approximated.
func sma(x []float64, n int) []*float64 {
	out := make([]*float64, len(x))
	if n <= 0 || len(x) < n {
		return out
	}
	sum := 0.0
	for i, v := range x {
		sum += v
		if i >= n {
			sum -= x[i-n]
		}
		if i >= n-1 {
			out[i] = fptr(sum / float64(n))
		}
	}
	return out
}

// volumeIntensity relates the current volume to the highest volume of the
// preceding period rows, scaled to 100. The window excludes the current row,
// so the first period rows are nil.
func volumeIntensity(bars []core.Bar, period int) []*float64 {
	out := make([]*float64, len(bars))
	if period <= 0 {
		return out
	}
	for i := period; i < len(bars); i++ {
		high := 0.0
		for j := i - period; j < i; j++ {
			if bars[j].Volume > high {
				high = bars[j].Volume
			}
		}
		if high <= 0 {
			continue
		}
		out[i] = fptr(bars[i].Volume * 100 / high)
	}
	return out
}

// trendBands computes the supertrend-style trailing bands: hl2 +/- mult*ATR,
// with the lower band only ratcheting up while closes hold above it and the
// upper band only ratcheting down while closes hold below it. Both bands are
// defined from the ATR warmup on, so downstream crossing tests behave like a
// trailing stop.
func trendBands(bars []core.Bar, lookback int, mult float64) (lower, upper []*float64) {
	lower = make([]*float64, len(bars))
	upper = make([]*float64, len(bars))
	if lookback <= 0 || len(bars) < lookback {
		return lower, upper
	}

	atr := wilderATR(bars, lookback)
	var prevLower, prevUpper float64
	for i := lookback - 1; i < len(bars); i++ {
		hl2 := (bars[i].High + bars[i].Low) / 2
		basicLower := hl2 - mult*atr[i]
		basicUpper := hl2 + mult*atr[i]

		lo := basicLower
		up := basicUpper
		if i > lookback-1 {
			if basicLower < prevLower && bars[i-1].Close >= prevLower {
				lo = prevLower
			}
			if basicUpper > prevUpper && bars[i-1].Close <= prevUpper {
				up = prevUpper
			}
		}
		lower[i] = fptr(lo)
		upper[i] = fptr(up)
		prevLower, prevUpper = lo, up
	}
	return lower, upper
}

// wilderATR smooths the true range with Wilder's method. Values before the
// warmup index are zero and never exposed by trendBands.
func wilderATR(bars []core.Bar, n int) []float64 {
	atr := make([]float64, len(bars))
	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		m1 := bars[i].High - bars[i].Low
		m2 := abs(bars[i].High - bars[i-1].Close)
		m3 := abs(bars[i].Low - bars[i-1].Close)
		tr[i] = max3(m1, m2, m3)
	}

	sum := 0.0
	for i := 0; i < n && i < len(bars); i++ {
		sum += tr[i]
	}
	if len(bars) >= n {
		atr[n-1] = sum / float64(n)
		for i := n; i < len(bars); i++ {
			atr[i] = (atr[i-1]*float64(n-1) + tr[i]) / float64(n)
		}
	}
	return atr
}

func fptr(v float64) *float64 { return &v }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c float64) float64 {
	if a < b {
		a = b
	}
	if a < c {
		a = c
	}
	return a
}
