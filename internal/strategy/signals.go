package strategy

import "autotrader/internal/core"

// Evaluate derives the entry/exit flags from the most recent indicator row.
// Every condition requires its inputs to be non-nil; a missing indicator
// means the condition is not met. Pure: no look-back beyond what the row
// already embeds.
func Evaluate(row core.IndicatorRow) core.TradeSignal {
	var sig core.TradeSignal
	close := row.Close

	if row.SMAShort != nil && row.SMALong != nil && row.VolumeIntensity != nil {
		highVolume := *row.VolumeIntensity > 100
		if highVolume && close > *row.SMAShort && close > *row.SMALong &&
			row.TrendLongBand != nil && close > *row.TrendLongBand {
			sig.EnterLong = true
		}
		if highVolume && close < *row.SMAShort && close < *row.SMALong &&
			row.TrendShortBand != nil && close < *row.TrendShortBand {
			sig.EnterShort = true
		}
	}
	// Opposite comparisons against the same values cannot both hold, but
	// long takes precedence if they ever did.
	if sig.EnterLong {
		sig.EnterShort = false
	}

	if row.TrendLongBand != nil && close < *row.TrendLongBand {
		sig.ExitLong = true
	}
	if row.TrendShortBand != nil && close > *row.TrendShortBand {
		sig.ExitShort = true
	}
	return sig
}
