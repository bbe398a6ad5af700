// Package costs models per-trade transaction costs: a fixed bps fee plus a
// volatility- and participation-scaled slippage term (spec.md §4.6).
package costs

import "math"

// Model holds the fee schedule used to price a trade.
type Model struct {
	FixedBps       float64
	SlippageFactor float64
}

// Cost returns the total transaction cost for a trade of tradeNotional
// dollars, priced at price, against a day with dayVolume shares traded and
// annualVol annualized realized volatility. Returns 0 for non-positive
// notional or price; the result is always non-negative.
func (m Model) Cost(tradeNotional, price, dayVolume, annualVol float64) float64 {
	if tradeNotional <= 0 || price <= 0 {
		return 0
	}
	fixed := tradeNotional * m.FixedBps / 10000
	if dayVolume <= 0 {
		return fixed
	}
	participation := tradeNotional / (dayVolume * price)
	if participation < 0 {
		participation = 0
	}
	slippage := m.SlippageFactor * (annualVol * price) * math.Sqrt(participation) * tradeNotional
	return fixed + slippage
}
