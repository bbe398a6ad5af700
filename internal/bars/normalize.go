package bars

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// WarningKind tags the machine-readable category of a normalizer warning,
// grounded on the original source's normalize_ohlcv diagnostics.
type WarningKind string

const (
	WarnDuplicateDateRemoved WarningKind = "duplicate_date_removed"
	WarnOHLCRepaired         WarningKind = "ohlc_repaired"
	WarnNegativeVolumeZeroed WarningKind = "negative_volume_zeroed"
	WarnLargePriceJump       WarningKind = "large_price_jump"
	WarnUnusualPriceRange    WarningKind = "unusual_price_range"
)

// Warning is a single non-fatal data-quality diagnostic emitted by Normalize.
type Warning struct {
	Kind    WarningKind
	Message string
}

const largeJumpThreshold = 0.35

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Normalize coerces a raw, producer-supplied series into the canonical
// invariants from spec.md §3:
//   - date is a daily-resolution trading day; unparseable dates drop the bar
//   - values are numeric and finite; a bar with a NaN/Inf field is dropped
//   - high >= max(open, close, low) and low <= min(open, close, high),
//     repaired by clamping rather than dropped
//   - volume >= 0, negative volume clamped to 0
//   - dates strictly increasing after de-duplication (last write wins)
//   - a >35% day-over-day absolute close return raises a warning without
//     altering prices (suspected split/adjustment)
func Normalize(raw []RawBar) (Series, []Warning) {
	var warnings []Warning

	type parsed struct {
		Bar
		order int
	}
	byDate := make(map[time.Time]parsed, len(raw))
	dupCount := 0

	for i, r := range raw {
		date, ok := parseDate(r.Date)
		if !ok {
			continue
		}
		if !finite(r.Open) || !finite(r.High) || !finite(r.Low) || !finite(r.Close) || !finite(r.Volume) {
			continue
		}
		if _, exists := byDate[date]; exists {
			dupCount++
		}
		byDate[date] = parsed{
			Bar: Bar{
				Date:   date,
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			},
			order: i,
		}
	}
	if dupCount > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarnDuplicateDateRemoved,
			Message: fmt.Sprintf("duplicate_date_removed(%d)", dupCount),
		})
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make(Series, 0, len(dates))
	repaired := 0
	negVolume := 0
	for _, d := range dates {
		b := byDate[d].Bar

		hi := math.Max(b.Open, math.Max(b.Close, b.Low))
		lo := math.Min(b.Open, math.Min(b.Close, b.High))
		if b.High < hi {
			b.High = hi
			repaired++
		}
		if b.Low > lo {
			b.Low = lo
			repaired++
		}
		if b.Volume < 0 {
			b.Volume = 0
			negVolume++
		}
		out = append(out, b)
	}
	if repaired > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarnOHLCRepaired,
			Message: fmt.Sprintf("ohlc_repaired(%d)", repaired),
		})
	}
	if negVolume > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarnNegativeVolumeZeroed,
			Message: fmt.Sprintf("negative_volume_zeroed(%d)", negVolume),
		})
	}

	if len(out) > 1 {
		var jumpDates []string
		var jumpPcts []float64
		for i := 1; i < len(out); i++ {
			prev := out[i-1].Close
			if prev == 0 {
				continue
			}
			pct := math.Abs((out[i].Close - prev) / prev)
			if pct > largeJumpThreshold {
				jumpDates = append(jumpDates, out[i].Date.Format("2006-01-02"))
				jumpPcts = append(jumpPcts, pct*100)
			}
		}
		if len(jumpDates) > 0 {
			pcts := make([]string, len(jumpPcts))
			for i, p := range jumpPcts {
				pcts[i] = fmt.Sprintf("%.1f%%", p)
			}
			warnings = append(warnings, Warning{
				Kind: WarnLargePriceJump,
				Message: fmt.Sprintf("large_price_jump(%v, %v) - suspected split/adjustment",
					jumpDates, pcts),
			})
		}
	}

	if len(out) > 0 {
		lastClose := out[len(out)-1].Close
		if lastClose < 1.0 || lastClose > 10000.0 {
			warnings = append(warnings, Warning{
				Kind:    WarnUnusualPriceRange,
				Message: fmt.Sprintf("unusual_price_range(%.2f)", lastClose),
			})
		}
	}

	return out, warnings
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
