package xray

import (
	"sort"
	"time"
)

// AlignOptions controls how a price panel is cut to a common date index.
type AlignOptions struct {
	// MinDays is the minimum number of aligned trading days. Values below 2 are raised to 2.
	MinDays int
	// ForwardFill keeps every date on or after the cutoff that any asset traded
	// and carries each asset's last known price across its gaps. When false,
	// only dates every asset traded are kept.
	ForwardFill bool
}

// Align truncates every series to start at the youngest asset's first date and
// puts all assets on one date index.
func Align(panel PricePanel, opts AlignOptions) (*AlignedPanel, error) {
	minDays := opts.MinDays
	if minDays < 2 {
		minDays = 2
	}
	if len(panel) == 0 {
		return nil, &InsufficientHistoryError{Days: 0, Required: minDays}
	}

	tickers := sortedKeys(panel)

	cutoff := ""
	for _, ticker := range tickers {
		if err := validateSeries(ticker, panel[ticker]); err != nil {
			return nil, err
		}
		if first := panel[ticker][0].Date; first > cutoff {
			cutoff = first
		}
	}

	var dates []string
	if opts.ForwardFill {
		dates = unionDates(panel, tickers, cutoff)
	} else {
		dates = commonDates(panel, tickers, cutoff)
	}

	if len(dates) < minDays {
		return nil, &InsufficientHistoryError{Days: len(dates), Required: minDays, Cutoff: cutoff}
	}

	prices := make([][]float64, len(tickers))
	for i, ticker := range tickers {
		prices[i] = pricesOn(panel[ticker], dates)
	}

	return &AlignedPanel{
		Tickers: tickers,
		Dates:   dates,
		Prices:  prices,
	}, nil
}

// validateSeries checks that a series is non-empty with strictly increasing ISO dates.
func validateSeries(ticker string, series []PricePoint) error {
	if len(series) == 0 {
		return &InvalidSeriesError{Ticker: ticker, Reason: "empty series"}
	}
	prev := ""
	for _, p := range series {
		if _, err := time.Parse(DateLayout, p.Date); err != nil {
			return &InvalidSeriesError{Ticker: ticker, Date: p.Date, Reason: "date is not YYYY-MM-DD"}
		}
		if prev != "" && p.Date <= prev {
			return &InvalidSeriesError{Ticker: ticker, Date: p.Date, Reason: "dates must be strictly increasing"}
		}
		prev = p.Date
	}
	return nil
}

// commonDates returns the dates on or after cutoff that every ticker has.
func commonDates(panel PricePanel, tickers []string, cutoff string) []string {
	counts := make(map[string]int)
	for _, ticker := range tickers {
		for _, p := range panel[ticker] {
			if p.Date >= cutoff {
				counts[p.Date]++
			}
		}
	}

	dates := make([]string, 0, len(counts))
	for d, n := range counts {
		if n == len(tickers) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}

// unionDates returns every date on or after cutoff that any ticker has.
func unionDates(panel PricePanel, tickers []string, cutoff string) []string {
	seen := make(map[string]bool)
	for _, ticker := range tickers {
		for _, p := range panel[ticker] {
			if p.Date >= cutoff {
				seen[p.Date] = true
			}
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// pricesOn samples a series on the given sorted dates, using the last price at
// or before each date. Every date is on or after the series start, so a price
// always exists.
func pricesOn(series []PricePoint, dates []string) []float64 {
	out := make([]float64, len(dates))
	j := 0
	for i, d := range dates {
		for j+1 < len(series) && series[j+1].Date <= d {
			j++
		}
		out[i] = series[j].Price
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
