package xray

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// tradingDates returns n consecutive weekdays starting at 2020-01-01.
func tradingDates(n int) []string {
	dates := make([]string, 0, n)
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d.Format(DateLayout))
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

func series(dates []string, prices []float64) []PricePoint {
	out := make([]PricePoint, len(prices))
	for i := range prices {
		out[i] = PricePoint{Date: dates[i], Price: prices[i]}
	}
	return out
}

// randomPanel builds a deterministic panel of random walks that share a
// common market factor, so correlations are positive but not perfect.
func randomPanel(seed int64, tickers []string, n int) PricePanel {
	rng := rand.New(rand.NewSource(seed))
	dates := tradingDates(n)
	prices := make([][]float64, len(tickers))
	for i := range tickers {
		prices[i] = make([]float64, n)
		prices[i][0] = 50 + 10*float64(i)
	}
	for t := 1; t < n; t++ {
		market := 0.01 * rng.NormFloat64()
		for i := range tickers {
			beta := 0.5 + 0.4*float64(i)
			r := 0.0003 + beta*market + 0.008*rng.NormFloat64()
			prices[i][t] = prices[i][t-1] * (1 + r)
		}
	}

	panel := make(PricePanel, len(tickers))
	for i, ticker := range tickers {
		panel[ticker] = series(dates, prices[i])
	}
	return panel
}

// scenarioPanel is the two-asset example used throughout the engine tests.
func scenarioPanel() PricePanel {
	dates := tradingDates(5)
	return PricePanel{
		"A": series(dates, []float64{100, 98, 95, 110, 108}),
		"B": series(dates, []float64{50, 49, 49.5, 52, 51}),
	}
}

func scenarioAllocations() []Allocation {
	return []Allocation{
		{Ticker: "A", Amount: 600},
		{Ticker: "B", Amount: 400},
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	return e
}
