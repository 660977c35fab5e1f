package testing

import (
	"math/rand"
	"time"

	"github.com/aristath/xray/internal/modules/xray"
)

// TradingDates returns n consecutive weekdays starting at start (YYYY-MM-DD).
func TradingDates(start string, n int) []string {
	d, err := time.Parse(xray.DateLayout, start)
	if err != nil {
		panic(err)
	}
	dates := make([]string, 0, n)
	for len(dates) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d.Format(xray.DateLayout))
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// NewSeries pairs dates with prices.
func NewSeries(dates []string, prices []float64) []xray.PricePoint {
	out := make([]xray.PricePoint, len(prices))
	for i := range prices {
		out[i] = xray.PricePoint{Date: dates[i], Price: prices[i]}
	}
	return out
}

// NewScenarioPanel is a two-asset, five-day panel small enough to check by hand.
func NewScenarioPanel() xray.PricePanel {
	dates := TradingDates("2024-01-01", 5)
	return xray.PricePanel{
		"A": NewSeries(dates, []float64{100, 98, 95, 110, 108}),
		"B": NewSeries(dates, []float64{50, 49, 49.5, 52, 51}),
	}
}

// NewRandomWalkPanel returns a deterministic panel of correlated random walks.
func NewRandomWalkPanel(seed int64, tickers []string, n int) xray.PricePanel {
	rng := rand.New(rand.NewSource(seed))
	dates := TradingDates("2020-01-01", n)

	prices := make([][]float64, len(tickers))
	for i := range tickers {
		prices[i] = make([]float64, n)
		prices[i][0] = 100
	}
	for t := 1; t < n; t++ {
		market := 0.01 * rng.NormFloat64()
		for i := range tickers {
			r := 0.0002 + (0.6+0.2*float64(i))*market + 0.007*rng.NormFloat64()
			prices[i][t] = prices[i][t-1] * (1 + r)
		}
	}

	panel := make(xray.PricePanel, len(tickers))
	for i, ticker := range tickers {
		panel[ticker] = NewSeries(dates, prices[i])
	}
	return panel
}
