package xray

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/aristath/xray/pkg/formulas"
)

// DefaultHorizons span one month to ten years of 21-day trading months.
func DefaultHorizons() []Horizon {
	return []Horizon{
		{Label: "1 Month", Days: 21},
		{Label: "3 Months", Days: 63},
		{Label: "6 Months", Days: 126},
		{Label: "1 Year", Days: 252},
		{Label: "3 Years", Days: 756},
		{Label: "5 Years", Days: 1260},
		{Label: "10 Years", Days: 2520},
	}
}

// AnalyzeHorizon compounds the portfolio's daily returns over every window of
// h.Days consecutive days and summarises the resulting distribution.
//
// With m daily returns there are m - h.Days + 1 overlapping windows. A horizon
// of one day reproduces the daily returns exactly.
func AnalyzeHorizon(portfolio []float64, h Horizon, minWindows int) (*HorizonDistribution, error) {
	if h.Days <= 0 {
		return nil, fmt.Errorf("%w: %s has %d days", ErrInvalidHorizon, h.Label, h.Days)
	}
	m := len(portfolio)
	if h.Days > m {
		return nil, &HorizonTooLongError{Label: h.Label, Horizon: h.Days, Available: m}
	}

	windows := m - h.Days + 1
	returns := make([]float64, windows)
	losses := 0
	for t := 0; t < windows; t++ {
		r := formulas.CompoundReturn(portfolio[t : t+h.Days])
		returns[t] = r
		if r < 0 {
			losses++
		}
	}

	return &HorizonDistribution{
		Horizon:           h,
		Returns:           returns,
		Observations:      windows,
		ProbabilityOfLoss: float64(losses) / float64(windows),
		WorstCase:         floats.Min(returns),
		BestCase:          floats.Max(returns),
		Median:            formulas.Median(returns),
		LowSample:         windows < minWindows,
	}, nil
}

// AnalyzeHorizons runs AnalyzeHorizon for each horizon in order and stops at
// the first failure.
func AnalyzeHorizons(portfolio []float64, horizons []Horizon, minWindows int) ([]HorizonDistribution, error) {
	out := make([]HorizonDistribution, 0, len(horizons))
	for _, h := range horizons {
		d, err := AnalyzeHorizon(portfolio, h, minWindows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}
