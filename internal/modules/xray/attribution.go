package xray

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AttributeLoss decomposes the portfolio's summed stress-day return into
// per-asset contributions: StressLoss_i = sum over stress days of w_i * R_i[t].
//
// The contributions add up to the summed portfolio return over the same days.
// A mismatch beyond floating tolerance means the weights and returns passed in
// do not belong to the same portfolio series and is reported as an error.
func AttributeLoss(rm *ReturnMatrix, w Weights, portfolio []float64, stress *StressSet) (*LossAttribution, error) {
	if len(portfolio) != rm.Len() {
		return nil, fmt.Errorf("loss attribution: %d portfolio returns for %d dates", len(portfolio), rm.Len())
	}

	out := &LossAttribution{
		Contributions: make(map[string]float64, len(rm.Tickers)),
	}
	if stress == nil {
		return out, nil
	}
	out.Days = stress.Len()

	stressReturns := make([]float64, len(stress.Indices))
	for k, t := range stress.Indices {
		if t < 0 || t >= len(portfolio) {
			return nil, fmt.Errorf("loss attribution: stress index %d out of range", t)
		}
		stressReturns[k] = portfolio[t]
	}
	out.Total = floats.Sum(stressReturns)

	contributions := make([]float64, len(rm.Tickers))
	for i, ticker := range rm.Tickers {
		for k, t := range stress.Indices {
			stressReturns[k] = rm.Returns[i][t]
		}
		contributions[i] = w[ticker] * floats.Sum(stressReturns)
		out.Contributions[ticker] = contributions[i]
	}

	sum := floats.Sum(contributions)
	scale := floats.Norm(contributions, 1)
	if tol := 1e-9 * math.Max(1, scale); math.Abs(sum-out.Total) > tol {
		return nil, fmt.Errorf("%w: contributions %v, portfolio %v", ErrAttributionMismatch, sum, out.Total)
	}

	return out, nil
}
