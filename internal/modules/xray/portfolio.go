package xray

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormalizeWeights turns dollar allocations into weights that sum to 1.
// Repeated tickers are summed.
func NormalizeWeights(allocs []Allocation) (Weights, error) {
	if len(allocs) == 0 {
		return nil, &DegenerateAllocationError{Reason: "no allocations"}
	}

	amounts := make(map[string]float64, len(allocs))
	for _, a := range allocs {
		ticker := strings.TrimSpace(a.Ticker)
		if ticker == "" {
			return nil, &DegenerateAllocationError{Reason: "allocation without ticker"}
		}
		if math.IsNaN(a.Amount) || math.IsInf(a.Amount, 0) {
			return nil, &DegenerateAllocationError{Ticker: ticker, Reason: "amount is not a finite number"}
		}
		if a.Amount < 0 {
			return nil, &DegenerateAllocationError{Ticker: ticker, Reason: fmt.Sprintf("negative amount %v", a.Amount)}
		}
		amounts[ticker] += a.Amount
	}

	tickers := sortedKeys(amounts)
	values := make([]float64, len(tickers))
	for i, ticker := range tickers {
		values[i] = amounts[ticker]
	}

	total := floats.Sum(values)
	if total <= 0 {
		return nil, &DegenerateAllocationError{Total: total, Reason: "total invested must be positive"}
	}
	floats.Scale(1/total, values)

	weights := make(Weights, len(tickers))
	for i, ticker := range tickers {
		weights[ticker] = values[i]
	}
	return weights, nil
}

// PortfolioReturns computes R_p[t] = sum_i w_i * R_i[t].
//
// Weights are applied unchanged every day, i.e. the portfolio is assumed to be
// rebalanced back to its target weights daily rather than left to drift.
func PortfolioReturns(rm *ReturnMatrix, w Weights) ([]float64, error) {
	if rm == nil || rm.Len() == 0 || len(rm.Tickers) == 0 {
		return nil, &InsufficientHistoryError{Days: 0, Required: 2}
	}
	for _, ticker := range sortedKeys(w) {
		if rm.Index(ticker) < 0 {
			return nil, &MissingAssetError{Ticker: ticker}
		}
	}

	n, k := rm.Len(), len(rm.Tickers)
	data := make([]float64, n*k)
	for i := range rm.Tickers {
		for t, r := range rm.Returns[i] {
			data[t*k+i] = r
		}
	}

	returns := mat.NewDense(n, k, data)
	weights := mat.NewVecDense(k, w.Vector(rm.Tickers))

	var out mat.VecDense
	out.MulVec(returns, weights)

	series := make([]float64, n)
	for t := 0; t < n; t++ {
		series[t] = out.AtVec(t)
	}
	return series, nil
}
