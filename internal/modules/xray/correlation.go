package xray

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/xray/pkg/formulas"
)

const (
	normalWindow = "normal_correlation"
	stressWindow = "stress_correlation"
)

// CorrelationMatrixFor computes the pairwise Pearson correlation matrix of the
// return matrix restricted to rows (nil means every row).
//
// Each pair is computed once and mirrored, the diagonal is set to exactly 1,
// and undefined pairs are NaN. Pairs are spread over at most workers goroutines;
// the result does not depend on the worker count.
func CorrelationMatrixFor(rm *ReturnMatrix, window string, rows []int, workers int) (*CorrelationMatrix, []Warning) {
	k := len(rm.Tickers)
	if rows == nil {
		rows = make([]int, rm.Len())
		for t := range rows {
			rows[t] = t
		}
	}

	m := &CorrelationMatrix{
		Tickers: append([]string(nil), rm.Tickers...),
		Values:  make([][]float64, k),
		Samples: len(rows),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, k)
		for j := range m.Values[i] {
			m.Values[i][j] = math.NaN()
		}
		m.Values[i][i] = 1.0
	}

	if len(rows) < 2 {
		return m, []Warning{{
			Code:      LowSampleWarning,
			Component: window,
			Message:   fmt.Sprintf("%d observations; correlation needs at least 2, matrix left undefined", len(rows)),
			Samples:   len(rows),
		}}
	}

	cols := make([][]float64, k)
	var warnings []Warning
	for i, ticker := range rm.Tickers {
		cols[i] = make([]float64, len(rows))
		for n, t := range rows {
			cols[i][n] = rm.Returns[i][t]
		}
		if formulas.IsConstant(cols[i]) {
			warnings = append(warnings, Warning{
				Code:      ZeroVarianceWarning,
				Component: window,
				Ticker:    ticker,
				Message:   fmt.Sprintf("%s returns have zero variance over %d observations; its correlations are undefined", ticker, len(rows)),
				Samples:   len(rows),
			})
		}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			i, j := i, j
			g.Go(func() error {
				rho := formulas.Correlation(cols[i], cols[j])
				m.Values[i][j] = rho
				m.Values[j][i] = rho
				return nil
			})
		}
	}
	_ = g.Wait()

	return m, warnings
}

// ComputeCorrelations builds the full-history and stress-day correlation matrices.
func ComputeCorrelations(rm *ReturnMatrix, stress *StressSet, minSamples, workers int) (*CorrelationMatrix, *CorrelationMatrix, []Warning) {
	normal, warnings := CorrelationMatrixFor(rm, normalWindow, nil, workers)

	rows := []int{}
	if stress != nil && stress.Indices != nil {
		rows = stress.Indices
	}
	stressed, stressWarnings := CorrelationMatrixFor(rm, stressWindow, rows, workers)
	warnings = append(warnings, stressWarnings...)

	if n := len(rows); n >= 2 && n < minSamples {
		warnings = append(warnings, Warning{
			Code:      LowSampleWarning,
			Component: stressWindow,
			Message:   fmt.Sprintf("stress correlations rest on %d observations (want at least %d)", n, minSamples),
			Samples:   n,
		})
	}

	return normal, stressed, warnings
}
