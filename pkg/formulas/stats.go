// Package formulas holds the numeric building blocks used by the risk engine.
package formulas

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance (N-1) of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return math.NaN()
	}
	return stat.Variance(data, nil)
}

// IsConstant reports whether every value in data is identical.
// A constant series has zero variance regardless of floating point noise in the mean.
func IsConstant(data []float64) bool {
	if len(data) < 2 {
		return true
	}
	return floats.Min(data) == floats.Max(data)
}

// Correlation calculates the Pearson correlation coefficient between two datasets.
// It returns NaN when fewer than two paired observations exist, when the lengths
// differ, or when either side has zero variance. Finite results are clamped to [-1, 1].
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	if IsConstant(x) || IsConstant(y) {
		return math.NaN()
	}
	rho := stat.Correlation(x, y, nil)
	if math.IsNaN(rho) {
		return rho
	}
	return math.Max(-1, math.Min(1, rho))
}

// CalculateReturns converts prices to simple returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
// Callers are expected to have rejected non-positive prices.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return returns
}

// CompoundReturn compounds a run of simple returns: prod(1+r) - 1.
// A single return is passed through untouched so one-period windows reproduce
// the input bit for bit.
func CompoundReturn(returns []float64) float64 {
	switch len(returns) {
	case 0:
		return 0
	case 1:
		return returns[0]
	}
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// QuantileMethod selects the interpolation convention used for sample quantiles.
type QuantileMethod string

const (
	// QuantileLinear interpolates linearly between order statistics at
	// h = (n-1)p (Hyndman-Fan type 7, the numpy/pandas default).
	QuantileLinear QuantileMethod = "linear"
	// QuantileEmpirical is the inverse of the empirical CDF (gonum stat.Empirical).
	QuantileEmpirical QuantileMethod = "empirical"
	// QuantileLinInterp interpolates the empirical CDF (gonum stat.LinInterp).
	QuantileLinInterp QuantileMethod = "lininterp"
)

// ParseQuantileMethod resolves a method name; the empty string selects QuantileLinear.
func ParseQuantileMethod(name string) (QuantileMethod, error) {
	switch QuantileMethod(strings.ToLower(strings.TrimSpace(name))) {
	case "", QuantileLinear:
		return QuantileLinear, nil
	case QuantileEmpirical:
		return QuantileEmpirical, nil
	case QuantileLinInterp:
		return QuantileLinInterp, nil
	default:
		return "", fmt.Errorf("unknown quantile method %q", name)
	}
}

// Quantile returns the p-th sample quantile of data using the given method.
// data is not modified. Returns NaN for empty input or p outside [0, 1].
func Quantile(p float64, method QuantileMethod, data []float64) float64 {
	if len(data) == 0 || math.IsNaN(p) || p < 0 || p > 1 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	switch method {
	case QuantileEmpirical:
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	case QuantileLinInterp:
		return stat.Quantile(p, stat.LinInterp, sorted, nil)
	default:
		return linearQuantile(p, sorted)
	}
}

// linearQuantile implements type 7 on already sorted data.
func linearQuantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Median is the type 7 median.
func Median(data []float64) float64 {
	return Quantile(0.5, QuantileLinear, data)
}
