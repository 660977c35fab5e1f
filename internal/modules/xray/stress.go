package xray

import (
	"fmt"
	"math"

	"github.com/aristath/xray/pkg/formulas"
)

// StressOptions configures stress day detection.
type StressOptions struct {
	Quantile   float64
	Method     formulas.QuantileMethod
	MinSamples int // below this many stress days the set is flagged, never widened
}

// DetectStress selects the days whose portfolio return is at or below the
// q-th quantile of the portfolio return distribution.
//
// dates, when given, must be parallel to portfolio and is used to label the set.
func DetectStress(portfolio []float64, dates []string, opts StressOptions) (*StressSet, error) {
	q := opts.Quantile
	if math.IsNaN(q) || q <= 0 || q >= 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidQuantile, q)
	}
	if len(portfolio) == 0 {
		return nil, &InsufficientHistoryError{Days: 0, Required: 2}
	}
	if dates != nil && len(dates) != len(portfolio) {
		return nil, fmt.Errorf("stress detection: %d dates for %d returns", len(dates), len(portfolio))
	}

	method := opts.Method
	if method == "" {
		method = formulas.QuantileLinear
	}
	threshold := formulas.Quantile(q, method, portfolio)

	set := &StressSet{
		Quantile:  q,
		Method:    method,
		Threshold: threshold,
		Indices:   []int{},
		Total:     len(portfolio),
	}
	if dates != nil {
		set.Dates = []string{}
	}
	for t, r := range portfolio {
		if r <= threshold {
			set.Indices = append(set.Indices, t)
			if dates != nil {
				set.Dates = append(set.Dates, dates[t])
			}
		}
	}

	minSamples := opts.MinSamples
	if minSamples < 2 {
		minSamples = 2
	}
	if set.Len() < minSamples {
		set.Warnings = append(set.Warnings, Warning{
			Code:      LowSampleWarning,
			Component: "stress_detector",
			Message: fmt.Sprintf("only %d of %d days fall at or below the %.4g quantile; stress statistics are unreliable",
				set.Len(), set.Total, q),
			Samples: set.Len(),
		})
	}

	return set, nil
}
