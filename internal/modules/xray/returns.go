package xray

import (
	"math"

	"github.com/aristath/xray/pkg/formulas"
)

// ComputeReturns converts an aligned panel into simple daily returns.
//
// Simple returns are used rather than log returns because a fixed-weight
// portfolio's simple return is exactly the weighted sum of its assets' simple
// returns.
func ComputeReturns(panel *AlignedPanel) (*ReturnMatrix, error) {
	if panel == nil || len(panel.Dates) < 2 {
		days := 0
		if panel != nil {
			days = len(panel.Dates)
		}
		return nil, &InsufficientHistoryError{Days: days, Required: 2}
	}

	returns := make([][]float64, len(panel.Tickers))
	for i, ticker := range panel.Tickers {
		prices := panel.Prices[i]
		for t, p := range prices {
			if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, &ZeroPriceError{Ticker: ticker, Date: panel.Dates[t], Price: p}
			}
		}
		returns[i] = formulas.CalculateReturns(prices)
	}

	dates := make([]string, len(panel.Dates)-1)
	copy(dates, panel.Dates[1:])

	return &ReturnMatrix{
		Tickers: append([]string(nil), panel.Tickers...),
		Dates:   dates,
		Returns: returns,
	}, nil
}
