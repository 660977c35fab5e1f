package xray

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeReturns_Scenario(t *testing.T) {
	aligned, err := Align(scenarioPanel(), AlignOptions{MinDays: 5})
	require.NoError(t, err)

	rm, err := ComputeReturns(aligned)
	require.NoError(t, err)

	assert.Equal(t, 4, rm.Len())
	assert.Equal(t, aligned.Dates[1:], rm.Dates)

	a := rm.Returns[rm.Index("A")]
	assert.InDelta(t, -0.02, a[0], 1e-12)
	assert.InDelta(t, -3.0/98.0, a[1], 1e-12)
	assert.InDelta(t, 15.0/95.0, a[2], 1e-12)
	assert.InDelta(t, -2.0/110.0, a[3], 1e-12)

	b := rm.Returns[rm.Index("B")]
	assert.InDelta(t, -0.02, b[0], 1e-12)
	assert.InDelta(t, 0.5/49.0, b[1], 1e-12)
}

func TestComputeReturns_RejectsNonPositivePrices(t *testing.T) {
	tests := []struct {
		name  string
		price float64
	}{
		{"zero", 0},
		{"negative", -5},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := tradingDates(4)
			panel := PricePanel{
				"GOOD": series(dates, []float64{10, 11, 12, 13}),
				"BAD":  series(dates, []float64{10, 11, tt.price, 13}),
			}
			aligned, err := Align(panel, AlignOptions{MinDays: 2})
			require.NoError(t, err)

			_, err = ComputeReturns(aligned)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrZeroPrice))

			var priceErr *ZeroPriceError
			require.True(t, errors.As(err, &priceErr))
			assert.Equal(t, "BAD", priceErr.Ticker)
			assert.Equal(t, dates[2], priceErr.Date)
		})
	}
}

func TestComputeReturns_NeedsTwoDates(t *testing.T) {
	_, err := ComputeReturns(&AlignedPanel{Tickers: []string{"A"}, Dates: []string{"2020-01-01"}, Prices: [][]float64{{1}}})
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	_, err = ComputeReturns(nil)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestNormalizeWeights(t *testing.T) {
	w, err := NormalizeWeights(scenarioAllocations())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, w["A"], 1e-15)
	assert.InDelta(t, 0.4, w["B"], 1e-15)
}

func TestNormalizeWeights_SumsToOne(t *testing.T) {
	allocs := []Allocation{
		{Ticker: "VTI", Amount: 1234.56},
		{Ticker: "BND", Amount: 789.01},
		{Ticker: "GLD", Amount: 333.33},
		{Ticker: "CASH", Amount: 0},
	}
	w, err := NormalizeWeights(allocs)
	require.NoError(t, err)

	sum := 0.0
	for _, v := range w {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Equal(t, 0.0, w["CASH"])
}

func TestNormalizeWeights_MergesDuplicates(t *testing.T) {
	w, err := NormalizeWeights([]Allocation{
		{Ticker: "A", Amount: 300},
		{Ticker: "B", Amount: 400},
		{Ticker: " A ", Amount: 300},
	})
	require.NoError(t, err)
	assert.Len(t, w, 2)
	assert.InDelta(t, 0.6, w["A"], 1e-15)
}

func TestNormalizeWeights_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		allocs []Allocation
		ticker string
	}{
		{"empty", nil, ""},
		{"all zero", []Allocation{{Ticker: "A"}, {Ticker: "B"}}, ""},
		{"negative", []Allocation{{Ticker: "A", Amount: 100}, {Ticker: "B", Amount: -1}}, "B"},
		{"nan", []Allocation{{Ticker: "A", Amount: math.NaN()}}, "A"},
		{"blank ticker", []Allocation{{Ticker: "  ", Amount: 10}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeWeights(tt.allocs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDegenerateAllocation))

			var allocErr *DegenerateAllocationError
			require.True(t, errors.As(err, &allocErr))
			assert.Equal(t, tt.ticker, allocErr.Ticker)
		})
	}
}

func TestPortfolioReturns_WeightedSum(t *testing.T) {
	panel := randomPanel(7, []string{"AAA", "BBB", "CCC"}, 120)
	aligned, err := Align(panel, AlignOptions{MinDays: 20})
	require.NoError(t, err)
	rm, err := ComputeReturns(aligned)
	require.NoError(t, err)

	w := Weights{"AAA": 0.5, "BBB": 0.3, "CCC": 0.2}
	port, err := PortfolioReturns(rm, w)
	require.NoError(t, err)
	require.Len(t, port, rm.Len())

	for tt := 0; tt < rm.Len(); tt++ {
		expected := 0.0
		for i, ticker := range rm.Tickers {
			expected += w[ticker] * rm.Returns[i][tt]
		}
		assert.InDelta(t, expected, port[tt], 1e-15)
	}
}

func TestPortfolioReturns_Scenario(t *testing.T) {
	aligned, err := Align(scenarioPanel(), AlignOptions{MinDays: 5})
	require.NoError(t, err)
	rm, err := ComputeReturns(aligned)
	require.NoError(t, err)

	port, err := PortfolioReturns(rm, Weights{"A": 0.6, "B": 0.4})
	require.NoError(t, err)
	assert.InDelta(t, -0.02, port[0], 1e-12)
}

func TestPortfolioReturns_MissingAsset(t *testing.T) {
	aligned, err := Align(scenarioPanel(), AlignOptions{MinDays: 2})
	require.NoError(t, err)
	rm, err := ComputeReturns(aligned)
	require.NoError(t, err)

	_, err = PortfolioReturns(rm, Weights{"A": 0.5, "Z": 0.5})
	var missing *MissingAssetError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Z", missing.Ticker)
}
