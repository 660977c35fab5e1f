package xray

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returnMatrix(t *testing.T, panel PricePanel) *ReturnMatrix {
	t.Helper()
	aligned, err := Align(panel, AlignOptions{MinDays: 2})
	require.NoError(t, err)
	rm, err := ComputeReturns(aligned)
	require.NoError(t, err)
	return rm
}

func TestCorrelationMatrixFor_SymmetricUnitDiagonal(t *testing.T) {
	rm := returnMatrix(t, randomPanel(11, []string{"A", "B", "C", "D"}, 200))

	m, warnings := CorrelationMatrixFor(rm, normalWindow, nil, 2)
	assert.Empty(t, warnings)
	assert.Equal(t, rm.Len(), m.Samples)

	for i := range m.Values {
		assert.Equal(t, 1.0, m.Values[i][i])
		for j := range m.Values[i] {
			assert.Equal(t, m.Values[i][j], m.Values[j][i])
			assert.False(t, math.IsNaN(m.Values[i][j]))
			assert.LessOrEqual(t, m.Values[i][j], 1.0)
			assert.GreaterOrEqual(t, m.Values[i][j], -1.0)
		}
	}
	assert.Greater(t, m.Get("C", "D"), 0.0)
}

func TestCorrelationMatrixFor_WorkerCountDoesNotMatter(t *testing.T) {
	rm := returnMatrix(t, randomPanel(3, []string{"A", "B", "C", "D", "E", "F"}, 150))

	one, _ := CorrelationMatrixFor(rm, normalWindow, nil, 1)
	many, _ := CorrelationMatrixFor(rm, normalWindow, nil, 8)
	assert.Equal(t, one, many)
}

func TestCorrelationMatrixFor_ConstantAssetIsUndefined(t *testing.T) {
	panel := randomPanel(5, []string{"A", "B"}, 60)
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 10
	}
	panel["FLAT"] = series(tradingDates(60), flat)
	rm := returnMatrix(t, panel)

	m, warnings := CorrelationMatrixFor(rm, normalWindow, nil, 0)

	assert.True(t, math.IsNaN(m.Get("A", "FLAT")))
	assert.True(t, math.IsNaN(m.Get("FLAT", "B")))
	assert.Equal(t, 1.0, m.Get("FLAT", "FLAT"))
	assert.False(t, math.IsNaN(m.Get("A", "B")))

	require.Len(t, warnings, 1)
	assert.Equal(t, ZeroVarianceWarning, warnings[0].Code)
	assert.Equal(t, "FLAT", warnings[0].Ticker)
	assert.Equal(t, normalWindow, warnings[0].Component)
}

func TestCorrelationMatrixFor_PerfectlyCorrelated(t *testing.T) {
	dates := tradingDates(6)
	rm := returnMatrix(t, PricePanel{
		"UP":   series(dates, []float64{10, 11, 10.5, 12, 11, 13}),
		"TWIN": series(dates, []float64{20, 22, 21, 24, 22, 26}),
	})

	m, warnings := CorrelationMatrixFor(rm, normalWindow, nil, 1)
	assert.Empty(t, warnings)
	assert.InDelta(t, 1.0, m.Get("UP", "TWIN"), 1e-12)
}

func TestComputeCorrelations_TooFewStressDays(t *testing.T) {
	rm := returnMatrix(t, randomPanel(9, []string{"A", "B", "C"}, 50))

	for _, rows := range [][]int{{}, {4}} {
		stress := &StressSet{Indices: rows}
		normal, stressed, warnings := ComputeCorrelations(rm, stress, 10, 2)

		assert.False(t, math.IsNaN(normal.Get("A", "B")))
		for i := range stressed.Values {
			for j := range stressed.Values[i] {
				if i == j {
					assert.Equal(t, 1.0, stressed.Values[i][j])
				} else {
					assert.True(t, math.IsNaN(stressed.Values[i][j]))
				}
			}
		}
		require.Len(t, warnings, 1)
		assert.Equal(t, LowSampleWarning, warnings[0].Code)
		assert.Equal(t, stressWindow, warnings[0].Component)
		assert.Equal(t, len(rows), stressed.Samples)
	}
}

func TestComputeCorrelations_SmallStressSetIsFlagged(t *testing.T) {
	rm := returnMatrix(t, randomPanel(9, []string{"A", "B"}, 50))

	_, stressed, warnings := ComputeCorrelations(rm, &StressSet{Indices: []int{1, 5, 9, 20}}, 10, 2)

	assert.False(t, math.IsNaN(stressed.Get("A", "B")))
	assert.Equal(t, 4, stressed.Samples)
	require.Len(t, warnings, 1)
	assert.Equal(t, LowSampleWarning, warnings[0].Code)
	assert.Equal(t, 4, warnings[0].Samples)
}

func TestCorrelationMatrix_JSONWritesNull(t *testing.T) {
	m := CorrelationMatrix{
		Tickers: []string{"A", "B"},
		Values:  [][]float64{{1, math.NaN()}, {math.NaN(), 1}},
		Samples: 1,
	}

	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"tickers":["A","B"],"values":[[1,null],[null,1]],"samples":1}`, string(data))

	var back CorrelationMatrix
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, math.IsNaN(back.Get("A", "B")))
	assert.Equal(t, 1.0, back.Get("B", "B"))
}

func TestCorrelationMatrix_AverageOffDiagonal(t *testing.T) {
	m := &CorrelationMatrix{Values: [][]float64{
		{1, 0.5, math.NaN()},
		{0.5, 1, 0.1},
		{math.NaN(), 0.1, 1},
	}}
	assert.InDelta(t, 0.3, m.AverageOffDiagonal(), 1e-12)

	undefined := &CorrelationMatrix{Values: [][]float64{{1, math.NaN()}, {math.NaN(), 1}}}
	assert.True(t, math.IsNaN(undefined.AverageOffDiagonal()))
}
