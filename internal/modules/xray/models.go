package xray

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/aristath/xray/pkg/formulas"
)

// DateLayout is the ISO layout used for every date in a price panel.
const DateLayout = "2006-01-02"

// PricePoint is one adjusted close observation.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PricePanel maps a ticker to its daily adjusted close history, oldest first.
type PricePanel map[string][]PricePoint

// AlignedPanel is a price panel restricted to a common date index.
// Prices is indexed [asset][date]; Tickers is sorted.
type AlignedPanel struct {
	Tickers []string    `json:"tickers"`
	Dates   []string    `json:"dates"`
	Prices  [][]float64 `json:"prices"`
}

// At returns the price of asset i on date t.
func (p *AlignedPanel) At(t, i int) float64 {
	return p.Prices[i][t]
}

// Allocation is the dollar amount invested in one ticker.
type Allocation struct {
	Ticker    string  `json:"ticker"`
	Amount    float64 `json:"amount"`
	AssetType string  `json:"asset_type,omitempty"`
}

// Weights maps a ticker to its share of the portfolio. Values sum to 1.
type Weights map[string]float64

// Vector returns the weights in the given ticker order; absent tickers are 0.
func (w Weights) Vector(tickers []string) []float64 {
	out := make([]float64, len(tickers))
	for i, t := range tickers {
		out[i] = w[t]
	}
	return out
}

// ReturnMatrix holds simple daily returns for every asset of an aligned panel.
// Returns is indexed [asset][t]; Dates[t] is the date the return was realised on.
type ReturnMatrix struct {
	Tickers []string    `json:"tickers"`
	Dates   []string    `json:"dates"`
	Returns [][]float64 `json:"returns"`
}

// Len is the number of return observations per asset.
func (m *ReturnMatrix) Len() int {
	return len(m.Dates)
}

// Index returns the position of ticker in the matrix, or -1.
func (m *ReturnMatrix) Index(ticker string) int {
	for i, t := range m.Tickers {
		if t == ticker {
			return i
		}
	}
	return -1
}

// StressSet is the subset of return dates at or below the stress quantile.
type StressSet struct {
	Quantile  float64                 `json:"quantile"`
	Method    formulas.QuantileMethod `json:"method"`
	Threshold float64                 `json:"threshold"`
	Indices   []int                   `json:"indices"`
	Dates     []string                `json:"dates"`
	Total     int                     `json:"total_days"`
	Warnings  []Warning               `json:"warnings,omitempty"`
}

// Len is the number of stress days.
func (s *StressSet) Len() int {
	return len(s.Indices)
}

// CorrelationMatrix is a symmetric Pearson correlation matrix with unit diagonal.
// Off-diagonal entries are NaN when a pair is undefined (zero variance, too few samples).
type CorrelationMatrix struct {
	Tickers []string    `json:"tickers"`
	Values  [][]float64 `json:"values"`
	Samples int         `json:"samples"`
}

// Get returns the correlation between two tickers, NaN if either is unknown.
func (c *CorrelationMatrix) Get(a, b string) float64 {
	i, j := -1, -1
	for k, t := range c.Tickers {
		if t == a {
			i = k
		}
		if t == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return c.Values[i][j]
}

// AverageOffDiagonal is the mean of the defined off-diagonal entries.
// It is NaN when no pair is defined.
func (c *CorrelationMatrix) AverageOffDiagonal() float64 {
	sum, n := 0.0, 0
	for i := range c.Values {
		for j := range c.Values[i] {
			if i == j || math.IsNaN(c.Values[i][j]) {
				continue
			}
			sum += c.Values[i][j]
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

type correlationMatrixJSON struct {
	Tickers []string     `json:"tickers"`
	Values  [][]*float64 `json:"values"`
	Samples int          `json:"samples"`
}

// MarshalJSON writes undefined correlations as null.
func (c CorrelationMatrix) MarshalJSON() ([]byte, error) {
	out := correlationMatrixJSON{
		Tickers: c.Tickers,
		Values:  make([][]*float64, len(c.Values)),
		Samples: c.Samples,
	}
	for i, row := range c.Values {
		out.Values[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				out.Values[i][j] = &v
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null entries back as NaN.
func (c *CorrelationMatrix) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var in correlationMatrixJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Tickers = in.Tickers
	c.Samples = in.Samples
	c.Values = make([][]float64, len(in.Values))
	for i, row := range in.Values {
		c.Values[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				c.Values[i][j] = math.NaN()
			} else {
				c.Values[i][j] = *v
			}
		}
	}
	return nil
}

// LossAttribution splits the stress-period portfolio return across assets.
// Contributions sum to Total.
type LossAttribution struct {
	Contributions map[string]float64 `json:"contributions"`
	Total         float64            `json:"total"`
	Days          int                `json:"days"`
}

// Share is the fraction of Total contributed by ticker. Zero when Total is zero.
func (l *LossAttribution) Share(ticker string) float64 {
	if l.Total == 0 {
		return 0
	}
	return l.Contributions[ticker] / l.Total
}

// Largest returns the ticker with the most negative contribution.
// Ties resolve to the alphabetically first ticker.
func (l *LossAttribution) Largest() (string, float64) {
	best, worst := "", math.Inf(1)
	for _, t := range sortedKeys(l.Contributions) {
		if v := l.Contributions[t]; v < worst {
			best, worst = t, v
		}
	}
	return best, worst
}

// Horizon is a holding period measured in trading days.
type Horizon struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
}

// HorizonDistribution describes compounded returns over every holding window of
// one horizon.
//
// Windows overlap (a sliding start date), so consecutive observations share
// most of their daily returns and are strongly autocorrelated. ProbabilityOfLoss
// is the empirical fraction of losing windows, not an estimate from independent
// trials.
type HorizonDistribution struct {
	Horizon           Horizon   `json:"horizon"`
	Returns           []float64 `json:"returns"`
	Observations      int       `json:"observations"`
	ProbabilityOfLoss float64   `json:"probability_of_loss"`
	WorstCase         float64   `json:"worst_case_return"`
	BestCase          float64   `json:"best_case_return"`
	Median            float64   `json:"median_return"`
	LowSample         bool      `json:"low_sample"`
}

// HorizonRow is one line of the presentation table.
type HorizonRow struct {
	Label             string  `json:"label"`
	Days              int     `json:"days"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"`
	WorstCase         float64 `json:"worst_case_return"`
}

// WarningCode classifies a non-fatal condition attached to a result.
type WarningCode string

const (
	// LowSampleWarning marks statistics computed from too few observations to trust.
	LowSampleWarning WarningCode = "low_sample"
	// ZeroVarianceWarning marks an asset whose returns never move in a window.
	ZeroVarianceWarning WarningCode = "zero_variance"
	// HorizonUnavailableWarning marks a requested horizon longer than the history.
	HorizonUnavailableWarning WarningCode = "horizon_unavailable"
)

// Warning is a non-fatal condition surfaced next to the numbers it affects.
type Warning struct {
	Code      WarningCode `json:"code"`
	Component string      `json:"component"`
	Ticker    string      `json:"ticker,omitempty"`
	Message   string      `json:"message"`
	Samples   int         `json:"samples,omitempty"`
}

// Insights are plain-language readings of a result.
type Insights struct {
	Overview    string `json:"overview,omitempty"`
	Correlation string `json:"correlation,omitempty"`
	StressLoss  string `json:"stress_loss,omitempty"`
	Horizon     string `json:"horizon,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// Result is the immutable output of one analysis run.
type Result struct {
	Tickers           []string              `json:"tickers"`
	StartDate         string                `json:"start_date"`
	EndDate           string                `json:"end_date"`
	TradingDays       int                   `json:"trading_days"`
	Weights           Weights               `json:"weights"`
	PortfolioReturns  []float64             `json:"portfolio_returns"`
	Stress            *StressSet            `json:"stress"`
	NormalCorrelation *CorrelationMatrix    `json:"normal_correlation"`
	StressCorrelation *CorrelationMatrix    `json:"stress_correlation"`
	LossAttribution   *LossAttribution      `json:"loss_attribution"`
	Horizons          []HorizonDistribution `json:"horizons"`
	Insights          Insights              `json:"insights"`
	Warnings          []Warning             `json:"warnings"`
}

// HorizonTable reduces the horizon distributions to presentation rows.
func (r *Result) HorizonTable() []HorizonRow {
	rows := make([]HorizonRow, len(r.Horizons))
	for i, h := range r.Horizons {
		rows[i] = HorizonRow{
			Label:             h.Horizon.Label,
			Days:              h.Horizon.Days,
			ProbabilityOfLoss: h.ProbabilityOfLoss,
			WorstCase:         h.WorstCase,
		}
	}
	return rows
}

// HasWarning reports whether the result carries a warning with the given code.
func (r *Result) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
