package xray

import (
	"fmt"
	"math"
	"strings"
)

// Asset types counted as equity exposure.
var equityTypes = map[string]bool{
	"stock": true,
	"etf":   true,
	"index": true,
}

const (
	shortInsightHorizon = 126 // 6 months
	longInsightHorizon  = 756 // 3 years
)

// BuildInsights reads a finished result and phrases its main findings.
// Insights that lack their inputs are left empty.
func BuildInsights(res *Result, allocs []Allocation) Insights {
	ins := Insights{
		Overview:    overviewInsight(allocs, res.Weights),
		Correlation: correlationInsight(res.NormalCorrelation, res.StressCorrelation),
		StressLoss:  stressLossInsight(res.LossAttribution),
		Horizon:     horizonInsight(res.Horizons),
	}

	var parts []string
	for _, s := range []string{ins.Overview, ins.StressLoss, ins.Horizon} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	ins.Summary = strings.Join(parts, " ")
	return ins
}

func overviewInsight(allocs []Allocation, w Weights) string {
	typed := false
	equity := 0.0
	seen := make(map[string]bool)
	for _, a := range allocs {
		kind := strings.ToLower(strings.TrimSpace(a.AssetType))
		if kind == "" {
			continue
		}
		typed = true
		ticker := strings.TrimSpace(a.Ticker)
		if equityTypes[kind] && !seen[ticker] {
			equity += w[ticker]
			seen[ticker] = true
		}
	}
	if !typed {
		return ""
	}

	switch pct := equity * 100; {
	case pct > 70:
		return "This portfolio is equity-heavy, making it sensitive to market fluctuations."
	case pct > 40:
		return "This portfolio has a balanced mix of growth and defensive assets."
	default:
		return "This portfolio is defensively positioned with lower exposure to equities."
	}
}

func correlationInsight(normal, stress *CorrelationMatrix) string {
	if normal == nil || stress == nil {
		return ""
	}
	normalAvg := normal.AverageOffDiagonal()
	stressAvg := stress.AverageOffDiagonal()
	if math.IsNaN(normalAvg) || math.IsNaN(stressAvg) {
		return ""
	}

	switch {
	case stressAvg > normalAvg+0.15:
		return "Asset correlations increase during stress, reducing diversification when it is most needed."
	case stressAvg < normalAvg-0.1:
		return "Assets become less correlated during stress, improving diversification in difficult periods."
	default:
		return "Asset relationships remain relatively stable during stress periods."
	}
}

func stressLossInsight(attr *LossAttribution) string {
	if attr == nil || attr.Total == 0 || len(attr.Contributions) == 0 {
		return ""
	}
	ticker, worst := attr.Largest()
	if share := math.Abs(worst/attr.Total) * 100; share > 60 {
		return fmt.Sprintf("Most stress losses are driven by %s, indicating concentration risk in this asset.", ticker)
	}
	return "Stress losses are distributed across assets, indicating limited concentration risk."
}

func horizonInsight(horizons []HorizonDistribution) string {
	if len(horizons) < 2 {
		return ""
	}

	var short, long *HorizonDistribution
	for i := range horizons {
		switch horizons[i].Horizon.Days {
		case shortInsightHorizon:
			short = &horizons[i]
		case longInsightHorizon:
			long = &horizons[i]
		}
	}
	if short == nil || long == nil {
		short, long = &horizons[0], &horizons[0]
		for i := range horizons {
			if horizons[i].Horizon.Days < short.Horizon.Days {
				short = &horizons[i]
			}
			if horizons[i].Horizon.Days > long.Horizon.Days {
				long = &horizons[i]
			}
		}
		if short.Horizon.Days == long.Horizon.Days {
			return ""
		}
	}

	if long.ProbabilityOfLoss < short.ProbabilityOfLoss*0.5 {
		return "The probability of loss decreases significantly over longer holding periods, highlighting the benefits of staying invested."
	}
	return "Loss risk remains persistent even over longer holding periods, indicating structural portfolio risk."
}
