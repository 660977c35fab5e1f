// Package xray implements the stress-aware portfolio risk engine: price
// alignment, return and weight aggregation, stress day detection, normal and
// stress correlation, stress loss attribution and holding-period risk.
//
// Every stage is a pure function over immutable inputs. Engine.Run threads one
// analysis through all of them and returns a Result that is never mutated.
package xray

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/xray/internal/utils"
	"github.com/aristath/xray/pkg/formulas"
)

// Defaults for an analysis run.
const (
	DefaultStressQuantile    = 0.05
	DefaultMinHistoryDays    = 20
	DefaultMinStressSamples  = 10
	DefaultMinHorizonWindows = 30
)

// Config holds the tunables of an analysis run.
type Config struct {
	StressQuantile    float64
	QuantileMethod    formulas.QuantileMethod
	Horizons          []Horizon
	MinHistoryDays    int
	MinStressSamples  int
	MinHorizonWindows int
	ForwardFill       bool
	// StrictHorizons aborts the run when a horizon is longer than the history
	// instead of skipping it with a warning.
	StrictHorizons bool
	Workers        int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		StressQuantile:    DefaultStressQuantile,
		QuantileMethod:    formulas.QuantileLinear,
		Horizons:          DefaultHorizons(),
		MinHistoryDays:    DefaultMinHistoryDays,
		MinStressSamples:  DefaultMinStressSamples,
		MinHorizonWindows: DefaultMinHorizonWindows,
		Workers:           runtime.NumCPU(),
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	if math.IsNaN(c.StressQuantile) || c.StressQuantile <= 0 || c.StressQuantile >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidQuantile, c.StressQuantile)
	}
	if _, err := formulas.ParseQuantileMethod(string(c.QuantileMethod)); err != nil {
		return err
	}
	if c.MinHistoryDays < 2 {
		return fmt.Errorf("minimum history must be at least 2 days, got %d", c.MinHistoryDays)
	}
	if c.MinStressSamples < 0 || c.MinHorizonWindows < 0 {
		return fmt.Errorf("sample minimums must not be negative")
	}
	labels := make(map[string]bool, len(c.Horizons))
	for _, h := range c.Horizons {
		if h.Days <= 0 {
			return fmt.Errorf("%w: %s has %d days", ErrInvalidHorizon, h.Label, h.Days)
		}
		if labels[h.Label] {
			return fmt.Errorf("duplicate horizon label %q", h.Label)
		}
		labels[h.Label] = true
	}
	return nil
}

// Input is the data an analysis run consumes.
type Input struct {
	Prices      PricePanel
	Allocations []Allocation
}

// Engine runs analyses with a fixed configuration. It holds no per-run state
// and is safe for concurrent use.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine validates cfg and returns an engine. Empty horizons and quantile
// method fall back to their defaults.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if cfg.QuantileMethod == "" {
		cfg.QuantileMethod = formulas.QuantileLinear
	}
	if len(cfg.Horizons) == 0 {
		cfg.Horizons = DefaultHorizons()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Horizons = append([]Horizon(nil), cfg.Horizons...)

	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "xray_engine").Logger(),
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.Horizons = append([]Horizon(nil), e.cfg.Horizons...)
	return cfg
}

// Run performs one complete analysis.
//
// Correlation, loss attribution and horizon analysis only read the return
// matrix, the weights and the portfolio series, so they run concurrently.
// Context cancellation is checked between stages.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	defer utils.OperationTimer("xray_run", e.log)()

	weights, err := NormalizeWeights(in.Allocations)
	if err != nil {
		return nil, err
	}

	panel := make(PricePanel, len(weights))
	for _, ticker := range sortedKeys(weights) {
		series, ok := in.Prices[ticker]
		if !ok {
			return nil, &MissingAssetError{Ticker: ticker}
		}
		panel[ticker] = series
	}

	aligned, err := Align(panel, AlignOptions{MinDays: e.cfg.MinHistoryDays, ForwardFill: e.cfg.ForwardFill})
	if err != nil {
		return nil, err
	}
	e.log.Debug().
		Int("assets", len(aligned.Tickers)).
		Int("dates", len(aligned.Dates)).
		Str("start", aligned.Dates[0]).
		Msg("Aligned price panel")

	rm, err := ComputeReturns(aligned)
	if err != nil {
		return nil, err
	}

	portfolio, err := PortfolioReturns(rm, weights)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stress, err := DetectStress(portfolio, rm.Dates, StressOptions{
		Quantile:   e.cfg.StressQuantile,
		Method:     e.cfg.QuantileMethod,
		MinSamples: e.cfg.MinStressSamples,
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().
		Int("stress_days", stress.Len()).
		Float64("threshold", stress.Threshold).
		Msg("Detected stress days")

	var (
		normalCorr, stressCorr *CorrelationMatrix
		corrWarnings           []Warning
		attribution            *LossAttribution
		horizons               []HorizonDistribution
		horizonWarnings        []Warning
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		normalCorr, stressCorr, corrWarnings = ComputeCorrelations(rm, stress, e.cfg.MinStressSamples, e.cfg.Workers)
		return nil
	})
	g.Go(func() error {
		var err error
		attribution, err = AttributeLoss(rm, weights, portfolio, stress)
		return err
	})
	g.Go(func() error {
		var err error
		horizons, horizonWarnings, err = e.analyzeHorizons(gctx, portfolio)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	warnings := make([]Warning, 0, len(stress.Warnings)+len(corrWarnings)+len(horizonWarnings))
	warnings = append(warnings, stress.Warnings...)
	warnings = append(warnings, corrWarnings...)
	warnings = append(warnings, horizonWarnings...)

	resultWeights := make(Weights, len(weights))
	for k, v := range weights {
		resultWeights[k] = v
	}

	res := &Result{
		Tickers:           append([]string(nil), rm.Tickers...),
		StartDate:         aligned.Dates[0],
		EndDate:           aligned.Dates[len(aligned.Dates)-1],
		TradingDays:       len(aligned.Dates),
		Weights:           resultWeights,
		PortfolioReturns:  portfolio,
		Stress:            stress,
		NormalCorrelation: normalCorr,
		StressCorrelation: stressCorr,
		LossAttribution:   attribution,
		Horizons:          horizons,
		Warnings:          warnings,
	}
	res.Insights = BuildInsights(res, in.Allocations)

	for _, w := range warnings {
		e.log.Warn().
			Str("code", string(w.Code)).
			Str("component", w.Component).
			Str("ticker", w.Ticker).
			Msg(w.Message)
	}
	e.log.Info().
		Int("assets", len(res.Tickers)).
		Int("trading_days", res.TradingDays).
		Int("stress_days", stress.Len()).
		Int("horizons", len(horizons)).
		Int("warnings", len(warnings)).
		Msg("Portfolio x-ray completed")

	return res, nil
}

// analyzeHorizons runs every configured horizon. Horizons longer than the
// history are skipped with a warning unless StrictHorizons is set.
func (e *Engine) analyzeHorizons(ctx context.Context, portfolio []float64) ([]HorizonDistribution, []Warning, error) {
	out := make([]HorizonDistribution, 0, len(e.cfg.Horizons))
	var warnings []Warning

	for _, h := range e.cfg.Horizons {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		d, err := AnalyzeHorizon(portfolio, h, e.cfg.MinHorizonWindows)
		if errors.Is(err, ErrHorizonTooLong) && !e.cfg.StrictHorizons {
			warnings = append(warnings, Warning{
				Code:      HorizonUnavailableWarning,
				Component: "horizon_analyzer",
				Message:   err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if d.LowSample {
			warnings = append(warnings, Warning{
				Code:      LowSampleWarning,
				Component: "horizon_analyzer",
				Message: fmt.Sprintf("%s has only %d holding windows; probability of loss is a rough estimate",
					h.Label, d.Observations),
				Samples: d.Observations,
			})
		}
		out = append(out, *d)
	}
	return out, warnings, nil
}
