package xray

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/xray/pkg/formulas"
)

// PanelSource loads stored daily price history for a set of tickers.
type PanelSource interface {
	LoadPanel(ctx context.Context, tickers []string) (PricePanel, error)
}

// RunStore persists finished runs. Get and FindByFingerprint return nil, nil
// when no unexpired run exists.
type RunStore interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*Run, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Price sources recorded on a run.
const (
	SourceInline = "inline"
	SourceStore  = "store"
)

// RunRequest is one analysis request. Nil or empty overrides keep the
// service defaults.
type RunRequest struct {
	Allocations    []Allocation `json:"allocations"`
	Prices         PricePanel   `json:"prices,omitempty"`
	StressQuantile *float64     `json:"stress_quantile,omitempty"`
	QuantileMethod string       `json:"quantile_method,omitempty"`
	Horizons       []Horizon    `json:"horizons,omitempty"`
	ForwardFill    *bool        `json:"forward_fill,omitempty"`
}

// Run is a stored analysis.
type Run struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Result      *Result   `json:"result"`
}

// Service resolves prices, serves cached runs and runs the engine for new inputs.
type Service struct {
	defaults Config
	prices   PanelSource
	runs     RunStore
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a service. prices and runs may be nil: without a price
// source every request must carry its prices, without a run store nothing is cached.
func NewService(defaults Config, prices PanelSource, runs RunStore, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		defaults: defaults,
		prices:   prices,
		runs:     runs,
		ttl:      ttl,
		log:      log.With().Str("service", "xray").Logger(),
		now:      time.Now,
	}
}

// Analyze returns the run for req. The second return value is true when the
// run was served from the cache.
func (s *Service) Analyze(ctx context.Context, req RunRequest) (*Run, bool, error) {
	cfg, err := s.configFor(req)
	if err != nil {
		return nil, false, err
	}
	engine, err := NewEngine(cfg, s.log)
	if err != nil {
		return nil, false, err
	}

	panel, source, err := s.panelFor(ctx, req.Allocations, req.Prices)
	if err != nil {
		return nil, false, err
	}

	fingerprint, err := Fingerprint(engine.Config(), req.Allocations, panel)
	if err != nil {
		return nil, false, err
	}

	if s.runs != nil {
		cached, err := s.runs.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			s.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Failed to look up cached run")
		} else if cached != nil {
			s.log.Debug().Str("run_id", cached.ID).Msg("Serving cached run")
			return cached, true, nil
		}
	}

	result, err := engine.Run(ctx, Input{Prices: panel, Allocations: req.Allocations})
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	run := &Run{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Source:      source,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
		Result:      result,
	}

	if s.runs != nil {
		if err := s.runs.Save(ctx, run); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to store run")
		}
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("source", source).
		Int("assets", len(result.Tickers)).
		Msg("Analysis run created")

	return run, false, nil
}

// GetRun returns a stored run or ErrRunNotFound.
func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.runs == nil {
		return nil, ErrRunNotFound
	}
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// DeleteRun removes a stored run or returns ErrRunNotFound.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	if s.runs == nil {
		return ErrRunNotFound
	}
	deleted, err := s.runs.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if !deleted {
		return ErrRunNotFound
	}
	return nil
}

// configFor applies the request overrides to the service defaults.
func (s *Service) configFor(req RunRequest) (Config, error) {
	cfg := s.defaults
	if req.StressQuantile != nil {
		cfg.StressQuantile = *req.StressQuantile
	}
	if req.QuantileMethod != "" {
		method, err := formulas.ParseQuantileMethod(req.QuantileMethod)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		cfg.QuantileMethod = method
	}
	if len(req.Horizons) > 0 {
		cfg.Horizons = append([]Horizon(nil), req.Horizons...)
	}
	if req.ForwardFill != nil {
		cfg.ForwardFill = *req.ForwardFill
	}
	return cfg, nil
}

func (s *Service) panelFor(ctx context.Context, allocs []Allocation, inline PricePanel) (PricePanel, string, error) {
	if len(inline) > 0 {
		return inline, SourceInline, nil
	}
	if s.prices == nil {
		return nil, "", ErrNoPriceSource
	}

	seen := make(map[string]bool, len(allocs))
	tickers := make([]string, 0, len(allocs))
	for _, a := range allocs {
		ticker := strings.TrimSpace(a.Ticker)
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	panel, err := s.prices.LoadPanel(ctx, tickers)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load price history: %w", err)
	}
	return panel, SourceStore, nil
}

type fingerprintInput struct {
	StressQuantile    float64                 `msgpack:"q"`
	QuantileMethod    formulas.QuantileMethod `msgpack:"method"`
	Horizons          []Horizon               `msgpack:"horizons"`
	MinHistoryDays    int                     `msgpack:"min_history"`
	MinStressSamples  int                     `msgpack:"min_stress"`
	MinHorizonWindows int                     `msgpack:"min_windows"`
	ForwardFill       bool                    `msgpack:"ffill"`
	StrictHorizons    bool                    `msgpack:"strict"`
	Allocations       []Allocation            `msgpack:"allocations"`
	Prices            []panelEntry            `msgpack:"prices"`
}

// panelEntry is one ticker's series. The panel is encoded as a slice sorted
// by ticker because msgpack does not order keys of typed maps.
type panelEntry struct {
	Ticker string       `msgpack:"ticker"`
	Points []PricePoint `msgpack:"points"`
}

// Fingerprint hashes everything that determines a result: the configuration
// (except the worker count), the allocations in ticker order and the panel.
func Fingerprint(cfg Config, allocs []Allocation, panel PricePanel) (string, error) {
	sorted := append([]Allocation(nil), allocs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount < sorted[j].Amount
		}
		return sorted[i].AssetType < sorted[j].AssetType
	})

	entries := make([]panelEntry, 0, len(panel))
	for _, ticker := range sortedKeys(panel) {
		entries = append(entries, panelEntry{Ticker: ticker, Points: panel[ticker]})
	}

	in := fingerprintInput{
		StressQuantile:    cfg.StressQuantile,
		QuantileMethod:    cfg.QuantileMethod,
		Horizons:          cfg.Horizons,
		MinHistoryDays:    cfg.MinHistoryDays,
		MinStressSamples:  cfg.MinStressSamples,
		MinHorizonWindows: cfg.MinHorizonWindows,
		ForwardFill:       cfg.ForwardFill,
		StrictHorizons:    cfg.StrictHorizons,
		Allocations:       sorted,
		Prices:            entries,
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(in); err != nil {
		return "", fmt.Errorf("failed to encode fingerprint input: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
