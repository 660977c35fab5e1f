package xray

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrInsufficientHistory  = errors.New("insufficient price history")
	ErrZeroPrice            = errors.New("non-positive price")
	ErrDegenerateAllocation = errors.New("degenerate allocation")
	ErrHorizonTooLong       = errors.New("horizon exceeds available history")
	ErrInvalidSeries        = errors.New("invalid price series")
	ErrMissingAsset         = errors.New("asset missing from price panel")
	ErrInvalidQuantile      = errors.New("stress quantile must be in (0, 1)")
	ErrInvalidHorizon       = errors.New("horizon must be a positive number of trading days")
	ErrAttributionMismatch  = errors.New("loss attribution does not sum to portfolio stress return")
	ErrInvalidConfig        = errors.New("invalid analysis configuration")
	ErrNoPriceSource        = errors.New("no prices supplied and no price store configured")
	ErrRunNotFound          = errors.New("run not found")
)

// InsufficientHistoryError means the aligned common history is shorter than required.
type InsufficientHistoryError struct {
	Days     int
	Required int
	Cutoff   string // youngest asset's first date
}

func (e *InsufficientHistoryError) Error() string {
	if e.Cutoff == "" {
		return fmt.Sprintf("insufficient price history: %d aligned trading days, need at least %d", e.Days, e.Required)
	}
	return fmt.Sprintf("insufficient price history: %d aligned trading days from %s, need at least %d", e.Days, e.Cutoff, e.Required)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// ZeroPriceError means a price is zero, negative or not a finite number.
type ZeroPriceError struct {
	Ticker string
	Date   string
	Price  float64
}

func (e *ZeroPriceError) Error() string {
	return fmt.Sprintf("invalid price for %s on %s: %v (prices must be positive)", e.Ticker, e.Date, e.Price)
}

func (e *ZeroPriceError) Is(target error) bool { return target == ErrZeroPrice }

// DegenerateAllocationError means the allocations cannot be normalised into weights.
type DegenerateAllocationError struct {
	Ticker string // offending ticker, empty when the total is the problem
	Total  float64
	Reason string
}

func (e *DegenerateAllocationError) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("degenerate allocation for %s: %s", e.Ticker, e.Reason)
	}
	return fmt.Sprintf("degenerate allocation: %s (total %v)", e.Reason, e.Total)
}

func (e *DegenerateAllocationError) Is(target error) bool { return target == ErrDegenerateAllocation }

// HorizonTooLongError means no complete holding window of the horizon fits in the history.
type HorizonTooLongError struct {
	Label     string
	Horizon   int
	Available int // number of daily returns
}

func (e *HorizonTooLongError) Error() string {
	name := e.Label
	if name == "" {
		name = fmt.Sprintf("%dd", e.Horizon)
	}
	return fmt.Sprintf("horizon %s (%d trading days) exceeds available history of %d daily returns", name, e.Horizon, e.Available)
}

func (e *HorizonTooLongError) Is(target error) bool { return target == ErrHorizonTooLong }

// InvalidSeriesError means a ticker's price series is malformed.
type InvalidSeriesError struct {
	Ticker string
	Date   string
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	if e.Date == "" {
		return fmt.Sprintf("invalid price series for %s: %s", e.Ticker, e.Reason)
	}
	return fmt.Sprintf("invalid price series for %s at %s: %s", e.Ticker, e.Date, e.Reason)
}

func (e *InvalidSeriesError) Is(target error) bool { return target == ErrInvalidSeries }

// MissingAssetError means an allocated ticker has no price history.
type MissingAssetError struct {
	Ticker string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("no price history for allocated ticker %s", e.Ticker)
}

func (e *MissingAssetError) Is(target error) bool { return target == ErrMissingAsset }

// ErrorCode returns the machine-readable code for an input error, or "" when
// err is not caused by the caller's input.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrZeroPrice):
		return "zero_price"
	case errors.Is(err, ErrDegenerateAllocation):
		return "degenerate_allocation"
	case errors.Is(err, ErrHorizonTooLong):
		return "horizon_too_long"
	case errors.Is(err, ErrInvalidSeries):
		return "invalid_series"
	case errors.Is(err, ErrMissingAsset):
		return "missing_asset"
	case errors.Is(err, ErrInvalidQuantile):
		return "invalid_quantile"
	case errors.Is(err, ErrInvalidHorizon):
		return "invalid_horizon"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrNoPriceSource):
		return "no_price_source"
	default:
		return ""
	}
}

// ErrorDetails extracts the ticker, date and horizon fields carried by typed errors.
func ErrorDetails(err error) map[string]interface{} {
	details := map[string]interface{}{}

	var histErr *InsufficientHistoryError
	var priceErr *ZeroPriceError
	var allocErr *DegenerateAllocationError
	var horizonErr *HorizonTooLongError
	var seriesErr *InvalidSeriesError
	var missingErr *MissingAssetError

	switch {
	case errors.As(err, &histErr):
		details["days"] = histErr.Days
		details["required"] = histErr.Required
		if histErr.Cutoff != "" {
			details["cutoff"] = histErr.Cutoff
		}
	case errors.As(err, &priceErr):
		details["ticker"] = priceErr.Ticker
		details["date"] = priceErr.Date
	case errors.As(err, &allocErr):
		if allocErr.Ticker != "" {
			details["ticker"] = allocErr.Ticker
		}
		details["reason"] = allocErr.Reason
	case errors.As(err, &horizonErr):
		details["horizon"] = horizonErr.Label
		details["days"] = horizonErr.Horizon
		details["available"] = horizonErr.Available
	case errors.As(err, &seriesErr):
		details["ticker"] = seriesErr.Ticker
		if seriesErr.Date != "" {
			details["date"] = seriesErr.Date
		}
		details["reason"] = seriesErr.Reason
	case errors.As(err, &missingErr):
		details["ticker"] = missingErr.Ticker
	}
	return details
}
