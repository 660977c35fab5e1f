// Package history stores daily adjusted close prices and serves them as
// price panels for the x-ray engine.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/xray/internal/database"
	"github.com/aristath/xray/internal/modules/xray"
)

// TickerSummary describes the stored history of one ticker.
type TickerSummary struct {
	Ticker    string `json:"ticker"`
	Count     int    `json:"count"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
}

// Repository provides access to the daily_prices table in history.db.
// It implements xray.PanelSource.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

var _ xray.PanelSource = (*Repository)(nil)

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
		now: time.Now,
	}
}

// UpsertPrices inserts or replaces the given prices for ticker in one transaction.
// Every point is validated first; an invalid point rejects the whole batch.
func (r *Repository) UpsertPrices(ctx context.Context, ticker string, prices []xray.PricePoint) (int, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return 0, &xray.InvalidSeriesError{Reason: "ticker cannot be empty"}
	}

	dates := make([]int64, len(prices))
	for i, p := range prices {
		d, err := time.Parse(xray.DateLayout, p.Date)
		if err != nil {
			return 0, &xray.InvalidSeriesError{Ticker: ticker, Date: p.Date, Reason: "date is not YYYY-MM-DD"}
		}
		if p.Price <= 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			return 0, &xray.ZeroPriceError{Ticker: ticker, Date: p.Date, Price: p.Price}
		}
		dates[i] = d.Unix()
	}

	updatedAt := r.now().Unix()
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (ticker, date, adjusted_close, updated_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, p := range prices {
			if _, err := stmt.ExecContext(ctx, ticker, dates[i], p.Price, updatedAt); err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", p.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert prices for %s: %w", ticker, err)
	}

	r.log.Info().
		Str("ticker", ticker).
		Int("count", len(prices)).
		Msg("Upserted daily prices")

	return len(prices), nil
}

// GetPrices returns the stored history of ticker, oldest first.
// An unknown ticker yields an empty slice.
func (r *Repository) GetPrices(ctx context.Context, ticker string) ([]xray.PricePoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, adjusted_close
		FROM daily_prices
		WHERE ticker = ?
		ORDER BY date ASC
	`, strings.TrimSpace(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	prices := []xray.PricePoint{}
	for rows.Next() {
		var dateUnix int64
		var p xray.PricePoint
		if err := rows.Scan(&dateUnix, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC().Format(xray.DateLayout)
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// LoadPanel returns the stored history of every requested ticker that has any.
// Tickers without history are left out of the panel.
func (r *Repository) LoadPanel(ctx context.Context, tickers []string) (xray.PricePanel, error) {
	panel := make(xray.PricePanel, len(tickers))
	for _, ticker := range tickers {
		prices, err := r.GetPrices(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ticker, err)
		}
		if len(prices) == 0 {
			r.log.Debug().Str("ticker", ticker).Msg("No stored history for ticker")
			continue
		}
		panel[ticker] = prices
	}
	return panel, nil
}

// ListTickers summarises every stored ticker, ordered by ticker.
func (r *Repository) ListTickers(ctx context.Context) ([]TickerSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker, COUNT(*), MIN(date), MAX(date)
		FROM daily_prices
		GROUP BY ticker
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	summaries := []TickerSummary{}
	for rows.Next() {
		var s TickerSummary
		var first, last int64
		if err := rows.Scan(&s.Ticker, &s.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan ticker summary: %w", err)
		}
		s.FirstDate = time.Unix(first, 0).UTC().Format(xray.DateLayout)
		s.LastDate = time.Unix(last, 0).UTC().Format(xray.DateLayout)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	return summaries, nil
}

// DeleteTicker removes all history of ticker and returns the number of rows removed.
func (r *Repository) DeleteTicker(ctx context.Context, ticker string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM daily_prices WHERE ticker = ?", strings.TrimSpace(ticker))
	if err != nil {
		return 0, fmt.Errorf("failed to delete history for %s: %w", ticker, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", ticker, err)
	}

	if deleted > 0 {
		r.log.Info().Str("ticker", ticker).Int64("deleted", deleted).Msg("Deleted price history")
	}
	return deleted, nil
}
