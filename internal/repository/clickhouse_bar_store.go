package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	pkgch "StockCast/pkg/clickhouse"
	applogger "StockCast/pkg/logger"
)

var _ domrepo.BarStore = (*CHBarStore)(nil)

// Schema returns the DDL for the archive tables in database db.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, db),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.daily_bars (
			ticker     LowCardinality(String),
			date       Date,
			open       Float64,
			high       Float64,
			low        Float64,
			close      Float64,
			volume     Int64,
			fetched_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(fetched_at)
		ORDER BY (ticker, date)`, db),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.forecasts (
			ticker        LowCardinality(String),
			model         String,
			generated_at  DateTime64(3),
			horizon       UInt16,
			last_close    Float64,
			mse           Float64,
			rmse          Float64,
			mae           Float64,
			mape          Float64,
			r2            Float64,
			future_dates  Array(Date),
			future_prices Array(Float64)
		) ENGINE = MergeTree
		ORDER BY (ticker, generated_at)`, db),
	}
}

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db  *sql.DB
	dbn string
	l   *applogger.Logger
	now func() time.Time
}

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{db: ch.DB(), dbn: database, l: applogger.Nop(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// SaveBars writes complete bars in one batch. Incomplete bars are skipped;
// re-saving a date replaces the earlier row on merge.
func (s *CHBarStore) SaveBars(ctx context.Context, ticker string, bars []models.Bar) error {
	rows := barRows(ticker, bars)
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	q := fmt.Sprintf("INSERT INTO %s.daily_bars (ticker, date, open, high, low, close, volume)", s.dbn)
	if err := s.insert(ctx, q, rows); err != nil {
		s.l.Error("clickhouse save_bars error", applogger.String("ticker", ticker), applogger.Error(err))
		return fmt.Errorf("save bars: %w", err)
	}
	s.l.Debug("clickhouse save_bars ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHBarStore) LoadBars(ctx context.Context, ticker, period string) ([]models.Bar, error) {
	since := domrepo.NormalizePeriod(period).Since(s.now())
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}
	q := fmt.Sprintf(`
		SELECT date, open, high, low, close, volume
		FROM %s.daily_bars FINAL
		WHERE ticker = ? AND date >= ?
		ORDER BY date ASC`, s.dbn)
	rows, err := s.db.QueryContext(ctx, q, ticker, since)
	if err != nil {
		s.l.Error("clickhouse load_bars query error", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("load bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHBarStore) SaveForecast(ctx context.Context, res *models.ForecastResult) error {
	q := fmt.Sprintf(`INSERT INTO %s.forecasts
		(ticker, model, generated_at, horizon, last_close, mse, rmse, mae, mape, r2, future_dates, future_prices)`, s.dbn)
	if err := s.insert(ctx, q, [][]interface{}{forecastRow(res)}); err != nil {
		s.l.Error("clickhouse save_forecast error", applogger.String("ticker", res.Ticker), applogger.Error(err))
		return fmt.Errorf("save forecast: %w", err)
	}
	return nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insert runs a prepared batch insert inside one transaction, the
// clickhouse-go way of sending a block over database/sql.
func (s *CHBarStore) insert(ctx context.Context, q string, rows [][]interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func barRows(ticker string, bars []models.Bar) [][]interface{} {
	out := make([][]interface{}, 0, len(bars))
	for _, b := range bars {
		if !b.Complete() {
			continue
		}
		out = append(out, []interface{}{ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume})
	}
	return out
}

func forecastRow(res *models.ForecastResult) []interface{} {
	dates := make([]time.Time, len(res.Future))
	prices := make([]float64, len(res.Future))
	for i, p := range res.Future {
		dates[i] = p.Date
		prices[i] = p.Price
	}
	m := res.Metrics
	return []interface{}{
		res.Ticker, res.Model, res.GeneratedAt, uint16(len(res.Future)), res.LastClose(),
		m.MSE, m.RMSE, m.MAE, m.MAPE, m.R2, dates, prices,
	}
}
