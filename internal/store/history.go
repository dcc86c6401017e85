package store

import (
	"context"
	"database/sql"
	"fmt"

	"flighttrack/internal/models"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

// HistoryStore provides access to the completed-day history.
type HistoryStore interface {
	UpsertDay(ctx context.Context, day models.DayArchive) error
	GetDay(ctx context.Context, date string) (*models.DayArchive, error)
	ListDays(ctx context.Context, filter HistoryFilter) ([]models.DayArchive, error)
	HealthCheck(ctx context.Context) error
}

// HistoryFilter defines filters for querying day history.
type HistoryFilter struct {
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
}

// historyStore implements HistoryStore over the local sqlite database.
type historyStore struct {
	db      *DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

const historySchema = `
CREATE TABLE IF NOT EXISTS day_history (
	date TEXT PRIMARY KEY,
	daily_total INTEGER NOT NULL,
	best_day_total INTEGER NOT NULL,
	best_day_date TEXT NOT NULL,
	max_pos INTEGER NOT NULL,
	max INTEGER NOT NULL,
	max_pos_all_time INTEGER NOT NULL,
	max_all_time INTEGER NOT NULL,
	lowest_temp REAL NOT NULL,
	highest_temp REAL NOT NULL,
	created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_day_history_daily_total ON day_history(daily_total);
`

// NewHistoryStore creates the day-history store, creating the schema on
// first open.
func NewHistoryStore(db *DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (HistoryStore, error) {
	if _, err := db.ExecContext(context.Background(), "create_schema", historySchema); err != nil {
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &historyStore{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}, nil
}

// UpsertDay inserts or replaces one completed day.
func (h *historyStore) UpsertDay(ctx context.Context, day models.DayArchive) error {
	query := `
		INSERT INTO day_history (
			date, daily_total, best_day_total, best_day_date,
			max_pos, max, max_pos_all_time, max_all_time,
			lowest_temp, highest_temp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			daily_total = excluded.daily_total,
			best_day_total = excluded.best_day_total,
			best_day_date = excluded.best_day_date,
			max_pos = excluded.max_pos,
			max = excluded.max,
			max_pos_all_time = excluded.max_pos_all_time,
			max_all_time = excluded.max_all_time,
			lowest_temp = excluded.lowest_temp,
			highest_temp = excluded.highest_temp
	`

	_, err := h.db.ExecContext(ctx, "upsert_day", query,
		day.Date,
		day.DailyTotal,
		day.BestDayTotal,
		day.BestDayDate,
		day.MaxPos,
		day.Max,
		day.MaxPosAllTime,
		day.MaxAllTime,
		float64(day.LowestTemp),
		float64(day.HighestTemp),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert day: %w", err)
	}

	h.logger.Debug(ctx, "[HISTORY_UPSERT] Day recorded", logging.Fields{
		"date":        day.Date,
		"daily_total": day.DailyTotal,
	})

	return nil
}

// GetDay retrieves one day by date.
func (h *historyStore) GetDay(ctx context.Context, date string) (*models.DayArchive, error) {
	query := `
		SELECT date, daily_total, best_day_total, best_day_date,
		       max_pos, max, max_pos_all_time, max_all_time,
		       lowest_temp, highest_temp
		FROM day_history
		WHERE date = ?
	`

	var day models.DayArchive
	err := h.db.GetContext(ctx, "get_day", &day, query, date)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "day_history", ID: date}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day: %w", err)
	}

	return &day, nil
}

// ListDays retrieves completed days, newest first.
func (h *historyStore) ListDays(ctx context.Context, filter HistoryFilter) ([]models.DayArchive, error) {
	query := `
		SELECT date, daily_total, best_day_total, best_day_date,
		       max_pos, max, max_pos_all_time, max_all_time,
		       lowest_temp, highest_temp
		FROM day_history
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY date DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	days := []models.DayArchive{}
	if err := h.db.SelectContext(ctx, "list_days", &days, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}

	return days, nil
}

// HealthCheck verifies the history database is reachable.
func (h *historyStore) HealthCheck(ctx context.Context) error {
	var one int
	return h.db.GetContext(ctx, "health_check", &one, "SELECT 1")
}
