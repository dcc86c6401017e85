package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

const historyFileName = "history.db"

// DB wraps the sqlx handle to the local day-history database with query
// timing and logging.
type DB struct {
	db      *sqlx.DB
	path    string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// OpenDB opens or creates the day-history database under dataDir.
func OpenDB(dataDir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DB, error) {
	path := filepath.Join(dataDir, historyFileName)

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Single writer; WAL lets API reads proceed during rollover inserts.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	logger.Info(context.Background(), "[DB_INIT] History database opened", logging.Fields{
		"path": path,
	})

	return &DB{
		db:      db,
		path:    path,
		logger:  logger,
		metrics: metricsCollector,
	}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.logger.Info(context.Background(), "[DB_CLOSE] Closing history database", logging.Fields{
		"path": d.path,
	})
	return d.db.Close()
}

// ExecContext executes a statement with timing metrics.
func (d *DB) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		d.metrics.RecordDBError(queryType)
	}
	return result, err
}

// GetContext fetches a single row into dest with timing metrics.
func (d *DB) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := d.db.GetContext(ctx, dest, query, args...)
	if err != nil && err != sql.ErrNoRows {
		d.metrics.RecordDBError(queryType)
	}
	return err
}

// SelectContext fetches multiple rows into dest with timing metrics.
func (d *DB) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := d.db.SelectContext(ctx, dest, query, args...)
	if err != nil {
		d.metrics.RecordDBError(queryType)
	}
	return err
}
