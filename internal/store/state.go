// Package store persists tracker state: the metrics snapshot and seen
// ledger as JSON files, completed days as CSV archive lines and rows in a
// local day-history database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"flighttrack/internal/models"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

const (
	metricsFileName = "internalData.json"
	ledgerFileName  = "ICAOData.json"
)

// StateStore persists the metrics snapshot and the seen ledger.
type StateStore struct {
	metricsPath string
	ledgerPath  string
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewStateStore creates a state store rooted at dataDir, creating the
// directory if needed.
func NewStateStore(dataDir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*StateStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, &PersistError{Path: dataDir, Err: err}
	}
	return &StateStore{
		metricsPath: filepath.Join(dataDir, metricsFileName),
		ledgerPath:  filepath.Join(dataDir, ledgerFileName),
		logger:      logger,
		metrics:     metricsCollector,
	}, nil
}

// LoadMetrics reads the persisted metrics snapshot. A missing file yields
// defaults; a corrupt file yields defaults and a log line, never an error.
// Unknown keys in the file are ignored and missing keys keep their
// defaults, so files written by newer versions load cleanly.
func (s *StateStore) LoadMetrics(ctx context.Context, now time.Time) *models.FlightMetrics {
	m := models.DefaultMetrics(now)

	data, err := os.ReadFile(s.metricsPath)
	if errors.Is(err, os.ErrNotExist) {
		return m
	}
	if err != nil {
		s.logger.Warn(ctx, "[STORE_LOAD] Metrics file unreadable, using defaults", logging.Fields{
			"path":  s.metricsPath,
			"error": err.Error(),
		})
		return m
	}

	// Unmarshal over the defaults: keys present in the file overwrite,
	// keys absent keep the default value.
	if err := json.Unmarshal(data, m); err != nil {
		decodeErr := &DecodeError{Path: s.metricsPath, Err: err}
		s.logger.Warn(ctx, "[STORE_LOAD] Metrics file corrupt, using defaults", logging.Fields{
			"path":  s.metricsPath,
			"error": decodeErr.Error(),
		})
		return models.DefaultMetrics(now)
	}

	return m
}

// LoadLedger reads the persisted seen ledger. A missing or corrupt file
// yields an empty ledger dated now. A ledger dated for an earlier day is
// returned as-is; the rollover check clears it.
func (s *StateStore) LoadLedger(ctx context.Context, now time.Time) *models.SeenLedger {
	ledger := models.NewLedger(now)

	data, err := os.ReadFile(s.ledgerPath)
	if errors.Is(err, os.ErrNotExist) {
		return ledger
	}
	if err != nil {
		s.logger.Warn(ctx, "[STORE_LOAD] Ledger file unreadable, starting empty", logging.Fields{
			"path":  s.ledgerPath,
			"error": err.Error(),
		})
		return ledger
	}

	if err := json.Unmarshal(data, ledger); err != nil {
		decodeErr := &DecodeError{Path: s.ledgerPath, Err: err}
		s.logger.Warn(ctx, "[STORE_LOAD] Ledger file corrupt, starting empty", logging.Fields{
			"path":  s.ledgerPath,
			"error": decodeErr.Error(),
		})
		return models.NewLedger(now)
	}

	return ledger
}

// SaveState writes the metrics snapshot and ledger to disk. Each file is
// written to a temp file and renamed into place, so a crash mid-write
// leaves either the old state or a file the loader rejects into defaults,
// never a half-written load.
func (s *StateStore) SaveState(ctx context.Context, m *models.FlightMetrics, ledger *models.SeenLedger) error {
	timer := s.metrics.NewTimer(s.metrics.SaveDuration)
	defer timer.ObserveDuration()

	if err := s.writeJSON(s.metricsPath, m); err != nil {
		s.metrics.RecordSaveError("metrics")
		return err
	}
	if err := s.writeJSON(s.ledgerPath, ledger); err != nil {
		s.metrics.RecordSaveError("ledger")
		return err
	}

	s.logger.Debug(ctx, "[STORE_SAVE] State persisted", logging.Fields{
		"metrics_path": s.metricsPath,
		"ledger_path":  s.ledgerPath,
		"ledger_size":  ledger.Size(),
	})

	return nil
}

func (s *StateStore) writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistError{Path: path, Err: err}
	}

	return nil
}
