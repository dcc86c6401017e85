package store

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"

	"flighttrack/internal/models"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

const archiveFileName = "statsData.csv"

// archiveHeader fixes the column order of the append-only stats log.
var archiveHeader = []string{
	"date", "daily_total", "best_day_total", "best_day_date",
	"max_pos", "max", "max_pos_all_time", "max_all_time",
	"lowest_temp", "highest_temp",
}

// ArchiveWriter appends completed-day records to the stats log, one CSV
// line per day, no header row.
type ArchiveWriter struct {
	path    string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewArchiveWriter creates an archive writer rooted at dataDir.
func NewArchiveWriter(dataDir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ArchiveWriter {
	return &ArchiveWriter{
		path:    filepath.Join(dataDir, archiveFileName),
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Path returns the archive file location.
func (a *ArchiveWriter) Path() string {
	return a.path
}

// Append writes one day's record to the end of the stats log. A failed
// append is a *PersistError: the archive is the durable record of
// completed days and a silent loss must stop the process.
func (a *ArchiveWriter) Append(ctx context.Context, day models.DayArchive) error {
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		a.metrics.RecordSaveError("archive")
		return &PersistError{Path: a.path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false

	if err := enc.Encode(day); err != nil {
		a.metrics.RecordSaveError("archive")
		return &PersistError{Path: a.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		a.metrics.RecordSaveError("archive")
		return &PersistError{Path: a.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		a.metrics.RecordSaveError("archive")
		return &PersistError{Path: a.path, Err: err}
	}

	a.logger.Info(ctx, "[ARCHIVE_APPEND] Day archived", logging.Fields{
		"date":        day.Date,
		"daily_total": day.DailyTotal,
		"path":        a.path,
	})

	return nil
}

// ReadArchive decodes a headerless stats log into day records. Used by the
// archive-import command to backfill the day-history store.
func ReadArchive(path string) ([]models.DayArchive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(r, archiveHeader...)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	var days []models.DayArchive
	for {
		var day models.DayArchive
		if err := dec.Decode(&day); err == io.EOF {
			break
		} else if err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
		days = append(days, day)
	}

	return days, nil
}
