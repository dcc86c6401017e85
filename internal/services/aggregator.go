// Package services holds the aggregation engine: the one place that
// mutates the metrics snapshot and seen ledger, drives day rollover and
// decides when state must be persisted.
package services

import (
	"context"
	"sync"
	"time"

	"flighttrack/internal/config"
	"flighttrack/internal/feed"
	"flighttrack/internal/models"
	"flighttrack/internal/store"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

// maxRecentAlerts bounds the in-memory alert ring served by the API.
const maxRecentAlerts = 32

// SensorEventKind classifies sensor events.
type SensorEventKind string

const (
	MotionEvent      SensorEventKind = "motion"
	EnvironmentEvent SensorEventKind = "environment"
)

// SensorEvent is a message from an external sensor collaborator, delivered
// to the aggregation loop over a channel so all state stays single-writer.
type SensorEvent struct {
	Kind    SensorEventKind
	Time    time.Time
	Reading *models.EnvReading
}

// SnapshotFetcher is the feed collaborator the loop polls each tick.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) (*feed.Snapshot, error)
}

// Aggregator owns the metrics snapshot and seen ledger. One tick runs
// rollover check, aggregation and conditional persistence strictly in
// sequence; sensor events are applied between ticks by the same loop. The
// mutex exists only so API handlers can take consistent read copies.
type Aggregator struct {
	mu     sync.Mutex
	state  *models.FlightMetrics
	ledger *models.SeenLedger
	dirty  bool
	alerts []models.SquawkAlert

	squawkCodes map[string]struct{}
	recency     time.Duration
	interval    time.Duration

	stateStore *store.StateStore
	archive    *store.ArchiveWriter
	history    store.HistoryStore
	logger     *logging.StructuredLogger
	collector  *metrics.Collector

	now func() time.Time
}

// NewAggregator creates an aggregator. Call Load before Run.
func NewAggregator(
	cfg config.TrackerConfig,
	stateStore *store.StateStore,
	archive *store.ArchiveWriter,
	history store.HistoryStore,
	logger *logging.StructuredLogger,
	collector *metrics.Collector,
) *Aggregator {
	codes := make(map[string]struct{}, len(cfg.SquawkCodes))
	for _, c := range cfg.SquawkCodes {
		codes[c] = struct{}{}
	}

	return &Aggregator{
		squawkCodes: codes,
		recency:     cfg.RecencyThreshold,
		interval:    cfg.PollInterval,
		stateStore:  stateStore,
		archive:     archive,
		history:     history,
		logger:      logger,
		collector:   collector,
		now:         time.Now,
	}
}

// Load restores persisted state, falling back to defaults for anything
// missing or corrupt. A ledger dated for a different day than now is
// cleared and re-dated.
func (a *Aggregator) Load(ctx context.Context) {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = a.stateStore.LoadMetrics(ctx, now)
	a.ledger = a.stateStore.LoadLedger(ctx, now)

	if a.ledger.Date() != now.Format(models.DateFormat) {
		a.ledger.Reset(now)
	}

	a.collector.LedgerSize.Set(float64(a.ledger.Size()))

	a.logger.Info(ctx, "[AGG_LOAD] State loaded", logging.Fields{
		"todays_date":   a.state.TodaysDate,
		"daily_total":   a.state.DailyTotal,
		"max_all_time":  a.state.MaxAllTime,
		"best_day":      a.state.BestDayDate,
		"ledger_size":   a.ledger.Size(),
		"ledger_date":   a.ledger.Date(),
	})
}

// CheckRollover archives the outgoing day and resets daily state when the
// calendar date has changed since the last check. It is idempotent within
// a date and must run before aggregation on every tick, so a tick never
// mixes two days' data. The returned error is a *store.PersistError from
// the archive append and is fatal to the caller.
func (a *Aggregator) CheckRollover(ctx context.Context, now time.Time) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkRolloverLocked(ctx, now)
}

func (a *Aggregator) checkRolloverLocked(ctx context.Context, now time.Time) (bool, error) {
	currentDate := now.Format(models.DateFormat)
	if currentDate == a.state.TodaysDate {
		return false, nil
	}

	day := a.state.Archive()

	// The CSV line is the durable record of the completed day; losing it
	// silently is not acceptable.
	if err := a.archive.Append(ctx, day); err != nil {
		return false, err
	}

	// The history row feeds the API only. The archive line already
	// happened, so a failure here is logged and the rollover proceeds.
	if a.history != nil {
		if err := a.history.UpsertDay(ctx, day); err != nil {
			a.logger.Error(ctx, "[ROLLOVER_HISTORY] Failed to record day history", logging.Fields{
				"date": day.Date,
			}, err)
		}
	}

	a.state.ResetDaily(now)
	a.ledger.Reset(now)
	a.dirty = true

	a.collector.RolloversTotal.Inc()
	a.collector.LedgerSize.Set(0)

	a.logger.Info(ctx, "[ROLLOVER] Day rolled over", logging.Fields{
		"archived_date": day.Date,
		"daily_total":   day.DailyTotal,
		"new_date":      currentDate,
	})

	return true, nil
}

// Aggregate folds one parsed snapshot into the metrics and ledger,
// returning any squawk alerts raised. Maxima only move on a strict
// increase, so an update is always a genuine new high.
func (a *Aggregator) Aggregate(ctx context.Context, snap *feed.Snapshot, now time.Time) []models.SquawkAlert {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.state
	m.ResetTick()
	m.Invalid = snap.Skipped

	var alerts []models.SquawkAlert
	recencySecs := a.recency.Seconds()
	ledgerGrew := false

	for i := range snap.Observations {
		obs := &snap.Observations[i]
		m.Count++

		if obs.Seen != nil && *obs.Seen < recencySecs {
			m.Seen++
		}
		if obs.SeenPos != nil && *obs.SeenPos < recencySecs {
			m.SeenPos++
		}
		if obs.HasFlight() {
			m.WithName++
		} else {
			m.Invalid++
		}

		if a.ledger.Add(obs.Hex) {
			ledgerGrew = true
		}

		if obs.Squawk != "" {
			if _, special := a.squawkCodes[obs.Squawk]; special {
				name := obs.Flight
				if name == "" {
					name = obs.Hex
				}
				alerts = append(alerts, models.SquawkAlert{
					Code:     obs.Squawk,
					Aircraft: name,
					Time:     now,
				})
				a.collector.RecordAlert(obs.Squawk)
			}
		}
	}

	if m.Seen > m.Max {
		m.Max = m.Seen
		a.dirty = true
	}
	if m.SeenPos > m.MaxPos {
		m.MaxPos = m.SeenPos
		a.dirty = true
	}
	if m.Max > m.MaxAllTime {
		m.MaxAllTime = m.Max
		a.dirty = true
	}
	if m.MaxPos > m.MaxPosAllTime {
		m.MaxPosAllTime = m.MaxPos
		a.dirty = true
	}

	m.DailyTotal = a.ledger.Size()
	if ledgerGrew {
		// The ledger itself must survive a restart or the daily distinct
		// count would double-count returning aircraft.
		a.dirty = true
	}

	if m.DailyTotal > m.BestDayTotal {
		m.BestDayTotal = m.DailyTotal
		m.BestDayDate = now.Format(models.DateFormat)
		a.dirty = true
	}

	a.collector.AircraftSeen.Set(float64(m.Count))
	a.collector.AircraftSeenRecent.Set(float64(m.Seen))
	a.collector.LedgerSize.Set(float64(m.DailyTotal))
	if m.Invalid > 0 {
		a.collector.InvalidRecords.Add(float64(m.Invalid))
	}

	if len(alerts) > 0 {
		a.alerts = append(a.alerts, alerts...)
		if len(a.alerts) > maxRecentAlerts {
			a.alerts = a.alerts[len(a.alerts)-maxRecentAlerts:]
		}
		for _, alert := range alerts {
			a.logger.Warn(ctx, "[SQUAWK_ALERT] Special squawk observed", logging.Fields{
				"code":     alert.Code,
				"aircraft": alert.Aircraft,
			})
		}
	}

	return alerts
}

// RecordEnvironment applies a temperature/humidity reading to the stored
// extrema, marking state dirty when any of them move.
func (a *Aggregator) RecordEnvironment(ctx context.Context, reading models.EnvReading) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.state
	changed := false

	if reading.Temperature < m.LowestTemp {
		m.LowestTemp = reading.Temperature
		changed = true
	}
	if reading.Temperature > m.HighestTemp {
		m.HighestTemp = reading.Temperature
		changed = true
	}
	if reading.Humidity < m.LowestHumidity {
		m.LowestHumidity = reading.Humidity
		changed = true
	}
	if reading.Humidity > m.HighestHumidity {
		m.HighestHumidity = reading.Humidity
		changed = true
	}

	if changed {
		a.dirty = true
		a.logger.Debug(ctx, "[ENV_READING] Environment extrema updated", logging.Fields{
			"temperature": reading.Temperature,
			"humidity":    reading.Humidity,
		})
	}

	a.collector.RecordSensorEvent(string(EnvironmentEvent))
}

// RecordTrigger stamps the motion sensor's last trigger time and marks
// state dirty.
func (a *Aggregator) RecordTrigger(ctx context.Context, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.LastTrigger = at.Format(models.TimestampFormat)
	a.dirty = true

	a.collector.RecordSensorEvent(string(MotionEvent))
}

// Dirty reports whether in-memory state is stale relative to disk.
func (a *Aggregator) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Persist writes state to disk if the dirty flag is set, clearing the flag
// on success. The returned error is a *store.PersistError and fatal.
func (a *Aggregator) Persist(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persistLocked(ctx)
}

func (a *Aggregator) persistLocked(ctx context.Context) error {
	if !a.dirty {
		return nil
	}
	if err := a.stateStore.SaveState(ctx, a.state, a.ledger); err != nil {
		return err
	}
	a.dirty = false
	return nil
}

// Tick runs one full polling cycle against an already-fetched snapshot:
// rollover check, aggregation, conditional persistence. A nil snapshot
// (fetch failure) skips aggregation but still runs rollover and
// persistence bookkeeping, so state from the previous tick is never lost.
func (a *Aggregator) Tick(ctx context.Context, snap *feed.Snapshot) ([]models.SquawkAlert, error) {
	now := a.now()

	if _, err := a.CheckRollover(ctx, now); err != nil {
		return nil, err
	}

	var alerts []models.SquawkAlert
	if snap != nil {
		alerts = a.Aggregate(ctx, snap, now)
	}

	if err := a.Persist(ctx); err != nil {
		return alerts, err
	}

	return alerts, nil
}

// Run polls the feed at the configured interval until ctx is cancelled,
// applying sensor events from the channel between ticks. It returns nil on
// cancellation (after a final save) and an error only for persistence
// failures, which the caller must treat as fatal.
func (a *Aggregator) Run(ctx context.Context, fetcher SnapshotFetcher, events <-chan SensorEvent) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info(ctx, "[AGG_RUN] Aggregation loop started", logging.Fields{
		"poll_interval": a.interval.String(),
		"recency":       a.recency.String(),
	})

	for {
		select {
		case <-ctx.Done():
			// Final save so a clean shutdown never drops accumulated state.
			if err := a.Persist(context.Background()); err != nil {
				return err
			}
			a.logger.Info(context.Background(), "[AGG_STOP] Aggregation loop stopped", logging.Fields{})
			return nil

		case ev := <-events:
			switch ev.Kind {
			case MotionEvent:
				a.RecordTrigger(ctx, ev.Time)
			case EnvironmentEvent:
				if ev.Reading != nil {
					a.RecordEnvironment(ctx, *ev.Reading)
				}
			}

		case <-ticker.C:
			timer := a.collector.NewTimer(a.collector.TickDuration)

			snap, err := fetcher.Fetch(ctx)
			if err != nil {
				// Non-fatal: the tick continues with no observations.
				a.logger.Warn(ctx, "[FEED_ERROR] Feed fetch failed", logging.Fields{
					"error": err.Error(),
				})
				snap = nil
			}

			if _, err := a.Tick(ctx, snap); err != nil {
				return err
			}

			a.collector.TicksTotal.Inc()
			timer.ObserveDuration()
		}
	}
}

// SnapshotCopy returns a copy of the current metrics for read-only use.
func (a *Aggregator) SnapshotCopy() models.FlightMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.state
}

// LedgerCopy returns the ledger date and identifiers for read-only use.
func (a *Aggregator) LedgerCopy() (string, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Date(), a.ledger.Hexes()
}

// RecentAlerts returns the most recent squawk alerts, oldest first.
func (a *Aggregator) RecentAlerts() []models.SquawkAlert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.SquawkAlert, len(a.alerts))
	copy(out, a.alerts)
	return out
}
