package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// Tick metrics
	TicksTotal       prometheus.Counter
	TickDuration     prometheus.Histogram
	FetchErrorsTotal prometheus.Counter
	FetchDuration    prometheus.Histogram

	// Aggregation metrics
	AircraftSeen       prometheus.Gauge
	AircraftSeenRecent prometheus.Gauge
	LedgerSize         prometheus.Gauge
	InvalidRecords     prometheus.Counter
	RolloversTotal     prometheus.Counter
	AlertsTotal        *prometheus.CounterVec

	// Persistence metrics
	SaveDuration     prometheus.Histogram
	SaveErrorsTotal  *prometheus.CounterVec
	DBQueryDuration  *prometheus.HistogramVec
	DBErrorsTotal    *prometheus.CounterVec

	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Sensor metrics
	SensorEventsTotal *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	return &Collector{
		TicksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Total number of polling ticks processed",
			},
		),

		TickDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Duration of one full polling tick in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
		),

		FetchErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Total number of failed feed fetches",
			},
		),

		FetchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of feed fetches in seconds",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
			},
		),

		AircraftSeen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "aircraft_seen",
				Help:      "Aircraft present in the most recent feed snapshot",
			},
		),

		AircraftSeenRecent: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "aircraft_seen_recent",
				Help:      "Aircraft heard within the recency threshold in the most recent snapshot",
			},
		),

		LedgerSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_size",
				Help:      "Distinct aircraft observed so far today",
			},
		),

		InvalidRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_records_total",
				Help:      "Total number of feed records without a usable flight name",
			},
		),

		RolloversTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollovers_total",
				Help:      "Total number of day rollovers archived",
			},
		),

		AlertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "squawk_alerts_total",
				Help:      "Total number of special squawk alerts by code",
			},
			[]string{"code"},
		),

		SaveDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "save_duration_seconds",
				Help:      "Duration of state persistence in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
		),

		SaveErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "save_errors_total",
				Help:      "Total number of persistence failures by target",
			},
			[]string{"target"},
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Day-history query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of day-history store errors by type",
			},
			[]string{"error_type"},
		),

		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		SensorEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sensor_events_total",
				Help:      "Total number of sensor events received by kind",
			},
			[]string{"kind"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordSaveError increments the persistence failure counter
func (c *Collector) RecordSaveError(target string) {
	c.SaveErrorsTotal.WithLabelValues(target).Inc()
}

// RecordDBError increments the day-history store error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordAlert increments the squawk alert counter
func (c *Collector) RecordAlert(code string) {
	c.AlertsTotal.WithLabelValues(code).Inc()
}

// RecordSensorEvent increments the sensor event counter
func (c *Collector) RecordSensorEvent(kind string) {
	c.SensorEventsTotal.WithLabelValues(kind).Inc()
}
