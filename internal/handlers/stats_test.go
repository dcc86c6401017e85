package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"flighttrack/internal/config"
	"flighttrack/internal/feed"
	"flighttrack/internal/models"
	"flighttrack/internal/services"
	"flighttrack/internal/store"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

var testCollector = metrics.NewCollector("test_handlers")

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("test", "0", logging.FatalLevel)
	logger.SetOutput(io.Discard)
	return logger
}

type fakeHistory struct {
	days []models.DayArchive
	err  error
}

func (f *fakeHistory) UpsertDay(_ context.Context, day models.DayArchive) error {
	f.days = append(f.days, day)
	return nil
}

func (f *fakeHistory) GetDay(_ context.Context, date string) (*models.DayArchive, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.days {
		if f.days[i].Date == date {
			return &f.days[i], nil
		}
	}
	return nil, &store.NotFoundError{Resource: "day_history", ID: date}
}

func (f *fakeHistory) ListDays(_ context.Context, _ store.HistoryFilter) ([]models.DayArchive, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

func (f *fakeHistory) HealthCheck(_ context.Context) error {
	return f.err
}

func newTestServer(t *testing.T, history *fakeHistory) (*httptest.Server, *services.Aggregator) {
	t.Helper()

	dir := t.TempDir()
	logger := testLogger()

	stateStore, err := store.NewStateStore(dir, logger, testCollector)
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}

	agg := services.NewAggregator(config.TrackerConfig{
		DataDir:          dir,
		PollInterval:     time.Second,
		RecencyThreshold: 60 * time.Second,
		SquawkCodes:      []string{"7700", "7600", "7500"},
	}, stateStore, store.NewArchiveWriter(dir, logger, testCollector), history, logger, testCollector)
	agg.Load(context.Background())

	router := mux.NewRouter()
	NewStatsHandler(agg, history, logger, testCollector).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, agg
}

func get(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decoding %s response: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestGetStats(t *testing.T) {
	srv, agg := newTestServer(t, &fakeHistory{})

	seen := 10.0
	agg.Aggregate(context.Background(), &feed.Snapshot{
		Observations: []models.AircraftObservation{
			{Hex: "abc123", Flight: "BAW12", Seen: &seen},
		},
	}, time.Now())

	var body map[string]interface{}
	if status := get(t, srv.URL+"/api/stats", &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	// Response uses the legacy snapshot keys.
	if body["flightCount"] != 1.0 {
		t.Errorf("flightCount = %v, want 1", body["flightCount"])
	}
	if body["flightDailyTotal"] != 1.0 {
		t.Errorf("flightDailyTotal = %v, want 1", body["flightDailyTotal"])
	}
	if _, ok := body["todaysDate"]; !ok {
		t.Error("response missing todaysDate key")
	}
}

func TestGetLedger(t *testing.T) {
	srv, agg := newTestServer(t, &fakeHistory{})

	agg.Aggregate(context.Background(), &feed.Snapshot{
		Observations: []models.AircraftObservation{
			{Hex: "abc123"},
			{Hex: "def456"},
		},
	}, time.Now())

	var body LedgerResponse
	if status := get(t, srv.URL+"/api/ledger", &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.Total != 2 || len(body.Aircraft) != 2 {
		t.Errorf("ledger = %+v, want 2 aircraft", body)
	}
	if body.Aircraft[0] != "abc123" {
		t.Errorf("Aircraft[0] = %q, want abc123 (first-sighting order)", body.Aircraft[0])
	}
}

func TestGetAlerts(t *testing.T) {
	srv, agg := newTestServer(t, &fakeHistory{})

	agg.Aggregate(context.Background(), &feed.Snapshot{
		Observations: []models.AircraftObservation{
			{Hex: "abc123", Flight: "RESCUE1", Squawk: "7700"},
		},
	}, time.Now())

	var body []models.SquawkAlert
	if status := get(t, srv.URL+"/api/alerts", &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(body) != 1 || body[0].Code != "7700" || body[0].Aircraft != "RESCUE1" {
		t.Errorf("alerts = %+v, want one 7700 RESCUE1 alert", body)
	}
}

func TestGetHistory(t *testing.T) {
	history := &fakeHistory{days: []models.DayArchive{
		{Date: "2024-01-02", DailyTotal: 95},
		{Date: "2024-01-01", DailyTotal: 120},
	}}
	srv, _ := newTestServer(t, history)

	var body []models.DayArchive
	if status := get(t, srv.URL+"/api/history", &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(body) != 2 || body[0].Date != "2024-01-02" {
		t.Errorf("history = %+v, want 2 days newest first", body)
	}
}

func TestGetHistoryError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeHistory{err: errors.New("db gone")})

	var body ErrorResponse
	if status := get(t, srv.URL+"/api/history", &body); status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if body.Code != http.StatusInternalServerError {
		t.Errorf("error code = %d, want 500", body.Code)
	}
}

func TestGetHistoryDay(t *testing.T) {
	history := &fakeHistory{days: []models.DayArchive{
		{Date: "2024-01-01", DailyTotal: 120, BestDayDate: "2023-11-02"},
	}}
	srv, _ := newTestServer(t, history)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"found", "/api/history/2024-01-01", http.StatusOK},
		{"missing day", "/api/history/1999-01-01", http.StatusNotFound},
		{"malformed date", "/api/history/notadate", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := get(t, srv.URL+tt.path, nil)
			if status != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d", tt.path, status, tt.wantStatus)
			}
		})
	}

	var day models.DayArchive
	get(t, srv.URL+"/api/history/2024-01-01", &day)
	if day.DailyTotal != 120 {
		t.Errorf("DailyTotal = %d, want 120", day.DailyTotal)
	}
}

func TestGetHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeHistory{})

	var body map[string]string
	if status := get(t, srv.URL+"/api/health", &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestGetHealthUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, &fakeHistory{err: errors.New("db gone")})

	if status := get(t, srv.URL+"/api/health", nil); status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}
