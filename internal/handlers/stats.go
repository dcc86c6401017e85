package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"flighttrack/internal/services"
	"flighttrack/internal/store"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

// StatsHandler serves the read-only statistics API.
type StatsHandler struct {
	aggregator *services.Aggregator
	history    store.HistoryStore
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(
	aggregator *services.Aggregator,
	history store.HistoryStore,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *StatsHandler {
	return &StatsHandler{
		aggregator: aggregator,
		history:    history,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// LedgerResponse is the current day's distinct-aircraft ledger.
type LedgerResponse struct {
	Date     string   `json:"date"`
	Total    int      `json:"total"`
	Aircraft []string `json:"aircraft"`
}

// RegisterRoutes attaches the API routes to the router.
func (h *StatsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stats", h.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/api/ledger", h.GetLedger).Methods(http.MethodGet)
	router.HandleFunc("/api/alerts", h.GetAlerts).Methods(http.MethodGet)
	router.HandleFunc("/api/history", h.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{date}", h.GetHistoryDay).Methods(http.MethodGet)
	router.HandleFunc("/api/health", h.GetHealth).Methods(http.MethodGet)
}

// GetStats handles GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/stats", time.Now())

	snapshot := h.aggregator.SnapshotCopy()
	h.sendJSON(w, r, "/api/stats", http.StatusOK, snapshot)
}

// GetLedger handles GET /api/ledger
func (h *StatsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/ledger", time.Now())

	date, hexes := h.aggregator.LedgerCopy()
	h.sendJSON(w, r, "/api/ledger", http.StatusOK, LedgerResponse{
		Date:     date,
		Total:    len(hexes),
		Aircraft: hexes,
	})
}

// GetAlerts handles GET /api/alerts
func (h *StatsHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/alerts", time.Now())

	h.sendJSON(w, r, "/api/alerts", http.StatusOK, h.aggregator.RecentAlerts())
}

// GetHistory handles GET /api/history
func (h *StatsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/history", time.Now())

	filter := store.HistoryFilter{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		Limit:     100,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			filter.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	days, err := h.history.ListDays(r.Context(), filter)
	if err != nil {
		h.logger.Error(r.Context(), "[API_HISTORY] Failed to list day history", logging.Fields{}, err)
		h.sendError(w, r, "/api/history", "failed to query day history", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, "/api/history", http.StatusOK, days)
}

// GetHistoryDay handles GET /api/history/{date}
func (h *StatsHandler) GetHistoryDay(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/history/{date}", time.Now())

	date := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		h.sendError(w, r, "/api/history/{date}", "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	day, err := h.history.GetDay(r.Context(), date)
	if err != nil {
		var notFound *store.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, "/api/history/{date}", "no archived day for "+date, http.StatusNotFound)
			return
		}
		h.logger.Error(r.Context(), "[API_HISTORY] Failed to get day", logging.Fields{
			"date": date,
		}, err)
		h.sendError(w, r, "/api/history/{date}", "failed to query day history", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, "/api/history/{date}", http.StatusOK, day)
}

// GetHealth handles GET /api/health
func (h *StatsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/health", time.Now())

	if h.history != nil {
		if err := h.history.HealthCheck(r.Context()); err != nil {
			h.sendError(w, r, "/api/health", "day history store unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	h.sendJSON(w, r, "/api/health", http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatsHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *StatsHandler) sendJSON(w http.ResponseWriter, r *http.Request, endpoint string, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error(r.Context(), "[API_ENCODE] Failed to encode response", logging.Fields{
			"endpoint": endpoint,
		}, err)
	}
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(status))
}

func (h *StatsHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, status int) {
	h.metrics.RecordAPIError(http.StatusText(status), endpoint)
	h.sendJSON(w, r, endpoint, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
