// Package feed fetches the aircraft feed and turns it into normalized
// per-aircraft observations.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"flighttrack/internal/config"
	"flighttrack/internal/models"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

// FetchError indicates the feed was unreachable or returned a malformed
// document. It is non-fatal: the tick proceeds with no observations.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient returns true: a later tick may succeed.
func (e *FetchError) IsTransient() bool {
	return true
}

// Snapshot is one parsed feed fetch. Skipped counts records dropped for
// having no identifier or no decodable structure; the aggregator folds it
// into the invalid counter.
type Snapshot struct {
	Observations []models.AircraftObservation
	Skipped      int
}

// Client fetches and parses the aircraft feed.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewClient creates a feed client.
func NewClient(cfg config.FeedConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	return &Client{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Fetch retrieves one feed snapshot. Transport failures, non-2xx statuses
// and an undecodable document all return *FetchError with a nil snapshot;
// malformed individual records inside a good document degrade to skipped
// rather than failing the fetch.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	timer := c.metrics.NewTimer(c.metrics.FetchDuration)
	defer timer.ObserveDuration()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{URL: c.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{URL: c.url, Err: err}
	}

	snap, err := ParseSnapshot(body)
	if err != nil {
		c.metrics.FetchErrorsTotal.Inc()
		return nil, &FetchError{URL: c.url, Err: err}
	}

	c.logger.Debug(ctx, "[FEED_FETCH] Snapshot fetched", logging.Fields{
		"aircraft": len(snap.Observations),
		"skipped":  snap.Skipped,
	})

	return snap, nil
}

// ParseSnapshot decodes a raw feed payload into observations. It never
// panics and never fails on an individual record: a record that is not an
// object or has no identifier is counted as skipped, and a non-numeric
// seen/seen_pos value is treated as absent for that field.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var doc struct {
		Aircraft []json.RawMessage `json:"aircraft"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode feed document: %w", err)
	}

	snap := &Snapshot{
		Observations: make([]models.AircraftObservation, 0, len(doc.Aircraft)),
	}

	seen := make(map[string]struct{}, len(doc.Aircraft))

	for _, raw := range doc.Aircraft {
		var record map[string]interface{}
		if err := json.Unmarshal(raw, &record); err != nil {
			snap.Skipped++
			continue
		}

		hex := strings.TrimSpace(stringField(record, "hex"))
		if hex == "" {
			snap.Skipped++
			continue
		}
		// Identifiers are unique within a tick; a feed glitch that repeats
		// one collapses to the first occurrence.
		if _, dup := seen[hex]; dup {
			continue
		}
		seen[hex] = struct{}{}

		obs := models.AircraftObservation{
			Hex:     hex,
			Flight:  strings.TrimSpace(stringField(record, "flight")),
			Seen:    numberField(record, "seen"),
			SeenPos: numberField(record, "seen_pos"),
			Squawk:  strings.TrimSpace(stringField(record, "squawk")),
		}

		snap.Observations = append(snap.Observations, obs)
	}

	return snap, nil
}

func stringField(record map[string]interface{}, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

func numberField(record map[string]interface{}, key string) *float64 {
	if v, ok := record[key].(float64); ok {
		return &v
	}
	return nil
}
