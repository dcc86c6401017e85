package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the calendar date layout used for rollover comparison,
// the ledger date slot and archive records.
const DateFormat = "2006-01-02"

// TimestampFormat is the layout for the motion sensor trigger timestamp.
const TimestampFormat = "2006-01-02 15:04:05"

// Sentinel extremes for the environment min/max fields. A minimum starts
// above any real reading and a maximum below any real reading, so the first
// genuine reading always replaces the sentinel.
const (
	SentinelLowTemp      = 999.0
	SentinelHighTemp     = -273.15
	SentinelLowHumidity  = 999.0
	SentinelHighHumidity = -1.0
)

// AircraftObservation is one aircraft from a single feed snapshot.
// Transient: produced by the feed parser, consumed by the aggregator,
// never persisted. Seen/SeenPos use pointers because an absent field is
// not the same as zero seconds.
type AircraftObservation struct {
	Hex     string   `json:"hex"`
	Flight  string   `json:"flight,omitempty"`
	Seen    *float64 `json:"seen,omitempty"`
	SeenPos *float64 `json:"seen_pos,omitempty"`
	Squawk  string   `json:"squawk,omitempty"`
}

// HasFlight reports whether the observation carries a flight name.
func (o *AircraftObservation) HasFlight() bool {
	return strings.TrimSpace(o.Flight) != ""
}

// FlightMetrics is the aggregate statistics record, persisted as a whole.
// JSON keys match the legacy on-disk snapshot so existing data files load
// unchanged; unknown keys in a newer file are ignored on decode.
//
// Invariants: the all-time maxima never decrease for the lifetime of the
// record; the daily maxima never decrease within a day and reset to zero
// at rollover; TodaysDate always holds the date of the most recent
// rollover check.
type FlightMetrics struct {
	// Per-tick counters, reset at the start of every aggregation pass.
	Count    int `json:"flightCount"`
	WithName int `json:"flightWithName"`
	Invalid  int `json:"flightInvalid"`
	Seen     int `json:"flightSeen"`
	SeenPos  int `json:"flightSeenPos"`

	// Daily counters, reset at rollover.
	Max        int `json:"flightMax"`
	MaxPos     int `json:"flightMaxPos"`
	DailyTotal int `json:"flightDailyTotal"`

	// All-time counters.
	MaxAllTime    int    `json:"flightMaxAllTime"`
	MaxPosAllTime int    `json:"flightMaxPosAllTime"`
	BestDayTotal  int    `json:"flightBestDayTotal"`
	BestDayDate   string `json:"flightBestDayDate"`

	// Environment extrema. Temperature extrema reset at rollover;
	// humidity extrema persist across days (source behavior, kept as-is).
	LowestTemp      float64 `json:"lowestRoomTemp"`
	HighestTemp     float64 `json:"highestRoomTemp"`
	LowestHumidity  float64 `json:"lowestRoomHumidity"`
	HighestHumidity float64 `json:"highestRoomHumidity"`

	// Bookkeeping.
	TodaysDate  string `json:"todaysDate"`
	Max24       int    `json:"max24"`
	LastTrigger string `json:"pirSensorLastTrigger"`
}

// DefaultMetrics returns a fresh metrics record dated now.
func DefaultMetrics(now time.Time) *FlightMetrics {
	date := now.Format(DateFormat)
	return &FlightMetrics{
		LowestTemp:      SentinelLowTemp,
		HighestTemp:     SentinelHighTemp,
		LowestHumidity:  SentinelLowHumidity,
		HighestHumidity: SentinelHighHumidity,
		TodaysDate:      date,
		BestDayDate:     date,
		LastTrigger:     now.Format(TimestampFormat),
	}
}

// ResetTick zeroes the per-tick counters.
func (m *FlightMetrics) ResetTick() {
	m.Count = 0
	m.WithName = 0
	m.Invalid = 0
	m.Seen = 0
	m.SeenPos = 0
}

// ResetDaily zeroes the per-day counters and temperature extrema and
// advances the tracked date. Humidity extrema are left alone.
func (m *FlightMetrics) ResetDaily(now time.Time) {
	m.ResetTick()
	m.Max = 0
	m.MaxPos = 0
	m.DailyTotal = 0
	m.BestDayTotal = 0
	m.LowestTemp = SentinelLowTemp
	m.HighestTemp = SentinelHighTemp
	m.TodaysDate = now.Format(DateFormat)
}

// Archive captures the outgoing day's summary for the append-only stats
// log. Field order is fixed; temperatures carry two decimal places.
func (m *FlightMetrics) Archive() DayArchive {
	return DayArchive{
		Date:          m.TodaysDate,
		DailyTotal:    m.DailyTotal,
		BestDayTotal:  m.BestDayTotal,
		BestDayDate:   m.BestDayDate,
		MaxPos:        m.MaxPos,
		Max:           m.Max,
		MaxPosAllTime: m.MaxPosAllTime,
		MaxAllTime:    m.MaxAllTime,
		LowestTemp:    Celsius(m.LowestTemp),
		HighestTemp:   Celsius(m.HighestTemp),
	}
}

// Celsius is a temperature that renders with exactly two decimal places in
// the CSV archive.
type Celsius float64

// MarshalCSV implements csvutil.Marshaler.
func (c Celsius) MarshalCSV() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(c), 'f', 2, 64)), nil
}

// UnmarshalCSV implements csvutil.Unmarshaler.
func (c *Celsius) UnmarshalCSV(data []byte) error {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*c = Celsius(v)
	return nil
}

// DayArchive is one completed day of statistics. Persisted as a single
// CSV line in the archive log and as a row in the day-history store.
type DayArchive struct {
	Date          string  `csv:"date" json:"date" db:"date"`
	DailyTotal    int     `csv:"daily_total" json:"daily_total" db:"daily_total"`
	BestDayTotal  int     `csv:"best_day_total" json:"best_day_total" db:"best_day_total"`
	BestDayDate   string  `csv:"best_day_date" json:"best_day_date" db:"best_day_date"`
	MaxPos        int     `csv:"max_pos" json:"max_pos" db:"max_pos"`
	Max           int     `csv:"max" json:"max" db:"max"`
	MaxPosAllTime int     `csv:"max_pos_all_time" json:"max_pos_all_time" db:"max_pos_all_time"`
	MaxAllTime    int     `csv:"max_all_time" json:"max_all_time" db:"max_all_time"`
	LowestTemp    Celsius `csv:"lowest_temp" json:"lowest_temp" db:"lowest_temp"`
	HighestTemp   Celsius `csv:"highest_temp" json:"highest_temp" db:"highest_temp"`
}

// SquawkAlert pairs a flagged transponder code with the aircraft that
// squawked it: the flight name when present, the hex identifier otherwise.
type SquawkAlert struct {
	Code     string    `json:"code"`
	Aircraft string    `json:"aircraft"`
	Time     time.Time `json:"time"`
}

// String renders the alert in the legacy "CODE: AIRCRAFT" form.
func (a SquawkAlert) String() string {
	return a.Code + ": " + a.Aircraft
}

// SeenLedger holds the distinct aircraft identifiers observed since the
// start of the day it is dated for. Persisted as a JSON array whose first
// element is the date, so existing ledger files load unchanged.
type SeenLedger struct {
	date  string
	hexes []string
	index map[string]struct{}
}

// NewLedger returns an empty ledger dated now.
func NewLedger(now time.Time) *SeenLedger {
	return &SeenLedger{
		date:  now.Format(DateFormat),
		index: make(map[string]struct{}),
	}
}

// Date returns the calendar date this ledger covers.
func (l *SeenLedger) Date() string {
	return l.date
}

// Add records an identifier, ignoring duplicates. It reports whether the
// identifier was new.
func (l *SeenLedger) Add(hex string) bool {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return false
	}
	if _, ok := l.index[hex]; ok {
		return false
	}
	l.hexes = append(l.hexes, hex)
	l.index[hex] = struct{}{}
	return true
}

// Contains reports whether the identifier has been seen today.
func (l *SeenLedger) Contains(hex string) bool {
	_, ok := l.index[strings.TrimSpace(hex)]
	return ok
}

// Size returns the number of distinct identifiers, excluding the date slot.
func (l *SeenLedger) Size() int {
	return len(l.hexes)
}

// Hexes returns the identifiers in order of first sighting.
func (l *SeenLedger) Hexes() []string {
	out := make([]string, len(l.hexes))
	copy(out, l.hexes)
	return out
}

// Reset clears all identifiers and re-dates the ledger.
func (l *SeenLedger) Reset(now time.Time) {
	l.date = now.Format(DateFormat)
	l.hexes = nil
	l.index = make(map[string]struct{})
}

// MarshalJSON encodes the ledger in its legacy on-disk form: a flat JSON
// array with the date in slot zero.
func (l *SeenLedger) MarshalJSON() ([]byte, error) {
	entries := make([]string, 0, len(l.hexes)+1)
	entries = append(entries, l.date)
	entries = append(entries, l.hexes...)
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the legacy array form, rebuilding the membership
// index and dropping any duplicate identifiers in the file.
func (l *SeenLedger) UnmarshalJSON(data []byte) error {
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("ledger array is empty")
	}
	l.date = entries[0]
	l.hexes = nil
	l.index = make(map[string]struct{})
	for _, hex := range entries[1:] {
		l.Add(hex)
	}
	return nil
}

// EnvReading is a temperature/humidity sample from the external probe.
type EnvReading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}
