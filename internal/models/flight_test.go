package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSeenLedger_AddUnique(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(now)

	tests := []struct {
		name     string
		hex      string
		wantNew  bool
		wantSize int
	}{
		{name: "first identifier", hex: "abc123", wantNew: true, wantSize: 1},
		{name: "second identifier", hex: "def456", wantNew: true, wantSize: 2},
		{name: "duplicate ignored", hex: "abc123", wantNew: false, wantSize: 2},
		{name: "whitespace trimmed to duplicate", hex: " abc123 ", wantNew: false, wantSize: 2},
		{name: "empty identifier rejected", hex: "", wantNew: false, wantSize: 2},
		{name: "blank identifier rejected", hex: "   ", wantNew: false, wantSize: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.Add(tt.hex)
			if got != tt.wantNew {
				t.Errorf("Add(%q) = %v, want %v", tt.hex, got, tt.wantNew)
			}
			if ledger.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", ledger.Size(), tt.wantSize)
			}
		})
	}

	if !ledger.Contains("abc123") {
		t.Error("Contains(abc123) = false, want true")
	}
	if ledger.Contains("zzz999") {
		t.Error("Contains(zzz999) = true, want false")
	}
}

func TestSeenLedger_JSONRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(now)
	ledger.Add("abc123")
	ledger.Add("def456")

	data, err := json.Marshal(ledger)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `["2024-01-01","abc123","def456"]`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var loaded SeenLedger
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if loaded.Date() != "2024-01-01" {
		t.Errorf("Date() = %q, want %q", loaded.Date(), "2024-01-01")
	}
	if loaded.Size() != 2 {
		t.Errorf("Size() = %d, want 2", loaded.Size())
	}
	if !loaded.Contains("abc123") || !loaded.Contains("def456") {
		t.Error("loaded ledger missing identifiers")
	}
}

func TestSeenLedger_UnmarshalDedupes(t *testing.T) {
	var ledger SeenLedger
	if err := json.Unmarshal([]byte(`["2024-01-01","abc123","abc123","def456"]`), &ledger); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ledger.Size() != 2 {
		t.Errorf("Size() = %d, want 2 after dedupe", ledger.Size())
	}
}

func TestSeenLedger_UnmarshalEmpty(t *testing.T) {
	var ledger SeenLedger
	if err := json.Unmarshal([]byte(`[]`), &ledger); err == nil {
		t.Error("Unmarshal(empty array) error = nil, want error")
	}
}

func TestSeenLedger_Reset(t *testing.T) {
	ledger := NewLedger(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC))
	ledger.Add("abc123")

	ledger.Reset(time.Date(2024, 1, 2, 0, 0, 5, 0, time.UTC))

	if ledger.Date() != "2024-01-02" {
		t.Errorf("Date() = %q, want %q", ledger.Date(), "2024-01-02")
	}
	if ledger.Size() != 0 {
		t.Errorf("Size() = %d, want 0", ledger.Size())
	}
	if ledger.Contains("abc123") {
		t.Error("reset ledger still contains abc123")
	}
}

func TestDefaultMetrics(t *testing.T) {
	now := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)
	m := DefaultMetrics(now)

	if m.TodaysDate != "2024-03-15" {
		t.Errorf("TodaysDate = %q, want %q", m.TodaysDate, "2024-03-15")
	}
	if m.BestDayDate != "2024-03-15" {
		t.Errorf("BestDayDate = %q, want %q", m.BestDayDate, "2024-03-15")
	}
	if m.LowestTemp != SentinelLowTemp {
		t.Errorf("LowestTemp = %v, want sentinel %v", m.LowestTemp, SentinelLowTemp)
	}
	if m.HighestTemp != SentinelHighTemp {
		t.Errorf("HighestTemp = %v, want sentinel %v", m.HighestTemp, SentinelHighTemp)
	}
	if m.MaxAllTime != 0 || m.DailyTotal != 0 {
		t.Error("counters should start at zero")
	}
}

func TestResetDaily_PreservesAllTimeAndHumidity(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := DefaultMetrics(now)
	m.Max = 7
	m.MaxPos = 5
	m.DailyTotal = 40
	m.BestDayTotal = 40
	m.MaxAllTime = 12
	m.MaxPosAllTime = 9
	m.LowestTemp = 12.5
	m.HighestTemp = 24.0
	m.LowestHumidity = 38.0
	m.HighestHumidity = 61.0

	m.ResetDaily(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	if m.Max != 0 || m.MaxPos != 0 || m.DailyTotal != 0 || m.BestDayTotal != 0 {
		t.Error("daily counters should reset to zero")
	}
	if m.MaxAllTime != 12 || m.MaxPosAllTime != 9 {
		t.Error("all-time maxima must survive rollover")
	}
	if m.LowestTemp != SentinelLowTemp || m.HighestTemp != SentinelHighTemp {
		t.Error("temperature extrema should reset to sentinels")
	}
	if m.LowestHumidity != 38.0 || m.HighestHumidity != 61.0 {
		t.Error("humidity extrema must survive rollover")
	}
	if m.TodaysDate != "2024-01-02" {
		t.Errorf("TodaysDate = %q, want %q", m.TodaysDate, "2024-01-02")
	}
}

func TestFlightMetrics_JSONCompatibility(t *testing.T) {
	// Legacy files written by the previous implementation must load, with
	// unknown keys ignored and missing keys keeping defaults.
	legacy := `{
		"flightCount": 3,
		"flightMaxAllTime": 42,
		"flightBestDayDate": "2023-12-25",
		"lowestRoomTemp": 11.25,
		"todaysDate": "2023-12-31",
		"someFutureKey": "ignored"
	}`

	m := DefaultMetrics(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := json.Unmarshal([]byte(legacy), m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if m.Count != 3 {
		t.Errorf("Count = %d, want 3", m.Count)
	}
	if m.MaxAllTime != 42 {
		t.Errorf("MaxAllTime = %d, want 42", m.MaxAllTime)
	}
	if m.BestDayDate != "2023-12-25" {
		t.Errorf("BestDayDate = %q, want 2023-12-25", m.BestDayDate)
	}
	if m.LowestTemp != 11.25 {
		t.Errorf("LowestTemp = %v, want 11.25", m.LowestTemp)
	}
	if m.TodaysDate != "2023-12-31" {
		t.Errorf("TodaysDate = %q, want 2023-12-31", m.TodaysDate)
	}
	// Missing key keeps the default.
	if m.HighestTemp != SentinelHighTemp {
		t.Errorf("HighestTemp = %v, want sentinel %v", m.HighestTemp, SentinelHighTemp)
	}
}

func TestArchive(t *testing.T) {
	m := DefaultMetrics(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m.DailyTotal = 55
	m.BestDayTotal = 80
	m.BestDayDate = "2023-11-02"
	m.Max = 9
	m.MaxPos = 7
	m.MaxAllTime = 14
	m.MaxPosAllTime = 11
	m.LowestTemp = 12.5
	m.HighestTemp = 23.875

	day := m.Archive()

	if day.Date != "2024-01-01" {
		t.Errorf("Date = %q, want 2024-01-01", day.Date)
	}
	if day.DailyTotal != 55 || day.BestDayTotal != 80 || day.BestDayDate != "2023-11-02" {
		t.Error("daily/best-day fields not carried into archive")
	}
	if day.Max != 9 || day.MaxPos != 7 || day.MaxAllTime != 14 || day.MaxPosAllTime != 11 {
		t.Error("maxima not carried into archive")
	}
	if float64(day.LowestTemp) != 12.5 || float64(day.HighestTemp) != 23.875 {
		t.Error("temperatures not carried into archive")
	}
}

func TestCelsius_CSV(t *testing.T) {
	tests := []struct {
		name string
		in   Celsius
		want string
	}{
		{name: "two decimals", in: 21.5, want: "21.50"},
		{name: "rounding", in: 23.875, want: "23.88"},
		{name: "absolute zero sentinel", in: SentinelHighTemp, want: "-273.15"},
		{name: "integer value", in: 18, want: "18.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.MarshalCSV()
			if err != nil {
				t.Fatalf("MarshalCSV() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalCSV() = %s, want %s", got, tt.want)
			}

			var back Celsius
			if err := back.UnmarshalCSV(got); err != nil {
				t.Fatalf("UnmarshalCSV() error = %v", err)
			}
			wantBack, _ := back.MarshalCSV()
			if string(wantBack) != tt.want {
				t.Errorf("round trip = %s, want %s", wantBack, tt.want)
			}
		})
	}
}

func TestSquawkAlert_String(t *testing.T) {
	alert := SquawkAlert{Code: "7700", Aircraft: "RESCUE1"}
	if alert.String() != "7700: RESCUE1" {
		t.Errorf("String() = %q, want %q", alert.String(), "7700: RESCUE1")
	}
}

func TestAircraftObservation_HasFlight(t *testing.T) {
	tests := []struct {
		name   string
		flight string
		want   bool
	}{
		{name: "named", flight: "BAW123", want: true},
		{name: "empty", flight: "", want: false},
		{name: "whitespace only", flight: "   ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := AircraftObservation{Hex: "abc123", Flight: tt.flight}
			if got := obs.HasFlight(); got != tt.want {
				t.Errorf("HasFlight() = %v, want %v", got, tt.want)
			}
		})
	}
}
