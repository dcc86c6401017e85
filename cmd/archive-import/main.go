// Backfills the day-history database from an existing CSV stats log, for
// installations that predate the history store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"flighttrack/internal/config"
	"flighttrack/internal/store"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

func main() {
	archivePath := flag.String("archive", "", "CSV stats log to import (default: the archive in DATA_DIR)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("flighttrack-import", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("flighttrack_import")

	ctx := context.Background()

	db, err := store.OpenDB(cfg.Tracker.DataDir, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	history, err := store.NewHistoryStore(db, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize history store: %v\n", err)
		os.Exit(1)
	}

	path := *archivePath
	if path == "" {
		path = store.NewArchiveWriter(cfg.Tracker.DataDir, logger, metricsCollector).Path()
	}

	days, err := store.ReadArchive(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read archive %s: %v\n", path, err)
		os.Exit(1)
	}

	imported := 0
	for _, day := range days {
		if err := history.UpsertDay(ctx, day); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to import day %s: %v\n", day.Date, err)
			continue
		}
		imported++
	}

	fmt.Printf("Imported %d of %d archived days from %s\n", imported, len(days), path)
}
