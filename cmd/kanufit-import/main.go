package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/kanufit/internal/backend"
	"github.com/claude/kanufit/internal/config"
	"github.com/claude/kanufit/internal/importer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("file", "", "path to JSON export (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: kanufit-import -config config.yaml -file export.json [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	export, err := importer.ReadFile(*exportPath)
	if err != nil {
		log.Error("failed to read export", "path", *exportPath, "error", err)
		os.Exit(1)
	}
	log.Info("export loaded",
		"logs", len(export.Logs),
		"weights", len(export.Weights),
		"exercise_history", len(export.ExerciseHistory),
	)

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be written")
	}

	gw, closeGW, err := backend.Open(ctx, cfg, false, log)
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer closeGW()

	imp := importer.New(gw, cfg.Account.AppID, cfg.Account.UserID, log, *dryRun)
	stats, err := imp.Import(ctx, export)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		closeGW()
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"logs_inserted", stats.LogsInserted,
		"logs_duplicated", stats.LogsDuplicated,
		"logs_rejected", stats.LogsRejected,
		"weights_inserted", stats.WeightsInserted,
		"weights_duplicated", stats.WeightsDuplicated,
		"weights_rejected", stats.WeightsRejected,
		"history_written", stats.HistoryWritten,
		"history_kept", stats.HistoryKept,
		"history_rejected", stats.HistoryRejected,
	)
}
