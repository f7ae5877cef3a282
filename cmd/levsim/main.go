package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alejandrodnm/levsim/config"
	"github.com/alejandrodnm/levsim/internal/adapters/notify"
	"github.com/alejandrodnm/levsim/internal/adapters/storage"
	"github.com/alejandrodnm/levsim/internal/application/sim"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	scenarioPath := flag.String("scenario", "", "scenario file to run (overrides scenario dir lookup)")
	runsSince := flag.Duration("runs", 0, "list runs from the last duration (e.g. 72h) and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full ledger tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *runsSince > 0 {
		listRuns(ctx, store, *runsSince)
		return
	}

	path := *scenarioPath
	if path == "" {
		slog.Error("no scenario given, use -scenario", "scenario_dir", cfg.Sim.ScenarioDir)
		os.Exit(1)
	}
	if !filepath.IsAbs(path) && !fileExists(path) {
		path = filepath.Join(cfg.Sim.ScenarioDir, path)
	}

	scenario, err := sim.LoadScenario(path)
	if err != nil {
		slog.Error("failed to load scenario", "err", err, "path", path)
		os.Exit(1)
	}

	slog.Info("levsim starting",
		"config", *configPath,
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
	)

	reporter := notify.NewConsole(*table || cfg.Report.Table)
	runner := sim.NewRunner(slog.Default(), store, reporter, cfg.Sim.StepsPerSecond)

	record, err := runner.Run(ctx, scenario)
	if err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
	if record.Failed > 0 {
		slog.Warn("run finished with failed steps", "run_id", record.ID, "failed", record.Failed)
		os.Exit(2)
	}
	slog.Info("levsim stopped cleanly", "run_id", record.ID)
}

func listRuns(ctx context.Context, store *storage.SQLiteStorage, since time.Duration) {
	to := time.Now().UTC()
	runs, err := store.GetRuns(ctx, to.Add(-since), to)
	if err != nil {
		slog.Error("failed to list runs", "err", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded in the given window")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  %-20s  ops:%-4d failed:%-3d  %s\n",
			r.ID, r.Scenario, r.Operations, r.Failed, r.StartedAt.Format(time.RFC3339))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
