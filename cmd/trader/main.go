package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sgmartin/ltdbot/config"
	"github.com/sgmartin/ltdbot/internal/adapters/betfair"
	"github.com/sgmartin/ltdbot/internal/adapters/notify"
	"github.com/sgmartin/ltdbot/internal/adapters/storage"
	"github.com/sgmartin/ltdbot/internal/application/discovery"
	"github.com/sgmartin/ltdbot/internal/application/scheduler"
	"github.com/sgmartin/ltdbot/internal/application/trader"
	"github.com/sgmartin/ltdbot/internal/ports"
	"github.com/sgmartin/ltdbot/internal/strategy"
)

const botVersion = "ltdbot-1.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one controller tick and exit")
	report := flag.Bool("report", false, "print the archive report and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
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

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		runReport(ctx, store)
		return
	}

	slog.Info("ltdbot starting",
		"config", *configPath,
		"version", botVersion,
		"paper", cfg.Trader.PaperMode,
		"poll", cfg.PollInterval(),
		"once", *once,
	)

	if !cfg.Trader.PaperMode && !confirmLiveMode() {
		slog.Info("live mode aborted")
		return
	}

	gateway := betfair.NewGateway(
		cfg.Betfair.APIBase,
		cfg.Betfair.AppKey,
		cfg.Betfair.Username,
		cfg.Betfair.Password,
		cfg.Betfair.RequestsPerSecond,
	)

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewLTD60(strategy.LTD60Config{
		MaxEntryOdds:       cfg.LTD60.MaxEntryOdds,
		MaxSecondEntryOdds: cfg.LTD60.MaxSecondEntryOdds,
		KOWindowMinutes:    cfg.LTD60.KOWindowMinutes,
		SecondEntryMinute:  cfg.LTD60.SecondEntryMinute,
		SecondCancelMinute: cfg.LTD60.SecondCancelMinute,
		StakePaper:         cfg.LTD60.StakePaper,
		StakeLive:          cfg.LTD60.StakeLive,
		PaperMode:          cfg.Trader.PaperMode,
		FilteredLeaguesCSV: cfg.LTD60.FilteredLeaguesCSV,
		LateGoalLeaguesCSV: cfg.LTD60.LateGoalLeaguesCSV,
	}))

	notifier := buildNotifier(cfg)

	snapshots := trader.NewSnapshotUpdater(store, trader.SnapshotConfig{
		CaptureWindow:  cfg.SPCaptureWindow(),
		FallbackInplay: cfg.Trader.SPFallbackInplay,
	})
	finalizer := trader.NewFinalizer(store, registry, trader.FinalizeConfig{
		FinishTimeout: cfg.FinishTimeout(),
		PurgeAfter:    cfg.PurgeAfter(),
	})
	controller := trader.NewController(store, gateway, registry, snapshots, finalizer, notifier, trader.Config{
		PollInterval:      cfg.PollInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	})

	finder := discovery.NewFinder(store, gateway, cfg.Betfair.LookaheadHours, botVersion)
	sched := scheduler.New("discovery", finder.Run, scheduler.Config{
		Interval:    cfg.SchedulerInterval(),
		MaxAttempts: cfg.Scheduler.MaxRetries,
	})

	if *once {
		if _, err := sched.RunNow(ctx); err != nil {
			slog.Warn("discovery pass failed", "err", err)
		}
		res, err := controller.RunOnce(ctx)
		if err != nil {
			slog.Error("tick failed", "err", err)
			os.Exit(1)
		}
		slog.Info("tick complete",
			"processed", res.Processed, "archived", res.Archived,
			"purged", res.Purged, "errors", res.Errors)
		return
	}

	sched.Start(ctx)
	defer sched.Stop(10 * time.Second)

	if err := controller.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("controller exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("ltdbot stopped cleanly")
}

func runReport(ctx context.Context, store *storage.SQLiteStore) {
	matches, err := store.ListArchive(ctx, 0)
	if err != nil {
		slog.Error("failed to read archive", "err", err)
		os.Exit(1)
	}
	notify.NewConsole(false).PrintArchiveReport(matches)
}

func buildNotifier(cfg *config.Config) ports.Notifier {
	console := notify.NewConsole(cfg.Trader.PaperMode)
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		return console
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Trader.PaperMode)
	if err != nil {
		slog.Warn("telegram disabled", "err", err)
		return console
	}
	return notify.Multi{console, tg}
}

// confirmLiveMode gives the operator a short window to abort before real
// money is at stake. A non-interactive stdin counts as confirmation.
func confirmLiveMode() bool {
	fmt.Println("LIVE mode: real orders will be placed. Press ENTER to continue, Ctrl+C to abort.")

	done := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(5 * time.Second):
		fmt.Println("no abort within 5s, continuing")
		return true
	}
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
