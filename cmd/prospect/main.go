package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/use-agent/prospect/classify"
	"github.com/use-agent/prospect/config"
	"github.com/use-agent/prospect/controller"
	"github.com/use-agent/prospect/ops"
	"github.com/use-agent/prospect/proxy"
	"github.com/use-agent/prospect/scraper"
	"github.com/use-agent/prospect/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Flags + configuration ─────────────────────────────────────
	opts, err := config.ParseFlags()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}
	cfg := config.Load()
	cfg.Apply(opts)

	// ── 2. Structured logging to file + console ─────────────────────
	closeLog, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialise logging:", err)
		return 1
	}
	defer closeLog()

	if cfg.Proxy.APIKey == "" {
		slog.Error("PROXYSCRAPE_API_KEY is not set")
		return 1
	}

	slog.Info("prospect starting",
		"input", cfg.Input.CSVPath,
		"headless", cfg.Browser.Headless,
		"maxTargets", cfg.Controller.MaxTargets,
		"rotateOnFailure", cfg.Controller.RotateOnFailure,
	)

	// ── 3. Load targets ──────────────────────────────────────────────
	targets, err := store.LoadTargets(cfg.Input.CSVPath)
	if err != nil {
		slog.Error("failed to load targets", "error", err)
		return 1
	}
	if len(targets) == 0 {
		slog.Warn("input file has no target rows")
		return 0
	}
	if max := cfg.Controller.MaxTargets; max > 0 && len(targets) > max {
		targets = targets[:max]
	}

	// ── 4. Browser session (released on every exit path) ────────────
	// The session comes up before the writer truncates the input file,
	// so a launch failure leaves the file untouched.
	sc, err := scraper.New(cfg.Browser, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		return 1
	}
	defer sc.Close()

	// ── 5. Record store writer (truncates the input file) ───────────
	writer, err := store.NewWriter(cfg.Input.CSVPath)
	if err != nil {
		slog.Error("failed to open record store for writing", "error", err)
		return 1
	}
	defer writer.Close()

	// ── 6. Wire the controller ───────────────────────────────────────
	ctrl := controller.New(
		sc,
		proxy.NewProvider(cfg.Proxy),
		proxy.NewValidator(cfg.Proxy),
		classify.New(cfg.Controller.ExpectedDomain),
		writer,
		controller.Policy{
			MaxAttempts:       cfg.Controller.MaxAttempts,
			RotationThreshold: cfg.Controller.RotationThreshold,
			RotateOnFailure:   cfg.Controller.RotateOnFailure,
			DelayMin:          cfg.Controller.DelayMin,
			DelayMax:          cfg.Controller.DelayMax,
		},
	)

	// ── 7. Optional ops listener ─────────────────────────────────────
	var opsSrv *http.Server
	if cfg.Ops.Addr != "" {
		opsSrv = ops.Start(cfg.Ops.Addr, time.Now())
	}

	// ── 8. Run until done or shutdown signal ────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx, targets); err != nil {
		slog.Warn("run interrupted", "error", err)
	}

	if opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("ops listener forced shutdown", "error", err)
		}
	}

	slog.Info("prospect stopped")
	return 0
}

// initLogger configures slog based on the LogConfig, mirroring the stream to
// a log file when one is configured. The returned func closes the file.
func initLogger(cfg config.LogConfig) (func(), error) {
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

	out := io.Writer(os.Stdout)
	closer := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	return closer, nil
}
