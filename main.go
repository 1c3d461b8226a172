package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aibridge/internal/backend"
	"aibridge/internal/config"
	"aibridge/internal/logging"
	"aibridge/internal/probe"
	"aibridge/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; explicit environment always wins because
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	cfg := config.DefaultFromEnv()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "Bind host")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	flag.BoolVar(&cfg.StrictStartup, "strict", cfg.StrictStartup, "Exit if any provider fails its startup check")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for per-run log files")
	flag.Parse()

	logFile, err := logging.Setup(cfg.LogDir, cfg.Verbose)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		return 1
	}
	defer logFile.Close()

	slog.Info("starting bridge", "version", server.Version,
		"host", cfg.Host, "port", cfg.Port, "strict", cfg.StrictStartup)

	if err := cfg.ResolveGeminiAuth(); err != nil {
		slog.Error("gemini auth setup failed", "error", err)
		return 1
	}

	invokers := backend.BuildInvokers(cfg)

	report := probe.Run(context.Background(), invokers, cfg.ProbeTimeout)
	if !report.Ready() && cfg.StrictStartup {
		slog.Error("startup checks failed in strict mode, aborting")
		return 1
	}

	srv := server.New(cfg, invokers, report)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr())
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			return 1
		}
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}
