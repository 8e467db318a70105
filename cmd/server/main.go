// Command server is the email dispatch admin backend. It loads a YAML
// configuration file, opens the encrypted configuration store and the
// SQLite activity log, exposes the admin REST API over HTTP, and shuts
// down gracefully on SIGTERM or SIGINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ersimransingh/email-service-sub001/internal/activity"
	"github.com/ersimransingh/email-service-sub001/internal/config"
	"github.com/ersimransingh/email-service-sub001/internal/mailer"
	"github.com/ersimransingh/email-service-sub001/internal/probe"
	"github.com/ersimransingh/email-service-sub001/internal/server/rest"
	"github.com/ersimransingh/email-service-sub001/internal/service"
	"github.com/ersimransingh/email-service-sub001/internal/signing"
	"github.com/ersimransingh/email-service-sub001/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("email dispatch admin server starting",
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("data_dir", cfg.DataDir),
	)

	// ── Persistence ───────────────────────────────────────────────────────────
	cs := store.New(cfg.DataDir, cfg.EncryptionKey)

	log, err := activity.Open(filepath.Join(cfg.DataDir, "activity.db"))
	if err != nil {
		logger.Error("failed to open activity log", slog.Any("error", err))
		os.Exit(1)
	}
	defer log.Close()

	// ── Collaborators ─────────────────────────────────────────────────────────
	prb := probe.New(probe.Timeouts{
		Connect: cfg.Probe.ConnectTimeout,
		Request: cfg.Probe.RequestTimeout,
	})
	recon := service.New(cs, prb, logger)

	dialer := &mailer.Dialer{Addr: cfg.Mailer.SMTPAddr}
	signer := &signing.Bridge{BinaryPath: cfg.Signing.BinaryPath}
	if info := signer.Info(context.Background()); info.Available {
		logger.Info("signing application available", slog.String("version", info.Version))
	} else {
		logger.Warn("signing application unavailable", slog.String("detail", info.Error))
	}

	// ── REST API server ───────────────────────────────────────────────────────
	auth := rest.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.TokenTTL, logger)
	restSrv := rest.NewServer(recon, cs, dialer, signer, log, auth, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      restSrv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP REST server listening", slog.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(httpErrCh)
	}()

	// ── Wait for shutdown signal or fatal error ────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("HTTP server error", slog.Any("error", err))
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
}

// newLogger builds a JSON slog logger at the given level string.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
