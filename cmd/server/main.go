package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/ScienceCommunicationLab/publish-badge/internal/badgr"
	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/config"
	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/httpserver"
	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/logger"
	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/metrics"
	"github.com/ScienceCommunicationLab/publish-badge/internal/postmark"
	"github.com/ScienceCommunicationLab/publish-badge/internal/publish"
	"github.com/ScienceCommunicationLab/publish-badge/internal/registry"
	"github.com/ScienceCommunicationLab/publish-badge/internal/sheets"
	httptransport "github.com/ScienceCommunicationLab/publish-badge/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	// Optional .env for local development; the deployed service gets real
	// environment variables.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	reg := registry.Default()
	if cfg.RegistryFile != "" {
		loaded, err := registry.Load(cfg.RegistryFile)
		if err != nil {
			log.Error("loading badge registry", "path", cfg.RegistryFile, "error", err)
			os.Exit(1)
		}
		reg = loaded
	}
	if err := reg.Validate(cfg.RequireAccessCode); err != nil {
		log.Error("badge registry inconsistent", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	issuer := badgr.New(cfg.Badgr, log)
	notifier := postmark.New(cfg.Postmark, log)
	badgeLog := sheets.New(cfg.Sheets, log)

	svc := publish.New(reg, cfg.RequireAccessCode, issuer, notifier, badgeLog, log, m)
	handler := httptransport.NewHandler(svc, log)
	router := httptransport.NewRouter(handler, cfg.TrustedOrigin, log, m)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting publish-badge",
		"addr", cfg.Addr,
		"trusted_origin", cfg.TrustedOrigin,
		"require_access_code", cfg.RequireAccessCode,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
