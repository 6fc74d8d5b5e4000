package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"inboxd/internal/app"
	"inboxd/pkg/config"
	"inboxd/pkg/logger"
	"inboxd/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()
	eff := config.LoadEffective(flags)
	cfg := eff.Config

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Storage.AuditDir != "" {
		if err := logger.AttachAuditFileSink(cfg.Storage.AuditDir); err != nil {
			logger.Warn("audit_sink_attach_failed", "dir", cfg.Storage.AuditDir, "error", err)
		}
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("app init failed", err, cfg.Storage.DBPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server failed", err, cfg.Storage.DBPath)
	}
	logger.Info("server_stopped")
}
