// Package retention runs the optional expiry sweep: a cron-scheduled job
// that marks overdue pending email/push items failed once they are past
// their expiry. The sweep never deletes; the ingestion path itself has no
// background scheduler.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"inboxd/pkg/config"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// Start launches the sweep scheduler when enabled. Returns a cancel func;
// a disabled config yields a no-op cancel.
func Start(ctx context.Context, cfg config.RetentionConfig, st *store.Store) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, st, cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick via gronx and sleeps until it.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, st *store.Store, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(st, cfg.DryRun, time.Now().UTC()); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce walks all items and fails the overdue ones: pending items whose
// expiry has passed. Exposed for the inspect tool and tests.
func RunOnce(st *store.Store, dryRun bool, now time.Time) error {
	swept := 0
	err := st.ScanItems(func(it *models.Item) error {
		if it.Status != models.StatusPending || it.ExpiresAt == nil || now.Before(*it.ExpiresAt) {
			return nil
		}
		swept++
		if dryRun {
			logger.Info("retention_would_fail_item", "item", it.ID, "expired_at", it.ExpiresAt)
			return nil
		}
		it.Status = models.StatusFailed
		it.UpdatedAt = now
		if err := st.UpdateItem(it); err != nil {
			return fmt.Errorf("fail expired item %s: %w", it.ID, err)
		}
		logger.Info("retention_failed_item", "item", it.ID, "channel", it.Channel, "expired_at", it.ExpiresAt)
		return nil
	})
	logger.Info("retention_run_complete", "swept", swept, "dry_run", dryRun)
	return err
}
