// Package app wires the service together: store, pipeline, hub, HTTP
// server and the optional retention sweep, with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"inboxd/internal/retention"
	"inboxd/pkg/config"
	"inboxd/pkg/fanout"
	"inboxd/pkg/inbox"
	"inboxd/pkg/models"
	"inboxd/pkg/ratelimit"
	"inboxd/pkg/security"
	"inboxd/pkg/store"
	"inboxd/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.Effective
	version   string
	commit    string
	buildDate string

	st  *store.Store
	hub *fanout.Hub
	svc *inbox.Service
	srv *http.Server
}

// New initializes resources that do not require a running context: the
// store, the fan-out hub and the pipeline service. Call Run to start the
// HTTP server and block until shutdown.
func New(eff config.Effective, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Storage.DBPath, err)
	}

	hub := fanout.NewHub(cfg.Inbox.StreamBuffer)
	svc := inbox.NewService(inbox.Options{
		Repo:          st,
		Limits:        ratelimit.NewTable(channelOverrides(cfg.Inbox.Channels)),
		Box:           security.NewBox(cfg.Security.EncryptionSecret),
		Hub:           hub,
		DefaultTenant: cfg.Inbox.DefaultTenant,
	})

	reg := prometheus.DefaultRegisterer
	st.RegisterMetrics(reg)
	hub.RegisterMetrics(reg)
	telemetry.RegisterMetrics(reg)

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		st:        st,
		hub:       hub,
		svc:       svc,
	}, nil
}

// Service exposes the pipeline, mainly for tests driving the app wiring.
func (a *App) Service() *inbox.Service { return a.svc }

// Run starts the retention sweep (if enabled) and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopRetention, err := retention.Start(ctx, a.eff.Config.Retention, a.st)
	if err != nil {
		return err
	}
	defer stopRetention()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		a.hub.Close()
		return a.st.Close()
	case err := <-errCh:
		a.hub.Close()
		_ = a.st.Close()
		return err
	}
}

func (a *App) shutdownHTTP() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.srv.Shutdown(ctx)
}

// channelOverrides converts the config channel map into limiter buckets.
func channelOverrides(in map[string]config.ChannelBucket) map[models.Channel]ratelimit.Bucket {
	if len(in) == 0 {
		return nil
	}
	out := make(map[models.Channel]ratelimit.Bucket, len(in))
	for name, b := range in {
		out[models.Channel(name)] = ratelimit.Bucket{Capacity: b.Capacity, Window: b.Window.Duration()}
	}
	return out
}
