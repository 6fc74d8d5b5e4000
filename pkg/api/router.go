// Package api assembles the HTTP surface: versioned JSON routes, the SSE
// stream, health/metrics/docs endpoints and the middleware chain.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"inboxd/pkg/api/handlers"
	"inboxd/pkg/inbox"
	"inboxd/pkg/security"
	"inboxd/pkg/telemetry"
)

// Options carries everything the router needs. Docs endpoints are only
// mounted when DocsDir is set.
type Options struct {
	Service *inbox.Service
	Stats   handlers.Statser
	SecCfg  security.SecConfig
	DocsDir string
}

// Handler builds the full HTTP handler: security middleware on the
// outside, request telemetry inside it, then the routes.
func Handler(opts Options) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if opts.DocsDir != "" {
		r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
		r.PathPrefix("/openapi.yaml").Handler(http.FileServer(http.Dir(opts.DocsDir)))
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterInbox(v1, opts.Service)
	handlers.RegisterChat(v1, opts.Service)
	handlers.RegisterConversations(v1, opts.Service)
	handlers.RegisterStream(v1, opts.Service)
	if opts.Stats != nil {
		handlers.RegisterAdmin(v1, opts.Stats)
	}

	return security.Middleware(opts.SecCfg)(telemetry.Middleware(r))
}
