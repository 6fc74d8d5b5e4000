package app

import (
	"net/http"
	"strings"

	"inboxd/pkg/api"
	"inboxd/pkg/banner"
	"inboxd/pkg/security"
	"inboxd/pkg/utils"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff.Config.Addr(), a.eff.Config.Storage.DBPath, strings.Join(a.eff.Sources, ", "), verStr)
}

// handler builds the full HTTP handler with the readiness probe layered
// on top of the API routes.
func (a *App) handler() http.Handler {
	cfg := a.eff.Config
	apiHandler := api.Handler(api.Options{
		Service: a.svc,
		Stats:   a.st,
		DocsDir: cfg.Docs.Dir,
		SecCfg: security.SecConfig{
			AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
			RPS:            cfg.Security.RateLimit.RPS,
			Burst:          cfg.Security.RateLimit.Burst,
			IPWhitelist:    append([]string{}, cfg.Security.IPWhitelist...),
		},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/", apiHandler)
	return mux
}

// readyzHandler reports whether the store is open and usable. Includes
// the running version so ops can verify what binary is active.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !a.st.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

// startHTTP starts the HTTP server in a goroutine and returns a channel
// that will carry any fatal server error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{Addr: a.eff.Config.Addr(), Handler: a.handler()}
	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		var err error
		if cert != "" && key != "" {
			err = a.srv.ListenAndServeTLS(cert, key)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
