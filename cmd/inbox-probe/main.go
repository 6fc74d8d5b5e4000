// inbox-probe is a lean fasthttp sidecar exposing health and a
// round-trip latency check against a running inboxd instance. Kept on
// fasthttp so the probe itself adds negligible overhead.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the probe")
	target := flag.String("target", "http://127.0.0.1:8080/healthz", "inboxd health URL to probe")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	client := &fasthttp.Client{ReadTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second}

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":%q}", *ver))
		case "/probe":
			start := time.Now()
			status, _, err := client.GetTimeout(nil, *target, 2*time.Second)
			elapsed := time.Since(start)
			ctx.Response.Header.Set("Content-Type", "application/json")
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusBadGateway)
				_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"unreachable\",\"error\":%q}", err.Error()))
				return
			}
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"upstream_status\":%d,\"latency_ms\":%d}", status, elapsed.Milliseconds()))
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("inbox-probe listening on %s (target %s)\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "inbox-probe",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("probe server exit: %v\n", err)
	}
}
