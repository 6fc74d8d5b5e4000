// Package telemetry carries the low-overhead observability of the
// service: request timing with slow-request logging, and prometheus
// metrics for channel adapter dispatch. Telemetry failures never affect
// the caller-visible outcome of a request.
package telemetry

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"inboxd/pkg/logger"
)

var (
	requestCtr    uint64
	slowThreshold atomic.Int64

	dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_dispatch_total",
		Help: "Channel adapter dispatches by channel and outcome.",
	}, []string{"channel", "outcome"})
	dispatchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inboxd_dispatch_duration_seconds",
		Help:    "Channel adapter dispatch latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	requestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inboxd_http_request_duration_seconds",
		Help:    "HTTP request latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

func init() {
	slowThreshold.Store(int64(200 * time.Millisecond))
}

// RegisterMetrics attaches the telemetry collectors to a registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(dispatchTotal, dispatchSeconds, requestSeconds)
}

// ObserveDispatch records one channel adapter dispatch.
func ObserveDispatch(channel, outcome string, d time.Duration) {
	dispatchTotal.WithLabelValues(channel, outcome).Inc()
	dispatchSeconds.WithLabelValues(channel).Observe(d.Seconds())
}

// SetSlowThreshold sets the duration above which requests get a
// slow-request log line.
func SetSlowThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	slowThreshold.Store(int64(d))
}

// Middleware records per-request timing and logs slow requests. Every
// request gets an id so slow logs and handler logs can be correlated via
// the X-Request-Id response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := genRequestID()
		w.Header().Set("X-Request-Id", reqID)

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)

		dur := time.Since(start)
		requestSeconds.WithLabelValues(r.Method).Observe(dur.Seconds())
		if dur > time.Duration(slowThreshold.Load()) {
			logger.Warn("slow_request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", srw.status,
				"duration_ms", dur.Milliseconds())
		}
	})
}

func genRequestID() string {
	n := atomic.AddUint64(&requestCtr, 1)
	return "r-" + time.Now().UTC().Format("20060102T150405") + "-" + strconv.FormatUint(n, 10)
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer when supported, so SSE streams
// survive the wrapping.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
