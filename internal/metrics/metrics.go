// Package metrics is the optional ambient observability surface: a
// handful of Prometheus counters/gauges describing store and session
// activity, and a small chi-routed HTTP server exposing them alongside
// a liveness probe. None of it is part of the RPC protocol; it is
// disabled entirely unless a metrics address is configured.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synacktiv/lumina-server/internal/logger"
)

// Metrics holds every counter/gauge the server records. A nil
// *Metrics is valid and every method becomes a no-op, so callers don't
// need to branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	sessionsTotal   prometheus.Counter
	activeSessions  prometheus.Gauge
	pushTotal       prometheus.Counter
	pushNewSigTotal prometheus.Counter
	pullTotal       prometheus.Counter
	pullHitTotal    prometheus.Counter
	pullMissTotal   prometheus.Counter
	errorsTotal     *prometheus.CounterVec
}

// New builds a fresh registry and registers every metric against it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		sessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lumina_sessions_total",
			Help: "Total number of accepted client connections.",
		}),
		activeSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "lumina_sessions_active",
			Help: "Number of sessions currently being served.",
		}),
		pushTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lumina_push_total",
			Help: "Total number of FuncMd entries accepted via PUSH_MD.",
		}),
		pushNewSigTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lumina_push_new_signature_total",
			Help: "Total number of pushes that inserted a previously-unseen signature.",
		}),
		pullTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lumina_pull_total",
			Help: "Total number of signatures looked up via PULL_MD.",
		}),
		pullHitTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lumina_pull_hit_total",
			Help: "Total number of PULL_MD lookups that matched a stored signature.",
		}),
		pullMissTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lumina_pull_miss_total",
			Help: "Total number of PULL_MD lookups with no stored match.",
		}),
		errorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_errors_total",
			Help: "Total number of errors by taxonomy kind (protocol, transport, store, config).",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) PushObserved(newSignature bool) {
	if m == nil {
		return
	}
	m.pushTotal.Inc()
	if newSignature {
		m.pushNewSigTotal.Inc()
	}
}

func (m *Metrics) PullObserved(hit bool) {
	if m == nil {
		return
	}
	m.pullTotal.Inc()
	if hit {
		m.pullHitTotal.Inc()
	} else {
		m.pullMissTotal.Inc()
	}
}

// ErrorObserved records one error of the given taxonomy kind (see
// internal/wire.ProtocolError, internal/store.Error, TransportError,
// ConfigError in SPEC_FULL.md §7).
func (m *Metrics) ErrorObserved(kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}

// Router builds the chi router serving /healthz and /metrics. Callers
// start it with an http.Server of their own so they control its
// shutdown lifecycle.
func (m *Metrics) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := promhttp.Handler()
	if m != nil {
		handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	r.Get("/metrics", handler.ServeHTTP)

	return r
}

// Serve runs an HTTP server exposing Router() on addr until ctx is
// canceled, then shuts it down with a 5s grace period. Serve errors are
// logged, not returned, matching the metrics surface's "ambient,
// optional" status: it never brings the RPC listener down.
func Serve(ctx context.Context, addr string, m *Metrics) {
	srv := &http.Server{Addr: addr, Handler: m.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", "error", err)
	}
}
