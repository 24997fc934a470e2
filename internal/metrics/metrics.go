// Package metrics holds the Prometheus collectors for genserve. All methods
// are safe on a nil *Collectors so metrics can be switched off.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/genserve/internal/logger"
)

const namespace = "genserve"

type Collectors struct {
	requests   *prometheus.CounterVec
	duration   prometheus.Histogram
	queueWait  prometheus.Histogram
	tokens     prometheus.Counter
	inFlight   prometheus.Gauge
	failures   *prometheus.CounterVec
	modelReady *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Generate requests by HTTP status code.",
		}, []string{"code"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent inside the model per generation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		queueWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_queue_wait_seconds",
			Help:      "Time spent waiting for a generation slot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		tokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generated_tokens_total",
			Help:      "Tokens produced by the model.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_in_flight",
			Help:      "Generations currently holding a slot.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Failed generations by kind.",
		}, []string{"kind"}),
		modelReady: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_info",
			Help:      "Loaded model, always 1.",
		}, []string{"backend", "model"}),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (c *Collectors) ObserveRequest(code int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (c *Collectors) ObserveGeneration(d time.Duration, tokens int) {
	if c == nil {
		return
	}
	c.duration.Observe(d.Seconds())
	c.tokens.Add(float64(tokens))
}

func (c *Collectors) ObserveQueueWait(d time.Duration) {
	if c == nil {
		return
	}
	c.queueWait.Observe(d.Seconds())
}

func (c *Collectors) RecordFailure(kind string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(kind).Inc()
}

// Track marks a generation in flight until the returned func is called.
func (c *Collectors) Track() func() {
	if c == nil {
		return func() {}
	}
	c.inFlight.Inc()
	return c.inFlight.Dec
}

func (c *Collectors) SetModel(backend, model string) {
	if c == nil {
		return
	}
	c.modelReady.WithLabelValues(backend, model).Set(1)
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve runs a dedicated /metrics listener until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("metrics listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
