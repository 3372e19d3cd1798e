// Package metrics holds the Prometheus instruments of the API process.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwebster45206/village-mystery/pkg/chat"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
)

const namespace = "village"

// Metrics groups every instrument. Each instance registers into its own
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	oracleCalls    *prometheus.CounterVec
	oracleDuration *prometheus.HistogramVec
	turns          *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	plans          *prometheus.CounterVec
	planLength     prometheus.Histogram
	promptTokens   *prometheus.HistogramVec
	replyTokens    *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		oracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle attempts by call site and outcome.",
		}, []string{"site", "outcome"}),
		oracleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Oracle attempt latency by call site.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"site"}),
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Player turns by intent kind and outcome.",
		}, []string{"kind", "outcome"}),
		turnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End to end turn latency by intent kind.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		plans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Action plans by status.",
		}, []string{"status"}),
		planLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_commands",
			Help:      "Atomic commands per approved plan.",
			Buckets:   prometheus.LinearBuckets(1, 3, 10),
		}),
		promptTokens: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_prompt_tokens",
			Help:      "Prompt tokens per LLM request.",
			Buckets:   prometheus.LinearBuckets(250, 250, 20),
		}, []string{"model"}),
		replyTokens: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_completion_tokens",
			Help:      "Completion tokens per LLM request.",
			Buckets:   prometheus.LinearBuckets(100, 100, 20),
		}, []string{"model"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOracle has the signature of oracle.Observer.
func (m *Metrics) ObserveOracle(site, outcome string, elapsed time.Duration) {
	m.oracleCalls.WithLabelValues(site, outcome).Inc()
	m.oracleDuration.WithLabelValues(site).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTurn(kind, outcome string, elapsed time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	m.turns.WithLabelValues(kind, outcome).Inc()
	m.turnDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePlan(status string, commands int) {
	m.plans.WithLabelValues(status).Inc()
	if commands > 0 {
		m.planLength.Observe(float64(commands))
	}
}

// InstrumentLLM records token usage of every completion.
func (m *Metrics) InstrumentLLM(next oracle.LLM) oracle.LLM {
	return &instrumentedLLM{next: next, m: m}
}

type instrumentedLLM struct {
	next oracle.LLM
	m    *Metrics
}

func (l *instrumentedLLM) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.Completion, error) {
	c, err := l.next.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	model := c.Model
	if model == "" {
		model = "unknown"
	}
	l.m.promptTokens.WithLabelValues(model).Observe(float64(c.PromptTokens))
	l.m.replyTokens.WithLabelValues(model).Observe(float64(c.CompletionTokens))
	return c, nil
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
