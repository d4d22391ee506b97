package metrics

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamoberlin/chorus/internal/errors"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chorus",
			Subsystem: "ledger",
			Name:      "transitions_total",
			Help:      "Total number of ledger transitions attempted, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	escrowed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chorus",
			Subsystem: "ledger",
			Name:      "escrowed_units_total",
			Help:      "Native units moved from wallets into records (bounties and rent deposits).",
		},
	)

	disbursed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chorus",
			Subsystem: "ledger",
			Name:      "disbursed_units_total",
			Help:      "Native units moved from records back to wallets (payouts, refunds, returned deposits).",
		},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chorus",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chorus",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chorus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		transitions,
		escrowed,
		disbursed,
		httpInFlight,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// ObserveTransition records one attempted ledger transition. The outcome
// label is "ok" on success, the error code for typed failures, and "error"
// for anything else.
func ObserveTransition(op string, err error) {
	outcome := "ok"
	if err != nil {
		var chorusErr *errors.ChorusError
		if stderrors.As(err, &chorusErr) {
			outcome = strings.ToLower(string(chorusErr.Code))
		} else {
			outcome = "error"
		}
	}
	transitions.WithLabelValues(op, outcome).Inc()
}

// AddEscrowed records native units moving from wallets into records.
func AddEscrowed(amount uint64) {
	escrowed.Add(float64(amount))
}

// AddDisbursed records native units moving from records back to wallets.
func AddDisbursed(amount uint64) {
	disbursed.Add(float64(amount))
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses request paths into a bounded label set so metric
// cardinality stays flat no matter how many prayers or agents exist.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "prayers":
		if len(parts) == 1 {
			return "/prayers"
		}
		return "/prayers/:id"
	case "agents":
		if len(parts) == 1 {
			return "/agents"
		}
		return "/agents/:wallet"
	case "api":
		if len(parts) == 1 {
			return "/api"
		}
		return "/api/" + parts[1]
	default:
		return "/" + parts[0]
	}
}
