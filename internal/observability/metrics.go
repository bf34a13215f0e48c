package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EthelSakyi/SIRVariation/runstore"
)

// SimCollector bundles Prometheus metrics for the simulation service and
// provides helpers to wire them into HTTP handlers.
type SimCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	RunsTotal    *prometheus.CounterVec
	RunSteps     prometheus.Histogram
	RunDurations prometheus.Histogram

	LastRunNodes       prometheus.Gauge
	LastRunEdges       prometheus.Gauge
	LastRunSusceptible prometheus.Gauge
	LastRunInfected    prometheus.Gauge
	LastRunRecovered   prometheus.Gauge
}

// NewSimCollector registers simulation Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil. Re-registration of identical collectors is tolerated so tests and
// restarts don't trip over AlreadyRegisteredError.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sirsim_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by handler, method and status code.",
	}, []string{"handler", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "sirsim_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sirsim_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"handler", "method"})
	durations, err = registerHistogramVec(reg, durations, "sirsim_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sirsim_runs_total",
		Help: "Completed simulation runs, labeled by outcome (extinct or max_steps).",
	}, []string{"outcome"})
	runs, err = registerCounterVec(reg, runs, "sirsim_runs_total")
	if err != nil {
		return nil, err
	}

	steps, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sirsim_run_steps",
		Help:    "History length of completed runs, in steps.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	}), "sirsim_run_steps")
	if err != nil {
		return nil, err
	}

	runDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sirsim_run_duration_seconds",
		Help:    "Wall-clock time spent computing a run.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}), "sirsim_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	c := &SimCollector{
		gatherer:      gatherer,
		HTTPRequests:  requests,
		HTTPDurations: durations,
		RunsTotal:     runs,
		RunSteps:      steps,
		RunDurations:  runDurations,
	}

	gauges := []struct {
		target *prometheus.Gauge
		name   string
		help   string
	}{
		{&c.LastRunNodes, "sirsim_last_run_nodes", "Node count of the most recently completed run."},
		{&c.LastRunEdges, "sirsim_last_run_edges", "Edge count of the most recently completed run."},
		{&c.LastRunSusceptible, "sirsim_last_run_susceptible", "Final susceptible count of the most recent run."},
		{&c.LastRunInfected, "sirsim_last_run_infected", "Final infected count of the most recent run."},
		{&c.LastRunRecovered, "sirsim_last_run_recovered", "Final recovered count of the most recent run."},
	}
	for _, g := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}), g.name)
		if err != nil {
			return nil, err
		}
		*g.target = gauge
	}

	return c, nil
}

// ObserveRun records per-run counters, histograms and gauges from a run
// summary. It satisfies the event callback shape of runstore.Subscribe:
//
//	store.Subscribe(func(ev runstore.Event) { collector.ObserveRun(ev.Run) })
func (c *SimCollector) ObserveRun(sum runstore.Summary) {
	if c == nil {
		return
	}
	if c.RunsTotal != nil {
		c.RunsTotal.WithLabelValues(sum.Outcome).Inc()
	}
	if c.RunSteps != nil {
		c.RunSteps.Observe(float64(sum.Steps))
	}
	if c.LastRunNodes != nil {
		c.LastRunNodes.Set(float64(sum.Nodes))
	}
	if c.LastRunEdges != nil {
		c.LastRunEdges.Set(float64(sum.Edges))
	}
	if c.LastRunSusceptible != nil {
		c.LastRunSusceptible.Set(float64(sum.FinalS))
	}
	if c.LastRunInfected != nil {
		c.LastRunInfected.Set(float64(sum.FinalI))
	}
	if c.LastRunRecovered != nil {
		c.LastRunRecovered.Set(float64(sum.FinalR))
	}
}

// ObserveRunDuration records the wall-clock time a run took to compute.
func (c *SimCollector) ObserveRunDuration(d time.Duration) {
	if c == nil || c.RunDurations == nil {
		return
	}
	c.RunDurations.Observe(d.Seconds())
}

// InstrumentHandler wraps next so request counts and durations are
// recorded under the given handler name.
func (c *SimCollector) InstrumentHandler(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		if c == nil {
			return
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(name, r.Method, fmt.Sprintf("%d", rec.code)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(name, r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
