package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/EthelSakyi/SIRVariation/runstore"
)

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	h := collector.InstrumentHandler("create_run", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("create_run", "POST", "201")); got != 1 {
		t.Fatalf("sirsim_http_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "sirsim_http_request_duration_seconds", map[string]string{
		"handler": "create_run",
		"method":  "POST",
	}); count != 1 {
		t.Fatalf("sirsim_http_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestObserveRunUpdatesCountersAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveRun(runstore.Summary{
		Outcome: "extinct",
		Steps:   7,
		Nodes:   200,
		Edges:   950,
		FinalS:  120,
		FinalI:  0,
		FinalR:  80,
	})

	if got := testutil.ToFloat64(collector.RunsTotal.WithLabelValues("extinct")); got != 1 {
		t.Fatalf("sirsim_runs_total{outcome=extinct} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.LastRunNodes); got != 200 {
		t.Fatalf("sirsim_last_run_nodes = %v, want 200", got)
	}
	if got := testutil.ToFloat64(collector.LastRunRecovered); got != 80 {
		t.Fatalf("sirsim_last_run_recovered = %v, want 80", got)
	}
}

func TestMetricsHandlerExposesRunMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveRun(runstore.Summary{Outcome: "max_steps", Steps: 20, Nodes: 50})

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	for _, want := range []string{"sirsim_runs_total", "sirsim_run_steps", "sirsim_last_run_nodes"} {
		if !strings.Contains(body, want) {
			t.Fatalf("/metrics output missing %s:\n%s", want, body)
		}
	}
}

func TestNewSimCollectorToleratesReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewSimCollector(reg); err != nil {
		t.Fatalf("first NewSimCollector: %v", err)
	}
	if _, err := NewSimCollector(reg); err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
}

func histogramSampleCount(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if !metricMatchesLabels(m, labels) {
				continue
			}
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func metricMatchesLabels(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}
