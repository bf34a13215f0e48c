// Package api exposes the simulation engine over HTTP. Runs are
// submitted as scenario documents, executed synchronously, and kept in
// a run store for later retrieval by the renderer.
package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/EthelSakyi/SIRVariation/internal/config"
	"github.com/EthelSakyi/SIRVariation/internal/logging"
	"github.com/EthelSakyi/SIRVariation/internal/observability"
	"github.com/EthelSakyi/SIRVariation/runstore"
)

// Server wires the run endpoints to their dependencies.
type Server struct {
	store     *runstore.Store
	collector *observability.SimCollector
	limits    config.LimitsConfig
	log       logging.Logger
	tracer    trace.Tracer

	// now and newSeed are injection points for tests.
	now     func() time.Time
	newSeed func() int64
}

// NewServer constructs a Server. A nil collector disables HTTP
// instrumentation; a nil logger falls back to a noop logger.
func NewServer(store *runstore.Store, collector *observability.SimCollector, limits config.LimitsConfig, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		store:     store,
		collector: collector,
		limits:    limits,
		log:       log,
		tracer:    otel.Tracer("sirsim-api"),
		now:       time.Now,
		newSeed:   func() int64 { return rand.Int63() },
	}
}

// Handler returns the routed HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/runs", s.route("create_run", s.handleCreateRun))
	mux.Handle("GET /v1/runs", s.route("list_runs", s.handleListRuns))
	mux.Handle("GET /v1/runs/{id}", s.route("get_run", s.handleGetRun))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// route applies the per-request middleware stack: request ID, request
// logging, and HTTP metrics.
func (s *Server) route(name string, fn http.HandlerFunc) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, log := logging.WithRequestLogger(r.Context(), s.log)
		log.Debug(ctx, "request received",
			logging.String("handler", name),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path))
		fn(w, r.WithContext(ctx))
	})
	if s.collector != nil {
		h = s.collector.InstrumentHandler(name, h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
