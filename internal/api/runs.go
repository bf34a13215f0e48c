package api

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/EthelSakyi/SIRVariation/core"
	"github.com/EthelSakyi/SIRVariation/internal/logging"
	"github.com/EthelSakyi/SIRVariation/model"
	"github.com/EthelSakyi/SIRVariation/runstore"
)

// runParamsJSON is the wire view of core.Params.
type runParamsJSON struct {
	Nodes                   int     `json:"nodes"`
	Radius                  float64 `json:"radius"`
	Tau                     int     `json:"tau"`
	Sigma                   int     `json:"sigma"`
	K                       int     `json:"k"`
	InitialInfectedFraction float64 `json:"initial_infected_fraction"`
	MaxSteps                int     `json:"max_steps"`
	RecordSeed              bool    `json:"record_seed"`
}

func paramsView(p core.Params) runParamsJSON {
	return runParamsJSON{
		Nodes:                   p.Nodes,
		Radius:                  p.Radius,
		Tau:                     p.Tau,
		Sigma:                   p.Sigma,
		K:                       p.K,
		InitialInfectedFraction: p.InitialInfectedFraction,
		MaxSteps:                p.MaxSteps,
		RecordSeed:              p.RecordSeed,
	}
}

// runSummaryJSON is the wire view of a runstore.Summary.
type runSummaryJSON struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Seed      int64         `json:"seed"`
	Params    runParamsJSON `json:"params"`
	Nodes     int           `json:"nodes"`
	Edges     int           `json:"edges"`
	Steps     int           `json:"steps"`
	FinalS    int           `json:"final_susceptible"`
	FinalI    int           `json:"final_infected"`
	FinalR    int           `json:"final_recovered"`
	Outcome   string        `json:"outcome"`
}

func summaryView(sum runstore.Summary) runSummaryJSON {
	return runSummaryJSON{
		ID:        sum.ID,
		CreatedAt: sum.CreatedAt,
		Seed:      sum.Seed,
		Params:    paramsView(sum.Params),
		Nodes:     sum.Nodes,
		Edges:     sum.Edges,
		Steps:     sum.Steps,
		FinalS:    sum.FinalS,
		FinalI:    sum.FinalI,
		FinalR:    sum.FinalR,
		Outcome:   sum.Outcome,
	}
}

// runRecordJSON is the full retrieval view: the summary plus the
// graph/history triple the renderer consumes.
type runRecordJSON struct {
	runSummaryJSON
	Positions []model.Point           `json:"positions"`
	EdgeList  [][2]int                `json:"edge_list"`
	History   [][]model.EpidemicState `json:"history"`
}

// handleCreateRun accepts a scenario document, executes the run to
// completion, stores it, and returns the summary.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.log.With(logging.String("request_id", logging.RequestIDFromContext(ctx)))

	scn, err := core.LoadScenario(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.limits.MaxNodes > 0 && scn.Params.Nodes > s.limits.MaxNodes {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("nodes %d exceeds limit %d", scn.Params.Nodes, s.limits.MaxNodes))
		return
	}
	if s.limits.MaxSteps > 0 && scn.Params.MaxSteps > s.limits.MaxSteps {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("max_steps %d exceeds limit %d", scn.Params.MaxSteps, s.limits.MaxSteps))
		return
	}

	seed := s.newSeed()
	if scn.Seed != nil {
		seed = *scn.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	graph, err := scn.BuildGraph(rng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eng, err := core.NewEngine(graph, scn.Params, rng)
	if err != nil {
		if errors.Is(err, core.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, span := s.tracer.Start(ctx, "run.execute")
	span.SetAttributes(
		attribute.Int("run.nodes", graph.NumNodes()),
		attribute.Int("run.max_steps", scn.Params.MaxSteps),
		attribute.Int64("run.seed", seed),
	)
	started := time.Now()
	history, err := eng.Run(ctx)
	span.End()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.collector != nil {
		s.collector.ObserveRunDuration(time.Since(started))
	}

	rec := &runstore.Record{
		ID:        runstore.NewRunID(),
		CreatedAt: s.now(),
		Params:    scn.Params,
		Seed:      seed,
		Graph:     graph,
		History:   history,
	}
	if err := s.store.Add(rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sum := rec.Summarize()
	log.Info(ctx, "run completed",
		logging.String("run_id", rec.ID),
		logging.Int("nodes", sum.Nodes),
		logging.Int("steps", sum.Steps),
		logging.String("outcome", sum.Outcome))

	// ?include=full returns the graph/history triple with the summary,
	// saving the renderer a follow-up GET.
	if r.URL.Query().Get("include") == "full" {
		art := core.NewArtifact(graph, history)
		writeJSON(w, http.StatusCreated, runRecordJSON{
			runSummaryJSON: summaryView(sum),
			Positions:      art.Positions,
			EdgeList:       art.Edges,
			History:        art.History,
		})
		return
	}
	writeJSON(w, http.StatusCreated, summaryView(sum))
}

// handleListRuns returns summaries of all stored runs in insertion order.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	sums := s.store.List()
	out := struct {
		Runs []runSummaryJSON `json:"runs"`
	}{Runs: make([]runSummaryJSON, 0, len(sums))}
	for _, sum := range sums {
		out.Runs = append(out.Runs, summaryView(sum))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetRun returns the full record for one run, history included.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec := s.store.Get(id)
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", id))
		return
	}

	art := core.NewArtifact(rec.Graph, rec.History)
	writeJSON(w, http.StatusOK, runRecordJSON{
		runSummaryJSON: summaryView(rec.Summarize()),
		Positions:      art.Positions,
		EdgeList:       art.Edges,
		History:        art.History,
	})
}
