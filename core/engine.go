package core

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/EthelSakyi/SIRVariation/model"
)

// Engine drives the discrete-time SIR process over a ContactGraph.
//
// Each step is computed entirely from the previous step's full state:
// the engine keeps two buffers (previous and next) and swaps them at the
// end of every step, so no node ever observes a neighbor's same-step
// update. Every snapshot appended to the history is an independent copy.
type Engine struct {
	graph  *ContactGraph
	params Params

	// states and infectedAt describe the population as of the most
	// recently completed step (or the seeding, before the first step).
	// infectedAt[i] is the step at which node i became infected, or -1.
	states     []model.EpidemicState
	infectedAt []int

	step    int
	extinct bool
	history History

	stepListeners []func(step int, snap Snapshot)
}

// NewEngine validates the epidemic parameters, seeds the initial
// infected set and returns an engine ready to step.
//
// Seeding picks ceil(n * InitialInfectedFraction) distinct nodes
// uniformly at random (never fewer than one) and marks them infected
// with timestamp 0. The random source must be supplied by the caller so
// runs are reproducible.
func NewEngine(g *ContactGraph, params Params, rng *rand.Rand) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidParams)
	}
	if err := params.validateEpidemic(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}
	n := g.NumNodes()
	if n == 0 {
		return nil, fmt.Errorf("%w: cannot seed an empty graph", ErrInvalidParams)
	}

	numSeed := int(math.Ceil(float64(n) * params.InitialInfectedFraction))
	if numSeed < 1 {
		numSeed = 1
	}
	if numSeed > n {
		numSeed = n
	}

	e := &Engine{
		graph:      g,
		params:     params,
		states:     make([]model.EpidemicState, n),
		infectedAt: make([]int, n),
	}
	for i := range e.infectedAt {
		e.infectedAt[i] = -1
	}
	for _, i := range rng.Perm(n)[:numSeed] {
		e.states[i] = model.StateInfected
		e.infectedAt[i] = 0
	}

	// The seeded, pre-transition state is recorded only on request;
	// otherwise the history starts at the state after the first
	// transition.
	if params.RecordSeed {
		e.history = append(e.history, Snapshot(e.states).Clone())
	}
	return e, nil
}

// RegisterStepListener registers a callback invoked after every
// completed step with the step index and that step's snapshot.
func (e *Engine) RegisterStepListener(fn func(step int, snap Snapshot)) {
	e.stepListeners = append(e.stepListeners, fn)
}

// Done reports whether the simulation has terminated: either a step
// left zero infected nodes, or MaxSteps transitions have been computed.
func (e *Engine) Done() bool {
	return e.extinct || e.step >= e.params.MaxSteps
}

// Step computes one transition from the prior state and appends the
// resulting snapshot to the history. Calling Step after Done returns
// true is a programming error and panics.
func (e *Engine) Step() Snapshot {
	if e.Done() {
		panic("core: Step called on a finished engine")
	}
	n := e.graph.NumNodes()
	if len(e.states) != n || len(e.infectedAt) != n {
		panic(fmt.Sprintf("core: state buffers hold %d/%d entries for %d nodes",
			len(e.states), len(e.infectedAt), n))
	}

	t := e.step
	next := Snapshot(e.states).Clone()
	nextInfectedAt := make([]int, n)
	copy(nextInfectedAt, e.infectedAt)

	for node := 0; node < n; node++ {
		switch e.states[node] {
		case model.StateSusceptible:
			if e.countInfectiousNeighbors(node, t) >= e.params.K {
				next[node] = model.StateInfected
				nextInfectedAt[node] = t
			}
		case model.StateInfected:
			if t-e.infectedAt[node] >= e.params.Tau+e.params.Sigma {
				next[node] = model.StateRecovered
			}
		}
	}

	e.states = next
	e.infectedAt = nextInfectedAt
	e.step++

	snap := next.Clone()
	e.history = append(e.history, snap)

	if _, infected, _ := snap.Counts(); infected == 0 {
		e.extinct = true
	}
	for _, fn := range e.stepListeners {
		fn(t, snap)
	}
	return snap
}

// countInfectiousNeighbors counts, against the prior step's state, the
// neighbors of node that are inside their infectious window at step t:
// still infected, with tau <= t - infectedAt < tau + sigma.
func (e *Engine) countInfectiousNeighbors(node, t int) int {
	count := 0
	for _, nb := range e.graph.Neighbors(node) {
		if e.states[nb] != model.StateInfected {
			continue
		}
		ti := e.infectedAt[nb]
		if ti < 0 {
			continue
		}
		elapsed := t - ti
		if elapsed >= e.params.Tau && elapsed < e.params.Tau+e.params.Sigma {
			count++
		}
	}
	return count
}

// Run steps the simulation to completion and returns the full history.
// The context is checked between steps only; a cancelled context stops
// the run at a step boundary and returns the history so far alongside
// the context error.
func (e *Engine) Run(ctx context.Context) (History, error) {
	for !e.Done() {
		select {
		case <-ctx.Done():
			return e.history, ctx.Err()
		default:
		}
		e.Step()
	}
	return e.history, nil
}

// History returns the snapshots produced so far.
func (e *Engine) History() History { return e.history }

// CurrentStep returns the number of transitions computed so far.
func (e *Engine) CurrentStep() int { return e.step }

// Graph returns the contact graph the engine runs on.
func (e *Engine) Graph() *ContactGraph { return e.graph }

// Params returns the engine's parameter set.
func (e *Engine) Params() Params { return e.params }

// InfectionStep returns the step at which node i became infected. The
// second return value is false if the node was never infected.
func (e *Engine) InfectionStep(i int) (int, bool) {
	if i < 0 || i >= len(e.infectedAt) || e.infectedAt[i] < 0 {
		return 0, false
	}
	return e.infectedAt[i], true
}
