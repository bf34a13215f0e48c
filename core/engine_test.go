package core

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/EthelSakyi/SIRVariation/model"
)

// pathGraph builds a line of n nodes spaced 0.1 apart, with edges
// between consecutive nodes only.
func pathGraph(t *testing.T, n int) *ContactGraph {
	t.Helper()
	positions := make([]model.Point, n)
	for i := range positions {
		positions[i] = model.Point{X: float64(i) * 0.1, Y: 0}
	}
	g := NewGraph(positions)
	for i := 0; i+1 < n; i++ {
		if err := g.AddEdge(i, i+1); err != nil {
			t.Fatalf("AddEdge(%d,%d): %v", i, i+1, err)
		}
	}
	return g
}

// rngSeeding returns a random source whose first Perm(n) call starts
// with the given node, so that a single-seed run infects exactly it.
func rngSeeding(t *testing.T, n, node int) *rand.Rand {
	t.Helper()
	for seed := int64(0); seed < 10000; seed++ {
		if rand.New(rand.NewSource(seed)).Perm(n)[0] == node {
			return rand.New(rand.NewSource(seed))
		}
	}
	t.Fatalf("no seed found placing node %d first in Perm(%d)", node, n)
	return nil
}

func mustRun(t *testing.T, e *Engine) History {
	t.Helper()
	h, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return h
}

func stateRow(t *testing.T, snap Snapshot, want ...model.EpidemicState) {
	t.Helper()
	if len(snap) != len(want) {
		t.Fatalf("snapshot has %d nodes, want %d", len(snap), len(want))
	}
	for i, w := range want {
		if snap[i] != w {
			t.Fatalf("node %d state = %v, want %v (snapshot %v)", i, snap[i], w, snap)
		}
	}
}

const (
	S = model.StateSusceptible
	I = model.StateInfected
	R = model.StateRecovered
)

// Three nodes A-B-C (A and C not adjacent), tau=0, sigma=1, k=1, A
// seeded. Updates are simultaneous against the prior step's state: B
// catches the infection from A in the first transition, C never sees an
// infectious neighbor because B's one-step window closes before the
// next evaluation.
func TestEngine_SimultaneousUpdateOnChain(t *testing.T) {
	g := pathGraph(t, 3)
	params := Params{
		Tau: 0, Sigma: 1, K: 1,
		InitialInfectedFraction: 0.1,
		MaxSteps:                10,
	}
	e, err := NewEngine(g, params, rngSeeding(t, 3, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := mustRun(t, e)
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	stateRow(t, h[0], I, I, S)
	stateRow(t, h[1], R, R, S)

	if ts, ok := e.InfectionStep(1); !ok || ts != 0 {
		t.Fatalf("node 1 infection step = %d/%v, want 0/true", ts, ok)
	}
	if _, ok := e.InfectionStep(2); ok {
		t.Fatal("node 2 should never be infected")
	}
}

// With sigma=2 the infectious window spans two evaluations, so the
// infection walks the whole chain before burning out.
func TestEngine_InfectionPropagatesAlongChain(t *testing.T) {
	g := pathGraph(t, 3)
	params := Params{
		Tau: 0, Sigma: 2, K: 1,
		InitialInfectedFraction: 0.1,
		MaxSteps:                10,
	}
	e, err := NewEngine(g, params, rngSeeding(t, 3, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := mustRun(t, e)
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	stateRow(t, h[0], I, I, S)
	stateRow(t, h[1], I, I, I)
	stateRow(t, h[2], R, R, I)
	stateRow(t, h[3], R, R, R)
}

// A susceptible node with k=2 and at most one infectious neighbor must
// never become infected, however long the window stays open.
func TestEngine_ThresholdNeverMetWithSingleNeighbor(t *testing.T) {
	g := pathGraph(t, 3)
	params := Params{
		Tau: 0, Sigma: 5, K: 2,
		InitialInfectedFraction: 0.1,
		MaxSteps:                12,
	}
	e, err := NewEngine(g, params, rngSeeding(t, 3, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := mustRun(t, e)
	for step, snap := range h {
		if snap[1] != S || snap[2] != S {
			t.Fatalf("step %d: nodes 1,2 must stay susceptible, got %v", step, snap)
		}
	}
	// The seed recovers at elapsed tau+sigma and the run ends early.
	if last := h.Final(); last[0] != R {
		t.Fatalf("seed node final state = %v, want recovered", last[0])
	}
	if len(h) >= params.MaxSteps {
		t.Fatalf("history length = %d, want early termination below %d", len(h), params.MaxSteps)
	}
}

// A node infected at t0 exerts no infectious influence before t0+tau.
func TestEngine_LatencyDelaysInfectiousness(t *testing.T) {
	g := pathGraph(t, 2)
	params := Params{
		Tau: 2, Sigma: 2, K: 1,
		InitialInfectedFraction: 0.4,
		MaxSteps:                15,
	}
	e, err := NewEngine(g, params, rngSeeding(t, 2, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := mustRun(t, e)
	stateRow(t, h[0], I, S)
	stateRow(t, h[1], I, S)
	stateRow(t, h[2], I, I) // window opened at elapsed == tau
	if ts, ok := e.InfectionStep(1); !ok || ts != 2 {
		t.Fatalf("node 1 infection step = %d/%v, want 2/true", ts, ok)
	}
}

func TestEngine_RunsToMaxStepsWhileInfectionPersists(t *testing.T) {
	// Radius above sqrt(2) makes the graph complete; a huge sigma keeps
	// every infected node infected past the step bound.
	g, err := NewGeometricGraph(30, 1.5, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewGeometricGraph: %v", err)
	}
	params := Params{
		Tau: 0, Sigma: 100, K: 1,
		InitialInfectedFraction: 0.1,
		MaxSteps:                5,
	}
	e, err := NewEngine(g, params, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := mustRun(t, e)
	if len(h) != params.MaxSteps {
		t.Fatalf("history length = %d, want MaxSteps=%d", len(h), params.MaxSteps)
	}
	if _, infected, _ := h.Final().Counts(); infected == 0 {
		t.Fatal("expected infection to persist through the step bound")
	}
}

func TestEngine_StatesOnlyMoveForward(t *testing.T) {
	g, err := NewGeometricGraph(80, 0.2, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("NewGeometricGraph: %v", err)
	}
	params := Params{
		Tau: 1, Sigma: 2, K: 1,
		InitialInfectedFraction: 0.05,
		MaxSteps:                30,
		RecordSeed:              true,
	}
	e, err := NewEngine(g, params, rand.New(rand.NewSource(12)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := mustRun(t, e)
	for step := 1; step < len(h); step++ {
		for node := range h[step] {
			prev, cur := h[step-1][node], h[step][node]
			ok := prev == cur ||
				(prev == S && cur == I) ||
				(prev == I && cur == R)
			if !ok {
				t.Fatalf("node %d: illegal transition %v -> %v at step %d", node, prev, cur, step)
			}
		}
	}
}

func TestEngine_SeedingCountRoundsUpWithFloorOfOne(t *testing.T) {
	cases := []struct {
		nodes    int
		fraction float64
		want     int
	}{
		{10, 0.25, 3}, // ceil(2.5)
		{10, 0.01, 1}, // floor of one
		{4, 1.0, 4},
		{200, 0.05, 10},
	}
	for _, tc := range cases {
		g, err := NewGeometricGraph(tc.nodes, 0.3, rand.New(rand.NewSource(21)))
		if err != nil {
			t.Fatalf("NewGeometricGraph: %v", err)
		}
		params := Params{
			Tau: 0, Sigma: 1, K: 1,
			InitialInfectedFraction: tc.fraction,
			MaxSteps:                5,
			RecordSeed:              true,
		}
		e, err := NewEngine(g, params, rand.New(rand.NewSource(22)))
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		seeded := e.History()[0]
		if _, infected, _ := seeded.Counts(); infected != tc.want {
			t.Fatalf("n=%d fraction=%g: seeded %d nodes, want %d",
				tc.nodes, tc.fraction, infected, tc.want)
		}
	}
}

func TestEngine_SeedingDeterministicForFixedSeed(t *testing.T) {
	build := func() Snapshot {
		g, err := NewGeometricGraph(50, 0.2, rand.New(rand.NewSource(33)))
		if err != nil {
			t.Fatalf("NewGeometricGraph: %v", err)
		}
		params := Params{
			Tau: 0, Sigma: 1, K: 1,
			InitialInfectedFraction: 0.1,
			MaxSteps:                3,
			RecordSeed:              true,
		}
		e, err := NewEngine(g, params, rand.New(rand.NewSource(34)))
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		return e.History()[0]
	}
	a, b := build(), build()
	for node := range a {
		if a[node] != b[node] {
			t.Fatalf("seeding differs at node %d across identical runs", node)
		}
	}
}

func TestEngine_SnapshotsAreIndependentCopies(t *testing.T) {
	g := pathGraph(t, 3)
	params := Params{
		Tau: 0, Sigma: 2, K: 1,
		InitialInfectedFraction: 0.1,
		MaxSteps:                10,
	}
	e, err := NewEngine(g, params, rngSeeding(t, 3, 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	first := e.Step()
	want := first.Clone()
	for !e.Done() {
		e.Step()
	}
	for node := range want {
		if first[node] != want[node] {
			t.Fatalf("snapshot mutated by later steps at node %d", node)
		}
	}
}

func TestEngine_RunStopsBetweenStepsOnCancel(t *testing.T) {
	g, err := NewGeometricGraph(30, 1.5, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("NewGeometricGraph: %v", err)
	}
	params := Params{
		Tau: 0, Sigma: 100, K: 1,
		InitialInfectedFraction: 0.1,
		MaxSteps:                1000,
	}
	e, err := NewEngine(g, params, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestNewEngine_RejectsBadInput(t *testing.T) {
	g := pathGraph(t, 3)
	rng := rand.New(rand.NewSource(1))
	ok := Params{Tau: 0, Sigma: 1, K: 1, InitialInfectedFraction: 0.5, MaxSteps: 5}

	if _, err := NewEngine(nil, ok, rng); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("nil graph: %v", err)
	}
	if _, err := NewEngine(g, ok, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("nil rng: %v", err)
	}
	if _, err := NewEngine(NewGraph(nil), ok, rng); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("empty graph: %v", err)
	}

	bad := ok
	bad.InitialInfectedFraction = 0
	if _, err := NewEngine(g, bad, rng); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("zero fraction: %v", err)
	}
}
