package core

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/EthelSakyi/SIRVariation/model"
)

// Scenario is a declarative description of one simulation run: the
// parameter set, an optional fixed seed, and optionally an explicit
// topology (positions, and either an edge list or radius-based wiring
// over those positions) for fully reproducible experiments.
type Scenario struct {
	Params    Params
	Seed      *int64
	Positions []model.Point
	Edges     [][2]int
}

// internal JSON shapes - kept unexported so the file format can evolve
// without touching the public types.
type scenarioJSON struct {
	Nodes                   int            `json:"nodes"`
	Radius                  float64        `json:"radius"`
	Tau                     int            `json:"tau"`
	Sigma                   int            `json:"sigma"`
	K                       int            `json:"k"`
	InitialInfectedFraction float64        `json:"initial_infected_fraction"`
	MaxSteps                int            `json:"max_steps"`
	RecordSeed              bool           `json:"record_seed"`
	Seed                    *int64         `json:"seed"`
	Positions               []model.Point  `json:"positions"`
	Edges                   [][2]int       `json:"edges"`
}

// LoadScenario reads a JSON scenario from r. It fails only on JSON and
// structural errors; parameter validation stays where it always runs,
// in graph construction and NewEngine.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if len(payload.Edges) > 0 && len(payload.Positions) == 0 {
		return nil, fmt.Errorf("LoadScenario: edges given without positions")
	}

	s := &Scenario{
		Params: Params{
			Nodes:                   payload.Nodes,
			Radius:                  payload.Radius,
			Tau:                     payload.Tau,
			Sigma:                   payload.Sigma,
			K:                       payload.K,
			InitialInfectedFraction: payload.InitialInfectedFraction,
			MaxSteps:                payload.MaxSteps,
			RecordSeed:              payload.RecordSeed,
		},
		Seed:      payload.Seed,
		Positions: payload.Positions,
		Edges:     payload.Edges,
	}
	if len(s.Positions) > 0 {
		s.Params.Nodes = len(s.Positions)
	}
	return s, nil
}

// BuildGraph materializes the scenario's contact graph. Explicit
// positions take precedence over random placement; with positions but
// no edge list, pairs within Params.Radius are connected, so a scenario
// can pin node placement while keeping geometric wiring.
func (s *Scenario) BuildGraph(rng *rand.Rand) (*ContactGraph, error) {
	if len(s.Positions) == 0 {
		return NewGeometricGraph(s.Params.Nodes, s.Params.Radius, rng)
	}

	g := NewGraph(s.Positions)
	if len(s.Edges) == 0 {
		if s.Params.Radius <= 0 {
			return nil, fmt.Errorf("%w: radius must be positive, got %g",
				ErrInvalidParams, s.Params.Radius)
		}
		n := g.NumNodes()
		for u := 0; u < n; u++ {
			for v := u + 1; v < n; v++ {
				if s.Positions[u].DistanceTo(s.Positions[v]) <= s.Params.Radius {
					g.addEdge(u, v)
				}
			}
		}
		return g, nil
	}

	for _, e := range s.Edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("BuildGraph: %w", err)
		}
	}
	return g, nil
}
