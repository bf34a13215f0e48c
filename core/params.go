package core

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is the base error for every usage error: invalid
// generation or epidemic parameters are detected before any simulation
// work starts, and the wrapped message names the offending parameter.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params collects the full input set for one simulation run: graph
// generation (Nodes, Radius) plus the epidemic process (Tau, Sigma, K,
// InitialInfectedFraction, MaxSteps).
type Params struct {
	// Nodes is the number of nodes placed in the unit square.
	Nodes int
	// Radius is the contact radius: nodes at Euclidean distance <= Radius
	// share an edge.
	Radius float64

	// Tau is the number of steps between a node becoming infected and
	// becoming infectious to its neighbors (latency).
	Tau int
	// Sigma is the number of steps a node stays infectious once its
	// infectious window opens.
	Sigma int
	// K is the minimum number of simultaneously infectious neighbors
	// needed to infect a susceptible node. Exactly K suffices.
	K int
	// InitialInfectedFraction of nodes is seeded as infected at time 0,
	// rounded up, with a floor of one node.
	InitialInfectedFraction float64
	// MaxSteps bounds the number of transition steps simulated.
	MaxSteps int

	// RecordSeed, when set, prepends the post-seeding pre-transition
	// state as the first history entry. By default the history starts
	// at the state after the first transition.
	RecordSeed bool
}

// Validate checks the whole parameter set, generation and epidemic
// parts alike. All failures wrap ErrInvalidParams.
func (p Params) Validate() error {
	if p.Nodes <= 0 {
		return fmt.Errorf("%w: node count must be positive, got %d", ErrInvalidParams, p.Nodes)
	}
	if p.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %g", ErrInvalidParams, p.Radius)
	}
	return p.validateEpidemic()
}

// validateEpidemic checks only the parameters the engine consumes. It is
// what NewEngine enforces, so hand-built graphs skip the generation checks.
func (p Params) validateEpidemic() error {
	if p.Tau < 0 {
		return fmt.Errorf("%w: tau must be >= 0, got %d", ErrInvalidParams, p.Tau)
	}
	if p.Sigma < 1 {
		return fmt.Errorf("%w: sigma must be >= 1, got %d", ErrInvalidParams, p.Sigma)
	}
	if p.K < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidParams, p.K)
	}
	if p.InitialInfectedFraction <= 0 || p.InitialInfectedFraction > 1 {
		return fmt.Errorf("%w: initial infected fraction must be in (0,1], got %g",
			ErrInvalidParams, p.InitialInfectedFraction)
	}
	if p.MaxSteps < 1 {
		return fmt.Errorf("%w: max steps must be >= 1, got %d", ErrInvalidParams, p.MaxSteps)
	}
	return nil
}
