package model

import "fmt"

// EpidemicState is the SIR compartment a node occupies at one time step.
// Transitions only ever move forward: Susceptible -> Infected -> Recovered.
type EpidemicState int

const (
	StateSusceptible EpidemicState = iota
	StateInfected
	StateRecovered
)

// String returns the single-letter compartment code used throughout the
// run artifacts ("S", "I", "R").
func (s EpidemicState) String() string {
	switch s {
	case StateSusceptible:
		return "S"
	case StateInfected:
		return "I"
	case StateRecovered:
		return "R"
	default:
		return fmt.Sprintf("EpidemicState(%d)", int(s))
	}
}

// MarshalJSON encodes the state as its single-letter code.
func (s EpidemicState) MarshalJSON() ([]byte, error) {
	switch s {
	case StateSusceptible, StateInfected, StateRecovered:
		return []byte(`"` + s.String() + `"`), nil
	default:
		return nil, fmt.Errorf("unknown epidemic state %d", int(s))
	}
}

// UnmarshalJSON decodes a single-letter compartment code.
func (s *EpidemicState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"S"`:
		*s = StateSusceptible
	case `"I"`:
		*s = StateInfected
	case `"R"`:
		*s = StateRecovered
	default:
		return fmt.Errorf("unknown epidemic state %s", string(data))
	}
	return nil
}
