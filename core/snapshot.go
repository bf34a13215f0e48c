package core

import "github.com/EthelSakyi/SIRVariation/model"

// Snapshot is the complete per-node state for one time step, indexed by
// node. Each snapshot appended to a History is an independent copy;
// later engine steps never touch earlier snapshots.
type Snapshot []model.EpidemicState

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Counts returns the number of susceptible, infected and recovered
// nodes in the snapshot.
func (s Snapshot) Counts() (susceptible, infected, recovered int) {
	for _, st := range s {
		switch st {
		case model.StateSusceptible:
			susceptible++
		case model.StateInfected:
			infected++
		case model.StateRecovered:
			recovered++
		}
	}
	return
}

// History is the ordered sequence of snapshots produced by a run.
type History []Snapshot

// Final returns the last snapshot, or nil for an empty history.
func (h History) Final() Snapshot {
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}
