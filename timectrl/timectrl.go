package timectrl

import (
	"context"
	"sync"
	"time"

	"github.com/EthelSakyi/SIRVariation/core"
)

// Stepper is the engine-side contract the controller drives. core.Engine
// satisfies it.
type Stepper interface {
	Step() core.Snapshot
	Done() bool
	CurrentStep() int
}

// Mode describes how the StepController advances the simulation.
type Mode int

const (
	// RealTime advances one transition per tick of wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run.
	Accelerated
)

// StepController paces an epidemic engine step by step and notifies
// registered listeners after each transition. Pacing never changes the
// simulation's semantics; a paced run produces the same history as a
// batch Run with the same inputs.
type StepController struct {
	mu   sync.RWMutex
	Tick time.Duration
	Mode Mode

	currentStep int

	listeners []func(step int, snap core.Snapshot)
}

// NewStepController constructs a controller.
func NewStepController(tick time.Duration, mode Mode) *StepController {
	return &StepController{Tick: tick, Mode: mode}
}

// CurrentStep returns the number of completed transitions.
func (sc *StepController) CurrentStep() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.currentStep
}

// AddListener registers a callback invoked after every transition with
// the step index and the snapshot it produced.
func (sc *StepController) AddListener(fn func(step int, snap core.Snapshot)) {
	sc.listeners = append(sc.listeners, fn)
}

// Start drives the engine in a separate goroutine until it terminates
// or the context is cancelled. Cancellation is honored only at step
// boundaries. The returned channel is closed when the run finishes.
func (sc *StepController) Start(ctx context.Context, eng Stepper) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticker *time.Ticker
		if sc.Mode == RealTime {
			ticker = time.NewTicker(sc.Tick)
			defer ticker.Stop()
		}

		for !eng.Done() {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}

			step := eng.CurrentStep()
			snap := eng.Step()

			sc.mu.Lock()
			sc.currentStep = eng.CurrentStep()
			sc.mu.Unlock()

			for _, fn := range sc.listeners {
				fn(step, snap)
			}
		}
	}()
	return done
}
