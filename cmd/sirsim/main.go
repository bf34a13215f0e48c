package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/EthelSakyi/SIRVariation/core"
	"github.com/EthelSakyi/SIRVariation/timectrl"
)

func main() {
	nodes := flag.Int("n", 200, "number of nodes in the contact graph")
	radius := flag.Float64("radius", 0.15, "contact radius in the unit square")
	tau := flag.Int("tau", 1, "steps before an infected node becomes infectious")
	sigma := flag.Int("sigma", 2, "steps a node remains infectious")
	k := flag.Int("k", 1, "infectious neighbors required to infect a node")
	fraction := flag.Float64("fraction", 0.05, "initial infected fraction of nodes")
	maxSteps := flag.Int("max-steps", 20, "maximum number of simulation steps")
	seed := flag.Int64("seed", 0, "RNG seed; 0 derives one from the clock")
	recordSeed := flag.Bool("record-seed", false, "include the seeded state as the first history entry")
	scenarioPath := flag.String("scenario", "", "path to a JSON scenario file; overrides the parameter flags")
	outPath := flag.String("out", "", "write the run artifact JSON to this file instead of stdout")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	tick := flag.Duration("tick", 500*time.Millisecond, "step interval in real-time mode")
	watch := flag.Bool("watch", false, "print per-step S/I/R counts while running")

	flag.Parse()

	scn := &core.Scenario{
		Params: core.Params{
			Nodes:                   *nodes,
			Radius:                  *radius,
			Tau:                     *tau,
			Sigma:                   *sigma,
			K:                       *k,
			InitialInfectedFraction: *fraction,
			MaxSteps:                *maxSteps,
			RecordSeed:              *recordSeed,
		},
	}
	if *scenarioPath != "" {
		f, err := os.Open(*scenarioPath)
		if err != nil {
			fatalf("open scenario %q: %v", *scenarioPath, err)
		}
		scn, err = core.LoadScenario(f)
		f.Close()
		if err != nil {
			fatalf("load scenario: %v", err)
		}
	}

	// CLI flag wins over a scenario seed so experiments stay overridable.
	runSeed := *seed
	if runSeed == 0 && scn.Seed != nil {
		runSeed = *scn.Seed
	}
	if runSeed == 0 {
		runSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(runSeed))

	graph, err := scn.BuildGraph(rng)
	if err != nil {
		fatalf("build contact graph: %v", err)
	}
	eng, err := core.NewEngine(graph, scn.Params, rng)
	if err != nil {
		fatalf("initialise simulation: %v", err)
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	sc := timectrl.NewStepController(*tick, mode)
	if *watch {
		sc.AddListener(func(step int, snap core.Snapshot) {
			s, i, r := snap.Counts()
			fmt.Fprintf(os.Stderr, "step %3d: S=%d I=%d R=%d\n", step, s, i, r)
		})
	}

	fmt.Fprintf(os.Stderr, "starting run: n=%d radius=%g tau=%d sigma=%d k=%d seed=%d\n",
		graph.NumNodes(), scn.Params.Radius, scn.Params.Tau, scn.Params.Sigma, scn.Params.K, runSeed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-sc.Start(ctx, eng)

	history := eng.History()
	if final := history.Final(); final != nil {
		s, i, r := final.Counts()
		fmt.Fprintf(os.Stderr, "run complete: steps=%d final S=%d I=%d R=%d\n", len(history), s, i, r)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fatalf("create output %q: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}
	if err := core.EncodeArtifact(out, graph, history); err != nil {
		fatalf("write artifact: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sirsim: "+format+"\n", args...)
	os.Exit(1)
}
