package main

import (
	"context"
	"flag"
	"math"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/edwinsyarief/lazyecs"
	"github.com/signalsfoundry/worldsim/core"
	"github.com/signalsfoundry/worldsim/internal/logging"
	"github.com/signalsfoundry/worldsim/internal/observability"
	"github.com/signalsfoundry/worldsim/model"
	"github.com/signalsfoundry/worldsim/timectrl"
	"github.com/signalsfoundry/worldsim/valuegraph"
)

// fertility binds a world cell to its node in the loop's value graph.
type fertility struct {
	Node valuegraph.NodeID
}

// climateSummary is the per-round digest the world loop hands to the agent
// loop over the link.
type climateSummary struct {
	Round         uint64
	MeanFertility float64
	Cells         int
}

// colony is the agent loop's aggregate state, driven by the summaries it
// receives.
type colony struct {
	Population float64
}

func main() {
	tick := flag.Duration("tick", 100*time.Millisecond, "simulation tick interval")
	accelerated := flag.Bool("accelerated", false, "run as fast as the hardware allows instead of real-time")
	fieldSize := flag.Int("field-size", 32, "side length of the generated square world field")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewTimeController(time.Now().UTC(), *tick, mode)

	orch := core.New(
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
		core.WithClock(clock),
	)

	// The world domain takes the bulk of the hardware; the agent domain is
	// pinned to a single worker so its tick stays cheap and predictable.
	worldWorkers := runtime.NumCPU() - 1
	if worldWorkers < 1 {
		worldWorkers = 1
	}
	world, err := orch.AddLoop("world", worldWorkers)
	if err != nil {
		log.Error(ctx, "failed to register world loop", logging.String("error", err.Error()))
		os.Exit(1)
	}
	agents, err := orch.AddLoop("agents", 1)
	if err != nil {
		log.Error(ctx, "failed to register agent loop", logging.String("error", err.Error()))
		os.Exit(1)
	}

	model.RegisterComponents()
	lazyecs.RegisterComponent[fertility]()

	graph := valuegraph.New()
	field := generateField(*fieldSize)
	if err := seedWorld(world, field, graph); err != nil {
		log.Error(ctx, "failed to seed world", logging.String("error", err.Error()))
		os.Exit(1)
	}
	core.SetResource(agents.World, &colony{Population: 10})

	collector.SetGraphNodes("world", graph.Len())
	collector.SetStoreEntities("world", field.Len())

	if err := world.AddSystem("seasonal-drift", seasonalDrift(clock)); err != nil {
		log.Error(ctx, "failed to register system", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := world.AddSystem("fold-graph", foldGraph); err != nil {
		log.Error(ctx, "failed to register system", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := agents.AddSystem("colony-growth", colonyGrowth(log)); err != nil {
		log.Error(ctx, "failed to register system", logging.String("error", err.Error()))
		os.Exit(1)
	}

	if err := orch.AddLink("world", "agents", summariseClimate); err != nil {
		log.Error(ctx, "failed to register link", logging.String("error", err.Error()))
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info(ctx, "starting simulation",
		logging.String("tick", tick.String()),
		logging.Int("field_size", *fieldSize),
		logging.Int("world_workers", worldWorkers),
	)
	if err := orch.Run(runCtx); err != nil {
		log.Error(ctx, "simulation aborted", logging.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(shutdownCtx, shutdownTracing, log)
	log.Info(ctx, "simulation stopped", logging.String("sim_elapsed", clock.Elapsed().String()))
}

// generateField builds a deterministic synthetic field standing in for the
// world-generation collaborator: a smooth height layer plus 4-connected grid
// adjacency.
func generateField(size int) *model.Field {
	n := size * size
	height := make([]float64, n)
	neighbors := make([][]int, n)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*size + x
			height[i] = 0.5 + 0.5*math.Sin(float64(x)/5)*math.Cos(float64(y)/5)
			var row []int
			if x > 0 {
				row = append(row, i-1)
			}
			if x < size-1 {
				row = append(row, i+1)
			}
			if y > 0 {
				row = append(row, i-size)
			}
			if y < size-1 {
				row = append(row, i+size)
			}
			neighbors[i] = row
		}
	}
	return &model.Field{
		Size:      size,
		Layers:    map[string][]float64{"height": height},
		Neighbors: neighbors,
	}
}

// seedWorld inserts one entity per field sample and wires each cell's
// fertility into the value graph: a shared climate node feeds every cell, so
// one climate delta re-folds every dependent value incrementally.
func seedWorld(world *core.Loop, field *model.Field, graph *valuegraph.Graph) error {
	climate, _, err := graph.AddNode(1.0)
	if err != nil {
		return err
	}

	height, err := field.Layer("height")
	if err != nil {
		return err
	}

	nodes := make([]valuegraph.NodeID, field.Len())
	for i := range nodes {
		id, _, err := graph.AddNode(height[i], valuegraph.Parent{Op: valuegraph.OpMul, ID: climate})
		if err != nil {
			return err
		}
		nodes[i] = id
	}

	_, err = core.PopulateField(world, field, func(w *lazyecs.World, e lazyecs.Entity, i int) {
		lazyecs.SetComponent(w, e, model.Cell{Index: i})
		lazyecs.SetComponent(w, e, fertility{Node: nodes[i]})
	})
	if err != nil {
		return err
	}

	core.SetResource(world.World, graph)
	core.SetResource(world.World, graph.NodeHandle(climate))
	return nil
}

// seasonalDrift nudges the shared climate node each tick following a slow
// sine of simulation time. Deltas go through the node's handle; the fold
// happens in the next system.
func seasonalDrift(clock *timectrl.TimeController) core.SystemFunc {
	return func(ctx context.Context, l *core.Loop) error {
		h, ok := core.GetResource[*valuegraph.Handle](l.World)
		if !ok {
			return nil
		}
		season := math.Sin(clock.Elapsed().Seconds() / 60)
		h.AddDelta(0.001 * season)
		return nil
	}
}

// foldGraph commits pending deltas and recomputes dirty values once per tick.
func foldGraph(ctx context.Context, l *core.Loop) error {
	g, ok := core.GetResource[*valuegraph.Graph](l.World)
	if !ok {
		return nil
	}
	return g.Update()
}

// summariseClimate is the world->agents transfer: it folds the world's cell
// fertilities into a digest and stores it in the agent loop's resources. Both
// loops are quiesced when this runs, so the reads and the write are safe.
func summariseClimate(ctx context.Context, src, dst *core.Loop) error {
	g, ok := core.GetResource[*valuegraph.Graph](src.World)
	if !ok {
		return nil
	}

	var sum float64
	var cells int
	q := lazyecs.CreateQuery[fertility](src.World)
	for q.Next() {
		f := q.Get()
		sum += g.Value(f.Node)
		cells++
	}

	summary := &climateSummary{Round: src.Rounds(), Cells: cells}
	if cells > 0 {
		summary.MeanFertility = sum / float64(cells)
	}
	core.SetResource(dst.World, summary)
	return nil
}

// colonyGrowth consumes the latest climate summary and adjusts the colony.
func colonyGrowth(log logging.Logger) core.SystemFunc {
	var lastRound uint64
	return func(ctx context.Context, l *core.Loop) error {
		summary, ok := core.GetResource[*climateSummary](l.World)
		if !ok || summary.Round == lastRound {
			return nil
		}
		lastRound = summary.Round

		c, ok := core.GetResource[*colony](l.World)
		if !ok {
			return nil
		}
		c.Population *= 1 + 0.01*(summary.MeanFertility-0.5)

		if summary.Round%100 == 0 {
			log.Info(ctx, "colony update",
				logging.Uint64("round", summary.Round),
				logging.Float64("mean_fertility", summary.MeanFertility),
				logging.Float64("population", c.Population),
			)
		}
		return nil
	}
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
