// Command tilesim-demo wires a small tiled accelerator and runs it to
// completion, illustrating the two ways to build a tilenoc.Simulator: a
// TOML config file, or the built-in scenarios below. Grounded on
// go-ublk's cmd/ublk-mem as the wiring/flag-parsing/logging-setup shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/accelsim/tilenoc"
	"github.com/accelsim/tilenoc/internal/config"
	"github.com/accelsim/tilenoc/internal/logtrace"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a SimulationConfig TOML document (default: a built-in scenario)")
		scenario   = flag.String("scenario", "dma", "built-in scenario to run when -config is unset: \"dma\" or \"gemm\"")
		maxTicks   = flag.Int("max-ticks", tilenoc.NoMaxTicks, "stop after this many ticks even if the queue hasn't drained (0 = no bound)")
		verbose    = flag.Bool("v", false, "log every dispatched event, not just the summary")
	)
	flag.Parse()

	logCfg := logtrace.DefaultConfig()
	if *verbose {
		logCfg.Level = logtrace.LevelDebug
	}
	logger := logtrace.NewLogger(logCfg)
	logtrace.SetDefault(logger)

	cfg, err := loadConfig(*configPath, *scenario)
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if code := run(ctx, logger, cfg, *maxTicks); code != 0 {
		os.Exit(code)
	}
}

// run builds the Simulator, starts every preloaded program, and drives it
// on a worker goroutine while the calling goroutine polls its EventLog and
// re-emits new entries through logger at debug level (shown with -v) —
// the one place in the tree a goroutine runs alongside the single-threaded
// simulation core, per the concurrency model's "ambient, not domain"
// carve-out. It recovers any panic at this top-level boundary (wrapping a
// value that is not a *tilenoc.Error in one) and logs it instead of
// crashing the process, since a fatal programmer error inside the
// simulation core is meant to abort the run, not the demo binary.
func run(ctx context.Context, logger *logtrace.Logger, cfg config.SimulationConfig, maxTicks int) (exitCode int) {
	sim := tilenoc.New(cfg)
	metrics := tilenoc.NewMetrics()
	sim.SetObserver(metrics)

	for _, pc := range cfg.Programs {
		sim.StartProgram(pc.CP, pc.Name)
	}

	type result struct {
		ticks   int
		drained bool
		err     *tilenoc.Error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if te, ok := r.(*tilenoc.Error); ok {
					resultCh <- result{err: te}
					return
				}
				resultCh <- result{err: tilenoc.NewError("RUN", tilenoc.ErrCodeUnhandledKind, fmt.Sprint(r))}
				return
			}
		}()
		ticks, drained := sim.Run(maxTicks)
		resultCh <- result{ticks: ticks, drained: drained}
	}()

	lastStreamed := 0
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			streamNewEntries(sim, logger, &lastStreamed)
			if res.err != nil {
				logger.Error("simulation aborted", "op", res.err.Op, "module", res.err.Module, "cycle", res.err.Cycle, "msg", res.err.Msg)
				return 1
			}
			logger.Info("simulation complete", "ticks", res.ticks, "drained", res.drained)
			printSummary(metrics)
			return 0
		case <-ticker.C:
			streamNewEntries(sim, logger, &lastStreamed)
		case <-ctx.Done():
			logger.Warn("interrupted, exiting without waiting for the run to finish")
			return 130
		}
	}
}

func streamNewEntries(sim *tilenoc.Simulator, logger *logtrace.Logger, lastStreamed *int) {
	entries := sim.Engine.Log.Entries()
	for _, e := range entries[*lastStreamed:] {
		logger.Debug("event", "cycle", e.Cycle, "module", e.Module, "stage", e.Stage, "kind", e.EventKind)
	}
	*lastStreamed = len(entries)
}

func printSummary(m *tilenoc.Metrics) {
	snap := m.Snapshot()
	fmt.Printf("events dispatched: %d\n", snap.EventsDispatched)
	fmt.Printf("credit retries:    %d\n", snap.CreditRetries)
	fmt.Printf("programs done:     %d\n", snap.ProgramsDone)
	for _, mod := range snap.Modules {
		fmt.Printf("  %-16s retries=%-4d avg_depth=%.2f max_depth=%d\n", mod.Module, mod.CreditRetries, mod.AvgQueueDepth, mod.MaxQueueDepth)
	}
}

func loadConfig(path, scenario string) (config.SimulationConfig, error) {
	if path != "" {
		return config.Load(path)
	}
	switch scenario {
	case "dma":
		return singleHopDMAScenario(), nil
	case "gemm":
		return tiledGEMMScenario(), nil
	default:
		return config.SimulationConfig{}, fmt.Errorf("unknown scenario %q (want \"dma\" or \"gemm\")", scenario)
	}
}

// singleHopDMAScenario is the minimal end-to-end wiring: one NPU pulls 256
// bytes from one DRAM tile across a single router hop, issued by a CP on
// its own router (each router's LOCAL port holds one tile).
func singleHopDMAScenario() config.SimulationConfig {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 3, Height: 1}
	cfg.Memories = []config.MemoryConfig{{Name: "dram0", Kind: "dram", X: 1, Y: 0}}
	cfg.NPUs = []config.NPUConfig{{Name: "npu0", X: 0, Y: 0, Memory: "dram0"}}
	cfg.CPs = []config.CPConfig{{Name: "cp0", X: 2, Y: 0}}
	cfg.Programs = []config.ProgramConfig{{
		Name: "load",
		CP:   "cp0",
		Instructions: []config.InstructionConfig{
			{Kind: "dma_in", StreamID: 1, DataSize: 256},
		},
	}}
	return cfg
}

// tiledGEMMScenario fans a DMA_IN/CMD/DMA_OUT sequence out across four
// NPU tiles sharing one IOD memory tile, modeling the stream-per-output-
// tile pattern a tiled GEMM kernel would issue against this scoreboard.
func tiledGEMMScenario() config.SimulationConfig {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 3, Height: 2}
	cfg.Memories = []config.MemoryConfig{{Name: "iod0", Kind: "iod", X: 2, Y: 0}}
	cfg.NPUs = []config.NPUConfig{
		{Name: "npu0", X: 0, Y: 0, Memory: "iod0"},
		{Name: "npu1", X: 1, Y: 0, Memory: "iod0"},
		{Name: "npu2", X: 0, Y: 1, Memory: "iod0"},
		{Name: "npu3", X: 1, Y: 1, Memory: "iod0"},
	}
	cfg.CPs = []config.CPConfig{{Name: "cp0", X: 2, Y: 1}}

	var instrs []config.InstructionConfig
	for stream := 1; stream <= 4; stream++ {
		instrs = append(instrs,
			config.InstructionConfig{Kind: "dma_in", StreamID: stream, DataSize: 4096, Eaddr: uint64(stream) * 4096},
			config.InstructionConfig{Kind: "cmd", StreamID: stream, OpcodeCycles: 64},
			config.InstructionConfig{Kind: "dma_out", StreamID: stream, DataSize: 4096, Eaddr: uint64(stream) * 4096},
		)
	}
	cfg.Programs = []config.ProgramConfig{{Name: "gemm_tile", CP: "cp0", Instructions: instrs}}
	return cfg
}
