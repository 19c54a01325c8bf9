// Package tilenoc wires the mesh, NPU, memory, and control-processor
// subsystems into a runnable Simulator, and carries the ambient stack
// (structured errors, metrics, test helpers) every internal package builds
// on, grounded on go-ublk's Device as the root orchestration type.
package tilenoc

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/config"
	"github.com/accelsim/tilenoc/internal/cp"
	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/memory"
	"github.com/accelsim/tilenoc/internal/mesh"
	"github.com/accelsim/tilenoc/internal/npu"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// Simulator owns a fully wired mesh plus the NPU/memory/CP tiles attached
// to it, built from a config.SimulationConfig. It is the single entry
// point cmd/tilesim-demo (and any other caller) drives: attach or submit
// programs, then call Run.
type Simulator struct {
	Engine *engine.Engine
	Mesh   *mesh.Mesh
	Config config.SimulationConfig

	npus  map[string]*npu.NPU
	cps   map[string]*cp.CP
	mems  map[string]memory.MemoryTile
}

// New builds a Simulator from cfg: the router mesh first, then every
// memory, NPU, and CP tile attached at its configured coordinate, and finally
// any preloaded Programs submitted (but not started) against their target
// CP. A malformed reference (an NPU's Memory field naming a tile that
// isn't in cfg.Memories, a CP's NPUs list naming an unknown NPU, a program
// naming an unknown CP) is a configuration-time fatal error — the
// simulator cannot run with a dangling reference, so New panics with a
// *Error rather than deferring the failure to first dispatch.
func New(cfg config.SimulationConfig) *Simulator {
	config.FillDefaults(&cfg)
	eng := engine.New()
	ms := mesh.New(eng, cfg.Mesh.Width, cfg.Mesh.Height, cfg.Router.NumVCs, cfg.Router.BufferCapacity, cfg.Router.FrequencyMHz)

	s := &Simulator{
		Engine: eng,
		Mesh:   ms,
		Config: cfg,
		npus:   make(map[string]*npu.NPU),
		cps:    make(map[string]*cp.CP),
		mems:   make(map[string]memory.MemoryTile),
	}

	for _, mc := range cfg.Memories {
		var tile memory.MemoryTile
		switch mc.Kind {
		case "", "dram":
			tile = memory.NewDRAM(eng, mc.Name, ms.Router(mc.X, mc.Y), ms, mc.OpcodeCycles, mc.Channels, mc.BufferCapacity, mc.FrequencyMHz)
		case "iod":
			tile = memory.NewIOD(eng, mc.Name, ms.Router(mc.X, mc.Y), ms,
				mc.Stacks, mc.IODChannels, mc.BankGroups, mc.BanksPerGroup,
				mc.OpcodeCycles, mc.BufferCapacity, mc.TRP, mc.TRCD, mc.TCL, mc.FrequencyMHz)
		default:
			panic(NewError("NEW_SIMULATOR", ErrCodeConfig, fmt.Sprintf("memory %q: unknown kind %q", mc.Name, mc.Kind)))
		}
		ms.Attach(mc.Name, mc.X, mc.Y, tile)
		eng.RegisterModule(tile)
		s.mems[mc.Name] = tile
	}

	for _, nc := range cfg.NPUs {
		if _, ok := s.mems[nc.Memory]; nc.Memory != "" && !ok {
			panic(NewError("NEW_SIMULATOR", ErrCodeConfig, fmt.Sprintf("npu %q: unknown memory %q", nc.Name, nc.Memory)))
		}
		n := npu.New(eng, nc.Name, ms.Router(nc.X, nc.Y), ms, nc.Memory, nc.PipelineStages, nc.BufferCapacity, nc.TxnBytes, nc.FrequencyMHz)
		ms.Attach(nc.Name, nc.X, nc.Y, n)
		eng.RegisterModule(n)
		s.npus[nc.Name] = n
	}

	for _, cc := range cfg.CPs {
		npuNames := cc.NPUs
		if len(npuNames) == 0 {
			for _, nc := range cfg.NPUs {
				npuNames = append(npuNames, nc.Name)
			}
		}
		for _, name := range npuNames {
			if _, ok := s.npus[name]; !ok {
				panic(NewError("NEW_SIMULATOR", ErrCodeConfig, fmt.Sprintf("cp %q: unknown npu %q", cc.Name, name)))
			}
		}
		c := cp.New(eng, cc.Name, ms.Router(cc.X, cc.Y), ms, npuNames, cc.BufferCapacity, cc.FrequencyMHz)
		ms.Attach(cc.Name, cc.X, cc.Y, c)
		eng.RegisterModule(c)
		s.cps[cc.Name] = c
	}

	for _, pc := range cfg.Programs {
		c, ok := s.cps[pc.CP]
		if !ok {
			panic(NewError("NEW_SIMULATOR", ErrCodeConfig, fmt.Sprintf("program %q: unknown cp %q", pc.Name, pc.CP)))
		}
		instrs := make([]cp.Instruction, len(pc.Instructions))
		for i, ic := range pc.Instructions {
			kind, err := instructionKind(ic.Kind)
			if err != nil {
				panic(NewError("NEW_SIMULATOR", ErrCodeConfig, fmt.Sprintf("program %q instruction %d: %s", pc.Name, i, err)))
			}
			instrs[i] = cp.Instruction{
				Kind:         kind,
				StreamID:     ic.StreamID,
				DataSize:     ic.DataSize,
				OpcodeCycles: ic.OpcodeCycles,
				Eaddr:        ic.Eaddr,
				Iaddr:        ic.Iaddr,
			}
		}
		c.SubmitProgram(pc.Name, instrs)
	}

	return s
}

func instructionKind(kind string) (simevent.Kind, error) {
	switch kind {
	case "dma_in":
		return simevent.KindNPUDMAIn, nil
	case "cmd":
		return simevent.KindNPUCmd, nil
	case "dma_out":
		return simevent.KindNPUDMAOut, nil
	default:
		return "", fmt.Errorf("unknown instruction kind %q", kind)
	}
}

// SetObserver attaches a MetricsObserver (typically a *Metrics) to the
// underlying engine, so dispatch/retry/queue-depth/program-completion
// counters accumulate from this point forward.
func (s *Simulator) SetObserver(obs interfaces.MetricsObserver) {
	s.Engine.Observer = obs
}

// StartProgram starts a program previously preloaded from config.Programs
// (or submitted directly against the named *cp.CP via CP).
func (s *Simulator) StartProgram(cpName, programName string) {
	c, ok := s.cps[cpName]
	if !ok {
		panic(NewError("START_PROGRAM", ErrCodeUnknownModule, fmt.Sprintf("unknown cp %q", cpName)))
	}
	c.Start(programName)
}

// CP returns the named control processor, for direct SubmitProgram/Start
// calls or ProgramStatus polling.
func (s *Simulator) CP(name string) (*cp.CP, bool) {
	c, ok := s.cps[name]
	return c, ok
}

// NPU returns the named NPU tile.
func (s *Simulator) NPU(name string) (*npu.NPU, bool) {
	n, ok := s.npus[name]
	return n, ok
}

// Memory returns the named memory tile.
func (s *Simulator) Memory(name string) (memory.MemoryTile, bool) {
	m, ok := s.mems[name]
	return m, ok
}

// Run drives the simulation until the event queue drains or maxTicks is
// reached (tilenoc.NoMaxTicks for no bound), the direct pass-through to
// the engine's RunUntilIdle.
func (s *Simulator) Run(maxTicks int) (ticks int, drained bool) {
	return s.Engine.RunUntilIdle(maxTicks)
}
