package tilenoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelsim/tilenoc/internal/config"
	"github.com/accelsim/tilenoc/internal/cp"
	"github.com/accelsim/tilenoc/internal/simevent"
)

func TestNewWiresMeshNPUMemoryAndCP(t *testing.T) {
	sim := NewTestSimulator(t,
		WithTestNPU("npu0", 0, 0, "dram_test"),
		WithTestCP("cp0", 1, 0),
	)

	_, ok := sim.Memory("dram_test")
	require.True(t, ok)
	_, ok = sim.NPU("npu0")
	require.True(t, ok)
	_, ok = sim.CP("cp0")
	require.True(t, ok)

	_, ok = sim.NPU("no-such-npu")
	assert.False(t, ok)
}

func TestNewPanicsOnUnknownNPUMemory(t *testing.T) {
	assert.Panics(t, func() {
		NewTestSimulator(t, WithTestNPU("npu0", 0, 0, "missing_memory"))
	})
}

func TestNewPanicsOnUnknownCPNPU(t *testing.T) {
	assert.Panics(t, func() {
		NewTestSimulator(t, WithTestCP("cp0", 0, 0, "no-such-npu"))
	})
}

func TestNewDefaultsCPToEveryNPU(t *testing.T) {
	sim := NewTestSimulator(t,
		WithTestMesh(3, 1),
		WithTestNPU("npu0", 0, 0, "dram_test"),
		WithTestCP("cp0", 2, 0),
	)
	c, ok := sim.CP("cp0")
	require.True(t, ok)

	// cp0 lists no NPUs, so it fans out to npu0; the CMD entry can only
	// retire after npu0 has received it and replied NPU_CMD_DONE.
	c.SubmitProgram("cmd", []cp.Instruction{
		{Kind: simevent.KindNPUCmd, StreamID: 1, OpcodeCycles: 2},
	})
	c.Start("cmd")
	sim.Run(NoMaxTicks)
	commit, done, ok := c.ProgramStatus("cmd")
	assert.True(t, ok)
	assert.True(t, done)
	assert.Equal(t, 1, commit)
}

func TestNewPreloadsProgramsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 2, Height: 1}
	cfg.Memories = []config.MemoryConfig{{Name: "dram0", Kind: "dram", X: 1, Y: 0}}
	cfg.NPUs = []config.NPUConfig{{Name: "npu0", X: 0, Y: 0, Memory: "dram0"}}
	cfg.CPs = []config.CPConfig{{Name: "cp0", X: 0, Y: 0}}
	cfg.Programs = []config.ProgramConfig{{
		Name: "load",
		CP:   "cp0",
		Instructions: []config.InstructionConfig{
			{Kind: "dma_in", StreamID: 1, DataSize: 256},
		},
	}}

	sim := New(cfg)
	c, ok := sim.CP("cp0")
	require.True(t, ok)

	_, _, ok = c.ProgramStatus("load")
	assert.True(t, ok)
}

func TestNewPanicsOnUnknownProgramCP(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 1, Height: 1}
	cfg.Programs = []config.ProgramConfig{{Name: "orphan", CP: "no-such-cp"}}

	assert.Panics(t, func() {
		New(cfg)
	})
}

func TestNewPanicsOnUnknownInstructionKind(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 1, Height: 1}
	cfg.CPs = []config.CPConfig{{Name: "cp0", X: 0, Y: 0}}
	cfg.Programs = []config.ProgramConfig{{
		Name:         "bad",
		CP:           "cp0",
		Instructions: []config.InstructionConfig{{Kind: "frobnicate"}},
	}}

	assert.Panics(t, func() {
		New(cfg)
	})
}

func TestNewPanicsOnUnknownMemoryKind(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 1, Height: 1}
	cfg.Memories = []config.MemoryConfig{{Name: "weird", Kind: "nvme", X: 0, Y: 0}}

	assert.Panics(t, func() {
		New(cfg)
	})
}

func TestStartProgramPanicsOnUnknownCP(t *testing.T) {
	sim := NewTestSimulator(t)
	assert.Panics(t, func() {
		sim.StartProgram("no-such-cp", "load")
	})
}

func TestSetObserverReceivesDispatchAndProgramDoneEvents(t *testing.T) {
	sim := NewTestSimulator(t,
		WithTestMesh(3, 1),
		WithTestNPU("npu0", 0, 0, "dram_test"),
		WithTestCP("cp0", 2, 0),
	)
	m := NewMetrics()
	sim.SetObserver(m)

	c, ok := sim.CP("cp0")
	require.True(t, ok)
	c.SubmitProgram("load", []cp.Instruction{
		{Kind: simevent.KindNPUDMAIn, StreamID: 1, DataSize: 256},
	})
	sim.StartProgram("cp0", "load")
	sim.Run(NoMaxTicks)

	snap := m.Snapshot()
	assert.Greater(t, snap.EventsDispatched, uint64(0))
	assert.Equal(t, uint64(1), snap.ProgramsDone)
}

func TestNewThreadsPerTileFrequencyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 2, Height: 1}
	cfg.Router.FrequencyMHz = 2000
	cfg.Memories = []config.MemoryConfig{{Name: "dram0", Kind: "dram", X: 1, Y: 0, FrequencyMHz: 1500}}
	cfg.NPUs = []config.NPUConfig{{Name: "npu0", X: 0, Y: 0, Memory: "dram0", FrequencyMHz: 1000}}
	cfg.CPs = []config.CPConfig{{Name: "cp0", X: 0, Y: 0, FrequencyMHz: 500}}

	sim := New(cfg)

	n, ok := sim.NPU("npu0")
	require.True(t, ok)
	assert.Equal(t, 1000.0, n.Frequency())

	c, ok := sim.CP("cp0")
	require.True(t, ok)
	assert.Equal(t, 500.0, c.Frequency())

	m, ok := sim.Memory("dram0")
	require.True(t, ok)
	assert.Equal(t, 1500.0, m.Frequency())

	assert.Equal(t, 2000.0, sim.Mesh.Router(0, 0).Frequency())
}

func TestRunDrainsAnIdleMesh(t *testing.T) {
	sim := NewTestSimulator(t)
	ticks, drained := sim.Run(1000)
	assert.True(t, drained)
	assert.GreaterOrEqual(t, ticks, 0)
}

func TestInstructionKindTranslatesKnownKinds(t *testing.T) {
	k, err := instructionKind("dma_in")
	require.NoError(t, err)
	assert.Equal(t, simevent.KindNPUDMAIn, k)

	k, err = instructionKind("cmd")
	require.NoError(t, err)
	assert.Equal(t, simevent.KindNPUCmd, k)

	k, err = instructionKind("dma_out")
	require.NoError(t, err)
	assert.Equal(t, simevent.KindNPUDMAOut, k)

	_, err = instructionKind("bogus")
	assert.Error(t, err)
}
