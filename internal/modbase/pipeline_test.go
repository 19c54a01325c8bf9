package modbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// fixedLatencyModule is a minimal PipelineModule user: a K-stage pipeline
// where each stage simply forwards its item, modeling "K cycles fixed
// latency" the way the NPU compute pipeline and DRAM channel pipelines do.
type fixedLatencyModule struct {
	*PipelineModule
	eng     *engine.Engine
	outputs []any
}

func newFixedLatencyModule(eng *engine.Engine, name string, stages, capacity int) *fixedLatencyModule {
	m := &fixedLatencyModule{eng: eng}
	m.PipelineModule = NewPipelineModule(NewHardwareModule(name, 1000, capacity), m, stages)
	funcs := make([]StageFunc, stages)
	for i := 0; i < stages; i++ {
		next := i + 1
		if next == stages {
			next = Terminal
		}
		funcs[i] = func(item any) (any, int, bool) { return item, next, false }
	}
	m.SetStageFuncs(funcs)
	m.OnOutput = func(item any) { m.outputs = append(m.outputs, item) }
	return m
}

func (m *fixedLatencyModule) OnEvent(ev *simevent.Event) {
	m.HandlePipelineTick(m.eng, ev)
}

func TestPipelineAdvancesOneStagePerTick(t *testing.T) {
	eng := engine.New()
	m := newFixedLatencyModule(eng, "pipe", 3, 4)
	eng.RegisterModule(m)

	ok := m.AddData(eng, "tok")
	require.True(t, ok)
	assert.Equal(t, 1, m.StageLen(0))

	for i := 0; i < 3; i++ {
		eng.RunUntilIdle(1)
	}

	require.Len(t, m.outputs, 1)
	assert.Equal(t, "tok", m.outputs[0])
	assert.Equal(t, 0, m.StageLen(0))
}

func TestPipelineBackpressureStallsUpstreamStage(t *testing.T) {
	eng := engine.New()
	m := newFixedLatencyModule(eng, "pipe2", 2, 1)
	eng.RegisterModule(m)

	// Stage 1 always stalls once occupied, so once it holds an item,
	// stage 0 cannot advance a second item into it.
	blocked := []StageFunc{
		func(item any) (any, int, bool) { return item, 1, false },
		func(item any) (any, int, bool) { return item, Terminal, true },
	}
	m.SetStageFuncs(blocked)

	require.True(t, m.AddData(eng, "a"))
	eng.RunUntilIdle(1) // "a" advances from stage 0 into stage 1.
	require.Equal(t, 0, m.StageLen(0))
	require.Equal(t, 1, m.StageLen(1))

	require.True(t, m.AddData(eng, "b"))
	eng.RunUntilIdle(1) // stage 1 is full and permanently stalled; "b" can't enter it.

	assert.Equal(t, 1, m.StageLen(0))
	assert.Equal(t, 1, m.StageLen(1))
	assert.Empty(t, m.outputs)
}
