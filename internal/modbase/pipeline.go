package modbase

import (
	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// Terminal is the next-stage sentinel a StageFunc returns to signal an item
// has exited the pipeline and should be handed to OnOutput.
const Terminal = -1

// StageFunc transitions one item at the head of a stage's FIFO: it returns
// the (possibly transformed) item, the stage it should advance to next
// (or Terminal), and whether the item must stall in place for another
// cycle.
type StageFunc func(item any) (out any, next int, stall bool)

// PipelineModule is the generic N-stage fixed-capacity FIFO skeleton used
// by simple per-item pipelines (the NPU compute pipeline, DRAM channel
// pipelines). It self-reschedules a PIPELINE_TICK event whenever any stage
// still holds work, and drains stages in reverse order each tick so
// backpressure from a full downstream stage is visible before an upstream
// stage tries to advance into it.
//
// The VC router's RC/VA/SA/ST pipeline does not use this skeleton: its
// per-(port, VC) buffers and multi-candidate arbitration don't fit a single
// FIFO per stage, so router.Router implements its own self-ticking stage
// loop directly against HardwareModule (see internal/router).
type PipelineModule struct {
	HardwareModule

	self      interfaces.Module
	numStages int
	queues    [][]any
	funcs     []StageFunc
	scheduled bool

	// OnOutput receives every item that reaches Terminal.
	OnOutput func(item any)
}

// NewPipelineModule builds a PipelineModule with numStages empty FIFOs.
// self must be the concrete module embedding this PipelineModule — it is
// used as both source and destination of the self-scheduled PIPELINE_TICK
// event, since Go has no way to recover the embedding type from within the
// embedded struct.
func NewPipelineModule(hw HardwareModule, self interfaces.Module, numStages int) *PipelineModule {
	return &PipelineModule{
		HardwareModule: hw,
		self:           self,
		numStages:      numStages,
		queues:         make([][]any, numStages),
	}
}

// SetStageFuncs installs the per-stage transition functions. len(funcs)
// must equal numStages.
func (p *PipelineModule) SetStageFuncs(funcs []StageFunc) {
	if len(funcs) != p.numStages {
		panic("modbase: stage funcs length must match num stages")
	}
	p.funcs = funcs
}

// AddData enqueues item at stage 0 if it has room, reserving one credit
// and scheduling a pipeline tick. It reports whether the item was accepted.
func (p *PipelineModule) AddData(eng *engine.Engine, item any) bool {
	return p.AddDataAtStage(eng, item, 0)
}

// AddDataAtStage enqueues item directly at an arbitrary stage, for a module
// (e.g. a DRAM model) that uses separate stages as independent channels
// rather than a single item-traversal pipeline. Grounded on the reference
// DRAM model's add_data(op, stage_idx=stage).
func (p *PipelineModule) AddDataAtStage(eng *engine.Engine, item any, stage int) bool {
	if len(p.queues[stage]) >= p.BufferCapacity() {
		return false
	}
	p.queues[stage] = append(p.queues[stage], item)
	p.ReserveCredit()
	p.schedulePipeline(eng)
	return true
}

func (p *PipelineModule) schedulePipeline(eng *engine.Engine) {
	if p.scheduled {
		return
	}
	eng.Schedule(&simevent.Event{
		Src:   p.self,
		Dst:   p.self,
		Cycle: eng.CycleOf(p.self.Name()) + 1,
		Kind:  simevent.KindPipelineTick,
	})
	p.scheduled = true
}

// HandlePipelineTick reports whether ev is a PIPELINE_TICK event and, if
// so, advances the pipeline by one cycle.
func (p *PipelineModule) HandlePipelineTick(eng *engine.Engine, ev *simevent.Event) bool {
	if ev.Kind != simevent.KindPipelineTick {
		return false
	}
	p.scheduled = false
	p.tick(eng)
	return true
}

func (p *PipelineModule) tick(eng *engine.Engine) {
	for stage := p.numStages - 1; stage >= 0; stage-- {
		if len(p.queues[stage]) == 0 {
			continue
		}
		item := p.queues[stage][0]
		out, next, stall := p.funcs[stage](item)
		if stall {
			continue
		}
		if next == Terminal {
			p.queues[stage] = p.queues[stage][1:]
			if p.OnOutput != nil {
				p.OnOutput(out)
			}
			p.ReleaseCredit()
			continue
		}
		if len(p.queues[next]) < p.BufferCapacity() {
			p.queues[stage] = p.queues[stage][1:]
			p.queues[next] = append(p.queues[next], out)
		}
		// else: downstream stage full, item stalls in place this cycle.
	}

	dataLeft := false
	for stage := 0; stage < p.numStages; stage++ {
		if len(p.queues[stage]) > 0 {
			dataLeft = true
			break
		}
	}
	if dataLeft {
		p.schedulePipeline(eng)
	}
}

// StageLen reports how many items are queued at the given stage, for tests
// and invariant checks.
func (p *PipelineModule) StageLen(stage int) int { return len(p.queues[stage]) }
