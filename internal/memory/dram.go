package memory

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/modbase"
	"github.com/accelsim/tilenoc/internal/router"
	"github.com/accelsim/tilenoc/internal/simevent"
)

type dramOp struct {
	kind      simevent.Kind
	program   string
	streamID  int
	dstName   string
	dataSize  int
	remaining int
}

// DRAM is the simple memory model: numChannels independent channels, each a
// single pipeline stage that counts down one op's remaining cycles in place
// before handing it to handleOutput, so two requests on different channels
// progress in the same cycle while two on the same channel serialize.
// Grounded directly on sim_hw/dram.py's DRAM class, generalized from its
// fixed two-channel (one read, one write) split to a configurable channel
// count with round-robin assignment, per the data model's "DRAM maintains N
// independent channel queues."
type DRAM struct {
	*modbase.PipelineModule

	eng      *engine.Engine
	myRouter interfaces.Module
	locator  Locator
	latency  int

	numChannels int
	perProgram  map[string]int
	globalNext  int
}

// NewDRAM builds a DRAM tile with numChannels independent channels, each
// request paying the given default per-op latency (used when a request
// omits OpcodeCycles) and each channel holding up to bufferCapacity
// in-flight ops, clocked at frequencyMHz.
func NewDRAM(eng *engine.Engine, name string, myRouter interfaces.Module, locator Locator, latency, numChannels, bufferCapacity int, frequencyMHz float64) *DRAM {
	d := &DRAM{
		eng:         eng,
		myRouter:    myRouter,
		locator:     locator,
		latency:     latency,
		numChannels: numChannels,
		perProgram:  make(map[string]int),
	}
	d.PipelineModule = modbase.NewPipelineModule(modbase.NewHardwareModule(name, frequencyMHz, bufferCapacity), d, numChannels)

	funcs := make([]modbase.StageFunc, numChannels)
	for ch := 0; ch < numChannels; ch++ {
		funcs[ch] = d.stageFunc(ch)
	}
	d.SetStageFuncs(funcs)
	d.OnOutput = d.handleOutput
	return d
}

func (d *DRAM) stageFunc(stage int) modbase.StageFunc {
	return func(item any) (any, int, bool) {
		op := item.(*dramOp)
		op.remaining--
		if op.remaining > 0 {
			return op, stage, true
		}
		return op, modbase.Terminal, false
	}
}

func (d *DRAM) OnEvent(ev *simevent.Event) {
	if d.HandlePipelineTick(d.eng, ev) {
		return
	}
	if d.HandleRetry(d.eng, d, ev) {
		return
	}
	switch ev.Kind {
	case simevent.KindDMARead, simevent.KindDMAWrite:
		d.Dispatch(d.eng, 0, ev, d.handleDMA, true)
	default:
		panic(fmt.Sprintf("dram %s: unhandled event kind %s", d.Name(), ev.Kind))
	}
}

// nextChannel assigns a channel by round robin, scoped to program when one
// is named and falling back to one global rotation otherwise, per the
// channel selection policy in the memory subsystem's data model.
func (d *DRAM) nextChannel(program string) int {
	if program != "" {
		ch := d.perProgram[program] % d.numChannels
		d.perProgram[program] = ch + 1
		return ch
	}
	ch := d.globalNext % d.numChannels
	d.globalNext = ch + 1
	return ch
}

func (d *DRAM) handleDMA(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.DMAPayload)
	op := &dramOp{
		kind:      ev.Kind,
		program:   payload.Program,
		streamID:  payload.StreamID,
		dataSize:  payload.DataSize,
		remaining: payload.OpcodeCycles,
	}
	if op.remaining <= 0 {
		op.remaining = d.latency
	}
	if payload.NeedReply {
		op.dstName = payload.SrcName
	}

	d.AddDataAtStage(d.eng, op, d.nextChannel(payload.Program))
}

// handleOutput replies with the op's actual chunk size rather than the
// reference's fixed 4-byte placeholder acknowledgement (data_size=4 on the
// reply Event, unrelated to the request's real transfer size) — an NPU's
// DMA completion tracking sums ReplyPayload.DataSize across replies to
// detect when a whole multi-chunk transfer has landed, so a memory tile's
// reply must carry the real chunk size to be interchangeable with IOD's.
func (d *DRAM) handleOutput(item any) {
	op := item.(*dramOp)
	if op.dstName == "" {
		return
	}
	coord, ok := d.locator.Lookup(op.dstName)
	if !ok {
		return
	}
	replyKind := simevent.KindDMAReadReply
	if op.kind == simevent.KindDMAWrite {
		replyKind = simevent.KindWriteReply
	}

	reply := &simevent.ReplyPayload{DataSize: op.dataSize}
	reply.DstCoords = coord
	reply.InputPort = router.PortLocal
	reply.VC = 0
	reply.Program = op.program
	reply.StreamID = op.streamID
	reply.SrcName = d.Name()

	d.Send(d.eng, d, d.myRouter, &simevent.Event{
		Kind:     replyKind,
		Cycle:    d.eng.CycleOf(d.Name()) + 1,
		Program:  op.program,
		ByteSize: op.dataSize,
		Payload:  reply,
	})
}
