package npu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/mesh"
	"github.com/accelsim/tilenoc/internal/modbase"
	"github.com/accelsim/tilenoc/internal/router"
	"github.com/accelsim/tilenoc/internal/simevent"
)

type recordingModule struct {
	modbase.HardwareModule
	received []*simevent.Event
}

func newRecordingModule(name string, capacity int) *recordingModule {
	return &recordingModule{HardwareModule: modbase.NewHardwareModule(name, 1000, capacity)}
}

func (m *recordingModule) OnEvent(ev *simevent.Event) {
	if m.HandleRetry(nil, m, ev) {
		return
	}
	m.received = append(m.received, ev)
	m.ReleaseCredit()
}

// replyingMemory stands in for a memory tile: it records every DMA_READ/
// DMA_WRITE it receives and immediately replies with the matching
// DMA_READ_REPLY/WRITE_REPLY, routed back to the requester named in the
// payload's SrcName field.
type replyingMemory struct {
	modbase.HardwareModule
	eng        *engine.Engine
	selfRouter interfaces.Module
	locator    Locator
	received   []*simevent.Event
}

func newReplyingMemory(eng *engine.Engine, name string, selfRouter interfaces.Module, locator Locator, capacity int) *replyingMemory {
	return &replyingMemory{
		HardwareModule: modbase.NewHardwareModule(name, 1000, capacity),
		eng:            eng,
		selfRouter:     selfRouter,
		locator:        locator,
	}
}

func (m *replyingMemory) OnEvent(ev *simevent.Event) {
	if m.HandleRetry(m.eng, m, ev) {
		return
	}
	m.received = append(m.received, ev)
	m.ReleaseCredit()

	payload, ok := ev.Payload.(*simevent.DMAPayload)
	if !ok {
		return
	}
	var replyKind simevent.Kind
	switch ev.Kind {
	case simevent.KindDMARead:
		replyKind = simevent.KindDMAReadReply
	case simevent.KindDMAWrite:
		replyKind = simevent.KindWriteReply
	default:
		return
	}

	coord, ok := m.locator.Lookup(payload.SrcName)
	if !ok {
		return
	}
	reply := &simevent.ReplyPayload{DataSize: payload.DataSize}
	reply.DstCoords = coord
	reply.InputPort = router.PortLocal
	reply.VC = 0
	reply.Program = payload.Program
	reply.StreamID = payload.StreamID
	reply.SrcName = m.Name()

	m.Send(m.eng, m, m.selfRouter, &simevent.Event{
		Kind:    replyKind,
		Cycle:   m.eng.CycleOf(m.Name()) + 1,
		Program: payload.Program,
		Payload: reply,
	})
}

func TestNPUCmdCompletesAfterPipelineLatency(t *testing.T) {
	eng := engine.New()
	ms := mesh.New(eng, 2, 1, 2, 4, 1000)

	cp := newRecordingModule("cp_0_0", 4)
	ms.Attach("cp_0_0", 0, 0, cp)
	eng.RegisterModule(cp)

	n := New(eng, "npu_1_0", ms.Router(1, 0), ms, "iod", 3, 4, 128, 1000)
	ms.Attach("npu_1_0", 1, 0, n)
	eng.RegisterModule(n)

	cmdEv := &simevent.Event{
		Kind: simevent.KindNPUCmd,
		Payload: &simevent.PacketPayload{
			RoutingHeader: simevent.RoutingHeader{
				DstCoords: simevent.Coord{X: 1, Y: 0},
				SrcName:   "cp_0_0",
				Program:   "prog",
				StreamID:  1,
			},
			OpcodeCycles: 3,
		},
	}
	cp.Send(eng, cp, ms.Router(0, 0), cmdEv)

	_, drained := eng.RunUntilIdle(200)
	require.True(t, drained)

	require.Len(t, cp.received, 1)
	done := cp.received[0]
	assert.Equal(t, simevent.KindNPUCmdDone, done.Kind)
	payload := done.Payload.(*simevent.DonePayload)
	assert.Equal(t, "prog", payload.Program)
	assert.Equal(t, 1, payload.StreamID)
}

func TestNPUZeroCycleCmdCompletesWithoutEnteringPipeline(t *testing.T) {
	eng := engine.New()
	ms := mesh.New(eng, 2, 1, 2, 4, 1000)

	cp := newRecordingModule("cp_0_0", 4)
	ms.Attach("cp_0_0", 0, 0, cp)
	eng.RegisterModule(cp)

	n := New(eng, "npu_1_0", ms.Router(1, 0), ms, "iod", 3, 4, 128, 1000)
	ms.Attach("npu_1_0", 1, 0, n)
	eng.RegisterModule(n)

	cmdEv := &simevent.Event{
		Kind: simevent.KindNPUCmd,
		Payload: &simevent.PacketPayload{
			RoutingHeader: simevent.RoutingHeader{DstCoords: simevent.Coord{X: 1, Y: 0}, SrcName: "cp_0_0", Program: "prog", StreamID: 2},
			OpcodeCycles:  0,
		},
	}
	cp.Send(eng, cp, ms.Router(0, 0), cmdEv)

	_, drained := eng.RunUntilIdle(50)
	require.True(t, drained)
	require.Len(t, cp.received, 1)
	assert.Equal(t, simevent.KindNPUCmdDone, cp.received[0].Kind)
	assert.Equal(t, 0, n.StageLen(0))
}

func TestNPUDMAInChunksAndCompletesAfterAllReplies(t *testing.T) {
	eng := engine.New()
	ms := mesh.New(eng, 3, 1, 2, 8, 1000)

	cp := newRecordingModule("cp_0_0", 4)
	ms.Attach("cp_0_0", 0, 0, cp)
	eng.RegisterModule(cp)

	mem := newReplyingMemory(eng, "iod", ms.Router(2, 0), ms, 8)
	ms.Attach("iod", 2, 0, mem)
	eng.RegisterModule(mem)

	n := New(eng, "npu_1_0", ms.Router(1, 0), ms, "iod", 3, 8, 128, 1000)
	ms.Attach("npu_1_0", 1, 0, n)
	eng.RegisterModule(n)

	dmaIn := &simevent.Event{
		Kind: simevent.KindNPUDMAIn,
		Payload: &simevent.PacketPayload{
			RoutingHeader: simevent.RoutingHeader{DstCoords: simevent.Coord{X: 1, Y: 0}, SrcName: "cp_0_0", Program: "prog", StreamID: 7},
			DataSize:      300,
			OpcodeCycles:  42,
		},
	}
	cp.Send(eng, cp, ms.Router(0, 0), dmaIn)

	_, drained := eng.RunUntilIdle(500)
	require.True(t, drained)

	require.Len(t, mem.received, 3) // 128 + 128 + 44 byte chunks
	for _, ev := range mem.received {
		req := ev.Payload.(*simevent.DMAPayload)
		assert.Equal(t, 42, req.OpcodeCycles, "dma_in_opcode_cycles from NPU_DMA_IN must carry through to DMA_READ")
	}
	require.Len(t, cp.received, 1)
	done := cp.received[0]
	assert.Equal(t, simevent.KindNPUDMAInDone, done.Kind)
	payload := done.Payload.(*simevent.DonePayload)
	assert.Equal(t, "prog", payload.Program)
	assert.Equal(t, 7, payload.StreamID)
}

func TestNPUDMAOutChunksAndForwardsOpcodeCycles(t *testing.T) {
	eng := engine.New()
	ms := mesh.New(eng, 3, 1, 2, 8, 1000)

	cp := newRecordingModule("cp_0_0", 4)
	ms.Attach("cp_0_0", 0, 0, cp)
	eng.RegisterModule(cp)

	mem := newReplyingMemory(eng, "iod", ms.Router(2, 0), ms, 8)
	ms.Attach("iod", 2, 0, mem)
	eng.RegisterModule(mem)

	n := New(eng, "npu_1_0", ms.Router(1, 0), ms, "iod", 3, 8, 128, 1000)
	ms.Attach("npu_1_0", 1, 0, n)
	eng.RegisterModule(n)

	dmaOut := &simevent.Event{
		Kind: simevent.KindNPUDMAOut,
		Payload: &simevent.PacketPayload{
			RoutingHeader: simevent.RoutingHeader{DstCoords: simevent.Coord{X: 1, Y: 0}, SrcName: "cp_0_0", Program: "prog", StreamID: 9},
			DataSize:      200,
			OpcodeCycles:  7,
		},
	}
	cp.Send(eng, cp, ms.Router(0, 0), dmaOut)

	_, drained := eng.RunUntilIdle(500)
	require.True(t, drained)

	require.Len(t, mem.received, 2) // 128 + 72 byte chunks
	for _, ev := range mem.received {
		req := ev.Payload.(*simevent.DMAPayload)
		assert.Equal(t, 7, req.OpcodeCycles, "dma_out_opcode_cycles from NPU_DMA_OUT must carry through to DMA_WRITE")
	}
	require.Len(t, cp.received, 1)
	done := cp.received[0]
	assert.Equal(t, simevent.KindNPUDMAOutDone, done.Kind)
	payload := done.Payload.(*simevent.DonePayload)
	assert.Equal(t, "prog", payload.Program)
	assert.Equal(t, 9, payload.StreamID)
}

func TestChunkSizesSplitsRemainderIntoShortLastChunk(t *testing.T) {
	assert.Equal(t, []int{128, 128, 44}, chunkSizes(300, 128))
	assert.Equal(t, []int{128}, chunkSizes(128, 128))
	assert.Nil(t, chunkSizes(0, 128))
}
