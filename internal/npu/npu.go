// Package npu implements a compute tile: a fixed-depth compute pipeline
// plus DMA-in/DMA-out transaction splitting to a memory tile, grounded on
// original_source/sim_hw/npu.py's NPU class.
package npu

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/modbase"
	"github.com/accelsim/tilenoc/internal/router"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// Locator resolves a named tile (attached to the mesh) to its coordinate.
// *mesh.Mesh satisfies this structurally; NPU depends only on the method it
// needs, not the whole mesh package.
type Locator interface {
	Lookup(name string) (simevent.Coord, bool)
}

type dmaKey struct {
	Program  string
	StreamID int
}

// dmaState tracks one in-flight DMA_IN or DMA_OUT transfer's expected vs.
// received byte counts, keyed by (program, stream_id) exactly as the
// reference's expected_dma_reads/received_dma_reads dicts are.
type dmaState struct {
	expectedReads, receivedReads   int
	expectedWrites, receivedWrites int
	requesterName                  string
}

type cmdInfo struct {
	Program  string
	StreamID int
	Cycles   int
	DstName  string
}

type cmdState struct {
	info      cmdInfo
	remaining int
}

// NPU is a compute tile: a K-stage fixed-latency compute pipeline
// (modbase.PipelineModule with identity stage functions) plus handlers for
// the DMA_IN/CMD/DMA_OUT event triple a control processor issues to it.
type NPU struct {
	*modbase.PipelineModule

	eng        *engine.Engine
	myRouter   interfaces.Module
	locator    Locator
	memoryName string
	txnBytes   int

	dma map[dmaKey]*dmaState

	cmdQueue   []cmdInfo
	currentCmd *cmdState

	handlers map[simevent.Kind]func(*simevent.Event)
}

// New builds an NPU attached (by the caller, via mesh.Attach) to myRouter's
// LOCAL port. memoryName is the name of the single memory tile (DRAM or
// IOD) this NPU issues DMA_READ/DMA_WRITE transactions to, resolved through
// locator at send time — the Go-idiomatic replacement for the reference's
// global mesh_info["iod_coords"] lookup.
func New(eng *engine.Engine, name string, myRouter interfaces.Module, locator Locator, memoryName string, pipelineStages, bufferCapacity, txnBytes int, frequencyMHz float64) *NPU {
	n := &NPU{
		eng:        eng,
		myRouter:   myRouter,
		locator:    locator,
		memoryName: memoryName,
		txnBytes:   txnBytes,
		dma:        make(map[dmaKey]*dmaState),
	}
	n.PipelineModule = modbase.NewPipelineModule(modbase.NewHardwareModule(name, frequencyMHz, bufferCapacity), n, pipelineStages)

	funcs := make([]modbase.StageFunc, pipelineStages)
	for i := 0; i < pipelineStages; i++ {
		next := i + 1
		if next == pipelineStages {
			next = modbase.Terminal
		}
		funcs[i] = func(item any) (any, int, bool) { return item, next, false }
	}
	n.SetStageFuncs(funcs)
	n.OnOutput = n.handlePipelineOutput

	n.handlers = map[simevent.Kind]func(*simevent.Event){
		simevent.KindNPUDMAIn:     n.handleNPUDMAIn,
		simevent.KindDMAReadReply: n.handleDMAReadReply,
		simevent.KindNPUCmd:       n.handleNPUCmd,
		simevent.KindNPUDMAOut:    n.handleNPUDMAOut,
		simevent.KindWriteReply:   n.handleWriteReply,
	}
	return n
}

func (n *NPU) OnEvent(ev *simevent.Event) {
	if n.HandlePipelineTick(n.eng, ev) {
		return
	}
	if n.HandleRetry(n.eng, n, ev) {
		return
	}
	handle, ok := n.handlers[ev.Kind]
	if !ok {
		panic(fmt.Sprintf("npu %s: unhandled event kind %s", n.Name(), ev.Kind))
	}
	n.Dispatch(n.eng, 0, ev, handle, true)
}

// sendRouted fills in payload's transit RoutingHeader fields and sends it
// through myRouter, cycleOffset cycles after the next. Used for every
// outbound NPU event: DMA_READ/DMA_WRITE requests and the three *_DONE
// completion notices.
func (n *NPU) sendRouted(kind simevent.Kind, dst simevent.Coord, payload simevent.HeaderCarrier, byteSize, cycleOffset int) {
	hdr := payload.Header()
	hdr.DstCoords = dst
	hdr.InputPort = router.PortLocal
	hdr.VC = 0
	hdr.SrcName = n.Name()

	ev := &simevent.Event{
		Kind:     kind,
		Cycle:    n.eng.CycleOf(n.Name()) + 1 + uint64(cycleOffset),
		Program:  hdr.Program,
		ByteSize: byteSize,
		Payload:  payload,
	}
	n.Send(n.eng, n, n.myRouter, ev)
}

func (n *NPU) dmaStateFor(key dmaKey) *dmaState {
	st, ok := n.dma[key]
	if !ok {
		st = &dmaState{}
		n.dma[key] = st
	}
	return st
}

// chunkSizes splits total bytes into txn-sized pieces, the last one short if
// total isn't an exact multiple, mirroring _handle_npu_dma_in's transaction
// splitting loop.
func chunkSizes(total, txn int) []int {
	if total <= 0 {
		return nil
	}
	if txn <= 0 {
		return []int{total}
	}
	var sizes []int
	for remaining := total; remaining > 0; {
		size := txn
		if size > remaining {
			size = remaining
		}
		sizes = append(sizes, size)
		remaining -= size
	}
	return sizes
}

func (n *NPU) handleNPUDMAIn(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.PacketPayload)
	key := dmaKey{Program: payload.Program, StreamID: payload.StreamID}

	st := n.dmaStateFor(key)
	st.expectedReads = payload.DataSize
	st.receivedReads = 0
	st.requesterName = payload.SrcName

	if st.expectedReads <= 0 {
		n.finishDMAIn(key)
		return
	}

	coord, ok := n.locator.Lookup(n.memoryName)
	if !ok {
		panic(fmt.Sprintf("npu %s: memory tile %q is not attached to the mesh", n.Name(), n.memoryName))
	}

	eaddr, iaddr := payload.Eaddr, payload.Iaddr
	for i, size := range chunkSizes(payload.DataSize, n.txnBytes) {
		req := &simevent.DMAPayload{
			NeedReply:    true,
			OpcodeCycles: payload.OpcodeCycles,
			DataSize:     size,
			Eaddr:        eaddr,
			Iaddr:        iaddr,
		}
		req.Program = payload.Program
		req.StreamID = payload.StreamID
		n.sendRouted(simevent.KindDMARead, coord, req, size, i)
		eaddr += uint64(size)
		iaddr += uint64(size)
	}
}

func (n *NPU) handleDMAReadReply(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.ReplyPayload)
	key := dmaKey{Program: payload.Program, StreamID: payload.StreamID}
	st, ok := n.dma[key]
	if !ok {
		return // late or already-completed reply: absorbed silently
	}
	st.receivedReads += payload.DataSize
	if st.receivedReads >= st.expectedReads {
		n.finishDMAIn(key)
	}
}

func (n *NPU) finishDMAIn(key dmaKey) {
	st, ok := n.dma[key]
	if !ok {
		return
	}
	coord, ok := n.locator.Lookup(st.requesterName)
	if ok {
		done := &simevent.DonePayload{NPUName: n.Name()}
		done.Program = key.Program
		done.StreamID = key.StreamID
		n.sendRouted(simevent.KindNPUDMAInDone, coord, done, 0, 0)
	}
	delete(n.dma, key)
}

func (n *NPU) handleNPUDMAOut(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.PacketPayload)
	key := dmaKey{Program: payload.Program, StreamID: payload.StreamID}

	st := n.dmaStateFor(key)
	st.expectedWrites = payload.DataSize
	st.receivedWrites = 0
	st.requesterName = payload.SrcName

	if st.expectedWrites <= 0 {
		n.finishDMAOut(key)
		return
	}

	coord, ok := n.locator.Lookup(n.memoryName)
	if !ok {
		panic(fmt.Sprintf("npu %s: memory tile %q is not attached to the mesh", n.Name(), n.memoryName))
	}

	eaddr, iaddr := payload.Eaddr, payload.Iaddr
	for i, size := range chunkSizes(payload.DataSize, n.txnBytes) {
		req := &simevent.DMAPayload{
			NeedReply:    true,
			OpcodeCycles: payload.OpcodeCycles,
			DataSize:     size,
			Eaddr:        eaddr,
			Iaddr:        iaddr,
		}
		req.Program = payload.Program
		req.StreamID = payload.StreamID
		n.sendRouted(simevent.KindDMAWrite, coord, req, size, i)
		eaddr += uint64(size)
		iaddr += uint64(size)
	}
}

func (n *NPU) handleWriteReply(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.ReplyPayload)
	key := dmaKey{Program: payload.Program, StreamID: payload.StreamID}
	st, ok := n.dma[key]
	if !ok {
		return
	}
	st.receivedWrites += payload.DataSize
	if st.receivedWrites >= st.expectedWrites {
		n.finishDMAOut(key)
	}
}

func (n *NPU) finishDMAOut(key dmaKey) {
	st, ok := n.dma[key]
	if !ok {
		return
	}
	coord, ok := n.locator.Lookup(st.requesterName)
	if ok {
		done := &simevent.DonePayload{NPUName: n.Name()}
		done.Program = key.Program
		done.StreamID = key.StreamID
		n.sendRouted(simevent.KindNPUDMAOutDone, coord, done, 0, 0)
	}
	delete(n.dma, key)
}

func (n *NPU) handleNPUCmd(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.PacketPayload)
	n.cmdQueue = append(n.cmdQueue, cmdInfo{
		Program:  payload.Program,
		StreamID: payload.StreamID,
		Cycles:   payload.OpcodeCycles,
		DstName:  payload.SrcName,
	})
	n.startNextCmd()
}

// startNextCmd pops the next queued command and injects one pipeline token
// per remaining cycle, so the last of those tokens to exit the K-stage
// pipeline marks the command's completion — a command's total latency is therefore
// cycles-to-fill-the-pipeline plus its own cycle count, one result per
// cycle once the pipeline is warm.
//
// If the requested cycle count exceeds the pipeline's input buffer
// capacity, only as many tokens as fit are injected; remaining is sized to
// the number actually accepted rather than the requested count, so the
// command still completes (the reference's unconditional remaining =
// cycles would otherwise wait forever for tokens that were silently
// dropped at admission). A zero-or-negative cycle count completes the
// command immediately without touching the pipeline at all.
func (n *NPU) startNextCmd() {
	if n.currentCmd != nil || len(n.cmdQueue) == 0 {
		return
	}
	info := n.cmdQueue[0]
	n.cmdQueue = n.cmdQueue[1:]

	if info.Cycles <= 0 {
		n.currentCmd = &cmdState{info: info, remaining: 0}
		n.completeCurrentCmd()
		return
	}

	accepted := 0
	for i := 0; i < info.Cycles; i++ {
		if !n.AddData(n.eng, struct{}{}) {
			break
		}
		accepted++
	}
	if accepted == 0 {
		accepted = 1
	}
	n.currentCmd = &cmdState{info: info, remaining: accepted}
}

func (n *NPU) handlePipelineOutput(item any) {
	if n.currentCmd == nil {
		return
	}
	n.currentCmd.remaining--
	if n.currentCmd.remaining > 0 {
		return
	}
	n.completeCurrentCmd()
}

func (n *NPU) completeCurrentCmd() {
	info := n.currentCmd.info
	n.currentCmd = nil

	coord, ok := n.locator.Lookup(info.DstName)
	if ok {
		done := &simevent.DonePayload{NPUName: n.Name()}
		done.Program = info.Program
		done.StreamID = info.StreamID
		n.sendRouted(simevent.KindNPUCmdDone, coord, done, 0, 0)
	}
	n.startNextCmd()
}
