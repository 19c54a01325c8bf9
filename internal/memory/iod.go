package memory

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/constants"
	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/modbase"
	"github.com/accelsim/tilenoc/internal/router"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// bank models one DRAM bank's open-row state: a hit on the active row
// costs only tCL + burst cycles, a miss pays the full
// precharge/activate/read sequence and leaves the new row open.
type bank struct {
	activeRow      int
	trp, trcd, tcl int
}

func newBank(trp, trcd, tcl int) *bank {
	return &bank{activeRow: -1, trp: trp, trcd: trcd, tcl: tcl}
}

func (b *bank) access(row, bursts int) int {
	if b.activeRow == row {
		return b.tcl + bursts
	}
	b.activeRow = row
	return b.trp + b.trcd + b.tcl + bursts
}

type bankGroup struct {
	banks []*bank
}

func newBankGroup(banksPerGroup, trp, trcd, tcl int) *bankGroup {
	g := &bankGroup{banks: make([]*bank, banksPerGroup)}
	for i := range g.banks {
		g.banks[i] = newBank(trp, trcd, tcl)
	}
	return g
}

func (g *bankGroup) access(bankIdx, row, bursts int) int {
	return g.banks[bankIdx].access(row, bursts)
}

type hbmChannel struct {
	bankGroups []*bankGroup
}

func newHBMChannel(bankGroups, banksPerGroup, trp, trcd, tcl int) *hbmChannel {
	c := &hbmChannel{bankGroups: make([]*bankGroup, bankGroups)}
	for i := range c.bankGroups {
		c.bankGroups[i] = newBankGroup(banksPerGroup, trp, trcd, tcl)
	}
	return c
}

func (c *hbmChannel) access(bg, bankIdx, row, bursts int) int {
	return c.bankGroups[bg].access(bankIdx, row, bursts)
}

type hbmStack struct {
	channels []*hbmChannel
}

func newHBMStack(channels, bankGroups, banksPerGroup, trp, trcd, tcl int) *hbmStack {
	s := &hbmStack{channels: make([]*hbmChannel, channels)}
	for i := range s.channels {
		s.channels[i] = newHBMChannel(bankGroups, banksPerGroup, trp, trcd, tcl)
	}
	return s
}

func (s *hbmStack) access(ch, bg, bankIdx, row, bursts int) int {
	return s.channels[ch].access(bg, bankIdx, row, bursts)
}

type eaddrFields struct {
	stack, channel, bankGroup, bank, row int
}

// decodeEaddr splits an external address into its stack/channel/bank-group/
// bank/row fields per the bit layout in internal/constants.
func decodeEaddr(addr uint64) eaddrFields {
	mask := func(bits int) uint64 { return (1 << uint(bits)) - 1 }
	return eaddrFields{
		stack:     int((addr >> constants.IODStackShift) & mask(constants.IODStackBits)),
		channel:   int((addr >> constants.IODChannelShift) & mask(constants.IODChannelBits)),
		bankGroup: int((addr >> constants.IODBankGroupShift) & mask(constants.IODBankGroupBits)),
		bank:      int((addr >> constants.IODBankShift) & mask(constants.IODBankBits)),
		row:       int((addr >> constants.IODRowShift) & mask(constants.IODRowBits)),
	}
}

type iodOp struct {
	kind      simevent.Kind
	program   string
	streamID  int
	dstName   string
	channel   int
	addr      uint64
	dataSize  int
	remaining int
	started   bool
}

// IOD is the detailed memory model: a DMA access is chunked at 2 KiB row
// boundaries and routed to a per-(stack, channel) memory-controller queue,
// each ticked by a self-scheduled IOD_MC event that charges open-row bank
// timing (tRP/tRCD/tCL) on the first tick of an op and otherwise just
// counts down a fixed per-op pipeline latency, grounded directly on
// sim_hw/iod.py's IOD class.
//
// Unlike DRAM and NPU, IOD embeds modbase.HardwareModule directly rather
// than modbase.PipelineModule: the reference's IOD constructs a
// PipelineModule base (for the HardwareModule credit/frequency machinery)
// but never calls add_data — every real access goes through mc_queues and
// IOD_MC self-events instead of the generic stage/queue traversal, so
// there is no pipeline skeleton here to reuse.
type IOD struct {
	modbase.HardwareModule

	eng      *engine.Engine
	myRouter interfaces.Module
	locator  Locator

	numStacks        int
	channelsPerStack int
	pipelineLatency  int
	stacks           []*hbmStack

	mcQueues [][][]*iodOp
	mcSched  [][]bool
}

// NewIOD builds an IOD tile with numStacks stacks, channelsPerStack
// channels per stack, bankGroups bank groups per channel, and
// banksPerGroup banks per group, each bank timed by trp/trcd/tcl. Every op
// pays an extra pipelineLatency cycles on top of its bank-access delay.
// The tile is clocked at frequencyMHz.
func NewIOD(eng *engine.Engine, name string, myRouter interfaces.Module, locator Locator, numStacks, channelsPerStack, bankGroups, banksPerGroup, pipelineLatency, bufferCapacity, trp, trcd, tcl int, frequencyMHz float64) *IOD {
	io := &IOD{
		HardwareModule:   modbase.NewHardwareModule(name, frequencyMHz, bufferCapacity),
		eng:              eng,
		myRouter:         myRouter,
		locator:          locator,
		numStacks:        numStacks,
		channelsPerStack: channelsPerStack,
		pipelineLatency:  pipelineLatency,
		stacks:           make([]*hbmStack, numStacks),
		mcQueues:         make([][][]*iodOp, numStacks),
		mcSched:          make([][]bool, numStacks),
	}
	for s := 0; s < numStacks; s++ {
		io.stacks[s] = newHBMStack(channelsPerStack, bankGroups, banksPerGroup, trp, trcd, tcl)
		io.mcQueues[s] = make([][]*iodOp, channelsPerStack)
		io.mcSched[s] = make([]bool, channelsPerStack)
	}
	return io
}

func (io *IOD) OnEvent(ev *simevent.Event) {
	if io.HandleRetry(io.eng, io, ev) {
		return
	}
	switch ev.Kind {
	case simevent.KindDMARead, simevent.KindDMAWrite:
		io.Dispatch(io.eng, 0, ev, io.handleDMAAccess, true)
	case simevent.KindIODMC:
		io.Dispatch(io.eng, 0, ev, io.handleMC, false)
	default:
		panic(fmt.Sprintf("iod %s: unhandled event kind %s", io.Name(), ev.Kind))
	}
}

// handleDMAAccess splits a request into row-boundary-aligned chunks,
// queues one op per chunk on its (stack, channel) memory controller, and
// kicks off that controller's IOD_MC self-tick if it is idle.
func (io *IOD) handleDMAAccess(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.DMAPayload)
	size := payload.DataSize
	addr := payload.Eaddr

	for size > 0 {
		boundary := ((addr / constants.IODRowSizeBytes) + 1) * constants.IODRowSizeBytes
		chunk := size
		if remain := int(boundary - addr); remain < chunk {
			chunk = remain
		}

		fields := decodeEaddr(addr)
		st := fields.stack % io.numStacks
		ch := fields.channel % io.channelsPerStack

		op := &iodOp{
			kind:     ev.Kind,
			program:  payload.Program,
			streamID: payload.StreamID,
			channel:  ch,
			addr:     addr,
			dataSize: chunk,
		}
		if payload.NeedReply {
			op.dstName = payload.SrcName
		}
		io.mcQueues[st][ch] = append(io.mcQueues[st][ch], op)
		io.scheduleMC(st, ch)

		addr += uint64(chunk)
		size -= chunk
	}
}

func (io *IOD) scheduleMC(st, ch int) {
	if io.mcSched[st][ch] {
		return
	}
	io.eng.Schedule(&simevent.Event{
		Src:     io,
		Dst:     io,
		Cycle:   io.eng.CycleOf(io.Name()) + 1,
		Kind:    simevent.KindIODMC,
		Payload: simevent.IODMCPayload{Stack: st, Channel: ch},
	})
	io.mcSched[st][ch] = true
}

func (io *IOD) handleMC(ev *simevent.Event) {
	p := ev.Payload.(simevent.IODMCPayload)
	st, ch := p.Stack, p.Channel
	io.mcSched[st][ch] = false

	queue := io.mcQueues[st][ch]
	if len(queue) == 0 {
		return
	}
	op := queue[0]
	if !op.started {
		fields := decodeEaddr(op.addr)
		bursts := (op.dataSize + constants.IODBurstBytes - 1) / constants.IODBurstBytes
		delay := io.stacks[st].access(ch, fields.bankGroup, fields.bank, fields.row, bursts)
		op.remaining = io.pipelineLatency + delay
		op.started = true
	}
	op.remaining--
	if op.remaining > 0 {
		io.scheduleMC(st, ch)
		return
	}

	io.mcQueues[st][ch] = queue[1:]
	io.handleOutput(op)
	if len(io.mcQueues[st][ch]) > 0 {
		io.scheduleMC(st, ch)
	}
}

func (io *IOD) handleOutput(op *iodOp) {
	if op.dstName == "" {
		return
	}
	coord, ok := io.locator.Lookup(op.dstName)
	if !ok {
		return
	}
	replyKind := simevent.KindDMAReadReply
	if op.kind == simevent.KindDMAWrite {
		replyKind = simevent.KindWriteReply
	}

	reply := &simevent.ReplyPayload{ChannelID: op.channel, DataSize: op.dataSize}
	reply.DstCoords = coord
	reply.InputPort = router.PortLocal
	reply.VC = 0
	reply.Program = op.program
	reply.StreamID = op.streamID
	reply.SrcName = io.Name()

	io.Send(io.eng, io, io.myRouter, &simevent.Event{
		Kind:     replyKind,
		Cycle:    io.eng.CycleOf(io.Name()) + 1,
		Program:  op.program,
		ByteSize: op.dataSize,
		Payload:  reply,
	})
}
