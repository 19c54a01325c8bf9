// Package cp implements the control processor: a scoreboard-issue engine
// that runs one or more named programs against a tile-set of NPUs,
// grounded on original_source/sim_hw/cp.py's ControlProcessor class.
package cp

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/modbase"
	"github.com/accelsim/tilenoc/internal/router"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// Locator resolves a named tile attached to the mesh to its coordinate.
// *mesh.Mesh satisfies this structurally.
type Locator interface {
	Lookup(name string) (simevent.Coord, bool)
}

type status int

const (
	statusPending status = iota
	statusIssued
	statusDone
)

// Instruction is one entry of a program submitted to the CP: a DMA_IN,
// CMD, or DMA_OUT targeting a stream_id, grounded on load_program's
// scoreboard-entry construction.
type Instruction struct {
	Kind         simevent.Kind // KindNPUDMAIn, KindNPUCmd, or KindNPUDMAOut
	StreamID     int
	DataSize     int
	OpcodeCycles int
	Eaddr        uint64
	Iaddr        uint64
}

func (i Instruction) isDMA() bool {
	return i.Kind == simevent.KindNPUDMAIn || i.Kind == simevent.KindNPUDMAOut
}

type entry struct {
	idx    int
	instr  Instruction
	status status
}

// program is the active-program state: the instruction scoreboard plus,
// per phase kind, the per-stream_id set of NPU names whose DONE is still
// outstanding (waiting_dma_in/waiting_op/waiting_dma_out, generalized to
// one map keyed by instruction kind instead of three separate fields).
type program struct {
	entries []*entry
	commit  int
	waiting map[simevent.Kind]map[int]map[string]bool
}

func newProgram(instrs []Instruction) *program {
	p := &program{waiting: make(map[simevent.Kind]map[int]map[string]bool)}
	for i, instr := range instrs {
		p.entries = append(p.entries, &entry{idx: i, instr: instr})
	}
	return p
}

func (p *program) allDone() bool {
	for _, e := range p.entries {
		if e.status != statusDone {
			return false
		}
	}
	return true
}

// CP is the control processor: a scoreboard-issue engine dispatching
// DMA_IN/CMD/DMA_OUT instructions to every attached NPU tile, honoring a
// per-program stream_id RAW hazard and a structural dma_busy hazard shared
// across every program running on this CP, grounded directly on
// _handle_run_program's scan-and-issue loop.
type CP struct {
	modbase.HardwareModule

	eng      *engine.Engine
	myRouter interfaces.Module
	locator  Locator
	npuNames []string

	dmaBusy   bool
	programs  map[string]*program
	completed map[string]int // program -> total entry count, set on retirement

	handlers map[simevent.Kind]func(*simevent.Event)
}

// New builds a CP that fans instructions out to every name in npuNames,
// resolved through locator at issue time.
func New(eng *engine.Engine, name string, myRouter interfaces.Module, locator Locator, npuNames []string, bufferCapacity int, frequencyMHz float64) *CP {
	c := &CP{
		HardwareModule: modbase.NewHardwareModule(name, frequencyMHz, bufferCapacity),
		eng:            eng,
		myRouter:       myRouter,
		locator:        locator,
		npuNames:       append([]string(nil), npuNames...),
		programs:       make(map[string]*program),
		completed:      make(map[string]int),
	}
	c.handlers = map[simevent.Kind]func(*simevent.Event){
		simevent.KindNPUDMAInDone:  c.handleDone,
		simevent.KindNPUCmdDone:    c.handleDone,
		simevent.KindNPUDMAOutDone: c.handleDone,
	}
	return c
}

// On registers an additional handler for kind, the generalized analogue
// of register_handler: a caller can extend the CP's dispatch table for a
// new instruction or reply kind without editing OnEvent.
func (c *CP) On(kind simevent.Kind, handle func(*simevent.Event)) {
	c.handlers[kind] = handle
}

func (c *CP) OnEvent(ev *simevent.Event) {
	if c.HandleRetry(c.eng, c, ev) {
		return
	}
	if ev.Kind == simevent.KindRunProgram {
		c.Dispatch(c.eng, 0, ev, c.handleRunProgram, false)
		return
	}
	handle, ok := c.handlers[ev.Kind]
	if !ok {
		panic(fmt.Sprintf("cp %s: unhandled event kind %s", c.Name(), ev.Kind))
	}
	c.Dispatch(c.eng, 0, ev, handle, true)
}

// SubmitProgram registers instrs for sequential scoreboard issue under
// name, the Go analogue of load_program.
func (c *CP) SubmitProgram(name string, instrs []Instruction) {
	c.programs[name] = newProgram(instrs)
}

// Start pushes the first RUN_PROGRAM self-tick for name, the entry point
// the out-of-scope ML front-end calls once it has submitted a program.
func (c *CP) Start(name string) {
	if _, ok := c.programs[name]; !ok {
		panic(fmt.Sprintf("cp %s: unknown program %q", c.Name(), name))
	}
	c.scheduleRunProgram(name)
}

func (c *CP) scheduleRunProgram(name string) {
	c.eng.Schedule(&simevent.Event{
		Src:     c,
		Dst:     c,
		Cycle:   c.eng.CycleOf(c.Name()) + 1,
		Program: name,
		Kind:    simevent.KindRunProgram,
	})
}

func (c *CP) handleRunProgram(ev *simevent.Event) {
	p, ok := c.programs[ev.Program]
	if !ok {
		panic(fmt.Sprintf("cp %s: RUN_PROGRAM for unknown program %q", c.Name(), ev.Program))
	}
	if p.allDone() {
		c.completed[ev.Program] = len(p.entries)
		delete(c.programs, ev.Program)
		if c.eng.Observer != nil {
			c.eng.Observer.ObserveProgramDone(ev.Program, c.eng.CycleOf(c.Name()))
		}
		return
	}

	for _, e := range p.entries {
		if e.status != statusPending {
			continue
		}
		if c.streamBlocked(p, e) {
			continue
		}
		if e.instr.isDMA() && c.dmaBusy {
			continue
		}
		c.issue(ev.Program, p, e)
		c.scheduleRunProgram(ev.Program)
		return
	}
}

// streamBlocked reports whether an earlier entry sharing e's stream_id has
// not yet completed: the RAW-on-stream_id hazard. Compute entries honor
// this exactly like DMA entries; only the dma_busy structural hazard
// singles compute out.
func (c *CP) streamBlocked(p *program, e *entry) bool {
	for _, other := range p.entries {
		if other.idx == e.idx {
			break
		}
		if other.instr.StreamID == e.instr.StreamID && other.status != statusDone {
			return true
		}
	}
	return false
}

func (c *CP) issue(programName string, p *program, e *entry) {
	e.status = statusIssued
	if e.instr.isDMA() {
		c.dmaBusy = true
	}

	outstanding := make(map[string]bool, len(c.npuNames))
	for _, n := range c.npuNames {
		outstanding[n] = true
	}
	if p.waiting[e.instr.Kind] == nil {
		p.waiting[e.instr.Kind] = make(map[int]map[string]bool)
	}
	p.waiting[e.instr.Kind][e.instr.StreamID] = outstanding

	for _, npuName := range c.npuNames {
		coord, ok := c.locator.Lookup(npuName)
		if !ok {
			panic(fmt.Sprintf("cp %s: npu %q is not attached to the mesh", c.Name(), npuName))
		}
		payload := &simevent.PacketPayload{
			DataSize:     e.instr.DataSize,
			OpcodeCycles: e.instr.OpcodeCycles,
			Eaddr:        e.instr.Eaddr,
			Iaddr:        e.instr.Iaddr,
		}
		payload.DstCoords = coord
		payload.InputPort = router.PortLocal
		payload.VC = 0
		payload.SrcName = c.Name()
		payload.Program = programName
		payload.StreamID = e.instr.StreamID

		c.Send(c.eng, c, c.myRouter, &simevent.Event{
			Kind:     e.instr.Kind,
			Cycle:    c.eng.CycleOf(c.Name()) + 1,
			Program:  programName,
			ByteSize: e.instr.DataSize,
			Payload:  payload,
		})
	}
}

// handleDone reconciles one NPU's completion of an issued DMA_IN/CMD/
// DMA_OUT: it clears that NPU from the (kind, stream_id) outstanding set
// and, once the set empties, marks the scoreboard entry done, advances the
// commit pointer, and — for a DMA kind — clears dma_busy.
//
// Clearing dma_busy can unblock a DMA entry belonging to a different
// program than the one that just completed (the flag is shared across
// every program this CP runs), so that case reschedules RUN_PROGRAM for
// every active program rather than only event.Program; an ordinary
// (non-DMA) completion only ever unblocks its own program's stream
// successors, so it reschedules just that one.
func (c *CP) handleDone(ev *simevent.Event) {
	payload := ev.Payload.(*simevent.DonePayload)
	p, ok := c.programs[ev.Program]
	if !ok {
		return // unknown/already-retired program: idempotent late arrival
	}

	phaseKind := kindForDone(ev.Kind)
	byStream := p.waiting[phaseKind]
	if byStream == nil {
		return
	}
	outstanding, ok := byStream[payload.StreamID]
	if !ok {
		return
	}
	delete(outstanding, payload.NPUName)
	if len(outstanding) > 0 {
		return
	}
	delete(byStream, payload.StreamID)

	for _, e := range p.entries {
		if e.instr.Kind == phaseKind && e.instr.StreamID == payload.StreamID && e.status == statusIssued {
			e.status = statusDone
			break
		}
	}
	c.advanceCommit(p)

	if phaseKind == simevent.KindNPUDMAIn || phaseKind == simevent.KindNPUDMAOut {
		c.dmaBusy = false
		for name := range c.programs {
			c.scheduleRunProgram(name)
		}
		return
	}
	c.scheduleRunProgram(ev.Program)
}

func (c *CP) advanceCommit(p *program) {
	for p.commit < len(p.entries) && p.entries[p.commit].status == statusDone {
		p.commit++
	}
}

func kindForDone(done simevent.Kind) simevent.Kind {
	switch done {
	case simevent.KindNPUDMAInDone:
		return simevent.KindNPUDMAIn
	case simevent.KindNPUCmdDone:
		return simevent.KindNPUCmd
	case simevent.KindNPUDMAOutDone:
		return simevent.KindNPUDMAOut
	default:
		panic(fmt.Sprintf("cp: no instruction kind for done kind %s", done))
	}
}

// ProgramStatus reports a submitted program's commit pointer and whether
// every entry has retired, for tests and external progress polling. A
// retired program is torn down (per the lifecycle rule that active-program
// state is erased once every instruction reaches done), so its commit
// count is read back from the completed ledger instead.
func (c *CP) ProgramStatus(name string) (commit int, done bool, ok bool) {
	if p, exists := c.programs[name]; exists {
		return p.commit, false, true
	}
	if total, exists := c.completed[name]; exists {
		return total, true, true
	}
	return 0, false, false
}
