// Package router implements the 2-D mesh VC router: a 4-stage (RC, VA, SA,
// ST) pipeline with credit-based per-virtual-channel flow control and
// least-recently-granted round-robin arbitration, grounded on the reference
// simulator's Router module.
package router

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/constants"
	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/modbase"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// Port indices, matching the reference router's DIRS ordering.
const (
	PortLocal = 0
	PortEast  = 1
	PortWest  = 2
	PortNorth = 3
	PortSouth = 4
)

// Opposite maps a port to the port a neighbor would use to reach back along
// the same link.
var Opposite = map[int]int{
	PortEast:  PortWest,
	PortWest:  PortEast,
	PortNorth: PortSouth,
	PortSouth: PortNorth,
}

type link struct {
	mod     interfaces.Module
	inPort  int
	present bool
}

// Router is a single mesh tile's VC router: LOCAL port plus up to four
// mesh-direction ports, each with its own set of virtual channels.
type Router struct {
	modbase.HardwareModule

	eng  *engine.Engine
	x, y int

	numPorts int
	numVCs   []int // per-port VC count; numVCs[PortLocal] == 1

	links          []link
	attachedModule interfaces.Module

	creditCounts [][]int // [port][vc] available downstream credit
	creditCap    [][]int // [port][vc] clamp ceiling (downstream buffer capacity)

	rcIn [][][]*simevent.Event // [port][vc]
	vaIn [][][]*simevent.Event
	saIn [][][]*simevent.Event
	stIn [][]*simevent.Event // [port]

	vaLRG      []int // per in_port
	vaOutVCLRG []int // per out_port
	saLRG      []int // per out_port

	scheduled bool
}

// New constructs a Router at mesh coordinates (x, y) with numVCs virtual
// channels on each non-LOCAL port, clocked at frequencyMHz.
func New(eng *engine.Engine, name string, x, y, numVCs, bufferCapacity int, frequencyMHz float64) *Router {
	numPorts := constants.DefaultNumPorts
	perPortVCs := make([]int, numPorts)
	perPortVCs[PortLocal] = constants.LocalPortVCs
	for p := 1; p < numPorts; p++ {
		perPortVCs[p] = numVCs
	}

	r := &Router{
		HardwareModule: modbase.NewHardwareModule(name, frequencyMHz, bufferCapacity),
		eng:            eng,
		x:              x,
		y:              y,
		numPorts:       numPorts,
		numVCs:         perPortVCs,
		links:          make([]link, numPorts),
		creditCounts:   make([][]int, numPorts),
		creditCap:      make([][]int, numPorts),
		rcIn:           make([][][]*simevent.Event, numPorts),
		vaIn:           make([][][]*simevent.Event, numPorts),
		saIn:           make([][][]*simevent.Event, numPorts),
		stIn:           make([][]*simevent.Event, numPorts),
		vaLRG:          make([]int, numPorts),
		vaOutVCLRG:     make([]int, numPorts),
		saLRG:          make([]int, numPorts),
	}
	for p := 0; p < numPorts; p++ {
		vcs := perPortVCs[p]
		r.creditCounts[p] = make([]int, vcs)
		r.creditCap[p] = make([]int, vcs)
		for vc := 0; vc < vcs; vc++ {
			r.creditCounts[p][vc] = bufferCapacity
			r.creditCap[p][vc] = bufferCapacity
		}
		r.rcIn[p] = make([][]*simevent.Event, vcs)
		r.vaIn[p] = make([][]*simevent.Event, vcs)
		r.saIn[p] = make([][]*simevent.Event, vcs)
	}
	return r
}

// Coord returns the router's mesh position.
func (r *Router) Coord() simevent.Coord { return simevent.Coord{X: r.x, Y: r.y} }

// SetNeighbor wires port to a neighboring router, recording the port that
// neighbor must use to reach back through this link.
func (r *Router) SetNeighbor(port int, neighbor interfaces.Module, neighborInPort int) {
	r.links[port] = link{mod: neighbor, inPort: neighborInPort, present: true}
}

// AttachModule wires the LOCAL port to the tile's compute/memory/control
// module, clamping LOCAL credit to that module's own buffer capacity.
func (r *Router) AttachModule(mod interfaces.Module) {
	r.attachedModule = mod
	r.links[PortLocal] = link{mod: mod, inPort: PortLocal, present: true}
	cap := mod.BufferCapacity()
	r.creditCounts[PortLocal][0] = cap
	r.creditCap[PortLocal][0] = cap
}

func (r *Router) OnEvent(ev *simevent.Event) {
	switch {
	case ev.Kind == simevent.KindRecvCred:
		r.handleRecvCred(ev)
	case ev.Kind == simevent.KindRetrySend:
		rp := ev.Payload.(simevent.RetryPayload)
		if rp.Wrapped.Dst == r {
			// A buffer-full ingress retry: re-attempt admission directly.
			// Must not go through HandleRetry/Send, which would overwrite
			// Wrapped.Src to this router and corrupt the original sender
			// identity already captured in the header.
			hdr := rp.Wrapped.Header()
			r.admitIngress(rp.Wrapped, hdr.InputPort, hdr.VC)
		} else {
			r.HandleRetry(r.eng, r, ev)
		}
	case ev.Kind == simevent.KindPipelineTick:
		r.scheduled = false
		r.tick()
	case ev.Kind.IsRouted():
		r.handleIngress(ev)
	default:
		panic(fmt.Sprintf("router %s: unhandled event kind %s", r.Name(), ev.Kind))
	}
}

func (r *Router) handleIngress(ev *simevent.Event) {
	hdr := ev.Header()
	if hdr == nil {
		panic(fmt.Sprintf("router %s: routed event %s carries no RoutingHeader", r.Name(), ev.Kind))
	}
	if r.eng.Log != nil {
		r.eng.Log.Log(r.eng.CurrentCycle(), r.Name(), 0, string(ev.Kind))
	}

	inPort, inVC := hdr.InputPort, hdr.VC
	if ev.Src == r.attachedModule {
		hdr.PrevOutPort = inPort
		hdr.PrevOutVC = inVC
		hdr.HasPrevHop = true
	}
	hdr.LastHop = ev.Src

	r.admitIngress(ev, inPort, inVC)
}

// admitIngress appends ev to the RC input buffer for (inPort, inVC) if it
// has room, otherwise reschedules a retry for next cycle. This is the
// router's real admission gate — ReserveCredit is unconditional for a
// router (see below), so flow control lives entirely in these per-(port,
// VC) buffer bounds, not a shared module-level credit pool.
func (r *Router) admitIngress(ev *simevent.Event, inPort, inVC int) {
	if len(r.rcIn[inPort][inVC]) >= r.BufferCapacity() {
		r.eng.Schedule(&simevent.Event{
			Src:     r,
			Dst:     r,
			Cycle:   r.eng.CycleOf(r.Name()) + 1,
			Kind:    simevent.KindRetrySend,
			Payload: simevent.RetryPayload{Wrapped: ev},
		})
		return
	}
	r.rcIn[inPort][inVC] = append(r.rcIn[inPort][inVC], ev)
	r.schedulePipeline()
}

// ReserveCredit always succeeds for a router: a sender's Send call must
// never block on a router's own occupancy, since admission is gated by the
// per-(port, VC) RC buffer instead. Mirrors the reference router's
// _reserve_slot override.
func (r *Router) ReserveCredit() bool { return true }

func (r *Router) handleRecvCred(ev *simevent.Event) {
	cp, ok := ev.Payload.(simevent.CreditPayload)
	if !ok {
		panic(fmt.Sprintf("router %s: RECV_CRED carries unexpected payload %T", r.Name(), ev.Payload))
	}
	if cp.Port < 0 || cp.Port >= r.numPorts || cp.VC < 0 || cp.VC >= len(r.creditCounts[cp.Port]) {
		return // untracked (port, VC): discarded, not fatal.
	}
	r.creditCounts[cp.Port][cp.VC]++
	if r.creditCounts[cp.Port][cp.VC] > r.creditCap[cp.Port][cp.VC] {
		r.creditCounts[cp.Port][cp.VC] = r.creditCap[cp.Port][cp.VC]
	}
	r.schedulePipeline()
}

func (r *Router) schedulePipeline() {
	if r.scheduled {
		return
	}
	r.eng.Schedule(&simevent.Event{
		Src:   r,
		Dst:   r,
		Cycle: r.eng.CycleOf(r.Name()) + 1,
		Kind:  simevent.KindPipelineTick,
	})
	r.scheduled = true
}

// tick drains stages in ST, SA, VA, RC order, exactly as the reference
// router's reverse-stage-index pipeline loop does: each stage runs before
// the stage that feeds it, so a flit advances at most one stage per cycle
// and room freed downstream is visible upstream within the same tick.
func (r *Router) tick() {
	r.stageST()
	r.stageSA()
	r.stageVA()
	r.stageRC()

	if r.hasWork() {
		r.schedulePipeline()
	}
}

func (r *Router) hasWork() bool {
	for p := 0; p < r.numPorts; p++ {
		if len(r.stIn[p]) > 0 {
			return true
		}
		for vc := 0; vc < r.numVCs[p]; vc++ {
			if len(r.rcIn[p][vc]) > 0 || len(r.vaIn[p][vc]) > 0 || len(r.saIn[p][vc]) > 0 {
				return true
			}
		}
	}
	return false
}
