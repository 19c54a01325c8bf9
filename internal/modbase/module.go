// Package modbase provides the credit-based hardware module framework
// every simulator component embeds: buffer-credit accounting, the
// reserve-or-retry send primitive, and the pipelined sub-module skeleton.
package modbase

import (
	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// HardwareModule is the embeddable credit-accounting base every concrete
// module (NPU, CP, DRAM, IOD, Router) builds on. Go has no virtual dispatch,
// so the "on dispatch, log then invoke on_event then release credit unless
// overridden" framework behavior from the reference module is exposed as
// the explicit Dispatch method, which each concrete module's OnEvent calls
// first.
type HardwareModule struct {
	name           string
	frequency      float64
	bufferCapacity int
	occupancy      int
}

// NewHardwareModule constructs a module's credit-accounting state.
func NewHardwareModule(name string, frequency float64, bufferCapacity int) HardwareModule {
	return HardwareModule{name: name, frequency: frequency, bufferCapacity: bufferCapacity}
}

func (h *HardwareModule) Name() string        { return h.name }
func (h *HardwareModule) Frequency() float64  { return h.frequency }
func (h *HardwareModule) BufferCapacity() int { return h.bufferCapacity }

// Occupancy reports the module's current reserved-credit count, for
// invariant checks (0 <= occupancy <= capacity).
func (h *HardwareModule) Occupancy() int { return h.occupancy }

// ReserveCredit reserves one input credit, returning false if the module's
// buffer is already at capacity.
func (h *HardwareModule) ReserveCredit() bool {
	if h.occupancy >= h.bufferCapacity {
		return false
	}
	h.occupancy++
	return true
}

// ReleaseCredit returns one input credit to the pool. Releasing past zero
// is a programmer error (negative occupancy is a fatal invariant
// violation) and panics rather than silently clamping.
func (h *HardwareModule) ReleaseCredit() {
	if h.occupancy <= 0 {
		panic("modbase: release credit on module " + h.name + " with zero occupancy")
	}
	h.occupancy--
}

// Dispatch logs the (cycle, name, stage, kind) record, invokes handle, and
// releases the reserved credit unless autoRelease is false — modules pass
// false for self-scheduled events (PIPELINE_TICK, IOD_MC, RUN_PROGRAM),
// which never reserved a credit. The router does not use Dispatch: its
// ReserveCredit always succeeds and it never calls ReleaseCredit.
func (h *HardwareModule) Dispatch(eng *engine.Engine, stage int, ev *simevent.Event, handle func(*simevent.Event), autoRelease bool) {
	if eng.Log != nil {
		eng.Log.Log(eng.CurrentCycle(), h.name, stage, string(ev.Kind))
	}
	handle(ev)
	if autoRelease {
		h.ReleaseCredit()
	}
	if eng.Observer != nil {
		eng.Observer.ObserveQueueDepth(h.name, h.occupancy)
	}
}

// Send implements the module framework's reserve-or-retry primitive: it
// attempts to reserve a credit on dst; on success ev is scheduled
// immediately, otherwise a RETRY_SEND self-event carrying ev is scheduled
// for self's next cycle.
func (h *HardwareModule) Send(eng *engine.Engine, self interfaces.Module, dst interfaces.Module, ev *simevent.Event) {
	ev.Src = self
	ev.Dst = dst
	if dst.ReserveCredit() {
		eng.Schedule(ev)
		return
	}
	retry := &simevent.Event{
		Src:   self,
		Dst:   self,
		Cycle: eng.CycleOf(self.Name()) + 1,
		Kind:  simevent.KindRetrySend,
		Payload: simevent.RetryPayload{
			Wrapped: ev,
		},
	}
	eng.Schedule(retry)
	if eng.Observer != nil {
		eng.Observer.ObserveCreditRetry(self.Name())
	}
}

// HandleRetry re-attempts a wrapped send when ev is a RETRY_SEND event, and
// absorbs a RECV_CRED: a router returns that credit to the module attached
// to its LOCAL port after forwarding one of the module's flits, and a
// non-router module keeps no per-VC credit count for it. It reports whether
// ev was one of these two kinds (and therefore handled).
func (h *HardwareModule) HandleRetry(eng *engine.Engine, self interfaces.Module, ev *simevent.Event) bool {
	if ev.Kind == simevent.KindRecvCred {
		return true
	}
	if ev.Kind != simevent.KindRetrySend {
		return false
	}
	rp := ev.Payload.(simevent.RetryPayload)
	dst := rp.Wrapped.Dst.(interfaces.Module)
	h.Send(eng, self, dst, rp.Wrapped)
	return true
}
