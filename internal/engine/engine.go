// Package engine implements the simulator's single-threaded discrete-event
// core: a time-ordered priority queue plus per-module clock domains.
package engine

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/accelsim/tilenoc/internal/constants"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/logtrace"
	"github.com/accelsim/tilenoc/internal/simevent"
)

type moduleState struct {
	freq  float64
	time  float64
	cycle uint64
}

// Engine is the simulator's event queue and clock-domain registry. It is
// not safe for concurrent use: all scheduling and dispatch happens on the
// goroutine that calls RunUntilIdle, per the single-threaded cooperative
// model.
type Engine struct {
	queue   eventHeap
	modules map[string]interfaces.Module
	states  map[string]*moduleState
	nextSeq uint64

	currentTime  float64
	currentCycle uint64

	Log      *logtrace.EventLog
	Logger   *logtrace.Logger
	Observer interfaces.MetricsObserver
}

// New returns an empty Engine. Logger and Log default to
// logtrace.Default() and a fresh logtrace.NewEventLog(); set Engine.Logger,
// Engine.Log, or Engine.Observer directly to override.
func New() *Engine {
	return &Engine{
		modules: make(map[string]interfaces.Module),
		states:  make(map[string]*moduleState),
		Log:     logtrace.NewEventLog(),
		Logger:  logtrace.Default(),
	}
}

// RegisterModule records m's clock frequency and initializes its per-module
// simulated time and cycle counters at zero.
func (e *Engine) RegisterModule(m interfaces.Module) {
	e.modules[m.Name()] = m
	freq := m.Frequency()
	if freq <= 0 {
		freq = constants.DefaultFrequencyMHz
	}
	e.states[m.Name()] = &moduleState{freq: freq}
}

// CycleOf returns the named module's current cycle counter, or 0 for an
// unregistered module.
func (e *Engine) CycleOf(name string) uint64 {
	if st, ok := e.states[name]; ok {
		return st.cycle
	}
	return 0
}

// TimeOf returns the named module's current simulated time, or 0 for an
// unregistered module.
func (e *Engine) TimeOf(name string) float64 {
	if st, ok := e.states[name]; ok {
		return st.time
	}
	return 0
}

// CurrentTime returns the engine's global virtual time: the time of the
// most recently dispatched event.
func (e *Engine) CurrentTime() float64 { return e.currentTime }

// CurrentCycle returns the cycle counter of the module most recently
// dispatched to.
func (e *Engine) CurrentCycle() uint64 { return e.currentCycle }

// Schedule computes ev's absolute wall-time from its sender's current
// (time, cycle) plus the cycle delta scaled by the sender's frequency, then
// inserts ev into the global time-ordered priority queue. A fatal
// programmer error — scheduling to a non-nil destination that was never
// registered — panics, per the error taxonomy's "scheduling to an unknown
// module" case; a nil destination is caught at dispatch instead.
func (e *Engine) Schedule(ev *simevent.Event) {
	if ev.Dst != nil {
		if _, ok := e.states[ev.Dst.Name()]; !ok {
			panic(fmt.Sprintf("engine: %s event scheduled to unregistered module %q", ev.Kind, ev.Dst.Name()))
		}
	}
	src := ev.Src
	if src == nil {
		src = ev.Dst
	}

	freq := float64(constants.DefaultFrequencyMHz)
	srcTime := e.currentTime
	var srcCycle uint64 = e.currentCycle
	if src != nil {
		if st, ok := e.states[src.Name()]; ok {
			freq = st.freq
			srcTime = st.time
			srcCycle = st.cycle
		}
	}

	var deltaCycles uint64
	if ev.Cycle > srcCycle {
		deltaCycles = ev.Cycle - srcCycle
	}
	ev.Time = srcTime + float64(deltaCycles)/freq
	ev.Seq = e.nextSeq
	e.nextSeq++

	heap.Push(&e.queue, ev)
}

// tick pops the minimum-time event and dispatches it to its destination,
// advancing the destination's (time, cycle) to the event's time first.
func (e *Engine) tick() {
	ev := heap.Pop(&e.queue).(*simevent.Event)
	e.currentTime = ev.Time

	if ev.Dst != nil {
		if st, ok := e.states[ev.Dst.Name()]; ok {
			cycle := uint64(math.Ceil(ev.Time * st.freq))
			st.cycle = cycle
			st.time = ev.Time
			e.currentCycle = cycle
		}
	}

	if e.Observer != nil {
		e.Observer.ObserveEventDispatched(ev.Kind, dstName(ev))
	}
	if ev.Dst == nil {
		panic(fmt.Sprintf("engine: dispatch of %s event with nil destination", ev.Kind))
	}
	ev.Dst.OnEvent(ev)
}

func dstName(ev *simevent.Event) string {
	if ev.Dst == nil {
		return ""
	}
	return ev.Dst.Name()
}

// RunUntilIdle repeatedly pops and dispatches the minimum-time event until
// the queue drains or maxTicks is reached (maxTicks == constants.NoMaxTicks
// means no bound). It returns the number of ticks executed and whether the
// queue drained before the bound was hit.
func (e *Engine) RunUntilIdle(maxTicks int) (ticks int, drained bool) {
	for len(e.queue) > 0 {
		e.tick()
		ticks++
		if maxTicks > constants.NoMaxTicks && ticks >= maxTicks {
			return ticks, false
		}
	}
	return ticks, true
}

// Pending reports how many events remain queued.
func (e *Engine) Pending() int { return len(e.queue) }
