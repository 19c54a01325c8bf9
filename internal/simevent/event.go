// Package simevent defines the event record, the closed event-kind
// vocabulary, and the per-kind payloads that flow through the simulator
// core.
package simevent

// Endpoint is the minimal dispatch surface an event source or destination
// exposes. It mirrors interfaces.Module's Name/OnEvent methods without
// importing the interfaces package — interfaces.Module already references
// simevent.Event, so this package cannot import back without a cycle. Any
// concrete module satisfies this interface structurally.
type Endpoint interface {
	Name() string
	OnEvent(ev *Event)
}

// Coord is a mesh (x, y) router coordinate.
type Coord struct {
	X int
	Y int
}

// Event is an immutable-after-scheduling record dispatched by the engine to
// its Dst at time Time. Payload is a typed variant selected by Kind — see
// payload.go for the struct each Kind carries.
type Event struct {
	Src Endpoint
	Dst Endpoint

	Kind Kind

	// Time is the absolute scheduled simulation time in microseconds.
	Time float64
	// Cycle is the sender-clock cycle the event is due at: Schedule turns
	// Cycle minus the sender's current cycle into the Time offset. The
	// destination derives its own cycle from Time.
	Cycle uint64
	// Priority breaks ties among events scheduled for the same Time; lower
	// values dispatch first.
	Priority int
	// Seq is a monotonically increasing insertion-order stamp applied by
	// the engine at Schedule time, the final tiebreak after Time and
	// Priority (container/heap is not a stable sort).
	Seq uint64

	// Program names the originating program, empty for events with no
	// program association (e.g. router-internal credit returns).
	Program string
	// ByteSize is the flit/transfer size in bytes, used for DMA byte
	// accounting.
	ByteSize int

	Payload any
}

// Header returns ev's RoutingHeader if its payload carries one, or nil for
// a non-routed kind (e.g. KindRecvCred, whose payload is CreditPayload).
func (ev *Event) Header() *RoutingHeader {
	hc, ok := ev.Payload.(HeaderCarrier)
	if !ok {
		return nil
	}
	return hc.Header()
}
