// Package interfaces provides internal interface definitions for tilenoc.
// These are separate from the public package to avoid circular imports
// between the root package and the internal subsystem packages.
package interfaces

import "github.com/accelsim/tilenoc/internal/simevent"

// Module is the capability set every simulator component must implement to
// be schedulable by the engine and attachable to a mesh port. It is the
// generalization of the credit-based hardware module contract: a module
// owns a buffer of BufferCapacity credits, a sender reserves one of the
// destination's credits before sending, and the destination releases it
// when it finishes handling the event. A router's ReserveCredit always
// succeeds and it never releases; its per-(port, VC) buffers gate
// admission instead.
type Module interface {
	// Name identifies the module for logging and attachment lookup.
	Name() string

	// Frequency is the module's clock frequency in MHz, used to convert
	// cycle counts to absolute simulation time.
	Frequency() float64

	// BufferCapacity is the module's total input credit pool size.
	BufferCapacity() int

	// OnEvent handles an event dispatched to this module at the engine's
	// current simulation time.
	OnEvent(ev *simevent.Event)

	// ReserveCredit attempts to reserve one input credit. It returns false
	// when the pool is exhausted, signaling the caller to retry the send.
	ReserveCredit() bool

	// ReleaseCredit returns one input credit to the pool.
	ReleaseCredit()
}

// Logger is the structured logging surface used throughout the simulator
// core. Implementations must be safe to call from a single-threaded
// simulation loop; no concurrency guarantees are required beyond that.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// MetricsObserver collects simulator-wide counters. Implementations must be
// safe to call from the worker goroutine that drives RunUntilIdle while a
// separate goroutine (e.g. cmd/tilesim-demo's log streamer) reads snapshots.
type MetricsObserver interface {
	ObserveEventDispatched(kind simevent.Kind, module string)
	ObserveCreditRetry(module string)
	ObserveQueueDepth(module string, depth int)
	ObserveProgramDone(program string, cycles uint64)
}
