package tilenoc

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// ProgramCycleBuckets defines the program-completion latency histogram
// buckets in module cycles, logarithmically spaced from 10 cycles to 1M
// cycles.
var ProgramCycleBuckets = []uint64{
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
}

const numProgramCycleBuckets = 6

// Metrics accumulates simulator-wide counters: events dispatched per kind,
// credit retries per module, queue depth samples per module, and program
// completion cycle counts. It implements interfaces.MetricsObserver so an
// Engine can be pointed at it directly (Engine.Observer = m).
type Metrics struct {
	EventsDispatched atomic.Uint64
	CreditRetries    atomic.Uint64
	ProgramsDone     atomic.Uint64

	mu             sync.Mutex
	eventsByKind   map[simevent.Kind]uint64
	retriesByModule map[string]uint64
	queueDepthTotal map[string]uint64
	queueDepthCount map[string]uint64
	queueDepthMax   map[string]int
	cycleBuckets    [numProgramCycleBuckets]uint64
}

// NewMetrics returns an empty Metrics ready to be registered as an
// Engine's Observer.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsByKind:    make(map[simevent.Kind]uint64),
		retriesByModule: make(map[string]uint64),
		queueDepthTotal: make(map[string]uint64),
		queueDepthCount: make(map[string]uint64),
		queueDepthMax:   make(map[string]int),
	}
}

var _ interfaces.MetricsObserver = (*Metrics)(nil)

// ObserveEventDispatched records one dispatch of kind to module.
func (m *Metrics) ObserveEventDispatched(kind simevent.Kind, module string) {
	m.EventsDispatched.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsByKind[kind]++
}

// ObserveCreditRetry records one RETRY_SEND absorbed by module.
func (m *Metrics) ObserveCreditRetry(module string) {
	m.CreditRetries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retriesByModule[module]++
}

// ObserveQueueDepth records a point-in-time buffer occupancy sample for
// module.
func (m *Metrics) ObserveQueueDepth(module string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepthTotal[module] += uint64(depth)
	m.queueDepthCount[module]++
	if depth > m.queueDepthMax[module] {
		m.queueDepthMax[module] = depth
	}
}

// ObserveProgramDone records a program's total retirement cycle count.
func (m *Metrics) ObserveProgramDone(program string, cycles uint64) {
	m.ProgramsDone.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, bucket := range ProgramCycleBuckets {
		if cycles <= bucket {
			m.cycleBuckets[i]++
			break
		}
	}
}

// ModuleSnapshot is one module's accumulated queue-depth and retry
// statistics.
type ModuleSnapshot struct {
	Module        string
	CreditRetries uint64
	AvgQueueDepth float64
	MaxQueueDepth int
}

// MetricsSnapshot is a point-in-time read of a Metrics instance.
type MetricsSnapshot struct {
	EventsDispatched uint64
	EventsByKind     map[simevent.Kind]uint64
	CreditRetries    uint64
	ProgramsDone     uint64
	ProgramCycleHistogram [numProgramCycleBuckets]uint64
	Modules          []ModuleSnapshot
}

// Snapshot returns a consistent point-in-time copy of m's counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		EventsDispatched: m.EventsDispatched.Load(),
		CreditRetries:    m.CreditRetries.Load(),
		ProgramsDone:     m.ProgramsDone.Load(),
		EventsByKind:     make(map[simevent.Kind]uint64, len(m.eventsByKind)),
	}
	for k, v := range m.eventsByKind {
		snap.EventsByKind[k] = v
	}
	copy(snap.ProgramCycleHistogram[:], m.cycleBuckets[:])

	names := make(map[string]bool)
	for name := range m.retriesByModule {
		names[name] = true
	}
	for name := range m.queueDepthCount {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		ms := ModuleSnapshot{Module: name, CreditRetries: m.retriesByModule[name], MaxQueueDepth: m.queueDepthMax[name]}
		if count := m.queueDepthCount[name]; count > 0 {
			ms.AvgQueueDepth = float64(m.queueDepthTotal[name]) / float64(count)
		}
		snap.Modules = append(snap.Modules, ms)
	}
	return snap
}

// Reset clears all accumulated counters, for test isolation between runs
// that share one Metrics instance.
func (m *Metrics) Reset() {
	m.EventsDispatched.Store(0)
	m.CreditRetries.Store(0)
	m.ProgramsDone.Store(0)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsByKind = make(map[simevent.Kind]uint64)
	m.retriesByModule = make(map[string]uint64)
	m.queueDepthTotal = make(map[string]uint64)
	m.queueDepthCount = make(map[string]uint64)
	m.queueDepthMax = make(map[string]int)
	m.cycleBuckets = [numProgramCycleBuckets]uint64{}
}

// NoOpObserver discards every observation. An Engine's Observer is nil
// until one is attached; NoOpObserver is an explicit do-nothing value for
// callers that want a non-nil observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveEventDispatched(simevent.Kind, string) {}
func (NoOpObserver) ObserveCreditRetry(string)                    {}
func (NoOpObserver) ObserveQueueDepth(string, int)                {}
func (NoOpObserver) ObserveProgramDone(string, uint64)            {}

var _ interfaces.MetricsObserver = NoOpObserver{}
