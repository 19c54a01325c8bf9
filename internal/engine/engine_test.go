package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelsim/tilenoc/internal/simevent"
)

type recordingModule struct {
	name    string
	freq    float64
	handled []*simevent.Event
}

func newRecordingModule(name string, freq float64) *recordingModule {
	return &recordingModule{name: name, freq: freq}
}

func (m *recordingModule) Name() string          { return m.name }
func (m *recordingModule) Frequency() float64    { return m.freq }
func (m *recordingModule) BufferCapacity() int   { return 4 }
func (m *recordingModule) ReserveCredit() bool   { return true }
func (m *recordingModule) ReleaseCredit()        {}
func (m *recordingModule) OnEvent(ev *simevent.Event) {
	m.handled = append(m.handled, ev)
}

func TestScheduleConvertsClockDomains(t *testing.T) {
	e := New()
	a := newRecordingModule("a", 1000)
	b := newRecordingModule("b", 500)
	e.RegisterModule(a)
	e.RegisterModule(b)

	e.Schedule(&simevent.Event{Src: a, Dst: b, Cycle: 3, Kind: simevent.KindPipelineTick})

	ticks, drained := e.RunUntilIdle(0)
	assert.Equal(t, 1, ticks)
	assert.True(t, drained)
	require.Len(t, b.handled, 1)
	assert.EqualValues(t, 2, e.CycleOf("b"))
}

func TestScheduleOrdersByTimeThenPriorityThenSeq(t *testing.T) {
	e := New()
	dst := newRecordingModule("dst", 1000)
	e.RegisterModule(dst)

	e.Schedule(&simevent.Event{Dst: dst, Cycle: 0, Priority: 1, Kind: simevent.KindPipeStage, Program: "low-pri-same-time"})
	e.Schedule(&simevent.Event{Dst: dst, Cycle: 0, Priority: 0, Kind: simevent.KindPipeStage, Program: "high-pri-same-time"})
	e.Schedule(&simevent.Event{Dst: dst, Cycle: 0, Priority: 0, Kind: simevent.KindPipeStage, Program: "second-inserted"})

	_, drained := e.RunUntilIdle(0)
	assert.True(t, drained)
	require.Len(t, dst.handled, 3)
	assert.Equal(t, "high-pri-same-time", dst.handled[0].Program)
	assert.Equal(t, "second-inserted", dst.handled[1].Program)
	assert.Equal(t, "low-pri-same-time", dst.handled[2].Program)
}

func TestRunUntilIdleRespectsMaxTicks(t *testing.T) {
	e := New()
	dst := newRecordingModule("dst", 1000)
	e.RegisterModule(dst)
	for i := 0; i < 5; i++ {
		e.Schedule(&simevent.Event{Dst: dst, Cycle: uint64(i), Kind: simevent.KindPipeStage})
	}

	ticks, drained := e.RunUntilIdle(3)
	assert.Equal(t, 3, ticks)
	assert.False(t, drained)
	assert.Equal(t, 2, e.Pending())
}

func TestDispatchToNilDestinationPanics(t *testing.T) {
	e := New()
	src := newRecordingModule("a", 1000)
	e.RegisterModule(src)
	e.Schedule(&simevent.Event{Src: src, Cycle: 1, Kind: simevent.KindRunProgram})

	assert.Panics(t, func() { e.RunUntilIdle(0) })
}
