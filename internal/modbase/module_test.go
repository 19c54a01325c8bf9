package modbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// echoModule accepts any event it is sent and records it; used to exercise
// HardwareModule's Send/ReserveCredit/retry plumbing without a full NPU/CP.
type echoModule struct {
	HardwareModule
	received []*simevent.Event
}

func newEchoModule(name string, capacity int) *echoModule {
	return &echoModule{HardwareModule: NewHardwareModule(name, 1000, capacity)}
}

func (m *echoModule) OnEvent(ev *simevent.Event) {
	if m.HandleRetry(nil, m, ev) {
		return
	}
	m.received = append(m.received, ev)
}

// retryAwareEchoModule threads the engine through so HandleRetry can
// re-schedule; kept separate to avoid a nil-engine footgun in echoModule.
type retryAwareEchoModule struct {
	HardwareModule
	eng      *engine.Engine
	received []*simevent.Event
}

func (m *retryAwareEchoModule) OnEvent(ev *simevent.Event) {
	if m.HandleRetry(m.eng, m, ev) {
		return
	}
	m.Dispatch(m.eng, 0, ev, func(*simevent.Event) {
		m.received = append(m.received, ev)
	}, true)
}

func TestReserveAndReleaseCredit(t *testing.T) {
	m := NewHardwareModule("x", 1000, 2)
	assert.True(t, m.ReserveCredit())
	assert.True(t, m.ReserveCredit())
	assert.False(t, m.ReserveCredit())
	assert.Equal(t, 2, m.Occupancy())

	m.ReleaseCredit()
	assert.Equal(t, 1, m.Occupancy())
	assert.True(t, m.ReserveCredit())
}

func TestReleaseCreditBelowZeroPanics(t *testing.T) {
	m := NewHardwareModule("x", 1000, 2)
	assert.Panics(t, func() { m.ReleaseCredit() })
}

func TestSendSchedulesWhenCreditAvailable(t *testing.T) {
	eng := engine.New()
	src := &echoModule{HardwareModule: NewHardwareModule("src", 1000, 4)}
	dst := &echoModule{HardwareModule: NewHardwareModule("dst", 1000, 4)}
	eng.RegisterModule(src)
	eng.RegisterModule(dst)

	src.Send(eng, src, dst, &simevent.Event{Kind: simevent.KindPipeStage})

	_, drained := eng.RunUntilIdle(0)
	assert.True(t, drained)
	require.Len(t, dst.received, 1)
	assert.Equal(t, 1, dst.Occupancy())
}

func TestSendRetriesWhenDestinationFull(t *testing.T) {
	eng := engine.New()
	dst := &retryAwareEchoModule{HardwareModule: NewHardwareModule("dst", 1000, 1), eng: eng}
	src := &retryAwareEchoModule{HardwareModule: NewHardwareModule("src", 1000, 4), eng: eng}
	eng.RegisterModule(src)
	eng.RegisterModule(dst)

	// Fill dst's one credit directly so the next Send must retry.
	require.True(t, dst.ReserveCredit())

	src.Send(eng, src, dst, &simevent.Event{Kind: simevent.KindPipeStage, Program: "blocked"})
	assert.Equal(t, 1, eng.Pending())

	// Draining one tick dispatches the RETRY_SEND to src, which re-sends
	// and is still blocked (dst never released its credit), so it must
	// requeue another retry rather than lose the event.
	ticks, drained := eng.RunUntilIdle(1)
	assert.Equal(t, 1, ticks)
	assert.False(t, drained)
	assert.Equal(t, 1, eng.Pending())

	dst.ReleaseCredit()
	_, drained = eng.RunUntilIdle(0)
	assert.True(t, drained)
	require.Len(t, dst.received, 1)
	assert.Equal(t, "blocked", dst.received[0].Program)
}
