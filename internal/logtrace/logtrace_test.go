package logtrace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelsFiltered(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelWarn, Output: &buf, Pretty: false})

	l.Debug("should be dropped")
	l.Info("should be dropped too")
	assert.Empty(t, buf.String())

	l.Warn("router stalled", "module", "r_1_1", "port", 2)
	assert.Contains(t, buf.String(), "router stalled")
	assert.Contains(t, buf.String(), `"module":"r_1_1"`)
}

func TestDefaultLoggerIsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	replacement := NewLogger(nil)
	SetDefault(replacement)
	assert.Same(t, replacement, Default())
}

func TestEventLogRecordsInOrder(t *testing.T) {
	log := NewEventLog()
	log.Log(0, "cp_0_0", 0, "RUN_PROGRAM")
	log.Log(1, "npu_1_0", 2, "NPU_CMD")

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Cycle: 0, Module: "cp_0_0", Stage: 0, EventKind: "RUN_PROGRAM"}, entries[0])
	assert.Equal(t, 2, log.Len())
}
