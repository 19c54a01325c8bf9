package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelsim/tilenoc/internal/constants"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, constants.DefaultNumVCs, cfg.Router.NumVCs)
	assert.Equal(t, constants.DefaultBufferCapacity, cfg.Router.BufferCapacity)
	assert.Equal(t, float64(constants.DefaultFrequencyMHz), cfg.Router.FrequencyMHz)
	assert.Empty(t, cfg.NPUs)
}

func TestLoadFillsTileDefaults(t *testing.T) {
	doc := `
[mesh]
width = 4
height = 4

[[npu]]
name = "npu0"
x = 1
y = 0

[[memory]]
name = "dram0"
kind = "dram"
x = 0
y = 0

[[memory]]
name = "iod0"
kind = "iod"
x = 2
y = 2
`
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.NPUs, 1)
	assert.Equal(t, float64(constants.DefaultFrequencyMHz), cfg.NPUs[0].FrequencyMHz)
	assert.Equal(t, constants.DefaultPipelineStages, cfg.NPUs[0].PipelineStages)
	assert.Equal(t, constants.DefaultTxnBytes, cfg.NPUs[0].TxnBytes)

	require.Len(t, cfg.Memories, 2)
	assert.Equal(t, "dram", cfg.Memories[0].Kind)
	assert.Equal(t, constants.DefaultDRAMChannels, cfg.Memories[0].Channels)
	assert.Equal(t, "iod", cfg.Memories[1].Kind)
	assert.Equal(t, constants.DefaultIODStacks, cfg.Memories[1].Stacks)
	assert.Equal(t, constants.DefaultIODTRCD, cfg.Memories[1].TRCD)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadDecodesProgramsAndCPNPUList(t *testing.T) {
	doc := `
[mesh]
width = 2
height = 1

[[npu]]
name = "npu0"
x = 1
y = 0

[[cp]]
name = "cp0"
x = 0
y = 0
npus = ["npu0"]

[[program]]
name = "prog0"
cp = "cp0"

[[program.instruction]]
kind = "dma_in"
stream_id = 1
data_size = 64

[[program.instruction]]
kind = "cmd"
stream_id = 1
opcode_cycles = 3
`
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.CPs, 1)
	assert.Equal(t, []string{"npu0"}, cfg.CPs[0].NPUs)

	require.Len(t, cfg.Programs, 1)
	prog := cfg.Programs[0]
	assert.Equal(t, "cp0", prog.CP)
	require.Len(t, prog.Instructions, 2)
	assert.Equal(t, "dma_in", prog.Instructions[0].Kind)
	assert.Equal(t, 64, prog.Instructions[0].DataSize)
	assert.Equal(t, "cmd", prog.Instructions[1].Kind)
	assert.Equal(t, 3, prog.Instructions[1].OpcodeCycles)
}
