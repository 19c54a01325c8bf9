// Package config loads simulator topology and tuning parameters from TOML.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/accelsim/tilenoc/internal/constants"
)

// MeshConfig describes the 2-D router mesh dimensions.
type MeshConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// RouterConfig tunes a VC router's port and virtual-channel counts.
type RouterConfig struct {
	NumVCs         int     `toml:"num_vcs"`
	BufferCapacity int     `toml:"buffer_capacity"`
	FrequencyMHz   float64 `toml:"frequency_mhz"`
}

// NPUConfig tunes an NPU tile's compute pipeline and DMA chunking. Memory
// names the single memory tile this NPU's DMA traffic targets.
type NPUConfig struct {
	Name           string  `toml:"name"`
	X              int     `toml:"x"`
	Y              int     `toml:"y"`
	FrequencyMHz   float64 `toml:"frequency_mhz"`
	PipelineStages int     `toml:"pipeline_stages"`
	TxnBytes       int     `toml:"txn_bytes"`
	BufferCapacity int     `toml:"buffer_capacity"`
	Memory         string  `toml:"memory"`
}

// CPConfig places the control processor tile in the mesh. NPUs names the
// tile-set it fans instructions out to; when empty, simulator.New attaches
// it to every NPU in the document.
type CPConfig struct {
	Name           string   `toml:"name"`
	X              int      `toml:"x"`
	Y              int      `toml:"y"`
	FrequencyMHz   float64  `toml:"frequency_mhz"`
	BufferCapacity int      `toml:"buffer_capacity"`
	NPUs           []string `toml:"npus"`
}

// InstructionConfig is one scoreboard entry of a ProgramConfig: Kind is
// one of "dma_in", "cmd", "dma_out".
type InstructionConfig struct {
	Kind         string `toml:"kind"`
	StreamID     int    `toml:"stream_id"`
	DataSize     int    `toml:"data_size"`
	OpcodeCycles int    `toml:"opcode_cycles"`
	Eaddr        uint64 `toml:"eaddr"`
	Iaddr        uint64 `toml:"iaddr"`
}

// ProgramConfig preloads a named instruction program onto a named CP, so
// cmd/tilesim-demo can run a scenario straight from TOML without calling
// (*cp.CP).SubmitProgram in Go code.
type ProgramConfig struct {
	Name         string              `toml:"name"`
	CP           string              `toml:"cp"`
	Instructions []InstructionConfig `toml:"instruction"`
}

// MemoryConfig places either a simple DRAM tile or a detailed IOD tile,
// selected by Kind ("dram" or "iod").
type MemoryConfig struct {
	Name           string  `toml:"name"`
	Kind           string  `toml:"kind"`
	X              int     `toml:"x"`
	Y              int     `toml:"y"`
	FrequencyMHz   float64 `toml:"frequency_mhz"`
	BufferCapacity int     `toml:"buffer_capacity"`

	// DRAM (kind = "dram"): OpcodeCycles is the per-op default latency
	// used when a request omits its own opcode_cycles.
	Channels     int `toml:"channels"`
	OpcodeCycles int `toml:"opcode_cycles"`

	// IOD (kind = "iod"): OpcodeCycles is reused as the fixed
	// pipelineLatency every op pays on top of its bank-access delay.
	Stacks        int `toml:"stacks"`
	IODChannels   int `toml:"iod_channels"`
	BankGroups    int `toml:"bank_groups"`
	BanksPerGroup int `toml:"banks_per_group"`
	TRP           int `toml:"t_rp"`
	TRCD          int `toml:"t_rcd"`
	TCL           int `toml:"t_cl"`
}

// SimulationConfig is the top-level TOML document describing a tiled
// accelerator instance: mesh dimensions plus the tiles attached to it.
type SimulationConfig struct {
	Mesh     MeshConfig      `toml:"mesh"`
	Router   RouterConfig    `toml:"router"`
	NPUs     []NPUConfig     `toml:"npu"`
	CPs      []CPConfig      `toml:"cp"`
	Memories []MemoryConfig  `toml:"memory"`
	Programs []ProgramConfig `toml:"program"`
}

// Default returns a SimulationConfig populated with package-wide defaults,
// no tiles attached.
func Default() SimulationConfig {
	return SimulationConfig{
		Router: RouterConfig{
			NumVCs:         constants.DefaultNumVCs,
			BufferCapacity: constants.DefaultBufferCapacity,
			FrequencyMHz:   constants.DefaultFrequencyMHz,
		},
	}
}

// Load reads and decodes a SimulationConfig from a TOML file at path,
// filling unset tile-level fields with package defaults.
func Load(path string) (SimulationConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	FillDefaults(&cfg)
	return cfg, nil
}

// FillDefaults fills every unset tile-level field with package defaults.
// Load calls this after decoding; callers building a SimulationConfig by
// hand (e.g. NewTestSimulator) should call it too.
func FillDefaults(cfg *SimulationConfig) {
	if cfg.Router.NumVCs == 0 {
		cfg.Router.NumVCs = constants.DefaultNumVCs
	}
	if cfg.Router.BufferCapacity == 0 {
		cfg.Router.BufferCapacity = constants.DefaultBufferCapacity
	}
	if cfg.Router.FrequencyMHz == 0 {
		cfg.Router.FrequencyMHz = constants.DefaultFrequencyMHz
	}
	for i := range cfg.NPUs {
		n := &cfg.NPUs[i]
		if n.FrequencyMHz == 0 {
			n.FrequencyMHz = constants.DefaultFrequencyMHz
		}
		if n.PipelineStages == 0 {
			n.PipelineStages = constants.DefaultPipelineStages
		}
		if n.TxnBytes == 0 {
			n.TxnBytes = constants.DefaultTxnBytes
		}
		if n.BufferCapacity == 0 {
			n.BufferCapacity = constants.DefaultBufferCapacity
		}
	}
	for i := range cfg.CPs {
		c := &cfg.CPs[i]
		if c.FrequencyMHz == 0 {
			c.FrequencyMHz = constants.DefaultFrequencyMHz
		}
		if c.BufferCapacity == 0 {
			c.BufferCapacity = constants.DefaultBufferCapacity
		}
	}
	for i := range cfg.Memories {
		m := &cfg.Memories[i]
		if m.FrequencyMHz == 0 {
			m.FrequencyMHz = constants.DefaultFrequencyMHz
		}
		if m.BufferCapacity == 0 {
			m.BufferCapacity = constants.DefaultBufferCapacity
		}
		switch m.Kind {
		case "", "dram":
			m.Kind = "dram"
			if m.Channels == 0 {
				m.Channels = constants.DefaultDRAMChannels
			}
			if m.OpcodeCycles == 0 {
				m.OpcodeCycles = constants.DefaultDRAMOpcodeCycles
			}
		case "iod":
			if m.OpcodeCycles == 0 {
				m.OpcodeCycles = constants.DefaultIODPipelineTicks
			}
			if m.Stacks == 0 {
				m.Stacks = constants.DefaultIODStacks
			}
			if m.IODChannels == 0 {
				m.IODChannels = constants.DefaultIODChannels
			}
			if m.BankGroups == 0 {
				m.BankGroups = constants.DefaultIODBankGroups
			}
			if m.BanksPerGroup == 0 {
				m.BanksPerGroup = constants.DefaultIODBanksPerGroup
			}
			if m.TRP == 0 {
				m.TRP = constants.DefaultIODTRP
			}
			if m.TRCD == 0 {
				m.TRCD = constants.DefaultIODTRCD
			}
			if m.TCL == 0 {
				m.TCL = constants.DefaultIODTCL
			}
		}
	}
}
