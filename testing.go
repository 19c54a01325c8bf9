package tilenoc

import (
	"testing"

	"github.com/accelsim/tilenoc/internal/config"
)

// TestOption mutates a config.SimulationConfig before NewTestSimulator
// builds it, the functional-option analogue of the teacher's MockBackend
// constructor arguments.
type TestOption func(*config.SimulationConfig)

// WithTestMesh overrides the default 2x1 test mesh dimensions.
func WithTestMesh(width, height int) TestOption {
	return func(cfg *config.SimulationConfig) {
		cfg.Mesh.Width = width
		cfg.Mesh.Height = height
	}
}

// WithTestNPU adds an NPU tile at (x, y) targeting memory for its DMA
// traffic.
func WithTestNPU(name string, x, y int, memory string) TestOption {
	return func(cfg *config.SimulationConfig) {
		cfg.NPUs = append(cfg.NPUs, config.NPUConfig{Name: name, X: x, Y: y, Memory: memory})
	}
}

// WithTestCP adds a control processor at (x, y) fanning out to npus (or
// every configured NPU, if npus is empty).
func WithTestCP(name string, x, y int, npus ...string) TestOption {
	return func(cfg *config.SimulationConfig) {
		cfg.CPs = append(cfg.CPs, config.CPConfig{Name: name, X: x, Y: y, NPUs: npus})
	}
}

// WithTestIOD replaces the default DRAM test tile with a minimal one-bank
// IOD tile at (x, y), for tests that need open-row/bank-conflict timing
// instead of the simple N-channel model.
func WithTestIOD(name string, x, y int) TestOption {
	return func(cfg *config.SimulationConfig) {
		cfg.Memories = []config.MemoryConfig{{
			Name: name, Kind: "iod", X: x, Y: y,
			Stacks: 1, IODChannels: 1, BankGroups: 1, BanksPerGroup: 1,
		}}
	}
}

// NewTestSimulator builds a Simulator with short buffer depths and
// deterministic frequencies for unit tests: by default a 2x1 mesh with a
// single DRAM tile at (1, 0) and nothing else attached, letting each test
// add exactly the NPU/CP tiles it exercises via opts. t is accepted (and
// unused beyond documenting intent) so call sites read as ordinary test
// setup and a future fatal-on-build path can call t.Fatal instead of
// panicking.
func NewTestSimulator(t *testing.T, opts ...TestOption) *Simulator {
	t.Helper()

	cfg := config.Default()
	cfg.Mesh = config.MeshConfig{Width: 2, Height: 1}
	cfg.Router.BufferCapacity = 8
	cfg.Memories = []config.MemoryConfig{{Name: "dram_test", Kind: "dram", X: 1, Y: 0}}

	for _, opt := range opts {
		opt(&cfg)
	}

	return New(cfg)
}
