package tilenoc

import "github.com/accelsim/tilenoc/internal/constants"

// Re-exported tuning defaults, so a caller building a SimulationConfig by
// hand (rather than loading TOML) does not need to import internal/constants.
const (
	DefaultFrequencyMHz   = constants.DefaultFrequencyMHz
	DefaultBufferCapacity = constants.DefaultBufferCapacity
	DefaultNumVCs         = constants.DefaultNumVCs
	DefaultPipelineStages = constants.DefaultPipelineStages
	DefaultTxnBytes       = constants.DefaultTxnBytes
	DefaultDRAMChannels   = constants.DefaultDRAMChannels
	NoMaxTicks            = constants.NoMaxTicks
)
