// Package memory implements the two memory-tile models attachable to a
// mesh LOCAL port: DRAM (N fixed-latency channels picked round-robin)
// and IOD (stack/channel/bank-group/bank open-row timing), grounded on
// original_source/sim_hw/dram.py and sim_hw/iod.py.
package memory

import (
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// MemoryTile is the capability both DRAM and IOD satisfy: attachable to a
// mesh LOCAL port, answering a DMA_READ/DMA_WRITE with a
// DMA_READ_REPLY/WRITE_REPLY carrying the chunk's real byte count.
// Declared for documentation — both concrete types already satisfy
// interfaces.Module and need nothing more to be interchangeable tile
// implementations.
type MemoryTile interface {
	interfaces.Module
}

// Locator resolves a named tile attached to the mesh to its coordinate.
// *mesh.Mesh satisfies this structurally; a memory tile depends only on
// the lookup it needs, not the whole mesh package.
type Locator interface {
	Lookup(name string) (simevent.Coord, bool)
}
