// Package mesh builds the 2-D router mesh and tracks which named tile sits
// at which coordinate, grounded on original_source/sim_core/mesh.py's
// create_mesh.
package mesh

import (
	"fmt"

	"github.com/accelsim/tilenoc/internal/engine"
	"github.com/accelsim/tilenoc/internal/interfaces"
	"github.com/accelsim/tilenoc/internal/router"
	"github.com/accelsim/tilenoc/internal/simevent"
)

// Mesh is a Width x Height grid of routers, wired into a 2-D torus-free
// mesh (edge routers simply have no neighbor on the missing side), plus a
// name -> coordinate registry for the tiles attached to it.
type Mesh struct {
	Width, Height int

	routers map[simevent.Coord]*router.Router
	names   map[string]simevent.Coord
}

// New builds a Width x Height mesh of routers, each with numVCs virtual
// channels per non-LOCAL port, bufferCapacity-deep stage buffers, and
// clocked at frequencyMHz, and registers every router with eng.
func New(eng *engine.Engine, width, height, numVCs, bufferCapacity int, frequencyMHz float64) *Mesh {
	m := &Mesh{
		Width:   width,
		Height:  height,
		routers: make(map[simevent.Coord]*router.Router, width*height),
		names:   make(map[string]simevent.Coord),
	}

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			name := fmt.Sprintf("router_%d_%d", x, y)
			r := router.New(eng, name, x, y, numVCs, bufferCapacity, frequencyMHz)
			m.routers[simevent.Coord{X: x, Y: y}] = r
			eng.RegisterModule(r)
		}
	}

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			self := m.routers[simevent.Coord{X: x, Y: y}]
			if x > 0 {
				wireNeighbor(self, router.PortWest, m.routers[simevent.Coord{X: x - 1, Y: y}], router.PortEast)
			}
			if y > 0 {
				wireNeighbor(self, router.PortNorth, m.routers[simevent.Coord{X: x, Y: y - 1}], router.PortSouth)
			}
			// East/South links are set as the West/North neighbor's
			// reciprocal wiring above; only wire each link pair once.
		}
	}
	return m
}

func wireNeighbor(a *router.Router, aToB int, b *router.Router, bToA int) {
	a.SetNeighbor(aToB, b, bToA)
	b.SetNeighbor(bToA, a, aToB)
}

// Router returns the router at (x, y), or nil if out of bounds.
func (m *Mesh) Router(x, y int) *router.Router {
	return m.routers[simevent.Coord{X: x, Y: y}]
}

// Attach wires mod onto the LOCAL port of the router at (x, y) and
// registers name so Lookup can later resolve it to that coordinate.
func (m *Mesh) Attach(name string, x, y int, mod interfaces.Module) {
	r := m.Router(x, y)
	if r == nil {
		panic(fmt.Sprintf("mesh: attach %s at out-of-bounds coordinate (%d, %d)", name, x, y))
	}
	r.AttachModule(mod)
	m.names[name] = simevent.Coord{X: x, Y: y}
}

// Lookup resolves a previously Attach-ed tile's name to its mesh
// coordinate, for building a RoutingHeader.DstCoords from a program's
// target tile name.
func (m *Mesh) Lookup(name string) (simevent.Coord, bool) {
	c, ok := m.names[name]
	return c, ok
}
