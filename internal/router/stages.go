package router

import (
	"golang.org/x/exp/slices"

	"github.com/accelsim/tilenoc/internal/simevent"
)

// route returns the output port for dst under dimension-order (X-then-Y)
// routing: East/West first, then North/South, then LOCAL at destination.
func (r *Router) route(dst simevent.Coord) int {
	if dst.X == r.x && dst.Y == r.y {
		return PortLocal
	}
	dx := dst.X - r.x
	if dx != 0 {
		if dx > 0 {
			return PortEast
		}
		return PortWest
	}
	dy := dst.Y - r.y
	if dy > 0 {
		return PortSouth
	}
	return PortNorth
}

// stageRC routes the head packet of each (port, VC) RC buffer to an output
// port and advances it to the VA stage if room allows.
func (r *Router) stageRC() {
	for p := 0; p < r.numPorts; p++ {
		for vc := 0; vc < r.numVCs[p]; vc++ {
			queue := r.rcIn[p][vc]
			if len(queue) == 0 {
				continue
			}
			pkt := queue[0]
			hdr := pkt.Header()
			hdr.OutPort = r.route(hdr.DstCoords)

			if len(r.vaIn[p][vc]) < r.BufferCapacity() {
				r.rcIn[p][vc] = queue[1:]
				r.vaIn[p][vc] = append(r.vaIn[p][vc], pkt)
			}
		}
	}
}

type vaGrant struct {
	inPort, inVC, outPort, outVC int
}

// stageVA performs two-level LRG arbitration: first among the in-VCs of a
// single in_port contending for the same out_port, then among the out_port's
// available out-VCs. A credit is consumed only once a winning packet
// actually moves into the SA buffer, so a downstream-full stall never loses
// a credit.
func (r *Router) stageVA() {
	candidatesByOutPort := make(map[int]map[int][]int) // outPort -> inPort -> []inVC
	for p := 0; p < r.numPorts; p++ {
		for vc := 0; vc < r.numVCs[p]; vc++ {
			queue := r.vaIn[p][vc]
			if len(queue) == 0 {
				continue
			}
			outPort := queue[0].Header().OutPort
			if candidatesByOutPort[outPort] == nil {
				candidatesByOutPort[outPort] = make(map[int][]int)
			}
			candidatesByOutPort[outPort][p] = append(candidatesByOutPort[outPort][p], vc)
		}
	}

	var grants []vaGrant
	outPorts := make([]int, 0, len(candidatesByOutPort))
	for op := range candidatesByOutPort {
		outPorts = append(outPorts, op)
	}
	slices.Sort(outPorts)

	for _, outPort := range outPorts {
		byInPort := candidatesByOutPort[outPort]
		consumed := make(map[int]bool)

		inPorts := make([]int, 0, len(byInPort))
		for ip := range byInPort {
			inPorts = append(inPorts, ip)
		}
		slices.Sort(inPorts)

		for _, inPort := range inPorts {
			winnerVC, ok, next := arbitrateLRG(byInPort[inPort], r.vaLRG[inPort])
			if !ok {
				continue
			}
			r.vaLRG[inPort] = next

			var availOutVCs []int
			for vc := 0; vc < r.numVCs[outPort]; vc++ {
				if r.creditCounts[outPort][vc] > 0 && !consumed[vc] {
					availOutVCs = append(availOutVCs, vc)
				}
			}
			outVC, ok2, next2 := arbitrateLRG(availOutVCs, r.vaOutVCLRG[outPort])
			if !ok2 {
				continue
			}
			r.vaOutVCLRG[outPort] = next2
			consumed[outVC] = true
			grants = append(grants, vaGrant{inPort: inPort, inVC: winnerVC, outPort: outPort, outVC: outVC})
		}
	}

	for _, g := range grants {
		if len(r.saIn[g.inPort][g.inVC]) >= r.BufferCapacity() {
			continue // SA buffer full; retry next tick, credit untouched.
		}
		pkt := r.vaIn[g.inPort][g.inVC][0]
		pkt.Header().OutVC = g.outVC
		r.vaIn[g.inPort][g.inVC] = r.vaIn[g.inPort][g.inVC][1:]
		r.saIn[g.inPort][g.inVC] = append(r.saIn[g.inPort][g.inVC], pkt)
		r.creditCounts[g.outPort][g.outVC]--
	}
}

// vcStride bounds per-port VC counts so (port, vc) pairs can be packed into
// a single int key for arbitrateLRG's candidate sets.
func (r *Router) vcStride() int {
	max := 1
	for _, n := range r.numVCs {
		if n > max {
			max = n
		}
	}
	return max
}

// stageSA grants each output port to one winning (in_port, in_vc) pair via
// LRG arbitration over all SA-stage candidates targeting it.
func (r *Router) stageSA() {
	stride := r.vcStride()
	candidatesByOutPort := make(map[int][]int)
	for p := 0; p < r.numPorts; p++ {
		for vc := 0; vc < r.numVCs[p]; vc++ {
			queue := r.saIn[p][vc]
			if len(queue) == 0 {
				continue
			}
			outPort := queue[0].Header().OutPort
			candidatesByOutPort[outPort] = append(candidatesByOutPort[outPort], p*stride+vc)
		}
	}

	outPorts := make([]int, 0, len(candidatesByOutPort))
	for op := range candidatesByOutPort {
		outPorts = append(outPorts, op)
	}
	slices.Sort(outPorts)

	for _, outPort := range outPorts {
		if len(r.stIn[outPort]) >= r.BufferCapacity() {
			continue
		}
		winner, ok, next := arbitrateLRG(candidatesByOutPort[outPort], r.saLRG[outPort])
		if !ok {
			continue
		}
		r.saLRG[outPort] = next
		inPort, inVC := winner/stride, winner%stride

		pkt := r.saIn[inPort][inVC][0]
		r.saIn[inPort][inVC] = r.saIn[inPort][inVC][1:]
		r.stIn[outPort] = append(r.stIn[outPort], pkt)
	}
}

// stageST forms and sends the next-hop event, returns a credit to the
// upstream link that delivered this flit, then re-tags the payload's
// prev-hop fields with this router's own identity so the *next* hop can
// return a credit here in turn. Payload is shared (pointer) across the hop,
// so these re-tags are visible on the Event already queued for the next
// router.
func (r *Router) stageST() {
	for outPort := 0; outPort < r.numPorts; outPort++ {
		queue := r.stIn[outPort]
		if len(queue) == 0 {
			continue
		}
		lk := r.links[outPort]
		if !lk.present {
			// Mesh edge with nothing wired: drop silently.
			r.stIn[outPort] = queue[1:]
			continue
		}

		pkt := queue[0]
		hdr := pkt.Header()
		hdr.InputPort = lk.inPort
		hdr.VC = hdr.OutVC

		prevOutPort, prevOutVC, hasPrev, lastHop := hdr.PrevOutPort, hdr.PrevOutVC, hdr.HasPrevHop, hdr.LastHop

		newEvent := &simevent.Event{
			Kind:     pkt.Kind,
			Cycle:    r.eng.CycleOf(r.Name()) + 1,
			Program:  pkt.Program,
			ByteSize: pkt.ByteSize,
			Payload:  pkt.Payload,
		}
		r.Send(r.eng, r, lk.mod, newEvent)

		if hasPrev && lastHop != nil {
			r.eng.Schedule(&simevent.Event{
				Src:   r,
				Dst:   lastHop,
				Cycle: r.eng.CycleOf(r.Name()) + 1,
				Kind:  simevent.KindRecvCred,
				Payload: simevent.CreditPayload{
					Port: prevOutPort,
					VC:   prevOutVC,
				},
			})
		}

		hdr.PrevOutPort = outPort
		hdr.PrevOutVC = hdr.OutVC
		hdr.LastHop = r
		hdr.HasPrevHop = true

		r.stIn[outPort] = queue[1:]
	}
}
