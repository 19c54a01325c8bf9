package simevent

// RoutingHeader is embedded in every payload that travels through a
// router's RC/VA/SA/ST pipeline. DstCoords/InputPort/VC/SrcName/Program/
// StreamID are the contract fields a sender fills in; OutPort/OutVC/
// PrevOutPort/PrevOutVC/LastHop are router-internal transit bookkeeping,
// overwritten at each hop exactly as the flit's payload dict is mutated
// hop-to-hop in the reference router.
type RoutingHeader struct {
	DstCoords Coord
	InputPort int
	VC        int
	SrcName   string
	Program   string
	StreamID  int

	// OutPort/OutVC are set by RC/VA for the current hop.
	OutPort int
	OutVC   int

	// PrevOutPort/PrevOutVC/LastHop/HasPrevHop carry the upstream link a
	// credit should be returned to once this flit clears ST. HasPrevHop
	// is false only on a flit's first router when the sender is not the
	// module attached to that router; a flit sent by the attached module
	// returns its credit to that module.
	PrevOutPort int
	PrevOutVC   int
	LastHop     Endpoint
	HasPrevHop  bool
}

// PacketPayload is carried by KindPacket, KindNPUDMAIn, KindNPUCmd, and
// KindNPUDMAOut: an instruction dispatch routed from the CP (or another
// sender) to an NPU.
type PacketPayload struct {
	RoutingHeader
	DataSize     int
	OpcodeCycles int
	Eaddr        uint64
	Iaddr        uint64
}

// DMAPayload is carried by KindDMARead and KindDMAWrite: an NPU's request
// to a memory tile. Eaddr is the external (memory-side) address the
// transaction targets; Iaddr is the requesting NPU's internal scratchpad
// offset it corresponds to, carried through so a reply can be matched back
// to where the transfer lands without the memory tile needing to know
// anything about NPU-internal addressing.
type DMAPayload struct {
	RoutingHeader
	NeedReply    bool
	OpcodeCycles int
	DataSize     int
	Eaddr        uint64
	Iaddr        uint64
}

// ReplyPayload is carried by KindDMAReadReply and KindWriteReply: a memory
// tile's reply to the requesting NPU.
type ReplyPayload struct {
	RoutingHeader
	ChannelID int
	DataSize  int
}

// DonePayload is carried by KindNPUDMAInDone, KindNPUCmdDone, and
// KindNPUDMAOutDone: an NPU's completion notice to the CP.
type DonePayload struct {
	RoutingHeader
	NPUName string
}

// HeaderCarrier is implemented by every routed payload's pointer type,
// letting a router read and mutate the common RoutingHeader fields without
// a type switch over every concrete payload. Routed-kind events must carry
// a pointer payload (e.g. Payload: &PacketPayload{...}) so mutations made at
// one hop are visible to the Event already queued for the next, mirroring
// the reference router's shared-dict payload handoff between hops.
type HeaderCarrier interface {
	Header() *RoutingHeader
}

func (p *PacketPayload) Header() *RoutingHeader { return &p.RoutingHeader }
func (p *DMAPayload) Header() *RoutingHeader    { return &p.RoutingHeader }
func (p *ReplyPayload) Header() *RoutingHeader  { return &p.RoutingHeader }
func (p *DonePayload) Header() *RoutingHeader   { return &p.RoutingHeader }

// CreditPayload is carried by KindRecvCred.
type CreditPayload struct {
	Port int
	VC   int
}

// RetryPayload is carried by KindRetrySend: the original event that could
// not reserve a destination credit, to be re-sent next cycle.
type RetryPayload struct {
	Wrapped *Event
}

// PipelineTickPayload is the stage-index payload declared for KindPipeStage
// and KindPipelineTick. The PIPELINE_TICK events that modbase.PipelineModule
// and the router schedule leave Payload nil.
type PipelineTickPayload struct {
	StageIdx int
}

// IODMCPayload is carried by KindIODMC: the (stack, channel) whose
// memory-controller queue should be serviced one tick further.
type IODMCPayload struct {
	Stack   int
	Channel int
}
