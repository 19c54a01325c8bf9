package simevent

// Kind is the closed set of event kinds the simulator core exchanges.
// It is string-backed rather than modeled as a type hierarchy: every field
// a kind's payload carries is declared on a concrete Go struct (payload.go),
// so a missing required field is a compile error instead of a KeyError at
// dispatch time.
type Kind string

const (
	// KindPacket, KindNPUDMAIn, KindNPUCmd, and KindNPUDMAOut travel
	// sender -> router -> destination and carry PacketPayload.
	KindPacket    Kind = "PACKET"
	KindNPUDMAIn  Kind = "NPU_DMA_IN"
	KindNPUCmd    Kind = "NPU_CMD"
	KindNPUDMAOut Kind = "NPU_DMA_OUT"

	// KindDMARead and KindDMAWrite travel NPU -> router -> memory and
	// carry DMAPayload.
	KindDMARead  Kind = "DMA_READ"
	KindDMAWrite Kind = "DMA_WRITE"

	// KindDMAReadReply and KindWriteReply travel memory -> router -> NPU
	// and carry ReplyPayload.
	KindDMAReadReply Kind = "DMA_READ_REPLY"
	KindWriteReply   Kind = "WRITE_REPLY"

	// KindNPUDMAInDone, KindNPUCmdDone, and KindNPUDMAOutDone travel
	// NPU -> router -> CP and carry DonePayload.
	KindNPUDMAInDone  Kind = "NPU_DMA_IN_DONE"
	KindNPUCmdDone    Kind = "NPU_CMD_DONE"
	KindNPUDMAOutDone Kind = "NPU_DMA_OUT_DONE"

	// KindRecvCred travels router -> upstream and carries CreditPayload.
	KindRecvCred Kind = "RECV_CRED"

	// KindRetrySend is a self-event carrying RetryPayload.
	KindRetrySend Kind = "RETRY_SEND"

	// KindPipeStage and KindPipelineTick are pipeline self-events. The
	// PIPELINE_TICK events the pipeline skeleton and the router schedule
	// carry no payload.
	KindPipeStage    Kind = "PIPE_STAGE"
	KindPipelineTick Kind = "PIPELINE_TICK"

	// KindIODMC is the IOD's self-event driving one memory-controller
	// queue's per-(stack, channel) access timing. It carries
	// IODMCPayload.
	KindIODMC Kind = "IOD_MC"

	// KindRunProgram is the CP's self-ticking control-loop event. It
	// carries no payload; Event.Program names the program.
	KindRunProgram Kind = "RUN_PROGRAM"
)

// IsRouted reports whether events of this kind are handled generically by
// a router's RC/VA/SA/ST pipeline (as opposed to terminating at the router
// itself, e.g. KindRecvCred).
func (k Kind) IsRouted() bool {
	switch k {
	case KindPacket, KindNPUDMAIn, KindNPUCmd, KindNPUDMAOut,
		KindDMARead, KindDMAWrite, KindDMAReadReply, KindWriteReply,
		KindNPUDMAInDone, KindNPUCmdDone, KindNPUDMAOutDone:
		return true
	default:
		return false
	}
}
