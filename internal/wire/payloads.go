package wire

import "github.com/safevault/node/internal/xorname"

// PayloadKind values distinguish the concrete Go type carried in a
// Message's RLP-encoded Payload, within a given Category. The dispatcher
// switches on (Category, PayloadKind) to pick a decode target and handler.
const (
	// NodeCmd payload kinds — adult/elder-to-adult chunk operations.
	PayloadChunksWriteNew uint8 = iota
	PayloadChunksWriteDeletePrivate
	PayloadChunksReadGet
	PayloadChunksReadGetResponse
	PayloadSystemReplicateChunk
	PayloadAdultsChanged

	// NodeCmd payload kinds — transfers.
	PayloadTransferValidate
	PayloadTransferValidated
	PayloadTransferRegister
	PayloadTransferRegistered
	PayloadTransferPropagate
	PayloadTransferPropagated
	PayloadTransferProposeValidation

	// NodeCmd payload kinds — genesis.
	PayloadProposeGenesis
	PayloadAccumulateGenesis

	// CmdError payload kind.
	PayloadCmdError
)

// ChunksWriteNew carries a newly-put chunk's serialized bytes (produced by
// chunk.Marshal) from an elder to a target adult, or from a client to an
// elder. DebitProof/CreditProof carry the store-cost payment that must be
// settled before the elder forwards this command (spec.md §4.3): a client
// submission always sets them, an elder-to-adult forward leaves them zero.
// Requester is the submitting client's key, checked against a private
// chunk's claimed owner.
type ChunksWriteNew struct {
	Serialized  []byte
	Requester   [32]byte
	DebitProof  TransferAgreementProof
	CreditProof CreditAgreementProof
}

// ChunksWriteDeletePrivate requests deletion of a private chunk.
type ChunksWriteDeletePrivate struct {
	Kind uint8
	Name xorname.Name
}

// ChunksReadGet requests a stored chunk by address.
type ChunksReadGet struct {
	Kind uint8
	Name xorname.Name
}

// ChunksReadGetResponse is an adult's reply to ChunksReadGet.
type ChunksReadGetResponse struct {
	Found      bool
	Serialized []byte
}

// SystemReplicateChunk asks a surviving holder to push a copy of a chunk to
// fill a missing replica slot (spec.md §4.2, churn — holder lost).
type SystemReplicateChunk struct {
	Kind   uint8
	Name   xorname.Name
	Target xorname.Name
}

// AdultsChanged reports adults that left the section's adult set.
type AdultsChanged struct {
	Removed []xorname.Name
}

// CmdError codes (spec.md §7): the subset of the node-wide error taxonomy
// that is ever surfaced to a client rather than only logged.
const (
	CmdErrorGeneric uint8 = iota
	CmdErrorInsufficientBalance
	CmdErrorAccessDenied
	CmdErrorNoSuchData
)

// CmdErrorPayload reports a terminal error to the origin (spec.md §7).
type CmdErrorPayload struct {
	Code          uint8
	Message       string
	CorrelationID MsgId
}
