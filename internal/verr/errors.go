// Package verr defines the node-wide error taxonomy from spec.md §7:
// transient I/O, capacity, not-found, access-denied, protocol-violation,
// duplicate and budget errors. Handlers compare against these sentinels with
// errors.Is; callers wrap with fmt.Errorf("...: %w", verr.X) the way
// core/ledger.go wraps I/O errors throughout that package.
package verr

import "errors"

var (
	// Io is a transient or persistent I/O failure.
	Io = errors.New("io error")

	// NotEnoughSpace is returned when a chunk-store reservation would
	// exceed the shared capacity budget.
	NotEnoughSpace = errors.New("not enough space")

	// NoSuchChunk is returned when a chunk cannot be found, or when a
	// read chunk's id does not match the id requested (corruption guard).
	NoSuchChunk = errors.New("no such chunk")

	// NoSuchData is returned when blob-register metadata for an address
	// is absent.
	NoSuchData = errors.New("no such data")

	// NoSuchEntry is returned for a missing map/sequence/login-packet
	// entry.
	NoSuchEntry = errors.New("no such entry")

	// AccessDenied is returned when a caller does not own private data.
	AccessDenied = errors.New("access denied")

	// InvalidOwners is returned when a private chunk's claimed owner does
	// not match the submitting client.
	InvalidOwners = errors.New("invalid owners")

	// ProtocolViolation covers invalid signatures, version gaps and
	// accumulation from non-elders: logged and dropped, never surfaced to
	// the client directly.
	ProtocolViolation = errors.New("protocol violation")

	// DataExists is returned when a Map, Sequence or LoginPacket is
	// created at an address already in use (metadata.Store's Put methods).
	// A re-registered transfer reports AlreadyRegistered instead.
	DataExists = errors.New("data already exists")

	// InsufficientBalance is a budget failure: the wallet does not hold
	// enough to cover a debit.
	InsufficientBalance = errors.New("insufficient balance")

	// InsufficientPayment is a budget failure: a data-store payment was
	// below the computed cost; the payment credit is forfeited.
	InsufficientPayment = errors.New("insufficient payment")

	// InvalidSuccessor is returned when a mutation targets a stale
	// version of a Map or Sequence.
	InvalidSuccessor = errors.New("invalid successor version")

	// AlreadyRegistered is returned when register() is called twice for
	// the same debit; callers treat the second call as a non-error no-op.
	AlreadyRegistered = errors.New("transfer already registered")
)
