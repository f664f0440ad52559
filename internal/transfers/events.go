// Package transfers implements the elder-side AT2-style Replica (spec.md
// §4.3, component C6): a per-wallet append-only event log, validated
// through BLS-threshold-signed debit/credit proofs.
//
// Grounded on original_source/src/node/elder_duties/key_section/transfers/
// replicas.rs for the validate/register/receive_propagated/propose_validation
// state machine, and on core/ledger.go's WAL-append-then-apply-in-memory
// sequencing for the on-disk event log.
package transfers

import (
	"github.com/safevault/node/internal/wire"
)

// EventKind discriminates the four ReplicaEvent variants (spec.md §3).
type EventKind uint8

const (
	EventValidationProposed EventKind = iota
	EventValidated
	EventRegistered
	EventPropagated
)

// Event is one append-only record in a wallet's history. Only the fields
// relevant to the event's Kind are populated.
type Event struct {
	Kind EventKind

	// Populated for Validated and Registered (the debit side).
	Debit           wire.Debit
	Credit          wire.Credit
	ReplicaDebitSig []byte
	ReplicaCreditSig []byte

	// Populated for Registered: the threshold-aggregated proof that
	// authorized advancing nextDebitVersion.
	AggregatedDebitSig  []byte
	AggregatedCreditSig []byte

	// Populated for Propagated (the credit side, at the recipient).
	CreditProofSig      []byte
	CreditingReplicaKey []byte
}

// Sender returns the wallet this event's debit side belongs to, or the zero
// WalletID for Propagated events (use Recipient instead).
func (e Event) Sender() wire.WalletID { return e.Debit.Sender }

// Recipient returns the wallet this event's credit side belongs to.
func (e Event) Recipient() wire.WalletID { return e.Credit.Recipient }

// OwnerOf returns the wallet whose log this event belongs to: the sender for
// debit-side events, the recipient for a Propagated credit event.
func (e Event) OwnerOf() wire.WalletID {
	if e.Kind == EventPropagated {
		return e.Credit.Recipient
	}
	return e.Debit.Sender
}
