package transfers

import (
	"fmt"

	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/wire"
)

// WalletState is the derived state of a wallet's event log (spec.md §3):
// balance, the next expected debit version, and any debit that has been
// validated but not yet registered.
type WalletState struct {
	Balance          uint64
	NextDebitVersion uint64
	PendingDebit     *wire.Debit

	// seenCredits guards credit idempotency: a credit id is applied at
	// most once, however many times it is propagated.
	seenCredits map[[32]byte]struct{}
	// registeredDebits guards against re-registering the same debit id.
	registeredDebits map[[32]byte]struct{}
}

// NewWalletState returns a fresh wallet with no history; NextDebitVersion
// starts at 1 so the first validated debit must carry Version == 1.
func NewWalletState() *WalletState {
	return &WalletState{
		NextDebitVersion: 1,
		seenCredits:      make(map[[32]byte]struct{}),
		registeredDebits: make(map[[32]byte]struct{}),
	}
}

// Replay folds a wallet's event history into a WalletState.
func Replay(events []Event) *WalletState {
	w := NewWalletState()
	for _, e := range events {
		w.apply(e)
	}
	return w
}

func (w *WalletState) apply(e Event) {
	switch e.Kind {
	case EventRegistered:
		if _, ok := w.registeredDebits[e.Debit.ID]; ok {
			return
		}
		w.registeredDebits[e.Debit.ID] = struct{}{}
		w.Balance -= e.Debit.Amount
		w.NextDebitVersion = e.Debit.Version + 1
		w.PendingDebit = nil
	case EventPropagated:
		if _, ok := w.seenCredits[e.Credit.ID]; ok {
			return
		}
		w.seenCredits[e.Credit.ID] = struct{}{}
		w.Balance += e.Credit.Amount
	case EventValidated:
		d := e.Debit
		w.PendingDebit = &d
	case EventValidationProposed:
		// Tentative; no derived-state change until Validated.
	}
}

// ValidateDebit checks a proposed debit against the wallet's current
// derived state (spec.md §4.3 validate, step (b)/(c)/(d)):
//   - the debit version equals current+1 (gap-free, no duplicate)
//   - balance >= amount
//   - the credit amount matches the debit amount
func (w *WalletState) ValidateDebit(debit wire.Debit, credit wire.Credit) error {
	if debit.Version != w.NextDebitVersion {
		return fmt.Errorf("transfers: %w: expected version %d, got %d", verr.ProtocolViolation, w.NextDebitVersion, debit.Version)
	}
	if debit.Amount != credit.Amount {
		return fmt.Errorf("transfers: %w: debit/credit amount mismatch", verr.ProtocolViolation)
	}
	if w.Balance < debit.Amount {
		return fmt.Errorf("transfers: %w", verr.InsufficientBalance)
	}
	return nil
}

// HasRegistered reports whether debitID has already been registered,
// letting Register answer a replay with verr.AlreadyRegistered instead of
// appending a second TransferRegistered event.
func (w *WalletState) HasRegistered(debitID [32]byte) bool {
	_, ok := w.registeredDebits[debitID]
	return ok
}

// HasCredit reports whether creditID has already been applied, letting
// receive_propagated() short-circuit to Ok without appending (spec.md
// §4.3/§8: "A Propagated(credit_id) event appears at most once per wallet
// log").
func (w *WalletState) HasCredit(creditID [32]byte) bool {
	_, ok := w.seenCredits[creditID]
	return ok
}
