package ratelimit

import (
	"errors"
	"fmt"

	"github.com/safevault/node/internal/transfers"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/wire"
)

// Gate enforces the store-cost payment rule ahead of a data command
// (spec.md §4.3, component C7): a payment credit must be registered at the
// sender-side replica and propagated to the section wallet before the data
// command it pays for is forwarded. Both steps happen regardless of
// whether the payment covers the cost — an underpaid credit is still
// registered and propagated, and therefore forfeited, rather than left
// pending (scenario S4).
type Gate struct {
	oracle  *Oracle
	replica *transfers.Replica
}

// NewGate returns a Gate that settles payments against replica, pricing
// each command with oracle.
func NewGate(oracle *Oracle, replica *transfers.Replica) *Gate {
	return &Gate{oracle: oracle, replica: replica}
}

// Admit registers debit and propagates credit at the replica, then checks
// the credited amount covers storing bytes at fillRatio. A nil return means
// the caller must forward the data command this payment accompanies. A
// verr.InsufficientPayment return means the credit has already been
// registered and propagated — and is thereby forfeited — and the caller
// must not forward the command.
func (g *Gate) Admit(debit wire.TransferAgreementProof, credit wire.CreditAgreementProof, bytes uint64, fillRatio float64) error {
	if _, err := g.replica.Register(debit); err != nil && !errors.Is(err, verr.AlreadyRegistered) {
		return fmt.Errorf("ratelimit: register payment: %w", err)
	}
	if _, err := g.replica.ReceivePropagated(credit); err != nil {
		return fmt.Errorf("ratelimit: propagate payment: %w", err)
	}
	if !g.oracle.Covers(credit.Credit.Amount, bytes, fillRatio) {
		return verr.InsufficientPayment
	}
	return nil
}
