package wire

import "github.com/safevault/node/internal/xorname"

// WalletID identifies a wallet by its owning public key. It is distinct
// from chunk.PublicKey (a different identifier space) even though both are
// 32-byte ed25519/BLS keys, to keep the wire and chunk packages decoupled.
type WalletID [32]byte

// Credit is the recipient-facing half of a transfer (spec.md §3/§4.3).
type Credit struct {
	ID        xorname.Name
	Amount    uint64
	Recipient WalletID
	Msg       string
}

// Debit is the sender-facing half of a transfer.
type Debit struct {
	ID      xorname.Name
	Sender  WalletID
	Version uint64
	Amount  uint64
}

// SignedTransfer is a client-submitted debit+credit pair, signed by the
// sending actor, submitted to validate() (spec.md §4.3 step 1).
type SignedTransfer struct {
	Debit     Debit
	DebitSig  []byte
	Credit    Credit
	CreditSig []byte
}

// TransferValidatedPayload is the event a Replica returns from validate():
// the debit/credit pair plus this replica's BLS signature shares over each.
type TransferValidatedPayload struct {
	Debit            Debit
	Credit           Credit
	ReplicaDebitSig  []byte
	ReplicaCreditSig []byte
	ShareIndex       int
}

// TransferAgreementProof is the threshold-aggregated proof submitted to
// register() (spec.md §4.3 step 2): a BLS signature over the matched
// debit+credit, valid under the replica group's (possibly past) public key.
type TransferAgreementProof struct {
	Debit           Debit
	Credit          Credit
	DebitSig        []byte
	CreditSig       []byte
	ReplicaGroupKey []byte
}

// CreditAgreementProof is the threshold-aggregated certificate propagated
// to the recipient's Replica (spec.md §4.3 step 3).
type CreditAgreementProof struct {
	Credit          Credit
	CreditSig       []byte
	ReplicaGroupKey []byte
}

// TransferShare is one actor's signature share over a pending transfer, used
// by the multi-signature path for section-owned wallets (propose_validation).
type TransferShare struct {
	Debit      Debit
	Credit     Credit
	ActorSig   []byte
	ShareIndex int
}

// ProposeGenesisPayload is the first-phase genesis broadcast: a proposed
// genesis credit plus this elder's BLS signature share over it.
type ProposeGenesisPayload struct {
	Credit     Credit
	SigShare   []byte
	ShareIndex int
}

// AccumulateGenesisPayload is the second-phase genesis broadcast: the
// phase-one aggregated signed credit plus this elder's share over it.
type AccumulateGenesisPayload struct {
	SignedCredit    Credit
	CreditSig       []byte
	SigShare        []byte
	ShareIndex      int
}
