package transfers

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/wire"
)

// ActorVerifier checks a client-submitted actor signature over msg for the
// given wallet. Actor key management (ed25519) is an external collaborator
// per spec.md §1 ("the crypto primitives ... assumed available with the
// usual contracts"); tests supply a stub.
type ActorVerifier func(wallet wire.WalletID, msg []byte, sig []byte) bool

// Info bundles one elder's share of the replica group's BLS key material.
type Info struct {
	ShareIndex    int
	SecretShare   blscrypto.SecretKeyShare
	GroupKey      blscrypto.GroupPublicKey
	PastGroupKeys []blscrypto.GroupPublicKey
	Threshold     int
	VerifyActor   ActorVerifier
}

// Replica is one elder's share of the transfer state machine (spec.md
// §4.3, component C6): per-wallet event logs guarded by per-wallet
// mutexes, with a single outer lock serializing log *creation* only.
type Replica struct {
	rootDir string
	info    Info
	log     *logrus.Entry

	creationMu sync.Mutex
	locksMu    sync.Mutex
	locks      map[wire.WalletID]*sync.Mutex
	logs       map[wire.WalletID]*eventLog

	proposalsMu sync.Mutex
	proposals   map[[32]byte]*blscrypto.Accumulator
	pendingBy   map[[32]byte]wire.TransferShare
}

// New returns a Replica rooted at dir.
func New(dir string, info Info, log *logrus.Logger) *Replica {
	if log == nil {
		log = logrus.New()
	}
	if info.VerifyActor == nil {
		info.VerifyActor = func(wire.WalletID, []byte, []byte) bool { return true }
	}
	return &Replica{
		rootDir:   dir,
		info:      info,
		log:       log.WithField("component", "transfers"),
		locks:     make(map[wire.WalletID]*sync.Mutex),
		logs:      make(map[wire.WalletID]*eventLog),
		proposals: make(map[[32]byte]*blscrypto.Accumulator),
		pendingBy: make(map[[32]byte]wire.TransferShare),
	}
}

// walletLock returns the mutex guarding id's event log, without creating the
// log itself. Acquiring the table lock is brief (spec.md §9): only to find
// or insert the per-wallet mutex.
func (r *Replica) walletLock(id wire.WalletID) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	return m
}

func (r *Replica) openLog(id wire.WalletID) (*eventLog, error) {
	r.locksMu.Lock()
	l, ok := r.logs[id]
	r.locksMu.Unlock()
	if ok {
		return l, nil
	}
	l, err := openEventLog(r.rootDir, id)
	if err != nil {
		return nil, err
	}
	r.locksMu.Lock()
	r.logs[id] = l
	r.locksMu.Unlock()
	return l, nil
}

func (r *Replica) loadState(id wire.WalletID) (*eventLog, *WalletState, error) {
	l, err := r.openLog(id)
	if err != nil {
		return nil, nil, err
	}
	events, err := l.readAll()
	if err != nil {
		return nil, nil, err
	}
	return l, Replay(events), nil
}

// Balance returns id's current derived balance, 0 if the wallet has no
// history yet.
func (r *Replica) Balance(id wire.WalletID) (uint64, error) {
	lock := r.walletLock(id)
	lock.Lock()
	defer lock.Unlock()
	_, state, err := r.loadState(id)
	if err != nil {
		return 0, err
	}
	return state.Balance, nil
}

// History returns id's full event log.
func (r *Replica) History(id wire.WalletID) ([]Event, error) {
	lock := r.walletLock(id)
	lock.Lock()
	defer lock.Unlock()
	l, err := r.openLog(id)
	if err != nil {
		return nil, err
	}
	return l.readAll()
}

// Validate is step 1 of a debit (spec.md §4.3): verify the actor signature,
// the version/balance/credit invariants, then sign both halves with this
// replica's BLS share and append TransferValidated.
func (r *Replica) Validate(signed wire.SignedTransfer) (wire.TransferValidatedPayload, error) {
	id := signed.Debit.Sender
	lock := r.walletLock(id)
	lock.Lock()
	defer lock.Unlock()

	debitMsg := debitSigningBytes(signed.Debit)
	if !r.info.VerifyActor(id, debitMsg, signed.DebitSig) {
		return wire.TransferValidatedPayload{}, fmt.Errorf("transfers: %w: actor signature", verr.ProtocolViolation)
	}

	l, state, err := r.loadState(id)
	if err != nil {
		return wire.TransferValidatedPayload{}, err
	}
	if err := state.ValidateDebit(signed.Debit, signed.Credit); err != nil {
		return wire.TransferValidatedPayload{}, err
	}

	debitSig := r.info.SecretShare.Sign(debitMsg)
	creditSig := r.info.SecretShare.Sign(creditSigningBytes(signed.Credit))

	event := Event{
		Kind:             EventValidated,
		Debit:            signed.Debit,
		Credit:           signed.Credit,
		ReplicaDebitSig:  debitSig.Bytes(),
		ReplicaCreditSig: creditSig.Bytes(),
	}
	if err := l.append(event); err != nil {
		return wire.TransferValidatedPayload{}, err
	}
	state.apply(event)

	return wire.TransferValidatedPayload{
		Debit:            event.Debit,
		Credit:           event.Credit,
		ReplicaDebitSig:  event.ReplicaDebitSig,
		ReplicaCreditSig: event.ReplicaCreditSig,
		ShareIndex:       r.info.ShareIndex,
	}, nil
}

// Register is step 2 (spec.md §4.3): verify the threshold-aggregated proof
// against the replica group key (tolerating past keys per the section
// chain), then append TransferRegistered and advance the debit version.
// Registering an already-registered debit is an idempotent no-op error
// (verr.AlreadyRegistered), distinguished from a hard failure so callers
// can treat retries as success.
func (r *Replica) Register(proof wire.TransferAgreementProof) (Event, error) {
	id := proof.Debit.Sender
	lock := r.walletLock(id)
	lock.Lock()
	defer lock.Unlock()

	l, state, err := r.loadState(id)
	if err != nil {
		return Event{}, err
	}
	if state.HasRegistered(proof.Debit.ID) {
		return Event{}, verr.AlreadyRegistered
	}

	if !r.verifyAgreement(proof.DebitSig, debitSigningBytes(proof.Debit), proof.ReplicaGroupKey) {
		return Event{}, fmt.Errorf("transfers: %w: debit proof signature", verr.ProtocolViolation)
	}
	if !r.verifyAgreement(proof.CreditSig, creditSigningBytes(proof.Credit), proof.ReplicaGroupKey) {
		return Event{}, fmt.Errorf("transfers: %w: credit proof signature", verr.ProtocolViolation)
	}

	event := Event{
		Kind:                EventRegistered,
		Debit:               proof.Debit,
		Credit:              proof.Credit,
		AggregatedDebitSig:  proof.DebitSig,
		AggregatedCreditSig: proof.CreditSig,
	}
	if err := l.append(event); err != nil {
		return Event{}, err
	}
	state.apply(event)
	return event, nil
}

// ReceivePropagated is step 3 (spec.md §4.3), idempotent at the recipient:
// create the wallet lazily if it has no history yet, verify the credit's
// group signature, and apply TransferPropagated only if the credit id is
// new.
func (r *Replica) ReceivePropagated(proof wire.CreditAgreementProof) (Event, error) {
	id := proof.Credit.Recipient

	// Wallet creation races are serialized by creationMu; normal access to
	// an existing wallet only needs the per-wallet lock (spec.md §9).
	r.creationMu.Lock()
	lock := r.walletLock(id)
	r.creationMu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	l, state, err := r.loadState(id)
	if err != nil {
		return Event{}, err
	}

	if !r.verifyAgreement(proof.CreditSig, creditSigningBytes(proof.Credit), proof.ReplicaGroupKey) {
		return Event{}, fmt.Errorf("transfers: %w: credit proof signature", verr.ProtocolViolation)
	}

	if state.HasCredit(proof.Credit.ID) {
		// Idempotent success: find and return the existing event.
		events, err := l.readAll()
		if err != nil {
			return Event{}, err
		}
		for _, e := range events {
			if e.Kind == EventPropagated && e.Credit.ID == proof.Credit.ID {
				return e, nil
			}
		}
		return Event{}, fmt.Errorf("transfers: credit marked seen but event missing")
	}

	event := Event{
		Kind:                EventPropagated,
		Credit:              proof.Credit,
		CreditProofSig:      proof.CreditSig,
		CreditingReplicaKey: r.info.GroupKey.Bytes(),
	}
	if err := l.append(event); err != nil {
		return Event{}, err
	}
	state.apply(event)
	return event, nil
}

// ProposeValidation is the multi-signature path for section-owned wallets
// (spec.md §4.3): accumulate actor signature shares for one debit id until
// the configured BLS threshold is reached, then proceed as in Validate.
func (r *Replica) ProposeValidation(share wire.TransferShare) (*wire.TransferValidatedPayload, error) {
	r.proposalsMu.Lock()
	acc, ok := r.proposals[share.Debit.ID]
	if !ok {
		acc = blscrypto.NewAccumulator(r.info.Threshold)
		r.proposals[share.Debit.ID] = acc
		r.pendingBy[share.Debit.ID] = share
	}
	sig, err := blscrypto.SignatureFromBytes(share.ActorSig)
	if err != nil {
		r.proposalsMu.Unlock()
		return nil, fmt.Errorf("transfers: %w: malformed actor share", verr.ProtocolViolation)
	}
	reached := acc.Add(share.ShareIndex, sig)
	first := r.pendingBy[share.Debit.ID]
	r.proposalsMu.Unlock()

	if !reached {
		return nil, nil
	}

	combined, err := acc.Combine()
	if err != nil {
		return nil, err
	}

	r.proposalsMu.Lock()
	delete(r.proposals, share.Debit.ID)
	delete(r.pendingBy, share.Debit.ID)
	r.proposalsMu.Unlock()

	signed := wire.SignedTransfer{
		Debit:     first.Debit,
		DebitSig:  combined.Bytes(),
		Credit:    first.Credit,
		CreditSig: combined.Bytes(),
	}
	validated, err := r.Validate(signed)
	if err != nil {
		return nil, err
	}
	return &validated, nil
}

// KeepWallets closes and forgets the wallet mutex/log handles of every open
// wallet for which keep returns false (spec.md §4.4, section split). It does
// not delete on-disk logs, and it does not block later access: a subsequent
// call that touches a pruned wallet reopens its log from disk.
func (r *Replica) KeepWallets(keep func(wire.WalletID) bool) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	for id, l := range r.logs {
		if !keep(id) {
			_ = l.close()
			delete(r.logs, id)
			delete(r.locks, id)
		}
	}
}

func (r *Replica) verifyAgreement(sigBytes, msg, groupKeyBytes []byte) bool {
	sig, err := blscrypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return false
	}
	if len(groupKeyBytes) > 0 {
		if pk, err := blscrypto.GroupPublicKeyFromBytes(groupKeyBytes); err == nil {
			if bytes.Equal(pk.Bytes(), r.info.GroupKey.Bytes()) && blscrypto.Verify(r.info.GroupKey, msg, sig) {
				return true
			}
			for _, past := range r.info.PastGroupKeys {
				if bytes.Equal(pk.Bytes(), past.Bytes()) && blscrypto.Verify(past, msg, sig) {
					return true
				}
			}
			return false
		}
	}
	if blscrypto.Verify(r.info.GroupKey, msg, sig) {
		return true
	}
	for _, past := range r.info.PastGroupKeys {
		if blscrypto.Verify(past, msg, sig) {
			return true
		}
	}
	return false
}

func debitSigningBytes(d wire.Debit) []byte {
	return []byte(fmt.Sprintf("debit:%x:%x:%d:%d", d.ID, d.Sender, d.Version, d.Amount))
}

func creditSigningBytes(c wire.Credit) []byte {
	return []byte(fmt.Sprintf("credit:%x:%x:%d:%s", c.ID, c.Recipient, c.Amount, c.Msg))
}

// CreditSigningBytes is creditSigningBytes exported for callers outside this
// package (the genesis ceremony in internal/role) that must produce BLS
// shares over the exact bytes Validate/Register/ReceivePropagated verify
// against.
func CreditSigningBytes(c wire.Credit) []byte { return creditSigningBytes(c) }
