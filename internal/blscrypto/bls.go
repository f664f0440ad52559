// Package blscrypto wraps BLS12-381 threshold signing and aggregation for
// the Replica's multisig path and the dispatcher's AtDestination
// accumulation (spec.md §4.3, §4.5).
//
// Grounded on core/security.go's herumi/bls-eth-go-binary usage: package
// init calls bls.Init(bls.BLS12_381) exactly once, and all signing/
// aggregation flows through that library rather than a hand-rolled curve.
package blscrypto

import (
	"fmt"
	"sync"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

var initOnce sync.Once
var initErr error

func ensureInit() error {
	initOnce.Do(func() {
		initErr = bls.Init(bls.BLS12_381)
		if initErr == nil {
			bls.SetETHmode(bls.EthModeDraft07)
		}
	})
	return initErr
}

// SecretKeyShare is one key-holder's share of a threshold BLS secret key.
type SecretKeyShare struct {
	sk bls.SecretKey
}

// PublicKeyShare is the public counterpart of a SecretKeyShare.
type PublicKeyShare struct {
	pk bls.PublicKey
}

// GroupPublicKey is the combined public key for a threshold group, against
// which aggregated signatures are verified.
type GroupPublicKey struct {
	pk bls.PublicKey
}

// Signature is a single share's signature over a message.
type Signature struct {
	sig bls.Sign
}

// GenerateKeyShares creates a (threshold, total) BLS key set using Shamir
// sharing over BLS12-381, as the section's BLS sharing ceremony would
// produce (spec.md explicitly leaves the ceremony itself out of scope; this
// is a local stand-in used in tests and single-process genesis).
func GenerateKeyShares(threshold, total int) ([]SecretKeyShare, GroupPublicKey, error) {
	if err := ensureInit(); err != nil {
		return nil, GroupPublicKey{}, fmt.Errorf("blscrypto: init: %w", err)
	}
	if threshold <= 0 || total < threshold {
		return nil, GroupPublicKey{}, fmt.Errorf("blscrypto: invalid threshold %d of %d", threshold, total)
	}

	master := make([]bls.SecretKey, threshold)
	for i := range master {
		master[i].SetByCSPRNG()
	}

	var groupPK bls.PublicKey
	groupPK = *master[0].GetPublicKey()

	shares := make([]SecretKeyShare, total)
	for i := 0; i < total; i++ {
		var sk bls.SecretKey
		id := idForIndex(i)
		if err := sk.Set(master, &id); err != nil {
			return nil, GroupPublicKey{}, fmt.Errorf("blscrypto: derive share %d: %w", i, err)
		}
		shares[i] = SecretKeyShare{sk: sk}
	}
	return shares, GroupPublicKey{pk: groupPK}, nil
}

func idForIndex(i int) bls.ID {
	var id bls.ID
	if err := id.SetDecString(fmt.Sprintf("%d", i+1)); err != nil {
		panic(fmt.Sprintf("blscrypto: bad share id: %v", err))
	}
	return id
}

// PublicKey derives this share's public key.
func (s SecretKeyShare) PublicKey() PublicKeyShare {
	return PublicKeyShare{pk: *s.sk.GetPublicKey()}
}

// Sign produces this share's signature over msg.
func (s SecretKeyShare) Sign(msg []byte) Signature {
	return Signature{sig: *s.sk.Sign(string(msg))}
}

// Bytes serializes the signature share for wire transport.
func (sig Signature) Bytes() []byte { return sig.sig.Serialize() }

// SignatureFromBytes parses a wire-transported signature share.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig bls.Sign
	if err := sig.Deserialize(b); err != nil {
		return Signature{}, fmt.Errorf("blscrypto: deserialize signature: %w", err)
	}
	return Signature{sig: sig}, nil
}

// Bytes serializes the group public key.
func (pk GroupPublicKey) Bytes() []byte { return pk.pk.Serialize() }

// GroupPublicKeyFromBytes parses a wire-transported group public key.
func GroupPublicKeyFromBytes(b []byte) (GroupPublicKey, error) {
	var pk bls.PublicKey
	if err := pk.Deserialize(b); err != nil {
		return GroupPublicKey{}, fmt.Errorf("blscrypto: deserialize group key: %w", err)
	}
	return GroupPublicKey{pk: pk}, nil
}

// Accumulator buffers per-share-index signatures over one logical message
// until a threshold count of distinct shares have been seen, then exposes
// the aggregated signature. Duplicate shares from the same index are
// idempotent (spec.md §4.5).
type Accumulator struct {
	mu        sync.Mutex
	threshold int
	shares    map[int]bls.Sign
}

// NewAccumulator returns an Accumulator requiring `threshold` distinct
// signature shares before Combine succeeds.
func NewAccumulator(threshold int) *Accumulator {
	return &Accumulator{threshold: threshold, shares: make(map[int]bls.Sign)}
}

// Add records shareIndex's signature. It returns true once the threshold has
// just been reached (on this or a prior call); adding an already-seen index
// again is a no-op.
func (a *Accumulator) Add(shareIndex int, sig Signature) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.shares[shareIndex]; !ok {
		a.shares[shareIndex] = sig.sig
	}
	return len(a.shares) >= a.threshold
}

// Count returns the number of distinct shares seen so far.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.shares)
}

// Combine aggregates the buffered shares into a single threshold signature.
// It fails if fewer than `threshold` distinct shares have been added.
func (a *Accumulator) Combine() (Signature, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.shares) < a.threshold {
		return Signature{}, fmt.Errorf("blscrypto: only %d/%d shares", len(a.shares), a.threshold)
	}

	ids := make([]bls.ID, 0, len(a.shares))
	sigs := make([]bls.Sign, 0, len(a.shares))
	for idx, sig := range a.shares {
		ids = append(ids, idForIndex(idx))
		sigs = append(sigs, sig)
	}

	var combined bls.Sign
	if err := combined.Recover(sigs, ids); err != nil {
		return Signature{}, fmt.Errorf("blscrypto: recover threshold signature: %w", err)
	}
	return Signature{sig: combined}, nil
}

// Verify checks sig is a valid signature over msg under pk.
func Verify(pk GroupPublicKey, msg []byte, sig Signature) bool {
	return sig.sig.Verify(&pk.pk, string(msg))
}
