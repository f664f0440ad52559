package role

import (
	"sync"

	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/transfers"
	"github.com/safevault/node/internal/wire"
)

// Stage is spec.md §3's GenesisStage: a one-way progression that never goes
// backwards. Once Completed, further proposals are ignored (spec.md §4.4),
// grounded on original_source/src/node/genesis.rs's GenesisStage enum.
type Stage int

const (
	StageNone Stage = iota
	StageAwaitingThreshold
	StageProposing
	StageAccumulating
	StageCompleted
)

// Genesis drives the two-phase BLS accumulation that mints the section
// wallet's first TransferPropagated event (spec.md §4.4): elders first
// accumulate signature shares into a ProposeGenesis agreement, then
// accumulate a second round into the AccumulateGenesis credit proof.
//
// Both rounds sign the same canonical credit bytes (transfers.
// CreditSigningBytes) so the resulting proof verifies directly against
// Replica.ReceivePropagated without needing a second wire message format —
// the two rounds model the source's two broadcast phases as two literal
// BLS threshold rounds over one message, rather than inventing a
// SignedCredit-over-SignedCredit encoding the rest of this system has no
// other use for.
type Genesis struct {
	mu sync.Mutex

	stage     Stage
	threshold int
	credit    wire.Credit

	proposal   *blscrypto.Accumulator
	proof      *wire.CreditAgreementProof
	accumulate *blscrypto.Accumulator
}

// NewGenesis returns a Genesis ceremony requiring `threshold` distinct
// elder shares per round.
func NewGenesis(threshold int) *Genesis {
	return &Genesis{stage: StageNone, threshold: threshold}
}

// Stage reports the ceremony's current stage.
func (g *Genesis) Stage() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stage
}

// Begin seeds the ceremony with the section wallet's genesis credit
// (spec.md §4.4's begin_forming_genesis_section), moving None ->
// AwaitingGenesisThreshold. Calling Begin more than once, or after shares
// have already arrived via AddProposalShare, is a no-op.
func (g *Genesis) Begin(credit wire.Credit) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StageNone {
		return
	}
	g.credit = credit
	g.proposal = blscrypto.NewAccumulator(g.threshold)
	g.stage = StageAwaitingThreshold
}

// AddProposalShare feeds one elder's ProposeGenesis signature share into the
// first accumulation round. It is safe to call before Begin: the first
// share seeds the credit exactly as Begin would. The share that reaches the
// first threshold moves the ceremony into AccumulatingGenesis and returns
// nil, as do all shares before it; the final CreditAgreementProof is
// returned only once the ceremony has Completed.
func (g *Genesis) AddProposalShare(credit wire.Credit, shareIndex int, sig blscrypto.Signature, groupKey blscrypto.GroupPublicKey) (*wire.CreditAgreementProof, error) {
	g.mu.Lock()
	if g.stage == StageNone {
		g.credit = credit
		g.proposal = blscrypto.NewAccumulator(g.threshold)
		g.stage = StageAwaitingThreshold
	}
	if g.stage == StageCompleted || g.stage == StageAccumulating {
		proof := g.proof
		g.mu.Unlock()
		return proof, nil
	}
	g.stage = StageProposing
	reached := g.proposal.Add(shareIndex, sig)
	acc := g.proposal
	g.mu.Unlock()

	if !reached {
		return nil, nil
	}
	return nil, g.enterAccumulation(acc)
}

// enterAccumulation combines the first-round shares (proving the proposal
// threshold was reached) and opens the second accumulator. The combined
// first-round signature is itself discarded here: each elder independently
// contributes its own AccumulateGenesis share via AddAccumulationShare,
// signing the same canonical credit bytes, exactly as genesis.rs's second
// broadcast phase does.
func (g *Genesis) enterAccumulation(acc *blscrypto.Accumulator) error {
	if _, err := acc.Combine(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage == StageAccumulating || g.stage == StageCompleted {
		return nil
	}
	g.stage = StageAccumulating
	g.accumulate = blscrypto.NewAccumulator(g.threshold)
	return nil
}

// AddAccumulationShare feeds one elder's AccumulateGenesis signature share
// into the second round. Returns the final CreditAgreementProof once the
// second threshold is reached, moving Accumulating -> Completed; nil
// (without error) until then.
func (g *Genesis) AddAccumulationShare(shareIndex int, sig blscrypto.Signature, groupKey blscrypto.GroupPublicKey) (*wire.CreditAgreementProof, error) {
	g.mu.Lock()
	if g.stage == StageCompleted {
		proof := g.proof
		g.mu.Unlock()
		return proof, nil
	}
	if g.stage != StageAccumulating {
		g.mu.Unlock()
		return nil, nil
	}
	reached := g.accumulate.Add(shareIndex, sig)
	acc := g.accumulate
	credit := g.credit
	g.mu.Unlock()

	if !reached {
		return nil, nil
	}
	combined, err := acc.Combine()
	if err != nil {
		return nil, err
	}

	proof := &wire.CreditAgreementProof{
		Credit:          credit,
		CreditSig:       combined.Bytes(),
		ReplicaGroupKey: groupKey.Bytes(),
	}

	g.mu.Lock()
	if g.stage != StageCompleted {
		g.proof = proof
		g.stage = StageCompleted
	}
	result := g.proof
	g.mu.Unlock()
	return result, nil
}

// Credit returns the genesis credit this ceremony is proposing, once known.
func (g *Genesis) Credit() (wire.Credit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.credit, g.stage != StageNone
}

// CreditSigningBytes re-exports transfers.CreditSigningBytes so callers in
// this package don't need a second import alias for the same helper.
var CreditSigningBytes = transfers.CreditSigningBytes
