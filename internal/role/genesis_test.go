package role

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/transfers"
	"github.com/safevault/node/internal/wire"
)

// TestGenesisSevenElderSection is scenario S5: seven elder key shares, a
// 5-of-7 threshold. Five elders send ProposeGenesis shares; the fifth
// crosses the first threshold. The same five then send AccumulateGenesis
// shares, and once that threshold is reached the ceremony holds a credit
// proof crediting the section wallet with transfers.GenesisAmount that
// verifies under the group key.
func TestGenesisSevenElderSection(t *testing.T) {
	const elders = 7
	const threshold = 5

	shares, groupKey, err := blscrypto.GenerateKeyShares(threshold, elders)
	require.NoError(t, err)

	var sectionWallet wire.WalletID
	sectionWallet[0] = 0x42
	credit := transfers.NewGenesisCredit(sectionWallet)
	msg := transfers.CreditSigningBytes(credit)

	g := NewGenesis(threshold)
	g.Begin(credit)
	require.Equal(t, StageAwaitingThreshold, g.Stage())

	for i := 0; i < threshold; i++ {
		sig := shares[i].Sign(msg)
		_, err := g.AddProposalShare(credit, i, sig, groupKey)
		require.NoError(t, err)
	}
	require.Equal(t, StageAccumulating, g.Stage())

	var proof *wire.CreditAgreementProof
	for i := 0; i < threshold; i++ {
		sig := shares[i].Sign(msg)
		proof, err = g.AddAccumulationShare(i, sig, groupKey)
		require.NoError(t, err)
	}
	require.NotNil(t, proof)
	require.Equal(t, transfers.GenesisAmount, proof.Credit.Amount)
	require.Equal(t, StageCompleted, g.Stage())

	require.True(t, blscrypto.Verify(groupKey, msg, mustSig(t, proof.CreditSig)))
}

func TestGenesisIgnoresSharesAfterCompletion(t *testing.T) {
	shares, groupKey, err := blscrypto.GenerateKeyShares(2, 3)
	require.NoError(t, err)

	var sectionWallet wire.WalletID
	sectionWallet[0] = 7
	credit := transfers.NewGenesisCredit(sectionWallet)
	msg := transfers.CreditSigningBytes(credit)

	g := NewGenesis(2)
	g.Begin(credit)
	for i := 0; i < 2; i++ {
		_, err := g.AddProposalShare(credit, i, shares[i].Sign(msg), groupKey)
		require.NoError(t, err)
	}
	var first *wire.CreditAgreementProof
	for i := 0; i < 2; i++ {
		first, err = g.AddAccumulationShare(i, shares[i].Sign(msg), groupKey)
		require.NoError(t, err)
	}
	require.NotNil(t, first)

	// A further accumulation share after completion must not change the
	// stored proof or error.
	again, err := g.AddAccumulationShare(2, shares[2].Sign(msg), groupKey)
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func mustSig(t *testing.T, b []byte) blscrypto.Signature {
	t.Helper()
	sig, err := blscrypto.SignatureFromBytes(b)
	require.NoError(t, err)
	return sig
}
