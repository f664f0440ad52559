package role

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/blobregister"
	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/capacity"
	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/chunkstore"
	"github.com/safevault/node/internal/liveness"
	"github.com/safevault/node/internal/routing"
	"github.com/safevault/node/internal/transfers"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

func TestPromoteToAdultRequiresAgeAboveMin(t *testing.T) {
	n := NewNode()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cs, err := chunkstore.Open(t.TempDir(), 1<<20, log)
	require.NoError(t, err)

	err = n.PromoteToAdult(cs)
	require.Error(t, err)
	require.Equal(t, KindInfant, n.Kind())

	n.SetAge(5)
	require.NoError(t, n.PromoteToAdult(cs))
	require.Equal(t, KindAdult, n.Kind())
	require.NotNil(t, n.Chunks())
}

func TestPromoteToElderRequiresAdult(t *testing.T) {
	n := NewNode()
	err := n.PromoteToElder(&ElderComponents{})
	require.Error(t, err)
}

func TestElderLifecycleAndDemotion(t *testing.T) {
	n := NewNode()
	log := logrus.New()
	cs, err := chunkstore.Open(t.TempDir(), 1<<20, log)
	require.NoError(t, err)
	n.SetAge(10)
	require.NoError(t, n.PromoteToAdult(cs))

	require.NoError(t, n.PromoteToElder(&ElderComponents{}))
	require.Equal(t, KindElder, n.Kind())
	require.False(t, n.Elder().ReceivedInitialSync)

	n.MarkInitialSyncComplete()
	require.True(t, n.Elder().ReceivedInitialSync)

	n.DemoteToAdult()
	require.Equal(t, KindAdult, n.Kind())
	require.Nil(t, n.Elder())
	require.NotNil(t, n.Chunks(), "demotion must retain the chunk store")
}

func TestSplitRequiresElder(t *testing.T) {
	n := NewNode()
	_, err := n.Split(routing.Prefix{})
	require.Error(t, err)
}

func TestSplitPrunesChunksOutsideNewPrefix(t *testing.T) {
	n := NewNode()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cs, err := chunkstore.Open(t.TempDir(), 1<<20, log)
	require.NoError(t, err)
	n.SetAge(10)
	require.NoError(t, n.PromoteToAdult(cs))

	reg := blobregister.New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("split-me"))
	var holder xorname.Name
	holder[0] = 1
	_, err = reg.PutNew(xorname.Name{}, blob, wire.MsgId{1}, chunk.PublicKey{}, []xorname.Name{holder})
	require.NoError(t, err)
	addr := blob.Address()

	shares, groupPK, err := blscrypto.GenerateKeyShares(1, 1)
	require.NoError(t, err)
	replica := transfers.New(t.TempDir(), transfers.Info{ShareIndex: 0, SecretShare: shares[0], GroupKey: groupPK, Threshold: 1}, log)
	var outsideWallet wire.WalletID
	outsideWallet[0] = 0x80
	_, err = replica.Balance(outsideWallet) // opens the wallet's log so KeepWallets has it to prune
	require.NoError(t, err)

	require.NoError(t, n.PromoteToElder(&ElderComponents{BlobRegister: reg, Transfers: replica}))

	bit0 := addr.Name[0]&0x80 != 0
	newPrefix := routing.Prefix{Bits: []bool{!bit0}}

	pruned, err := n.Split(newPrefix)
	require.NoError(t, err)
	require.Equal(t, 1, pruned, "the sole chunk falls outside the new prefix and must be pruned")
	require.Equal(t, 0, reg.HolderCount(addr))
}
