package dispatch

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestDispatchRejectsMessageNotAddressedToUs(t *testing.T) {
	us := xorname.Hash([]byte("us"))
	other := xorname.Hash([]byte("other"))
	d := New(us, quietLogger())
	d.Handle(wire.CategoryCmd, func(wire.Message) error { return nil })

	err := d.Dispatch(wire.Message{Dst: other, Category: wire.CategoryCmd})
	require.Error(t, err)
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	us := xorname.Hash([]byte("us"))
	d := New(us, quietLogger())

	var got wire.Message
	d.Handle(wire.CategoryQuery, func(msg wire.Message) error {
		got = msg
		return nil
	})

	msg := wire.Message{ID: wire.NewMsgId(), Dst: us, Category: wire.CategoryQuery, Payload: []byte("ask")}
	require.NoError(t, d.Dispatch(msg))
	require.Equal(t, msg.ID, got.ID)
}

func TestDispatchUnknownCategoryErrors(t *testing.T) {
	us := xorname.Hash([]byte("us"))
	d := New(us, quietLogger())
	err := d.Dispatch(wire.Message{Dst: us, Category: wire.CategoryEvent})
	require.Error(t, err)
}

func TestCorrelationRegisterResolveAndMiss(t *testing.T) {
	d := New(xorname.Hash([]byte("us")), quietLogger())
	origin := xorname.Hash([]byte("client"))
	id := wire.NewMsgId()

	d.RegisterOrigin(id, origin, time.Minute)
	got, ok := d.ResolveOrigin(id)
	require.True(t, ok)
	require.Equal(t, origin, got)

	// Resolving twice is a miss the second time: the correlation is consumed.
	_, ok = d.ResolveOrigin(id)
	require.False(t, ok)

	_, ok = d.ResolveOrigin(wire.NewMsgId())
	require.False(t, ok)
}

func TestCorrelationPurgeExpired(t *testing.T) {
	d := New(xorname.Hash([]byte("us")), quietLogger())
	origin := xorname.Hash([]byte("client"))

	live := wire.NewMsgId()
	stale := wire.NewMsgId()
	d.RegisterOrigin(live, origin, time.Hour)
	d.RegisterOrigin(stale, origin, time.Millisecond)

	expired := d.PurgeExpired(time.Now().Add(time.Second))
	require.Len(t, expired, 1)
	require.Equal(t, stale, expired[0])

	// The live correlation must still resolve.
	_, ok := d.ResolveOrigin(live)
	require.True(t, ok)
}

func TestAddSignatureShareDeliversOnceAtThreshold(t *testing.T) {
	const elders, threshold = 3, 2
	shares, groupKey, err := blscrypto.GenerateKeyShares(threshold, elders)
	require.NoError(t, err)

	us := xorname.Hash([]byte("section-elder"))
	d := New(us, quietLogger())

	delivered := 0
	d.Handle(wire.CategoryNodeCmd, func(wire.Message) error {
		delivered++
		return nil
	})

	msg := wire.Message{ID: wire.NewMsgId(), Dst: us, Category: wire.CategoryNodeCmd, Payload: []byte("replicate")}
	sectionPK := groupKey.Bytes()
	msgHash := msg.Hash(sectionPK)
	signingBytes := msgHash[:]

	sig0 := shares[0].Sign(signingBytes)
	require.NoError(t, d.AddSignatureShare(msg, sectionPK, 0, sig0, threshold))
	require.Equal(t, 0, delivered, "must not deliver before threshold")

	sig1 := shares[1].Sign(signingBytes)
	require.NoError(t, d.AddSignatureShare(msg, sectionPK, 1, sig1, threshold))
	require.Equal(t, 1, delivered, "must deliver exactly once at threshold")

	// A further, late share for the same (msg, sectionPK) must be absorbed
	// without re-delivering.
	sig2 := shares[2].Sign(signingBytes)
	require.NoError(t, d.AddSignatureShare(msg, sectionPK, 2, sig2, threshold))
	require.Equal(t, 1, delivered, "late share after completion must not re-deliver")
}

func TestAddSignatureShareDuplicateIndexIsIdempotent(t *testing.T) {
	const elders, threshold = 3, 2
	shares, groupKey, err := blscrypto.GenerateKeyShares(threshold, elders)
	require.NoError(t, err)

	us := xorname.Hash([]byte("section-elder"))
	d := New(us, quietLogger())
	d.Handle(wire.CategoryNodeCmd, func(wire.Message) error { return nil })

	msg := wire.Message{ID: wire.NewMsgId(), Dst: us, Category: wire.CategoryNodeCmd, Payload: []byte("replicate")}
	sectionPK := groupKey.Bytes()
	msgHash := msg.Hash(sectionPK)

	sig0 := shares[0].Sign(msgHash[:])
	require.NoError(t, d.AddSignatureShare(msg, sectionPK, 0, sig0, threshold))
	// Same sender resubmits its own share: must not count twice toward
	// threshold.
	require.NoError(t, d.AddSignatureShare(msg, sectionPK, 0, sig0, threshold))

	d.accMu.Lock()
	_, stillPending := d.accs[msgHash]
	d.accMu.Unlock()
	require.True(t, stillPending, "threshold of 2 must not be met by one distinct share repeated")
}
