package blobregister

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/capacity"
	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/liveness"
	"github.com/safevault/node/internal/routing"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

func adultSet(n int) []xorname.Name {
	out := make([]xorname.Name, n)
	for i := range out {
		out[i][0] = byte(i + 1)
	}
	return out
}

func TestPutNewSelectsAtMostCopyCountHolders(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("hello"))
	adults := adultSet(10)

	targets, err := r.PutNew(xorname.Name{}, blob, wire.MsgId{1}, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.LessOrEqual(t, len(targets), CopyCount)
	require.Equal(t, CopyCount, r.HolderCount(blob.Address()))
}

func TestPutNewRejectsWrongPrivateOwner(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	var owner, other chunk.PublicKey
	owner[0] = 1
	other[0] = 2
	blob := chunk.NewPrivateBlob([]byte("secret"), owner)

	_, err := r.PutNew(xorname.Name{}, blob, wire.MsgId{1}, other, adultSet(5))
	require.ErrorIs(t, err, verr.InvalidOwners)
}

func TestPutNewIsIdempotentUnderSameMsgID(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("data"))
	adults := adultSet(8)
	msgID := wire.MsgId{7}

	first, err := r.PutNew(xorname.Name{}, blob, msgID, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := r.PutNew(xorname.Name{}, blob, msgID, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestDeletePrivateRequiresOwnerMatch(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	var owner, other chunk.PublicKey
	owner[0] = 1
	other[0] = 2
	blob := chunk.NewPrivateBlob([]byte("secret"), owner)
	_, err := r.PutNew(xorname.Name{}, blob, wire.MsgId{1}, owner, adultSet(5))
	require.NoError(t, err)

	_, err = r.DeletePrivate(blob.Address(), other)
	require.ErrorIs(t, err, verr.AccessDenied)

	targets, err := r.DeletePrivate(blob.Address(), owner)
	require.NoError(t, err)
	require.NotEmpty(t, targets)
}

func TestDeletePrivateAbsentFails(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	_, err := r.DeletePrivate(chunk.Address{}, chunk.PublicKey{})
	require.ErrorIs(t, err, verr.NoSuchData)
}

func TestRecordWriteResponseFirstWins(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("x"))
	var origin xorname.Name
	origin[0] = 9
	msgID := wire.MsgId{2}
	adults := adultSet(4)
	targets, err := r.PutNew(origin, blob, msgID, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.NotEmpty(t, targets)

	got, ok := r.RecordWriteResponse(msgID, targets[0])
	require.True(t, ok)
	require.Equal(t, origin, got)

	_, ok = r.RecordWriteResponse(msgID, targets[0])
	require.False(t, ok, "second response from the same adult must be absorbed silently")

	_, ok = r.RecordWriteResponse(msgID, targets[1])
	require.False(t, ok, "a different adult's response must not re-deliver to the client")
}

func TestRecordWriteResponseClosesOutLivenessPerAdult(t *testing.T) {
	live := liveness.NewTracker(1) // threshold 1: a 2nd outstanding op trips unresponsive
	r := New(capacity.New(), live)
	adults := adultSet(1)
	target := adults[0]

	_, err := r.PutNew(xorname.Name{}, chunk.NewPublicBlob([]byte("y1")), wire.MsgId{10}, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.False(t, live.IsUnresponsive(target), "a single outstanding op must not trip threshold 1")

	_, err = r.PutNew(xorname.Name{}, chunk.NewPublicBlob([]byte("y2")), wire.MsgId{11}, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.True(t, live.IsUnresponsive(target), "a second outstanding op against the same sole adult crosses threshold 1")

	_, ok := r.RecordWriteResponse(wire.MsgId{10}, target)
	require.True(t, ok)
	require.False(t, live.IsUnresponsive(target), "a response must close out this adult's outstanding count")
}

func TestUnresponsiveSurfacesOverThresholdAdults(t *testing.T) {
	live := liveness.NewTracker(0) // falls back to liveness.DefaultThreshold
	r := New(capacity.New(), live)
	blob := chunk.NewPublicBlob([]byte("z"))
	target := adultSet(1)[0]

	for i := 0; i < liveness.DefaultThreshold+1; i++ {
		var msgID wire.MsgId
		msgID[0] = byte(i + 1)
		_, err := r.PutNew(xorname.Name{}, blob, msgID, chunk.PublicKey{}, []xorname.Name{target})
		require.NoError(t, err)
	}

	require.Contains(t, r.Unresponsive(), target)
	r.ForgetLiveness(target)
	require.NotContains(t, r.Unresponsive(), target)
}

func TestPruneNotMatchingDropsChunksOutsidePrefix(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("prune-me"))
	adults := adultSet(CopyCount)
	_, err := r.PutNew(xorname.Name{}, blob, wire.MsgId{1}, chunk.PublicKey{}, adults)
	require.NoError(t, err)

	addr := blob.Address()
	bit0 := addr.Name[0]&0x80 != 0
	otherPrefix := routing.Prefix{Bits: []bool{!bit0}}

	pruned := r.PruneNotMatching(otherPrefix)
	require.Equal(t, 1, pruned)
	require.Equal(t, 0, r.HolderCount(addr))
	for _, a := range adults {
		require.Empty(t, r.holderChunks[a], "pruned chunk must be removed from the holder index too")
	}
}

func TestAdultsChangedReplicatesLostHolders(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("churn"))
	adults := adultSet(CopyCount) // exactly 4, so losing one must trigger replacement
	_, err := r.PutNew(xorname.Name{}, blob, wire.MsgId{3}, chunk.PublicKey{}, adults)
	require.NoError(t, err)
	require.Equal(t, CopyCount, r.HolderCount(blob.Address()))

	lost := adults[0]
	replacement := xorname.Name{}
	replacement[0] = 200
	survivors := append(append([]xorname.Name{}, adults[1:]...), replacement)

	tasks := r.AdultsChanged([]xorname.Name{lost}, survivors)
	require.Len(t, tasks, 1)
	require.Equal(t, blob.Address(), tasks[0].Addr)
	require.Equal(t, CopyCount, r.HolderCount(blob.Address()))
}

func TestAdultsChangedDropsEmptyMetadata(t *testing.T) {
	r := New(capacity.New(), liveness.NewTracker(0))
	blob := chunk.NewPublicBlob([]byte("alone"))
	sole := xorname.Name{}
	sole[0] = 1
	_, err := r.PutNew(xorname.Name{}, blob, wire.MsgId{4}, chunk.PublicKey{}, []xorname.Name{sole})
	require.NoError(t, err)

	tasks := r.AdultsChanged([]xorname.Name{sole}, nil)
	require.Empty(t, tasks)
	require.Equal(t, 0, r.HolderCount(blob.Address()))
}
