package capacity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/xorname"
)

func TestFullAdultsMarkAndClear(t *testing.T) {
	f := New()
	a := xorname.Hash([]byte("a1"))
	require.False(t, f.IsFull(a))

	f.MarkFull(a)
	require.True(t, f.IsFull(a))
	require.Equal(t, 1, f.Len())

	f.MarkNotFull(a)
	require.False(t, f.IsFull(a))
	require.Equal(t, 0, f.Len())
}

func TestRebuildReplacesSet(t *testing.T) {
	f := New()
	a := xorname.Hash([]byte("a1"))
	b := xorname.Hash([]byte("a2"))
	f.MarkFull(a)

	f.Rebuild([]xorname.Name{b})
	require.False(t, f.IsFull(a))
	require.True(t, f.IsFull(b))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	f := New()
	a := xorname.Hash([]byte("a1"))
	f.MarkFull(a)

	snap := f.Snapshot()
	f.MarkNotFull(a)
	_, stillThere := snap[a]
	require.True(t, stillThere, "snapshot must not be affected by later mutation")
}
