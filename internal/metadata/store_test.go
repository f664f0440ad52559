package metadata

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/chunkstore"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/xorname"
)

func newTestMetadataStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cs, err := chunkstore.Open(t.TempDir(), 1<<20, log)
	require.NoError(t, err)
	return New(cs)
}

func TestMapUpsertAndVersionGating(t *testing.T) {
	s := newTestMetadataStore(t)
	var owner chunk.PublicKey
	owner[0] = 1
	m := &chunk.Map{TypeTag: 1, NameVal: xorname.Hash([]byte("m1")), Owner: owner}

	require.NoError(t, s.PutMap(m))

	err := s.UpsertMapEntry(m.Address(), owner, "k", []byte("v"), 0)
	require.NoError(t, err)

	got, err := s.GetMap(m.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Version)
	require.Equal(t, "v", string(got.Entries[0].Value))

	// Stale version must fail.
	err = s.UpsertMapEntry(m.Address(), owner, "k", []byte("v2"), 0)
	require.ErrorIs(t, err, verr.InvalidSuccessor)
}

func TestMapUpsertRejectsWrongOwner(t *testing.T) {
	s := newTestMetadataStore(t)
	var owner, other chunk.PublicKey
	owner[0] = 1
	other[0] = 2
	m := &chunk.Map{TypeTag: 1, NameVal: xorname.Hash([]byte("m2")), Owner: owner}
	require.NoError(t, s.PutMap(m))

	err := s.UpsertMapEntry(m.Address(), other, "k", []byte("v"), 0)
	require.ErrorIs(t, err, verr.AccessDenied)
}

func TestSequenceAppendExpectedVersion(t *testing.T) {
	s := newTestMetadataStore(t)
	var owner chunk.PublicKey
	owner[0] = 3
	seq := &chunk.Sequence{NameVal: xorname.Hash([]byte("s1")), Owner: owner}
	require.NoError(t, s.PutSequence(seq))

	require.NoError(t, s.Append(seq.Address(), owner, []byte("a"), 0))
	require.NoError(t, s.Append(seq.Address(), owner, []byte("b"), 1))

	got, err := s.GetSequence(seq.Address())
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	require.Equal(t, "a", string(got.Entries[0].Data))
	require.Equal(t, "b", string(got.Entries[1].Data))

	// Stale successor must fail without mutating state.
	err = s.Append(seq.Address(), owner, []byte("c"), 0)
	require.ErrorIs(t, err, verr.InvalidSuccessor)

	got, err = s.GetSequence(seq.Address())
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
}

func TestPutMapTwiceFailsDataExists(t *testing.T) {
	s := newTestMetadataStore(t)
	m := &chunk.Map{TypeTag: 1, NameVal: xorname.Hash([]byte("m3"))}
	require.NoError(t, s.PutMap(m))
	err := s.PutMap(m)
	require.ErrorIs(t, err, verr.DataExists)
}

func TestLoginPacketAccessDeniedForNonOwner(t *testing.T) {
	s := newTestMetadataStore(t)
	var owner, other chunk.PublicKey
	owner[0] = 9
	other[0] = 10
	lp := &chunk.LoginPacket{NameVal: xorname.Hash([]byte("lp1")), Owner: owner, Data: []byte("creds")}
	require.NoError(t, s.PutLoginPacket(lp))

	_, err := s.GetLoginPacket(lp.Address(), other)
	require.ErrorIs(t, err, verr.AccessDenied)

	got, err := s.GetLoginPacket(lp.Address(), owner)
	require.NoError(t, err)
	require.Equal(t, "creds", string(got.Data))
}
