package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobMarshalRoundTrip(t *testing.T) {
	b := NewPublicBlob([]byte("hello world"))
	data, err := Marshal(b)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	gotBlob, ok := got.(*Blob)
	require.True(t, ok)
	require.Equal(t, b.Data, gotBlob.Data)
	require.Equal(t, b.Address(), gotBlob.Address())
}

func TestPrivateBlobOwnership(t *testing.T) {
	var owner PublicKey
	owner[0] = 0x42
	b := NewPrivateBlob([]byte("secret"), owner)
	require.True(t, b.IsPrivate())
	require.Equal(t, owner, b.OwnerKey())

	pub := NewPublicBlob([]byte("secret"))
	require.NotEqual(t, b.Name(), pub.Name(), "private blob name must differ from public blob of same bytes")
}

func TestMapMarshalRoundTrip(t *testing.T) {
	m := &Map{
		TypeTag: 1,
		Version: 1,
		Entries: []MapEntry{{Key: "k", Value: []byte("v"), Version: 1}},
	}
	data, err := Marshal(m)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	gotMap, ok := got.(*Map)
	require.True(t, ok)
	require.Equal(t, m.Entries, gotMap.Entries)
}
