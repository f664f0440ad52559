package xorname

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("chunk-a"))
	b := Hash([]byte("chunk-a"))
	require.Equal(t, a, b)

	c := Hash([]byte("chunk-b"))
	require.NotEqual(t, a, c)
}

func TestClosestExcludesAndSorts(t *testing.T) {
	target := Hash([]byte("target"))
	var candidates []Name
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Hash([]byte{byte(i)}))
	}

	full := Closest(target, candidates, nil, 4)
	require.Len(t, full, 4)

	for i := 1; i < len(full); i++ {
		require.True(t, Distance(target, full[i-1]).Cmp(Distance(target, full[i])) <= 0)
	}

	exclude := map[Name]struct{}{full[0]: {}}
	without := Closest(target, candidates, exclude, 4)
	require.Len(t, without, 4)
	for _, n := range without {
		require.NotEqual(t, full[0], n)
	}
}

func TestEqualIgnoresOrder(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	require.True(t, Equal([]Name{a, b}, []Name{b, a}))
	require.False(t, Equal([]Name{a, b}, []Name{a}))
}

func TestFromHexRoundTrip(t *testing.T) {
	n := Hash([]byte("roundtrip"))
	parsed, err := FromHex(n.String())
	require.NoError(t, err)
	require.Equal(t, n, parsed)

	_, err = FromHex("zz")
	require.Error(t, err)
}
