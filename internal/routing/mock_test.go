package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/safevault/node/internal/xorname"
)

func TestMockRecordsSend(t *testing.T) {
	var self xorname.Name
	self[0] = 1
	m := NewMock(Prefix{}, self, nil, nil, nil)

	var dst xorname.Name
	dst[0] = 2
	err := m.Send(context.Background(), SendParams{Src: self, Dst: dst, Bytes: []byte("hi")})
	require.NoError(t, err)
	require.Len(t, m.Sent, 1)
	require.Equal(t, dst, m.Sent[0].Dst)
}

func TestMockPushEldersChangedUpdatesOurElders(t *testing.T) {
	var self, e1, e2 xorname.Name
	self[0], e1[0], e2[0] = 1, 2, 3
	m := NewMock(Prefix{}, self, nil, nil, nil)

	m.Push(Event{Kind: EventEldersChanged, Elders: []xorname.Name{e1, e2}, Key: []byte("k")})

	elders, err := m.OurElders(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []xorname.Name{e1, e2}, elders)

	got := <-m.Events()
	require.Equal(t, EventEldersChanged, got.Kind)
}

func TestMockMemberLeftRemovesFromAdults(t *testing.T) {
	var self, a1 xorname.Name
	self[0], a1[0] = 1, 5
	m := NewMock(Prefix{}, self, nil, []xorname.Name{a1}, nil)

	m.Push(Event{Kind: EventMemberLeft, Name: a1})
	<-m.Events()

	adults, err := m.OurAdults(context.Background())
	require.NoError(t, err)
	require.Empty(t, adults)
}

func TestPrefixMatches(t *testing.T) {
	p := Prefix{Bits: []bool{true, false}}
	var name xorname.Name
	name[0] = 0b10000000
	require.True(t, p.Matches(name))

	name[0] = 0b00000000
	require.False(t, p.Matches(name))
}
