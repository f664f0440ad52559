// Package routing defines the membership/transport capability the rest of
// the node consumes (spec.md §6): a small interface plus an in-memory Mock
// for tests, the way core/network.go's PeerManager is kept as a narrow
// interface around the concrete libp2p host.
package routing

import (
	"context"

	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

// Prefix identifies a section by its shared bit-prefix over Name space.
type Prefix struct {
	Bits []bool
}

// IsEmpty reports whether this is the root (genesis) prefix.
func (p Prefix) IsEmpty() bool { return len(p.Bits) == 0 }

// Matches reports whether name falls under this prefix.
func (p Prefix) Matches(name xorname.Name) bool {
	for i, bit := range p.Bits {
		byteIdx := i / 8
		bitIdx := 7 - uint(i%8)
		got := name[byteIdx]&(1<<bitIdx) != 0
		if got != bit {
			return false
		}
	}
	return true
}

// Aggregation mirrors wire.Aggregation for outbound sends.
type Aggregation = wire.Aggregation

// SendParams describes one fire-and-forget outbound send.
type SendParams struct {
	Src           xorname.Name
	Dst           xorname.Name
	Aggregation   Aggregation
	SectionSource bool
	Bytes         []byte
}

// EventKind tags the variants of the routing event stream (spec.md §6).
type EventKind int

const (
	EventMessageReceived EventKind = iota
	EventMemberJoined
	EventMemberLeft
	EventEldersChanged
	EventRelocated
)

// Event is the tagged union of routing-layer notifications.
type Event struct {
	Kind EventKind

	// MessageReceived
	Src   xorname.Name
	Dst   xorname.Name
	Bytes []byte

	// MemberJoined / MemberLeft
	Name         xorname.Name
	Age          uint8
	PreviousName *xorname.Name

	// EldersChanged
	Key        []byte
	Elders     []xorname.Name
	Prefix     Prefix
	SelfChange bool

	// Relocated
	NewName xorname.Name
}

// Routing is the membership/transport capability the node core depends on
// (spec.md §6), kept deliberately small so it can be backed by a real
// transport or, in tests, by Mock.
type Routing interface {
	OurPrefix(ctx context.Context) (Prefix, error)
	OurName(ctx context.Context) (xorname.Name, error)
	OurElders(ctx context.Context) ([]xorname.Name, error)
	OurAdults(ctx context.Context) ([]xorname.Name, error)
	SectionChain(ctx context.Context) ([][]byte, error)
	SectionPublicKey(ctx context.Context) ([]byte, error)

	Send(ctx context.Context, params SendParams) error

	SetJoinsAllowed(ctx context.Context, allowed bool) error
	ProposeOffline(ctx context.Context, name xorname.Name) error

	// Events returns the channel of routing notifications; closed when the
	// routing layer shuts down.
	Events() <-chan Event
}
