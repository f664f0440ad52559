package routing

import (
	"context"
	"sync"

	"github.com/safevault/node/internal/xorname"
)

// Mock is an in-memory Routing double for tests: it records every Send and
// lets the test push synthetic Events.
type Mock struct {
	mu sync.Mutex

	prefix       Prefix
	name         xorname.Name
	elders       []xorname.Name
	adults       []xorname.Name
	sectionChain [][]byte
	sectionKey   []byte
	joinsAllowed bool
	offline      []xorname.Name

	Sent   []SendParams
	events chan Event
}

// NewMock returns a Mock seeded with the given section identity.
func NewMock(prefix Prefix, name xorname.Name, elders, adults []xorname.Name, sectionKey []byte) *Mock {
	return &Mock{
		prefix:     prefix,
		name:       name,
		elders:     append([]xorname.Name(nil), elders...),
		adults:     append([]xorname.Name(nil), adults...),
		sectionKey: append([]byte(nil), sectionKey...),
		events:     make(chan Event, 64),
	}
}

func (m *Mock) OurPrefix(context.Context) (Prefix, error) { return m.prefix, nil }
func (m *Mock) OurName(context.Context) (xorname.Name, error) { return m.name, nil }

func (m *Mock) OurElders(context.Context) ([]xorname.Name, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]xorname.Name(nil), m.elders...), nil
}

func (m *Mock) OurAdults(context.Context) ([]xorname.Name, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]xorname.Name(nil), m.adults...), nil
}

func (m *Mock) SectionChain(context.Context) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sectionChain...), nil
}

func (m *Mock) SectionPublicKey(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sectionKey, nil
}

func (m *Mock) Send(_ context.Context, params SendParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

func (m *Mock) SetJoinsAllowed(_ context.Context, allowed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinsAllowed = allowed
	return nil
}

func (m *Mock) ProposeOffline(_ context.Context, name xorname.Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = append(m.offline, name)
	return nil
}

func (m *Mock) Events() <-chan Event { return m.events }

// Push enqueues a synthetic routing event for the node under test to
// observe, and also updates the mock's own elder/adult bookkeeping so
// later OurElders/OurAdults calls reflect it.
func (m *Mock) Push(e Event) {
	m.mu.Lock()
	switch e.Kind {
	case EventEldersChanged:
		m.elders = append([]xorname.Name(nil), e.Elders...)
		m.prefix = e.Prefix
		m.sectionKey = append([]byte(nil), e.Key...)
	case EventMemberJoined:
		m.adults = append(m.adults, e.Name)
	case EventMemberLeft:
		m.adults = removeName(m.adults, e.Name)
		m.elders = removeName(m.elders, e.Name)
	}
	m.mu.Unlock()
	m.events <- e
}

// JoinsAllowed reports the last value passed to SetJoinsAllowed.
func (m *Mock) JoinsAllowed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joinsAllowed
}

// Offline returns every name proposed offline, in order.
func (m *Mock) Offline() []xorname.Name {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]xorname.Name(nil), m.offline...)
}

func removeName(names []xorname.Name, target xorname.Name) []xorname.Name {
	out := names[:0:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
