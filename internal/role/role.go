// Package role tracks a node's place in the section (spec.md §4.4,
// component C8): Infant, Adult or Elder, plus the Genesis ceremony and
// section-split handling that drive transitions between them. Grounded on
// original_source/src/node/genesis.rs for the genesis half and on
// core/bft_simulation.go's plain, dependency-free state-tracking style for
// the rest — this component coordinates other packages rather than owning
// new cryptography or storage of its own.
package role

import (
	"fmt"
	"sync"

	"github.com/safevault/node/internal/blobregister"
	"github.com/safevault/node/internal/chunkstore"
	"github.com/safevault/node/internal/metadata"
	"github.com/safevault/node/internal/routing"
	"github.com/safevault/node/internal/transfers"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

// MinAge is the infant age (spec.md §3): a node whose age does not exceed
// MinAge is an Infant; PromoteToAdult requires age > MinAge.
const MinAge = 0

// Kind is the three roles a node can hold; exactly one at a time.
type Kind int

const (
	KindInfant Kind = iota
	KindAdult
	KindElder
)

func (k Kind) String() string {
	switch k {
	case KindInfant:
		return "infant"
	case KindAdult:
		return "adult"
	case KindElder:
		return "elder"
	default:
		return "unknown"
	}
}

// ElderComponents bundles the elder-only collaborators opened on promotion
// (spec.md §3's Role::Elder variant).
type ElderComponents struct {
	BlobRegister  *blobregister.Register
	Metadata      *metadata.Store
	Transfers     *transfers.Replica
	SectionWallet [32]byte

	// ReceivedInitialSync is only set true once this elder has fetched and
	// applied a ReplicaEvents/metadata snapshot from its peers (spec.md
	// §4.4) — until then it must not answer client requests from its own,
	// possibly-empty, state.
	ReceivedInitialSync bool
}

// Node tracks one vault node's current role and age, and mediates the
// transitions between them. A zero Node is an Infant.
type Node struct {
	mu sync.RWMutex

	age  uint8
	kind Kind

	chunks *chunkstore.Store
	elder  *ElderComponents
}

// NewNode returns a fresh Infant node.
func NewNode() *Node {
	return &Node{kind: KindInfant}
}

// Kind reports the node's current role.
func (n *Node) Kind() Kind {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// Age reports the node's current age.
func (n *Node) Age() uint8 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.age
}

// SetAge updates the node's age as reported by the routing layer's
// MemberJoined/Relocated events. It does not itself drive a role
// transition — PromoteToAdult does that explicitly once the caller decides
// age has crossed MinAge.
func (n *Node) SetAge(age uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.age = age
}

// Chunks returns the node's chunk store. Valid once PromoteToAdult has run;
// nil for an Infant.
func (n *Node) Chunks() *chunkstore.Store {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.chunks
}

// Elder returns the node's elder-side components. Valid once PromoteToElder
// has run and the node has not since been demoted; nil otherwise.
func (n *Node) Elder() *ElderComponents {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.elder
}

// PromoteToAdult is the Infant -> Adult transition (spec.md §4.4): age has
// exceeded MinAge, so the node opens its chunk store and begins serving
// adult-side requests. Promoting an already-Adult-or-Elder node is a no-op.
func (n *Node) PromoteToAdult(chunks *chunkstore.Store) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindInfant {
		return nil
	}
	if n.age <= MinAge {
		return fmt.Errorf("role: cannot promote to adult at age %d", n.age)
	}
	n.chunks = chunks
	n.kind = KindAdult
	return nil
}

// PromoteToElder is the Adult -> Elder transition (spec.md §4.4): the
// routing layer has signalled promotion. Elder-side components are opened,
// but ReceivedInitialSync starts false — the caller must fetch and apply a
// peer snapshot and call MarkInitialSyncComplete before this elder answers
// client requests.
func (n *Node) PromoteToElder(elder *ElderComponents) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindAdult {
		return fmt.Errorf("role: cannot promote to elder from %s", n.kind)
	}
	elder.ReceivedInitialSync = false
	n.elder = elder
	n.kind = KindElder
	return nil
}

// MarkInitialSyncComplete records that this elder has applied its peer
// snapshot and may now answer client requests (spec.md §4.4).
func (n *Node) MarkInitialSyncComplete() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.elder != nil {
		n.elder.ReceivedInitialSync = true
	}
}

// DemoteToAdult is the Elder -> Adult transition (spec.md §4.4): the node
// drops its elder state but retains its chunk store.
func (n *Node) DemoteToAdult() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.elder = nil
	if n.kind == KindElder {
		n.kind = KindAdult
	}
}

// Split applies the section-split transition (spec.md §4.4): an elder that
// remains in its sub-section after a split prunes wallet keys and chunk
// metadata that no longer match the new, narrower prefix. It returns the
// number of chunks dropped from the blob register. Callers whose node is
// being relocated to the sibling sub-section instead of retained must not
// call Split; there is nothing of this node's state to prune.
func (n *Node) Split(newPrefix routing.Prefix) (int, error) {
	n.mu.RLock()
	elder := n.elder
	n.mu.RUnlock()
	if elder == nil {
		return 0, fmt.Errorf("role: cannot split from %s", n.Kind())
	}

	pruned := elder.BlobRegister.PruneNotMatching(newPrefix)
	elder.Transfers.KeepWallets(func(id wire.WalletID) bool {
		return newPrefix.Matches(xorname.Name(id))
	})
	return pruned, nil
}
