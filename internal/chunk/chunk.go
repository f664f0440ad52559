// Package chunk defines the four disjoint chunk variants stored by the
// vault (spec.md §3): Blob, Map, Sequence and LoginPacket. Each exposes
// Address()/Name() and a stable JSON serialization used both on disk (C1)
// and for elder-to-elder replication, the way core/ledger.go serializes
// blocks with encoding/json for its WAL.
package chunk

import (
	"encoding/json"
	"fmt"

	"github.com/safevault/node/internal/xorname"
)

// Kind identifies which of the four disjoint chunk variants a Chunk is.
// It also selects the on-disk partition in the chunk store.
type Kind uint8

const (
	KindImmutable Kind = iota
	KindMutableMap
	KindSequence
	KindLoginPacket
)

func (k Kind) String() string {
	switch k {
	case KindImmutable:
		return "immutable"
	case KindMutableMap:
		return "mutable"
	case KindSequence:
		return "sequence"
	case KindLoginPacket:
		return "login_packets"
	default:
		return "unknown"
	}
}

// PublicKey is a raw ed25519 (or BLS, for section-owned wallets) public key.
type PublicKey [32]byte

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

// Address uniquely identifies a chunk: its kind plus its name. Two chunks
// of different kinds may legally share the same Name.
type Address struct {
	Kind Kind         `json:"kind"`
	Name xorname.Name `json:"name"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s", a.Kind, a.Name)
}

// Chunk is implemented by all four stored variants.
type Chunk interface {
	Address() Address
	Name() xorname.Name
	// IsPrivate reports whether this chunk instance carries an owner and
	// so requires ownership checks on delete/read.
	IsPrivate() bool
	// OwnerKey returns the owning public key; the zero key if public.
	OwnerKey() PublicKey
}

// Marshal serializes any Chunk to its stable on-disk/wire representation.
func Marshal(c Chunk) ([]byte, error) {
	env := envelope{Kind: c.Address().Kind}
	var err error
	switch v := c.(type) {
	case *Blob:
		env.Blob = v
	case *Map:
		env.Map = v
	case *Sequence:
		env.Sequence = v
	case *LoginPacket:
		env.LoginPacket = v
	default:
		return nil, fmt.Errorf("chunk: unknown concrete type %T", c)
	}
	return json.Marshal(env)
}

// Unmarshal deserializes a Chunk previously produced by Marshal.
func Unmarshal(data []byte) (Chunk, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case KindImmutable:
		if env.Blob == nil {
			return nil, fmt.Errorf("chunk: missing blob payload")
		}
		return env.Blob, nil
	case KindMutableMap:
		if env.Map == nil {
			return nil, fmt.Errorf("chunk: missing map payload")
		}
		return env.Map, nil
	case KindSequence:
		if env.Sequence == nil {
			return nil, fmt.Errorf("chunk: missing sequence payload")
		}
		return env.Sequence, nil
	case KindLoginPacket:
		if env.LoginPacket == nil {
			return nil, fmt.Errorf("chunk: missing login packet payload")
		}
		return env.LoginPacket, nil
	default:
		return nil, fmt.Errorf("chunk: unknown kind %d", env.Kind)
	}
}

type envelope struct {
	Kind        Kind         `json:"kind"`
	Blob        *Blob        `json:"blob,omitempty"`
	Map         *Map         `json:"map,omitempty"`
	Sequence    *Sequence    `json:"sequence,omitempty"`
	LoginPacket *LoginPacket `json:"login_packet,omitempty"`
}
