package chunk

import "github.com/safevault/node/internal/xorname"

// Blob is an immutable, content-addressed chunk. Its name is the hash of
// its data (spec.md §3). Public blobs carry no owner; private blobs record
// the owning key so Delete can be permission-checked.
type Blob struct {
	NameVal xorname.Name `json:"name"`
	Data    []byte       `json:"data"`
	Private bool         `json:"private"`
	Owner   PublicKey    `json:"owner,omitempty"`
}

// NewPublicBlob builds a public Blob addressed by the hash of data.
func NewPublicBlob(data []byte) *Blob {
	return &Blob{NameVal: xorname.Hash(data), Data: data}
}

// NewPrivateBlob builds a private Blob owned by owner.
func NewPrivateBlob(data []byte, owner PublicKey) *Blob {
	return &Blob{NameVal: xorname.Hash(data, owner[:]), Data: data, Private: true, Owner: owner}
}

func (b *Blob) Address() Address    { return Address{Kind: KindImmutable, Name: b.NameVal} }
func (b *Blob) Name() xorname.Name  { return b.NameVal }
func (b *Blob) IsPrivate() bool     { return b.Private }
func (b *Blob) OwnerKey() PublicKey { return b.Owner }

// Map is a mutable key-value chunk, named by a type tag and an
// owner-chosen name (not content-addressed). Entries are kept as a slice in
// insertion order rather than a Go map so serialization is deterministic.
type Map struct {
	TypeTag uint64     `json:"type_tag"`
	NameVal xorname.Name `json:"name"`
	Owner   PublicKey  `json:"owner"`
	Version uint64     `json:"version"`
	Entries []MapEntry `json:"entries"`
}

// MapEntry is one key/value pair of a Map, with its own version so
// concurrent writers to distinct keys do not collide.
type MapEntry struct {
	Key     string `json:"key"`
	Value   []byte `json:"value"`
	Version uint64 `json:"version"`
	Deleted bool   `json:"deleted"`
}

func (m *Map) Address() Address    { return Address{Kind: KindMutableMap, Name: m.NameVal} }
func (m *Map) Name() xorname.Name  { return m.NameVal }
func (m *Map) IsPrivate() bool     { return true } // maps are always owner-permissioned
func (m *Map) OwnerKey() PublicKey { return m.Owner }

// Sequence is an append-only CRDT chunk, named like Map.
type Sequence struct {
	NameVal xorname.Name     `json:"name"`
	Owner   PublicKey        `json:"owner"`
	Public  bool             `json:"public"`
	Entries []SequenceEntry `json:"entries"`
}

// SequenceEntry is one appended entry; Version is the entry's index,
// used to detect stale-successor appends.
type SequenceEntry struct {
	Version uint64 `json:"version"`
	Data    []byte `json:"data"`
}

func (s *Sequence) Address() Address   { return Address{Kind: KindSequence, Name: s.NameVal} }
func (s *Sequence) Name() xorname.Name { return s.NameVal }
func (s *Sequence) IsPrivate() bool    { return !s.Public }
func (s *Sequence) OwnerKey() PublicKey { return s.Owner }

// LoginPacket is a per-owner credential blob, named by its recipient.
type LoginPacket struct {
	NameVal xorname.Name `json:"name"`
	Owner   PublicKey    `json:"owner"`
	Data    []byte       `json:"data"`
}

func (l *LoginPacket) Address() Address    { return Address{Kind: KindLoginPacket, Name: l.NameVal} }
func (l *LoginPacket) Name() xorname.Name  { return l.NameVal }
func (l *LoginPacket) IsPrivate() bool     { return true }
func (l *LoginPacket) OwnerKey() PublicKey { return l.Owner }
