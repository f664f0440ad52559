// Package metadata implements the elder-side registers for mutable chunks
// (spec.md §4.1/§4.2's Map/Sequence/LoginPacket variants, component C5):
// version-gated mutation and owner-permission checks layered on top of the
// chunkstore partitions. The distilled spec names this component without
// detailing its operations; Insert/Update/Delete/Append semantics are
// supplemented from original_source's adata_handler.rs and
// sequence_handler.rs (check-owner-then-check-version-then-mutate).
package metadata

import (
	"sync"

	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/chunkstore"
	"github.com/safevault/node/internal/verr"
)

// Store is the elder-side register for Map, Sequence and LoginPacket
// chunks. Mutations are serialized by a single mutex: these are
// low-throughput, owner-gated control chunks, not the bulk chunk data path
// (that is chunkstore's concern on the adult side).
type Store struct {
	mu     sync.Mutex
	chunks *chunkstore.Store
}

// New returns a Store persisting into chunks.
func New(chunks *chunkstore.Store) *Store {
	return &Store{chunks: chunks}
}

// PutMap creates a new Map at an address that must not already be in use;
// maps are always owner-permissioned, so a collision always reports
// DataExists rather than silently succeeding (spec.md §7's private-chunk
// duplicate branch).
func (s *Store) PutMap(m *chunk.Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks.Has(m.Address()) {
		return verr.DataExists
	}
	return s.chunks.Put(m)
}

// GetMap returns the current state of the Map at addr.
func (s *Store) GetMap(addr chunk.Address) (*chunk.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMap(addr)
}

func (s *Store) loadMap(addr chunk.Address) (*chunk.Map, error) {
	c, err := s.chunks.Get(addr)
	if err != nil {
		return nil, err
	}
	m, ok := c.(*chunk.Map)
	if !ok {
		return nil, verr.NoSuchEntry
	}
	return m, nil
}

// UpsertMapEntry implements Insert/Update for one key (spec.md SPEC_FULL
// §4.5): the caller must own the map, and expectedVersion must equal the
// map's current Version, otherwise InvalidSuccessor. On success the entry is
// set and the map's Version is advanced by one.
func (s *Store) UpsertMapEntry(addr chunk.Address, requester chunk.PublicKey, key string, value []byte, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMap(addr)
	if err != nil {
		return err
	}
	if m.Owner != requester {
		return verr.AccessDenied
	}
	if m.Version != expectedVersion {
		return verr.InvalidSuccessor
	}

	found := false
	for i := range m.Entries {
		if m.Entries[i].Key == key {
			m.Entries[i].Value = value
			m.Entries[i].Deleted = false
			m.Entries[i].Version = m.Version + 1
			found = true
			break
		}
	}
	if !found {
		m.Entries = append(m.Entries, chunk.MapEntry{Key: key, Value: value, Version: m.Version + 1})
	}
	m.Version++
	return s.chunks.Put(m)
}

// DeleteMapEntry removes key from the Map at addr under the same
// version-gating discipline as UpsertMapEntry.
func (s *Store) DeleteMapEntry(addr chunk.Address, requester chunk.PublicKey, key string, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMap(addr)
	if err != nil {
		return err
	}
	if m.Owner != requester {
		return verr.AccessDenied
	}
	if m.Version != expectedVersion {
		return verr.InvalidSuccessor
	}

	found := false
	for i := range m.Entries {
		if m.Entries[i].Key == key {
			m.Entries[i].Deleted = true
			m.Entries[i].Version = m.Version + 1
			found = true
			break
		}
	}
	if !found {
		return verr.NoSuchEntry
	}
	m.Version++
	return s.chunks.Put(m)
}

// PutSequence creates a new Sequence.
func (s *Store) PutSequence(seq *chunk.Sequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks.Has(seq.Address()) {
		return verr.DataExists
	}
	return s.chunks.Put(seq)
}

// GetSequence returns the current state of the Sequence at addr.
func (s *Store) GetSequence(addr chunk.Address) (*chunk.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSequence(addr)
}

func (s *Store) loadSequence(addr chunk.Address) (*chunk.Sequence, error) {
	c, err := s.chunks.Get(addr)
	if err != nil {
		return nil, err
	}
	seq, ok := c.(*chunk.Sequence)
	if !ok {
		return nil, verr.NoSuchEntry
	}
	return seq, nil
}

// Append adds one entry to the Sequence at addr. expectedVersion must equal
// len(Entries) — the index the new entry will occupy — otherwise the append
// targets a stale successor and fails InvalidSuccessor (spec.md SPEC_FULL
// §4.5, grounded on sequence_handler.rs's expected-version append check).
// Private sequences additionally require the requester to be the owner.
func (s *Store) Append(addr chunk.Address, requester chunk.PublicKey, data []byte, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.loadSequence(addr)
	if err != nil {
		return err
	}
	if !seq.Public && seq.Owner != requester {
		return verr.AccessDenied
	}
	if uint64(len(seq.Entries)) != expectedVersion {
		return verr.InvalidSuccessor
	}

	seq.Entries = append(seq.Entries, chunk.SequenceEntry{Version: expectedVersion, Data: data})
	return s.chunks.Put(seq)
}

// PutLoginPacket creates a new LoginPacket.
func (s *Store) PutLoginPacket(lp *chunk.LoginPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks.Has(lp.Address()) {
		return verr.DataExists
	}
	return s.chunks.Put(lp)
}

// GetLoginPacket returns the LoginPacket at addr, failing AccessDenied if
// requester is not its owner.
func (s *Store) GetLoginPacket(addr chunk.Address, requester chunk.PublicKey) (*chunk.LoginPacket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chunks.Get(addr)
	if err != nil {
		return nil, err
	}
	lp, ok := c.(*chunk.LoginPacket)
	if !ok {
		return nil, verr.NoSuchEntry
	}
	if lp.Owner != requester {
		return nil, verr.AccessDenied
	}
	return lp, nil
}
