package chunkstore

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/verr"
)

// Store is the durable, concurrency-safe chunk store with a shared capacity
// budget split across four typed partitions (spec.md §4.1).
type Store struct {
	root       string
	shared     *UsedSpace
	partitions map[chunk.Kind]*partition
	log        *logrus.Entry
}

// Open creates or loads a Store rooted at dir, with the given shared
// capacity budget in bytes. It reloads each partition's durable used_space
// counter and rebuilds the shared total from their sum (spec.md §6's
// persistent-invariant: "a node restart must reload used_space from each
// partition file").
func Open(dir string, maxCapacity uint64, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}
	entry := log.WithField("component", "chunkstore")
	shared := NewUsedSpace(maxCapacity)

	kinds := []chunk.Kind{chunk.KindImmutable, chunk.KindMutableMap, chunk.KindSequence, chunk.KindLoginPacket}
	partitions := make(map[chunk.Kind]*partition, len(kinds))
	var total uint64
	for _, k := range kinds {
		p, err := openPartition(dir, k, shared, entry)
		if err != nil {
			return nil, err
		}
		partitions[k] = p
		total += p.localUsed
	}
	shared.SetTotal(total)

	return &Store{root: dir, shared: shared, partitions: partitions, log: entry}, nil
}

// UsedSpace exposes the shared capacity tracker.
func (s *Store) UsedSpace() *UsedSpace { return s.shared }

func (s *Store) partitionFor(k chunk.Kind) (*partition, error) {
	p, ok := s.partitions[k]
	if !ok {
		return nil, fmt.Errorf("chunkstore: unknown partition kind %d", k)
	}
	return p, nil
}

// Put serializes c and stores it under its address, reserving bytes against
// the shared budget first (spec.md §4.1).
func (s *Store) Put(c chunk.Chunk) error {
	addr := c.Address()
	p, err := s.partitionFor(addr.Kind)
	if err != nil {
		return err
	}
	data, err := chunk.Marshal(c)
	if err != nil {
		return fmt.Errorf("chunkstore: marshal: %w", err)
	}
	return p.put(addr.Name, data)
}

// Get loads and deserializes the chunk at addr, verifying that the
// deserialized chunk's own address matches addr as a corruption guard.
func (s *Store) Get(addr chunk.Address) (chunk.Chunk, error) {
	p, err := s.partitionFor(addr.Kind)
	if err != nil {
		return nil, err
	}
	raw, err := p.get(addr.Name)
	if err != nil {
		return nil, err
	}
	c, err := chunk.Unmarshal(raw)
	if err != nil {
		return nil, verr.NoSuchChunk
	}
	if c.Address() != addr {
		return nil, verr.NoSuchChunk
	}
	return c, nil
}

// Has reports whether a chunk exists at addr.
func (s *Store) Has(addr chunk.Address) bool {
	p, err := s.partitionFor(addr.Kind)
	if err != nil {
		return false
	}
	return p.has(addr.Name)
}

// Delete removes the chunk at addr. Deleting an absent chunk is Ok.
func (s *Store) Delete(addr chunk.Address) error {
	p, err := s.partitionFor(addr.Kind)
	if err != nil {
		return err
	}
	return p.delete(addr.Name)
}

// Keys returns every address currently stored under kind.
func (s *Store) Keys(kind chunk.Kind) ([]chunk.Address, error) {
	p, err := s.partitionFor(kind)
	if err != nil {
		return nil, err
	}
	names, err := p.keys()
	if err != nil {
		return nil, err
	}
	addrs := make([]chunk.Address, 0, len(names))
	for _, n := range names {
		addrs = append(addrs, chunk.Address{Kind: kind, Name: n})
	}
	return addrs, nil
}
