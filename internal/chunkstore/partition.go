package chunkstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/xorname"
)

// maxChunkFileNameLength is the edge policy from spec.md §4.1: file names
// must not exceed 104 bytes.
const maxChunkFileNameLength = 104

const usedSpaceFileName = "used_space"

// partition is one chunk-type sub-store: R/chunks/<kind>/.
type partition struct {
	dir       string
	kind      chunk.Kind
	shared    *UsedSpace
	log       *logrus.Entry
	mu        sync.Mutex // guards localUsed and the durable used_space file
	localUsed uint64
}

func openPartition(root string, kind chunk.Kind, shared *UsedSpace, log *logrus.Entry) (*partition, error) {
	dir := filepath.Join(root, "chunks", kind.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunkstore: create partition dir: %w", err)
	}
	p := &partition{dir: dir, kind: kind, shared: shared, log: log.WithField("partition", kind.String())}
	used, err := p.readUsedSpaceFile()
	if err != nil {
		return nil, err
	}
	p.localUsed = used
	return p, nil
}

func (p *partition) usedSpacePath() string {
	return filepath.Join(p.dir, usedSpaceFileName)
}

func (p *partition) readUsedSpaceFile() (uint64, error) {
	b, err := os.ReadFile(p.usedSpacePath())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("chunkstore: read used_space: %w", err)
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

// writeUsedSpaceFile must be called with p.mu held.
func (p *partition) writeUsedSpaceFile(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	tmp := p.usedSpacePath() + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("chunkstore: write used_space: %w", err)
	}
	if _, err := f.Write(b[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("chunkstore: write used_space: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("chunkstore: sync used_space: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("chunkstore: close used_space: %w", err)
	}
	return os.Rename(tmp, p.usedSpacePath())
}

func fileName(name xorname.Name) string {
	return name.String()
}

func (p *partition) filePath(name xorname.Name) (string, error) {
	fn := fileName(name)
	if len(fn) > maxChunkFileNameLength {
		return "", fmt.Errorf("chunkstore: file name %q exceeds %d bytes", fn, maxChunkFileNameLength)
	}
	return filepath.Join(p.dir, fn), nil
}

// put reserves space, removes any prior file for the same name (releasing
// its bytes), writes the new file via temp-then-rename, fsyncs, and updates
// the durable used_space counter. On any failure after reservation it
// releases exactly what it reserved.
func (p *partition) put(name xorname.Name, data []byte) error {
	path, err := p.filePath(name)
	if err != nil {
		return err
	}
	newLen := uint64(len(data))

	if err := p.shared.reserve(newLen); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var priorLen uint64
	if fi, statErr := os.Stat(path); statErr == nil {
		priorLen = uint64(fi.Size())
	}

	tmp := path + ".tmp"
	if err := p.writeFile(tmp, data); err != nil {
		p.shared.release(newLen)
		return fmt.Errorf("chunkstore: %w: %v", verr.Io, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		p.shared.release(newLen)
		return fmt.Errorf("chunkstore: %w: %v", verr.Io, err)
	}

	// Release the prior file's bytes now that the new one is in place;
	// reservation released what we just reserved for it, not for the
	// replaced copy, so release priorLen separately.
	if priorLen > 0 {
		p.shared.release(priorLen)
		p.localUsed -= priorLen
	}
	p.localUsed += newLen

	if err := p.writeUsedSpaceFile(p.localUsed); err != nil {
		// The file write is already durable; the counter file is a
		// best-effort mirror reloaded at startup, so we log and continue.
		p.log.WithError(err).Warn("chunkstore: failed to persist used_space counter")
	}
	return nil
}

func (p *partition) writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *partition) get(name xorname.Name) ([]byte, error) {
	path, err := p.filePath(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, verr.NoSuchChunk
	}
	if err != nil {
		return nil, fmt.Errorf("chunkstore: %w: %v", verr.Io, err)
	}
	return b, nil
}

func (p *partition) has(name xorname.Name) bool {
	path, err := p.filePath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (p *partition) delete(name xorname.Name) error {
	path, err := p.filePath(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fi, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		return nil // delete of an absent chunk is Ok
	}
	if statErr != nil {
		return fmt.Errorf("chunkstore: %w: %v", verr.Io, statErr)
	}
	size := uint64(fi.Size())

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("chunkstore: %w: %v", verr.Io, err)
	}
	p.shared.release(size)
	p.localUsed -= size
	if err := p.writeUsedSpaceFile(p.localUsed); err != nil {
		p.log.WithError(err).Warn("chunkstore: failed to persist used_space counter")
	}
	return nil
}

func (p *partition) keys() ([]xorname.Name, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: %w: %v", verr.Io, err)
	}
	names := make([]xorname.Name, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == usedSpaceFileName {
			continue
		}
		if filepath.Ext(e.Name()) == ".tmp" {
			continue
		}
		n, err := xorname.FromHex(e.Name())
		if err != nil {
			continue // skip unrecognized files
		}
		names = append(names, n)
	}
	return names, nil
}
