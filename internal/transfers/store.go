package transfers

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/safevault/node/internal/wire"
)

// eventLog is the on-disk append-only log for one wallet:
// R/transfers/<hex-wallet-id>/events.log (spec.md §6), one JSON record per
// line, grounded on core/ledger.go's bufio.Scanner WAL-replay pattern.
type eventLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func walletDir(root string, id wire.WalletID) string {
	return filepath.Join(root, "transfers", hex.EncodeToString(id[:]))
}

func openEventLog(root string, id wire.WalletID) (*eventLog, error) {
	dir := walletDir(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transfers: create wallet dir: %w", err)
	}
	path := filepath.Join(dir, "events.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("transfers: open event log: %w", err)
	}
	return &eventLog{path: path, file: f}, nil
}

// readAll replays every event currently in the log, in append order.
func (l *eventLog) readAll() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("transfers: seek event log: %w", err)
	}
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var events []Event
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("transfers: decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transfers: scan event log: %w", err)
	}
	if _, err := l.file.Seek(0, 2); err != nil {
		return nil, fmt.Errorf("transfers: seek event log end: %w", err)
	}
	return events, nil
}

// append durably appends a single event.
func (l *eventLog) append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("transfers: encode event: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("transfers: append event: %w", err)
	}
	return l.file.Sync()
}

func (l *eventLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
