// Package dispatch classifies inbound wire messages, tracks in-flight
// client correlation ids, and accumulates BLS threshold signatures for
// messages marked Aggregation::AtDestination (spec.md §4.5, component C9).
// Grounded on original_source/src/node/node_duties/msg_analysis.rs's flat
// match over message category, core/network.go's InboundMsg/PeerManager
// shape for the dispatcher's own structure, and core/replication.go's
// message-type tagging conventions; BLS accumulation reuses
// internal/blscrypto, itself grounded on core/security.go.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

// Handler processes one inbound Message for a given Category.
type Handler func(msg wire.Message) error

// Dispatcher is one node's inbound message router (spec.md §4.5).
type Dispatcher struct {
	ourName xorname.Name
	log     *logrus.Entry

	handlersMu sync.RWMutex
	handlers   map[wire.Category]Handler

	corrMu       sync.Mutex
	correlations map[wire.MsgId]correlation

	accMu sync.Mutex
	accs  map[[32]byte]*pendingAccumulation
}

type correlation struct {
	origin   xorname.Name
	deadline time.Time
}

type pendingAccumulation struct {
	acc *blscrypto.Accumulator
	msg wire.Message
}

// New returns a Dispatcher that will reject any message not addressed to
// ourName.
func New(ourName xorname.Name, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{
		ourName:      ourName,
		log:          log.WithField("component", "dispatch"),
		handlers:     make(map[wire.Category]Handler),
		correlations: make(map[wire.MsgId]correlation),
		accs:         make(map[[32]byte]*pendingAccumulation),
	}
}

// Handle registers the handler invoked for messages of the given category.
func (d *Dispatcher) Handle(cat wire.Category, h Handler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.handlers[cat] = h
}

// RegisterOrigin remembers that msgID was forwarded on behalf of origin, to
// be resolved when the matching response or node-internal reply arrives
// (spec.md §4.5's correlation tracking). It is purged after ttl if no
// response arrives.
func (d *Dispatcher) RegisterOrigin(msgID wire.MsgId, origin xorname.Name, ttl time.Duration) {
	d.corrMu.Lock()
	defer d.corrMu.Unlock()
	d.correlations[msgID] = correlation{origin: origin, deadline: time.Now().Add(ttl)}
}

// ResolveOrigin looks up and consumes the correlation for msgID. A response
// with no matching outstanding id is reported via the second return value
// being false; the caller must log and drop it rather than deliver it
// anywhere (spec.md §4.5).
func (d *Dispatcher) ResolveOrigin(msgID wire.MsgId) (xorname.Name, bool) {
	d.corrMu.Lock()
	defer d.corrMu.Unlock()
	c, ok := d.correlations[msgID]
	if !ok {
		return xorname.Name{}, false
	}
	delete(d.correlations, msgID)
	return c.origin, true
}

// PurgeExpired drops every correlation whose deadline has passed and
// returns their msg ids, so the caller can synthesize a timeout failure for
// each (spec.md §9: timeouts are the dispatcher's job, not cancellation).
func (d *Dispatcher) PurgeExpired(now time.Time) []wire.MsgId {
	d.corrMu.Lock()
	defer d.corrMu.Unlock()
	var expired []wire.MsgId
	for id, c := range d.correlations {
		if now.After(c.deadline) {
			expired = append(expired, id)
			delete(d.correlations, id)
		}
	}
	return expired
}

// Classify re-checks that msg is actually addressed to us (spec.md §4.5:
// "the routing layer has already filtered, but this is re-checked") and
// looks up the registered handler for its category.
func (d *Dispatcher) Classify(msg wire.Message) (Handler, error) {
	if msg.Dst != d.ourName {
		return nil, fmt.Errorf("dispatch: message %x not addressed to us", msg.ID)
	}
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()
	h, ok := d.handlers[msg.Category]
	if !ok {
		return nil, fmt.Errorf("dispatch: no handler registered for category %d", msg.Category)
	}
	return h, nil
}

// Dispatch classifies msg and, for Aggregation::None messages, invokes the
// handler directly. Aggregation::AtDestination messages must instead go
// through AddSignatureShare.
func (d *Dispatcher) Dispatch(msg wire.Message) error {
	h, err := d.Classify(msg)
	if err != nil {
		return err
	}
	return h(msg)
}

// AddSignatureShare buffers one sender's signature share for a message
// marked Aggregation::AtDestination (spec.md §4.5 / §6). Shares are keyed by
// msg.Hash(targetSectionPK) — the (payload, dst, target_section_pk) digest
// wire.Message documents as its reproducible accumulation key — so every
// elder who received the same logical message arrives at the same key
// regardless of send order. A duplicate share from the same shareIndex is
// idempotent. Once threshold shares have been seen, the already-classified
// handler is invoked exactly once with msg, and subsequent shares for the
// same key are absorbed silently.
func (d *Dispatcher) AddSignatureShare(msg wire.Message, targetSectionPK []byte, shareIndex int, sig blscrypto.Signature, threshold int) error {
	key := msg.Hash(targetSectionPK)

	d.accMu.Lock()
	p, ok := d.accs[key]
	if !ok {
		p = &pendingAccumulation{acc: blscrypto.NewAccumulator(threshold), msg: msg}
		d.accs[key] = p
	}
	reached := p.acc.Add(shareIndex, sig)
	d.accMu.Unlock()

	if !reached {
		return nil
	}

	d.accMu.Lock()
	_, stillPending := d.accs[key]
	if stillPending {
		delete(d.accs, key)
	}
	d.accMu.Unlock()
	if !stillPending {
		// Another goroutine already delivered this accumulation.
		return nil
	}

	h, err := d.Classify(msg)
	if err != nil {
		return err
	}
	return h(msg)
}
