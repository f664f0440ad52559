// Package blobregister is the elder-side index over the (address -> holders)
// relation (spec.md §4.2, component C4): placement of new chunks onto the
// adults closest by xor distance, response aggregation, and re-replication
// on adult churn. Grounded on core/kademlia.go's Nearest/bucketIndex/distance
// scheme, generalized from its 160-bit SHA-1 NodeID to the 256-bit xorname.Name
// this vault uses, and on the deterministic-hash idiom used for transaction
// hashing across core/ for idempotent re-replication msg ids.
package blobregister

import (
	"crypto/sha256"
	"sync"

	"github.com/safevault/node/internal/capacity"
	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/liveness"
	"github.com/safevault/node/internal/routing"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
)

// CopyCount is CHUNK_COPY_COUNT: the flat replication factor spec.md §9
// settles on, superseding the earlier Normal/Backup/Sacrificial scheme.
const CopyCount = 4

// chunkMeta is the elder's view of one chunk (spec.md §3's ChunkMetadata).
type chunkMeta struct {
	holders map[xorname.Name]struct{}
	owner   chunk.PublicKey
	private bool
}

// writeOp is an outstanding fan-out write awaiting per-target responses.
type writeOp struct {
	addr      chunk.Address
	targets   map[xorname.Name]struct{}
	responded map[xorname.Name]struct{}
	origin    xorname.Name
	answered  bool
}

// readOp is an outstanding fan-out read awaiting per-target responses.
type readOp struct {
	addr      chunk.Address
	targets   map[xorname.Name]struct{}
	responded map[xorname.Name]struct{}
	origin    xorname.Name
	answered  bool
}

// ReplicationTask is one outbound System::ReplicateChunk request produced by
// churn handling.
type ReplicationTask struct {
	Addr   chunk.Address
	Target xorname.Name
	MsgID  wire.MsgId
}

// Register is the elder-side blob index. A zero value is not usable; call
// New.
//
// chunks and holderChunks are the bidirectional (address -> holders) /
// (holder -> addresses) index spec.md §3/§9 calls for: every holder in a
// chunkMeta.holders set has a matching entry in holderChunks, and vice
// versa, maintained in lockstep by addHolder/removeHolder so churn handling
// can look up "every chunk adult X holds" without scanning every chunk.
type Register struct {
	mu sync.Mutex

	chunks       map[chunk.Address]*chunkMeta
	holderChunks map[xorname.Name]map[chunk.Address]struct{}

	writes map[wire.MsgId]*writeOp
	reads  map[wire.MsgId]*readOp

	full   *capacity.FullAdults
	live   *liveness.Tracker
	copies int
}

// New returns an empty Register. full tracks adults currently believed to be
// at capacity, excluded from placement; live tracks per-adult outstanding
// operations so churn no-shows can be surfaced via Unresponsive (spec.md
// §4.2, component C3).
func New(full *capacity.FullAdults, live *liveness.Tracker) *Register {
	return &Register{
		chunks:       make(map[chunk.Address]*chunkMeta),
		holderChunks: make(map[xorname.Name]map[chunk.Address]struct{}),
		writes:       make(map[wire.MsgId]*writeOp),
		reads:        make(map[wire.MsgId]*readOp),
		full:         full,
		live:         live,
		copies:       CopyCount,
	}
}

// addHolder records that holder holds addr in both halves of the index.
// Must be called with r.mu held.
func (r *Register) addHolder(meta *chunkMeta, addr chunk.Address, holder xorname.Name) {
	meta.holders[holder] = struct{}{}
	addrs, ok := r.holderChunks[holder]
	if !ok {
		addrs = make(map[chunk.Address]struct{})
		r.holderChunks[holder] = addrs
	}
	addrs[addr] = struct{}{}
}

// removeHolder is addHolder's inverse. Must be called with r.mu held.
func (r *Register) removeHolder(meta *chunkMeta, addr chunk.Address, holder xorname.Name) {
	delete(meta.holders, holder)
	if addrs, ok := r.holderChunks[holder]; ok {
		delete(addrs, addr)
		if len(addrs) == 0 {
			delete(r.holderChunks, holder)
		}
	}
}

// selectHolders picks up to CopyCount adults closest to addr.Name, excluding
// any adult currently in the full-adult set.
func (r *Register) selectHolders(addr chunk.Address, adults []xorname.Name) []xorname.Name {
	var exclude map[xorname.Name]struct{}
	if r.full != nil {
		exclude = r.full.Snapshot()
	}
	return xorname.Closest(addr.Name, adults, exclude, r.copies)
}

func (r *Register) startFanOut(targets []xorname.Name) {
	if r.live == nil {
		return
	}
	for _, t := range targets {
		r.live.RequestStarted(t)
	}
}

// PutNew is step 1-4 of the write path for Write::New (spec.md §4.2).
// requester is the requesting client's key; c.OwnerKey() must match it for private
// chunks. Returns the holder set the caller should fan a Chunks{Write::New}
// command out to. A zero-length, nil-error result means msgID was already
// outstanding (idempotent replay) and nothing further should be sent.
func (r *Register) PutNew(origin xorname.Name, c chunk.Chunk, msgID wire.MsgId, requester chunk.PublicKey, adults []xorname.Name) ([]xorname.Name, error) {
	if c.IsPrivate() && c.OwnerKey() != requester {
		return nil, verr.InvalidOwners
	}

	addr := c.Address()
	targets := r.selectHolders(addr, adults)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, pending := r.writes[msgID]; pending {
		return nil, nil
	}

	op := &writeOp{
		addr:      addr,
		targets:   make(map[xorname.Name]struct{}, len(targets)),
		responded: make(map[xorname.Name]struct{}, len(targets)),
		origin:    origin,
	}
	for _, t := range targets {
		op.targets[t] = struct{}{}
	}
	r.writes[msgID] = op

	meta, ok := r.chunks[addr]
	if !ok {
		meta = &chunkMeta{holders: make(map[xorname.Name]struct{})}
		r.chunks[addr] = meta
	}
	meta.owner = c.OwnerKey()
	meta.private = c.IsPrivate()
	for _, t := range targets {
		r.addHolder(meta, addr, t)
	}

	r.startFanOut(targets)
	return targets, nil
}

// DeletePrivate is the Write::DeletePrivate path (spec.md §4.2): fan out to
// holders ∪ full_adults, after an ownership check. This fan-out has no
// per-target response channel to pair with liveness.Tracker.RequestFinished
// (it is fire-and-forget, unlike PutNew/Get), so it is not counted against
// liveness.
func (r *Register) DeletePrivate(addr chunk.Address, requester chunk.PublicKey) ([]xorname.Name, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, ok := r.chunks[addr]
	if !ok {
		return nil, verr.NoSuchData
	}
	if !meta.owner.IsZero() && meta.owner != requester {
		return nil, verr.AccessDenied
	}

	targets := make(map[xorname.Name]struct{}, len(meta.holders))
	for n := range meta.holders {
		targets[n] = struct{}{}
	}
	if r.full != nil {
		for n := range r.full.Snapshot() {
			targets[n] = struct{}{}
		}
	}
	for n := range meta.holders {
		r.removeHolder(meta, addr, n)
	}
	delete(r.chunks, addr)

	out := make([]xorname.Name, 0, len(targets))
	for n := range targets {
		out = append(out, n)
	}
	return out, nil
}

// Get is the read path (spec.md §4.2): known holders if any, else the
// closest adults as a fallback when metadata is absent.
func (r *Register) Get(origin xorname.Name, addr chunk.Address, msgID wire.MsgId, adults []xorname.Name) ([]xorname.Name, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, pending := r.reads[msgID]; pending {
		return nil, nil
	}

	var targets []xorname.Name
	if meta, ok := r.chunks[addr]; ok && len(meta.holders) > 0 {
		for n := range meta.holders {
			targets = append(targets, n)
		}
	} else {
		targets = r.selectHolders(addr, adults)
	}

	op := &readOp{
		addr:      addr,
		targets:   make(map[xorname.Name]struct{}, len(targets)),
		responded: make(map[xorname.Name]struct{}, len(targets)),
		origin:    origin,
	}
	for _, t := range targets {
		op.targets[t] = struct{}{}
	}
	r.reads[msgID] = op

	r.startFanOut(targets)
	return targets, nil
}

// RecordWriteResponse records a per-target response to an outstanding write,
// identified by the adult that answered (spec.md §4.2: responses are
// recorded against (msg_id, adult), not just msg_id, since every fanned-out
// target must close out its own liveness count independent of which one
// happens to be first). It returns (origin, true) exactly once per msgID —
// on the first response across all targets — and (zero, false) on every
// subsequent call, so the caller delivers the result to the client at most
// once. The op is forgotten once every target has responded.
func (r *Register) RecordWriteResponse(msgID wire.MsgId, from xorname.Name) (xorname.Name, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.writes[msgID]
	if !ok {
		return xorname.Name{}, false
	}
	r.finishOpResponse(op.targets, op.responded, from)

	deliver := !op.answered
	op.answered = true
	if len(op.responded) >= len(op.targets) {
		delete(r.writes, msgID)
	}
	if !deliver {
		return xorname.Name{}, false
	}
	return op.origin, true
}

// RecordReadResponse is RecordWriteResponse's counterpart for reads.
func (r *Register) RecordReadResponse(msgID wire.MsgId, from xorname.Name) (xorname.Name, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.reads[msgID]
	if !ok {
		return xorname.Name{}, false
	}
	r.finishOpResponse(op.targets, op.responded, from)

	deliver := !op.answered
	op.answered = true
	if len(op.responded) >= len(op.targets) {
		delete(r.reads, msgID)
	}
	if !deliver {
		return xorname.Name{}, false
	}
	return op.origin, true
}

// finishOpResponse records from's response against responded — idempotent,
// since a repeat response from the same adult must not double-decrement
// its liveness count — and closes out its outstanding-operation count.
// Must be called with r.mu held.
func (r *Register) finishOpResponse(targets, responded map[xorname.Name]struct{}, from xorname.Name) {
	if _, wasTarget := targets[from]; !wasTarget {
		return
	}
	if _, already := responded[from]; already {
		return
	}
	responded[from] = struct{}{}
	if r.live != nil {
		r.live.RequestFinished(from)
	}
}

// Unresponsive surfaces adults whose outstanding fan-out count has crossed
// LIVENESS_THRESHOLD (spec.md §4.2, component C3), for the caller to propose
// offline to the routing layer.
func (r *Register) Unresponsive() []xorname.Name {
	if r.live == nil {
		return nil
	}
	return r.live.Unresponsive()
}

// ForgetLiveness drops tracked liveness state for adult, e.g. once it has
// been proposed offline so it is not proposed again on every poll.
func (r *Register) ForgetLiveness(adult xorname.Name) {
	if r.live == nil {
		return
	}
	r.live.Forget(adult)
}

// HolderCount reports how many holders are currently recorded for addr.
func (r *Register) HolderCount(addr chunk.Address) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.chunks[addr]
	if !ok {
		return 0
	}
	return len(meta.holders)
}

// PruneNotMatching drops chunk metadata whose address no longer falls under
// prefix (spec.md §4.4, section split, component C8): the elder remaining
// in a sub-section must stop indexing chunks that belong to the sibling. It
// returns the number of chunks dropped.
func (r *Register) PruneNotMatching(prefix routing.Prefix) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for addr, meta := range r.chunks {
		if prefix.Matches(addr.Name) {
			continue
		}
		for holder := range meta.holders {
			r.removeHolder(meta, addr, holder)
		}
		delete(r.chunks, addr)
		pruned++
	}
	return pruned
}

// AdultsChanged is the churn path (spec.md §4.2): for every chunk held by a
// removed adult, drop that holder, recompute the closest set from the
// surviving adults, and emit a ReplicationTask for every newly-missing
// holder. Touched chunks are found via holderChunks, so cost is proportional
// to the number of chunks the removed adults actually held, not to the
// total chunk count. The msg id is deterministic over (address, owner,
// target) so retries accumulate idempotently at the destination.
func (r *Register) AdultsChanged(removed []xorname.Name, survivingAdults []xorname.Name) []ReplicationTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := make(map[chunk.Address]struct{})
	for _, n := range removed {
		for addr := range r.holderChunks[n] {
			meta, ok := r.chunks[addr]
			if !ok {
				continue
			}
			r.removeHolder(meta, addr, n)
			touched[addr] = struct{}{}
		}
	}

	var tasks []ReplicationTask
	for addr := range touched {
		meta, ok := r.chunks[addr]
		if !ok {
			continue
		}
		if len(meta.holders) == 0 {
			delete(r.chunks, addr)
			continue
		}

		var exclude map[xorname.Name]struct{}
		if r.full != nil {
			exclude = r.full.Snapshot()
		} else {
			exclude = make(map[xorname.Name]struct{})
		}
		for n := range meta.holders {
			exclude[n] = struct{}{}
		}
		need := r.copies - len(meta.holders)
		if need <= 0 {
			continue
		}
		replacements := xorname.Closest(addr.Name, survivingAdults, exclude, need)
		for _, target := range replacements {
			r.addHolder(meta, addr, target)
			tasks = append(tasks, ReplicationTask{
				Addr:   addr,
				Target: target,
				MsgID:  replicationMsgID(addr, meta.owner, target),
			})
		}
	}
	return tasks
}

func replicationMsgID(addr chunk.Address, owner chunk.PublicKey, target xorname.Name) wire.MsgId {
	h := sha256.New()
	h.Write(addr.Name[:])
	h.Write([]byte{byte(addr.Kind)})
	h.Write(owner[:])
	h.Write(target[:])
	sum := h.Sum(nil)
	var id wire.MsgId
	copy(id[:], sum[:len(id)])
	return id
}
