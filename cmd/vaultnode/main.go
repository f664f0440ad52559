// Command vaultnode runs a single SAFE-style storage vault node: chunk
// storage, capacity and liveness tracking, and (once promoted to Elder) the
// blob register, metadata stores, transfer Replica and message dispatcher.
//
// spec.md's Non-goals explicitly leave the BLS sharing ceremony and network
// transport out of scope; this entrypoint wires internal/routing.Mock as a
// local stand-in section and self-generates this node's genesis BLS key
// shares, the way internal/blscrypto.GenerateKeyShares documents itself as
// "a local stand-in used in tests and single-process genesis". A real
// deployment swaps routing.Mock for a network-backed Routing implementation
// and replaces key generation with a share delivered by the real ceremony;
// nothing else in this package changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safevault/node/internal/blobregister"
	"github.com/safevault/node/internal/blscrypto"
	"github.com/safevault/node/internal/capacity"
	"github.com/safevault/node/internal/chunk"
	"github.com/safevault/node/internal/chunkstore"
	"github.com/safevault/node/internal/dispatch"
	"github.com/safevault/node/internal/liveness"
	"github.com/safevault/node/internal/metadata"
	"github.com/safevault/node/internal/ratelimit"
	"github.com/safevault/node/internal/role"
	"github.com/safevault/node/internal/routing"
	"github.com/safevault/node/internal/transfers"
	"github.com/safevault/node/internal/verr"
	"github.com/safevault/node/internal/wire"
	"github.com/safevault/node/internal/xorname"
	"github.com/safevault/node/pkg/config"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.WithError(err).Warn("no config file found, falling back to defaults")
		d := config.Default()
		cfg = &d
	}

	log := newLogger(cfg.Logging.Level)
	log.WithFields(logrus.Fields{
		"root_dir":     cfg.Node.RootDir,
		"max_capacity": cfg.Storage.MaxCapacityBytes,
	}).Info("starting vault node")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("vault node exited with error")
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// run wires every component together and blocks until ctx is cancelled by a
// termination signal.
func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chunks, err := chunkstore.Open(cfg.Node.RootDir, cfg.Storage.MaxCapacityBytes, log)
	if err != nil {
		return err
	}

	full := capacity.New()
	live := liveness.NewTracker(cfg.Transfers.LivenessThreshold)
	costOracle := ratelimit.NewOracle(nil)

	node := role.NewNode()

	ourName := xorname.Hash([]byte(cfg.Node.RewardKey), []byte(cfg.Node.RootDir))
	rt := routing.NewMock(routing.Prefix{}, ourName, nil, nil, nil)

	d := dispatch.New(ourName, log)

	elders := cfg.Transfers.GenesisElderCount
	threshold := cfg.Transfers.BlsThreshold
	shares, groupKey, err := blscrypto.GenerateKeyShares(threshold, elders)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"elders": elders, "threshold": threshold}).
		Warn("self-generated genesis BLS key shares: a real section distributes these via its sharing ceremony")

	node.SetAge(1)
	if err := node.PromoteToAdult(chunks); err != nil {
		return err
	}

	reg := blobregister.New(full, live)
	meta := metadata.New(chunks)
	replica := transfers.New(cfg.Node.RootDir, transfers.Info{
		ShareIndex:  0,
		SecretShare: shares[0],
		GroupKey:    groupKey,
		Threshold:   threshold,
	}, log)

	var sectionWallet wire.WalletID
	copy(sectionWallet[:], ourName.Bytes())

	if err := node.PromoteToElder(&role.ElderComponents{
		BlobRegister:  reg,
		Metadata:      meta,
		Transfers:     replica,
		SectionWallet: sectionWallet,
	}); err != nil {
		return err
	}
	node.MarkInitialSyncComplete()

	gate := ratelimit.NewGate(costOracle, replica)
	registerHandlers(ctx, d, node, rt, gate, chunks.UsedSpace(), ourName, log)

	go purgeExpiredCorrelations(ctx, d, time.Duration(cfg.Transfers.RequestTimeoutSecs)*time.Second, log)
	go consumeRoutingEvents(ctx, rt, ourName, node, log)
	go proposeUnresponsiveAdults(ctx, rt, reg, time.Duration(cfg.Transfers.RequestTimeoutSecs)*time.Second, log)

	log.WithField("role", node.Kind().String()).Info("vault node ready")
	<-ctx.Done()
	log.Info("shutting down vault node")
	return nil
}

// registerHandlers binds the dispatcher's categories to this node's elder
// components. Handlers are deliberately thin: they translate a wire.Message
// into a call against the owning package and log the outcome, matching the
// teacher's InboundMsg dispatch style in core/network.go.
func registerHandlers(ctx context.Context, d *dispatch.Dispatcher, node *role.Node, rt routing.Routing, gate *ratelimit.Gate, usedSpace *chunkstore.UsedSpace, ourName xorname.Name, log *logrus.Logger) {
	entry := log.WithField("component", "dispatch")

	d.Handle(wire.CategoryNodeCmd, func(msg wire.Message) error {
		elder := node.Elder()
		if elder == nil || !elder.ReceivedInitialSync {
			entry.Warn("dropping node command: not a synced elder")
			return nil
		}
		entry.WithField("msg_id", msg.ID).Debug("node command accepted")
		return nil
	})

	d.Handle(wire.CategoryCmd, func(msg wire.Message) error {
		elder := node.Elder()
		if elder == nil || !elder.ReceivedInitialSync {
			entry.Warn("dropping client command: not a synced elder")
			return nil
		}

		switch msg.PayloadKind {
		case wire.PayloadChunksWriteNew:
			return handleChunksWriteNew(ctx, elder, gate, usedSpace, rt, ourName, msg, entry)
		default:
			entry.WithField("msg_id", msg.ID).Debug("client command accepted")
			return nil
		}
	})

	d.Handle(wire.CategoryQuery, func(msg wire.Message) error {
		entry.WithField("msg_id", msg.ID).Debug("query accepted")
		return nil
	})
}

// handleChunksWriteNew is the payment-gated Write::New path (spec.md §4.3):
// the accompanying payment credit is always registered at the client's
// replica and propagated to the section wallet, regardless of outcome, but
// the chunk is only handed to the blob register — and so fanned out to
// adults — once the credit is confirmed to cover the store cost. An
// underpaid credit is forfeited and the client is told InsufficientBalance
// (scenario S4).
func handleChunksWriteNew(ctx context.Context, elder *role.ElderComponents, gate *ratelimit.Gate, usedSpace *chunkstore.UsedSpace, rt routing.Routing, ourName xorname.Name, msg wire.Message, entry *logrus.Entry) error {
	var payload wire.ChunksWriteNew
	if err := wire.DecodePayload(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode chunks write new: %w", err)
	}

	cost := uint64(len(payload.Serialized))
	if err := gate.Admit(payload.DebitProof, payload.CreditProof, cost, usedSpace.FillRatio()); err != nil {
		entry.WithError(err).WithField("msg_id", msg.ID).Warn("rejecting data command: payment does not cover store cost")
		return sendCmdError(ctx, rt, ourName, msg, wire.CmdErrorInsufficientBalance, err, entry)
	}

	c, err := chunk.Unmarshal(payload.Serialized)
	if err != nil {
		return fmt.Errorf("unmarshal chunk: %w", err)
	}

	adults, err := rt.OurAdults(ctx)
	if err != nil {
		return fmt.Errorf("fetch adult set: %w", err)
	}

	targets, err := elder.BlobRegister.PutNew(msg.Src, c, msg.ID, chunk.PublicKey(payload.Requester), adults)
	if err != nil {
		entry.WithError(err).WithField("msg_id", msg.ID).Warn("rejecting data command")
		code := wire.CmdErrorGeneric
		if errors.Is(err, verr.AccessDenied) || errors.Is(err, verr.InvalidOwners) {
			code = wire.CmdErrorAccessDenied
		}
		return sendCmdError(ctx, rt, ourName, msg, code, err, entry)
	}

	for _, target := range targets {
		fwd := wire.Message{
			ID: msg.ID, SrcKind: wire.SrcNode, Src: ourName, Dst: target,
			Category: wire.CategoryNodeCmd, PayloadKind: wire.PayloadChunksWriteNew,
			Payload: msg.Payload,
		}
		bytes, err := wire.Encode(fwd)
		if err != nil {
			return fmt.Errorf("encode forwarded chunk write: %w", err)
		}
		if err := rt.Send(ctx, routing.SendParams{Src: ourName, Dst: target, Bytes: bytes}); err != nil {
			entry.WithError(err).WithField("target", target).Warn("failed to forward chunk write")
		}
	}
	return nil
}

func sendCmdError(ctx context.Context, rt routing.Routing, ourName xorname.Name, msg wire.Message, code uint8, cause error, entry *logrus.Entry) error {
	payload, err := wire.EncodePayload(wire.CmdErrorPayload{Code: code, Message: cause.Error(), CorrelationID: msg.ID})
	if err != nil {
		return fmt.Errorf("encode cmd error: %w", err)
	}
	reply := wire.Message{
		ID: msg.ID, SrcKind: wire.SrcNode, Src: ourName, Dst: msg.Src,
		Category: wire.CategoryCmdError, PayloadKind: wire.PayloadCmdError, Payload: payload,
	}
	bytes, err := wire.Encode(reply)
	if err != nil {
		return fmt.Errorf("encode cmd error envelope: %w", err)
	}
	if err := rt.Send(ctx, routing.SendParams{Src: ourName, Dst: msg.Src, Bytes: bytes}); err != nil {
		entry.WithError(err).Warn("failed to deliver cmd error to client")
	}
	return nil
}

// purgeExpiredCorrelations periodically drops stale (msg_id -> origin)
// entries so a client request that never received a response eventually
// times out rather than leaking (spec.md §9).
func purgeExpiredCorrelations(ctx context.Context, d *dispatch.Dispatcher, ttl time.Duration, log *logrus.Logger) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired := d.PurgeExpired(now)
			if len(expired) > 0 {
				log.WithField("count", len(expired)).Debug("purged expired correlations")
			}
		}
	}
}

// consumeRoutingEvents applies MemberJoined/Relocated age updates targeting
// ourName to the local role.Node, and drives the section-split transition
// (spec.md §4.4) when an EldersChanged event narrows our section's prefix:
// an elder that remains in its sub-section prunes chunk metadata and wallet
// keys that no longer belong to it.
func consumeRoutingEvents(ctx context.Context, rt routing.Routing, ourName xorname.Name, node *role.Node, log *logrus.Logger) {
	var ourPrefix routing.Prefix
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rt.Events():
			if !ok {
				return
			}
			log.WithField("kind", ev.Kind).Debug("routing event")

			switch ev.Kind {
			case routing.EventMemberJoined, routing.EventRelocated:
				if ev.Name == ourName {
					node.SetAge(ev.Age)
				}
			case routing.EventEldersChanged:
				if node.Kind() != role.KindElder || len(ev.Prefix.Bits) <= len(ourPrefix.Bits) {
					ourPrefix = ev.Prefix
					continue
				}
				pruned, err := node.Split(ev.Prefix)
				if err != nil {
					log.WithError(err).Warn("section split: could not prune local state")
				} else {
					log.WithField("pruned_chunks", pruned).Info("section split: pruned state outside new prefix")
				}
				ourPrefix = ev.Prefix
			}
		}
	}
}

// proposeUnresponsiveAdults periodically surfaces adults whose outstanding
// fan-out count has crossed LIVENESS_THRESHOLD (spec.md §4.2, component C3)
// and proposes each offline to the routing layer, forgetting it afterward
// so it is not proposed again on every poll.
func proposeUnresponsiveAdults(ctx context.Context, rt routing.Routing, reg *blobregister.Register, interval time.Duration, log *logrus.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, adult := range reg.Unresponsive() {
				if err := rt.ProposeOffline(ctx, adult); err != nil {
					log.WithError(err).WithField("adult", adult).Warn("failed to propose unresponsive adult offline")
					continue
				}
				reg.ForgetLiveness(adult)
				log.WithField("adult", adult).Warn("proposed unresponsive adult offline")
			}
		}
	}
}
