// Package pipeline implements the concurrency-aware packet-pipeline
// driver: it receives one packet at a time from a transport, locks
// the channel(s) the packet touches, drives it through onion.Transform,
// and either delivers the peeled message locally or dispatches the
// re-sealed packet to the next hop — classifying every error along the
// way (silent drop, local-recoverable, fatal).
//
// Grounded on htlcswitch's per-link serialization pattern (one mutex
// guarding the state a forwarding decision touches) and
// healthcheck.Monitor's shutdown-on-fatal-error convention.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	goerrors "github.com/go-errors/errors"
	"github.com/hoprnet/hopr-core/binding"
	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/channel"
	"github.com/hoprnet/hopr-core/metrics"
	"github.com/hoprnet/hopr-core/onion"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/replay"
)

// ErrNoRoute is a local-recoverable error (the local-recoverable class): this node has no
// established channel to the next hop a peeled packet names. A
// supervisor is expected to retry (the channel may be mid-open) rather
// than treat this as fatal.
var ErrNoRoute = errors.New("pipeline: no channel to next hop")

// ErrUnknownSender is a silent-drop error (the silent-drop class): a packet arrived
// claiming to come from a peer this node has no channel with at all.
var ErrUnknownSender = errors.New("pipeline: no channel from sender")

// Transport is the minimum a transport must provide to carry packets
// between peers; its implementation (and peer discovery) is out of
// scope here (scope).
type Transport interface {
	Send(ctx context.Context, to packet.Address, pkt *packet.Packet) error
}

// Deliverer receives a fully-peeled message addressed to this node.
type Deliverer interface {
	Deliver(ctx context.Context, message []byte)
}

// Processor is the per-node pipeline driver.
type Processor struct {
	self  chain.Address
	priv  *secp256k1.PrivateKey
	mgr   *channel.Manager
	store *channel.Store
	guard *replay.Guard

	metrics   *metrics.Registry
	transport Transport
	deliverer Deliverer

	locksMu sync.Mutex
	locks   map[channel.ID]*sync.Mutex
}

// New returns a Processor for self, backed by store/guard for state and
// dispatching through transport/deliverer.
func New(
	self chain.Address,
	priv *secp256k1.PrivateKey,
	mgr *channel.Manager,
	store *channel.Store,
	guard *replay.Guard,
	m *metrics.Registry,
	transport Transport,
	deliverer Deliverer,
) *Processor {
	return &Processor{
		self:      self,
		priv:      priv,
		mgr:       mgr,
		store:     store,
		guard:     guard,
		metrics:   m,
		transport: transport,
		deliverer: deliverer,
		locks:     make(map[channel.ID]*sync.Mutex),
	}
}

// Process drives one inbound packet, received from prev, through the
// transform and onward. It serializes on every channel ID the packet
// touches, so that every packet-channel binding step for a given
// channel runs one at a time, in a fixed byte order to avoid deadlocking
// against a concurrent call processing the reverse pair of channels.
func (p *Processor) Process(ctx context.Context, prev chain.Address, pkt *packet.Packet) error {
	inboundID := channel.ComputeID(p.self, prev)

	if !p.store.Has(inboundID) {
		log.Debugf("packet from unknown sender, dropping")
		p.metrics.Dropped.WithLabelValues("unknown_sender").Inc()
		return nil
	}

	unlock := p.lockChannels(inboundID)
	defer unlock()

	record, err := p.store.Load(inboundID)
	if err != nil {
		return err
	}

	res, err := onion.Transform(p.priv, p.guard, p.mgr, record, prev, pkt)
	if err != nil {
		// A non-nil error here is always the fatal class (the fatal
		// class): wrap it with a stack trace before it reaches a
		// supervisor, the way go-errors is used for fatal-path errors
		// elsewhere in this module.
		wrapped := goerrors.Wrap(err, 0)
		log.Criticalf("fatal error transforming packet from %x: %v\n%s", prev, err, wrapped.ErrorStack())
		return wrapped
	}

	switch res.Action {
	case onion.ActionDrop:
		p.metrics.Dropped.WithLabelValues("transform").Inc()
		return nil

	case onion.ActionDeliver:
		p.metrics.Delivered.Inc()
		p.deliverer.Deliver(ctx, res.Message)
		return nil

	case onion.ActionForward:
		return p.forward(ctx, res)

	default:
		return nil
	}
}

// forward builds and dispatches the outgoing packet for a non-terminal
// transform result.
func (p *Processor) forward(ctx context.Context, res *onion.Result) error {
	nextAddr := chain.Address(res.NextAddress)
	nextID := channel.ComputeID(p.self, nextAddr)

	if !p.store.Has(nextID) {
		p.metrics.Dropped.WithLabelValues("no_route").Inc()
		return ErrNoRoute
	}

	unlock := p.lockChannels(nextID)
	defer unlock()

	nextRecord, err := p.store.Load(nextID)
	if err != nil {
		return err
	}

	sealedTx, err := binding.OutgoingTransaction(
		p.mgr, nextRecord, nextAddr, res.Received, channel.RelayFee, res.NextSealKey[:],
	)
	if err != nil {
		// Typically ErrInsufficientBalance: this node itself cannot
		// cover the forward. Local-recoverable (the local-recoverable class) — the channel
		// may be topped up.
		return err
	}

	outgoing := onion.BuildForwardPacket(res, *sealedTx)

	p.metrics.Forwarded.Inc()
	return p.transport.Send(ctx, res.NextAddress, outgoing)
}

// lockChannels locks every distinct channel.ID given, in ascending byte
// order, and returns a function that unlocks them all.
func (p *Processor) lockChannels(ids ...channel.ID) func() {
	locks := make([]*sync.Mutex, 0, len(ids))
	for _, id := range dedupSorted(ids) {
		locks = append(locks, p.lockFor(id))
	}
	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (p *Processor) lockFor(id channel.ID) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()

	l, ok := p.locks[id]
	if !ok {
		l = &sync.Mutex{}
		p.locks[id] = l
	}
	return l
}

func dedupSorted(ids []channel.ID) []channel.ID {
	seen := make(map[channel.ID]struct{}, len(ids))
	out := make([]channel.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	// simple insertion sort: ids is at most two elements in practice
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && lessID(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func lessID(a, b channel.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
