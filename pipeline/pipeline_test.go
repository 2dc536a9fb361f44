package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/channel"
	"github.com/hoprnet/hopr-core/kv"
	"github.com/hoprnet/hopr-core/metrics"
	"github.com/hoprnet/hopr-core/onion"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/replay"
	"github.com/stretchr/testify/require"
)

// relayNode bundles everything one simulated node needs to run a
// Processor. A single keypair is this node's identity for both onion
// routing (Hop.PubKey / the Processor's priv) and channel signing: the
// same address it derives is what AcceptTransaction and Transform's
// challenge check expect to see as the counterparty.
type relayNode struct {
	addr  chain.Address
	priv  *secp256k1.PrivateKey
	mgr   *channel.Manager
	store *channel.Store
	proc  *Processor

	transport *captureTransport
	deliverer *captureDeliverer
}

func newRelayNode(t *testing.T, signerMaterial string) *relayNode {
	t.Helper()

	priv := secp256k1.PrivKeyFromBytes([]byte(signerMaterial))
	addr := chain.AddressFromPubKey(priv.PubKey())

	store := channel.NewStore(kv.NewMemory())
	mgr := channel.NewManager(addr, priv, store, nil)
	guard := replay.New(kv.NewMemory())

	transport := &captureTransport{}
	deliverer := &captureDeliverer{}

	proc := New(addr, priv, mgr, store, guard, metrics.NewRegistry(), transport, deliverer)

	return &relayNode{
		addr: addr, priv: priv, mgr: mgr, store: store, proc: proc,
		transport: transport, deliverer: deliverer,
	}
}

func fundRelayChannel(t *testing.T, n *relayNode, peer chain.Address, balance, partyABalance uint64) *channel.Record {
	t.Helper()

	record := channel.NewRecord(n.addr, peer, balance)
	record.Status = channel.StatusOpen
	record.PartyABalance = partyABalance
	require.NoError(t, n.store.Save(record))
	return record
}

type captureTransport struct {
	mu   sync.Mutex
	sent []sentPacket
}

type sentPacket struct {
	to  packet.Address
	pkt *packet.Packet
}

func (c *captureTransport) Send(ctx context.Context, to packet.Address, pkt *packet.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentPacket{to: to, pkt: pkt})
	return nil
}

type captureDeliverer struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *captureDeliverer) Deliver(ctx context.Context, message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func TestProcessForwardsThenDelivers(t *testing.T) {
	t.Parallel()

	sender := newRelayNode(t, "pipeline-test-sender-signing-key")
	hop0 := newRelayNode(t, "pipeline-test-hop0-signing-key-x")
	dest := newRelayNode(t, "pipeline-test-dest-signing-key-x")

	path := []onion.Hop{
		{PubKey: hop0.priv.PubKey(), Address: packet.Address(hop0.addr)},
		{PubKey: dest.priv.PubKey(), Address: packet.Address(dest.addr)},
	}

	// hop0's address sorts first, so hop0 is partyA and sender's deposit
	// is the partyB share.
	senderHop0 := fundRelayChannel(t, sender, hop0.addr, 100, 0)
	firstTx, err := sender.mgr.Transfer(senderHop0, 2*channel.RelayFee, hop0.addr)
	require.NoError(t, err)

	message := []byte("hopr onion relay smoke test")
	pkt, _, err := onion.Construct(path, message, firstTx, sender.priv)
	require.NoError(t, err)

	// hop0 needs both its inbound channel (from sender) and an outbound
	// channel (to dest) to process a forward.
	fundRelayChannel(t, hop0, sender.addr, 100, 0)
	hop0ToDest := fundRelayChannel(t, hop0, dest.addr, 100, 100)

	ctx := context.Background()
	require.NoError(t, hop0.proc.Process(ctx, sender.addr, pkt))

	require.Len(t, hop0.transport.sent, 1)
	forwarded := hop0.transport.sent[0]
	require.Equal(t, packet.Address(dest.addr), forwarded.to)

	// Transfer does not persist: hop0's stored ledger for the outbound
	// channel is unchanged until dest acknowledges.
	afterForward, err := hop0.store.Load(hop0ToDest.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), afterForward.PartyABalance)

	fundRelayChannel(t, dest, hop0.addr, 100, 100)
	require.NoError(t, dest.proc.Process(ctx, hop0.addr, forwarded.pkt))

	require.Len(t, dest.deliverer.messages, 1)
	require.Equal(t, message, dest.deliverer.messages[0][:len(message)])
}

func TestProcessDropsFromUnknownSender(t *testing.T) {
	t.Parallel()

	hop0 := newRelayNode(t, "pipeline-test-hop0-signing-key-x")

	var stranger chain.Address
	stranger[0] = 0xAA

	pkt := &packet.Packet{}
	require.NoError(t, hop0.proc.Process(context.Background(), stranger, pkt))
	require.Empty(t, hop0.transport.sent)
	require.Empty(t, hop0.deliverer.messages)
}

func TestProcessNoRouteReturnsError(t *testing.T) {
	t.Parallel()

	sender := newRelayNode(t, "pipeline-test-sender-signing-key")
	hop0 := newRelayNode(t, "pipeline-test-hop0-signing-key-x")
	dest := newRelayNode(t, "pipeline-test-dest-signing-key-x")

	path := []onion.Hop{
		{PubKey: hop0.priv.PubKey(), Address: packet.Address(hop0.addr)},
		{PubKey: dest.priv.PubKey(), Address: packet.Address(dest.addr)},
	}

	senderHop0 := fundRelayChannel(t, sender, hop0.addr, 100, 0)
	firstTx, err := sender.mgr.Transfer(senderHop0, channel.RelayFee, hop0.addr)
	require.NoError(t, err)

	pkt, _, err := onion.Construct(path, []byte("no route"), firstTx, sender.priv)
	require.NoError(t, err)

	// hop0 has an inbound channel from sender but none to dest.
	fundRelayChannel(t, hop0, sender.addr, 100, 0)

	err = hop0.proc.Process(context.Background(), sender.addr, pkt)
	require.ErrorIs(t, err, ErrNoRoute)
}
