package onion

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/binding"
	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/channel"
	"github.com/hoprnet/hopr-core/kv"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/replay"
	"github.com/stretchr/testify/require"
)

// node bundles everything one simulated relay needs to run Transform.
// A single keypair serves as both the node's onion-routing identity
// (Hop.PubKey / Transform's priv) and its payment-channel signing key:
// the challenge mechanism and the transaction signature both recover to
// this same address, which is what lets a receiving hop authenticate
// both against one expected counterparty.
type node struct {
	addr  chain.Address
	priv  *secp256k1.PrivateKey
	mgr   *channel.Manager
	store *channel.Store
	guard *replay.Guard
}

func newNode(t *testing.T, keyMaterial string) *node {
	t.Helper()

	priv := secp256k1.PrivKeyFromBytes([]byte(keyMaterial))
	addr := chain.AddressFromPubKey(priv.PubKey())

	store := channel.NewStore(kv.NewMemory())
	mgr := channel.NewManager(addr, priv, store, nil)
	guard := replay.New(kv.NewMemory())

	return &node{addr: addr, priv: priv, mgr: mgr, store: store, guard: guard}
}

// fundChannel saves a matching channel record, as seen from self's side,
// for the channel between self and peer with partyA pre-funded to
// partyABalance.
func fundChannel(t *testing.T, n *node, peer chain.Address, balance, partyABalance uint64) *channel.Record {
	t.Helper()

	record := channel.NewRecord(n.addr, peer, balance)
	record.Status = channel.StatusOpen
	record.PartyABalance = partyABalance
	require.NoError(t, n.store.Save(record))
	return record
}

func TestConstructAndTransformThreeHopDelivers(t *testing.T) {
	t.Parallel()

	sender := newNode(t, "onion-test-sender-signing-key-3")
	hop0 := newNode(t, "onion-test-hop0-signing-key-xxx")
	hop1 := newNode(t, "onion-test-hop1-signing-key-xxx")
	dest := newNode(t, "onion-test-dest-signing-key-xxx")

	path := []Hop{
		{PubKey: hop0.priv.PubKey(), Address: packet.Address(hop0.addr)},
		{PubKey: hop1.priv.PubKey(), Address: packet.Address(hop1.addr)},
		{PubKey: dest.priv.PubKey(), Address: packet.Address(dest.addr)},
	}

	// sender -> hop0: pays for two relays up front (hop0 and hop1 each
	// take one RelayFee; dest takes none). hop0's address sorts first, so
	// hop0 is partyA and sender's deposit is the partyB share.
	senderHop0 := fundChannel(t, sender, hop0.addr, 100, 0)
	firstTx, err := sender.mgr.Transfer(senderHop0, 2*channel.RelayFee, hop0.addr)
	require.NoError(t, err)

	message := []byte("the quick brown fox jumps over the lazy dog")

	pkt, secrets, err := Construct(path, message, firstTx, sender.priv)
	require.NoError(t, err)
	require.Len(t, secrets, 3)

	// hop0's view of the same channel, matching sender's pre-transfer state.
	hop0Record := fundChannel(t, hop0, sender.addr, 100, 0)
	hop0ToHop1 := fundChannel(t, hop0, hop1.addr, 100, 100)

	res0, err := Transform(hop0.priv, hop0.guard, hop0.mgr, hop0Record, sender.addr, pkt)
	require.NoError(t, err)
	require.Equal(t, ActionForward, res0.Action)
	require.Equal(t, uint64(2), res0.Received)
	require.Equal(t, packet.Address(hop1.addr), res0.NextAddress)

	sealedTx0, err := binding.OutgoingTransaction(
		hop0.mgr, hop0ToHop1, hop1.addr, res0.Received, channel.RelayFee,
		transactionKeyFor(secrets[1].SharedSecret),
	)
	require.NoError(t, err)
	pkt1 := BuildForwardPacket(res0, *sealedTx0)

	hop1Record := fundChannel(t, hop1, hop0.addr, 100, 100)
	hop1ToDest := fundChannel(t, hop1, dest.addr, 100, 100)

	res1, err := Transform(hop1.priv, hop1.guard, hop1.mgr, hop1Record, hop0.addr, pkt1)
	require.NoError(t, err)
	require.Equal(t, ActionForward, res1.Action)
	require.Equal(t, uint64(1), res1.Received)
	require.Equal(t, packet.Address(dest.addr), res1.NextAddress)

	sealedTx1, err := binding.OutgoingTransaction(
		hop1.mgr, hop1ToDest, dest.addr, res1.Received, channel.RelayFee, // hop1's own cut
		transactionKeyFor(secrets[2].SharedSecret),
	)
	require.NoError(t, err)
	pkt2 := BuildForwardPacket(res1, *sealedTx1)

	destRecord := fundChannel(t, dest, hop1.addr, 100, 100)

	res2, err := Transform(dest.priv, dest.guard, dest.mgr, destRecord, hop1.addr, pkt2)
	require.NoError(t, err)
	require.Equal(t, ActionDeliver, res2.Action)
	require.Equal(t, uint64(0), res2.Received)

	trimmed := res2.Message[:len(message)]
	require.Equal(t, message, trimmed)
}

func TestTransformDropsOnBadMAC(t *testing.T) {
	t.Parallel()

	hop0 := newNode(t, "onion-test-hop0-signing-key-xxx")
	destECDH, _ := secp256k1.GeneratePrivateKey()

	sender := newNode(t, "onion-test-sender-signing-key-3")
	senderHop0 := fundChannel(t, sender, hop0.addr, 100, 0)
	firstTx, err := sender.mgr.Transfer(senderHop0, channel.RelayFee, hop0.addr)
	require.NoError(t, err)

	path := []Hop{
		{PubKey: hop0.priv.PubKey(), Address: packet.Address(hop0.addr)},
		{PubKey: destECDH.PubKey(), Address: packet.Address{0x04}},
	}

	pkt, _, err := Construct(path, []byte("hello"), firstTx, sender.priv)
	require.NoError(t, err)

	pkt.Header.MAC[0] ^= 0xff // corrupt

	hop0Record := fundChannel(t, hop0, sender.addr, 100, 0)
	res, err := Transform(hop0.priv, hop0.guard, hop0.mgr, hop0Record, sender.addr, pkt)
	require.NoError(t, err)
	require.Equal(t, ActionDrop, res.Action)
}

func TestTransformDropsOnReplay(t *testing.T) {
	t.Parallel()

	hop0 := newNode(t, "onion-test-hop0-signing-key-xxx")
	destECDH, _ := secp256k1.GeneratePrivateKey()

	sender := newNode(t, "onion-test-sender-signing-key-3")
	senderHop0 := fundChannel(t, sender, hop0.addr, 100, 0)
	firstTx, err := sender.mgr.Transfer(senderHop0, channel.RelayFee, hop0.addr)
	require.NoError(t, err)

	path := []Hop{
		{PubKey: hop0.priv.PubKey(), Address: packet.Address(hop0.addr)},
		{PubKey: destECDH.PubKey(), Address: packet.Address{0x04}},
	}

	pkt, _, err := Construct(path, []byte("hello"), firstTx, sender.priv)
	require.NoError(t, err)

	hop0Record := fundChannel(t, hop0, sender.addr, 100, 0)

	res, err := Transform(hop0.priv, hop0.guard, hop0.mgr, hop0Record, sender.addr, pkt)
	require.NoError(t, err)
	require.Equal(t, ActionForward, res.Action)

	hop0Record2, err := hop0.store.Load(hop0Record.ID)
	require.NoError(t, err)
	res2, err := Transform(hop0.priv, hop0.guard, hop0.mgr, hop0Record2, sender.addr, pkt)
	require.NoError(t, err)
	require.Equal(t, ActionDrop, res2.Action)
}
