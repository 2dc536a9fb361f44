// Package onion implements the SPHINX-style packet construction and
// per-hop transform: a fixed-size header whose beta ciphertext is
// peeled one layer at a time, each layer revealing only the next hop's
// address and enough key material to forward correctly, never the
// path's shape.
//
// Grounded on the construction/peel duality a Sphinx mix-routing
// implementation's ConstructOnion/ProcessOnion pair uses (right-to-left
// construction with a filler so beta never shrinks, one-pass peel at
// each hop), adapted to this module's fixed per-hop slot layout and
// pcrypto's primitives.
package onion

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/pcrypto"
	"github.com/hoprnet/hopr-core/ticket"
)

// ErrTooManyHops is returned by Construct when the path exceeds
// packet.MaxHops (a boundary case: n = maxHops+1 is rejected at construction).
var ErrTooManyHops = errors.New("onion: path exceeds max hops")

// ErrEmptyPath is returned by Construct when given no hops at all; a
// self-addressed (zero intermediate hop) packet still names its one
// destination (onion construction's edge cases).
var ErrEmptyPath = errors.New("onion: path must name at least the destination")

// ErrMAC is a silent-drop error (the silent-drop class, the transform's MAC-check step): the
// header's MAC did not verify. Deliberately indistinguishable from any
// other drop reason in what is logged or returned to a peer.
var ErrMAC = errors.New("onion: mac verification failed")

// ErrReplay is a silent-drop error (the silent-drop class, the transform's replay-check step): this
// packet's replay tag has already been seen at this hop.
var ErrReplay = errors.New("onion: replay tag already seen")

// Hop names one node on a path: its long-term public key (for ECDH) and
// its routing address (embedded in the beta routing slot).
type Hop struct {
	PubKey  *secp256k1.PublicKey
	Address packet.Address
}

// transactionKeyFor derives the symmetric key a Transaction addressed
// to the hop with shared secret s is sealed under: H(deriveTransactionKey(s)).
//
// the transaction-sealing step and the packet-channel binding name this key H(kᵢ₋₁ ⊕ kᵢ); that formula requires
// the receiving hop to know the previous hop's transaction key, which it
// has no way to derive (only the sender and hop i−1 can compute sᵢ₋₁).
// This module resolves the same structural issue noted for the
// Challenge mechanism (see ticket.CreateChallenge's doc comment) the
// same way: the key is H(kᵢ) alone, where kᵢ is the *receiving* hop's
// own transaction key, which the previous hop learns from
// packet.RoutingSlot.NextTransactionKey when it peels its own layer.
// Both the sealing side (which already knows the next hop's key from
// its routing slot) and the receiving side (which derives it directly)
// can compute this without any extra field.
func transactionKeyFor(s []byte) []byte {
	k := pcrypto.DeriveTransactionKey(s)
	sum := pcrypto.Hash(k)
	return sum[:]
}

// CombinedSecret is the per-hop data the sender must retain after
// Construct, in path order, for bookkeeping (e.g. redeeming tickets or
// recomputing the challenge key-half commitment it registered).
type CombinedSecret struct {
	SharedSecret      []byte
	TransactionKey    []byte
	HashedKeyHalf     [32]byte
	KeyHalfCommitment *secp256k1.PublicKey
}

// Construct builds a complete packet for path (path[len(path)-1] is the
// destination), onion-encrypting message and embedding firstHopTx (the
// already-signed payment-channel transaction paying
// (len(path)-1)·RelayFee to path[0], produced by the caller via the
// payment-channel module per the transaction-sealing step) under the key the first hop
// can derive. signer signs the first challenge (the challenge-issuing step).
//
// Returns the packet and, for each hop in path order, the secret
// material the sender needs to keep track of this packet's tickets.
func Construct(
	path []Hop,
	message []byte,
	firstHopTx *packet.Transaction,
	signer *secp256k1.PrivateKey,
) (*packet.Packet, []CombinedSecret, error) {
	n := len(path)
	if n == 0 {
		return nil, nil, ErrEmptyPath
	}
	if n > packet.MaxHops {
		return nil, nil, ErrTooManyHops
	}

	ephemeral, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, err
	}

	alphas := make([]*secp256k1.PublicKey, n)
	secrets := make([][]byte, n)

	current := ephemeral
	for i := 0; i < n; i++ {
		alphas[i] = current.PubKey()
		s := pcrypto.DeriveSecret(path[i].PubKey, current)
		secrets[i] = s

		blind := pcrypto.Blind(alphas[i], s)
		var nextScalar secp256k1.ModNScalar
		nextScalar.Set(&current.Key)
		nextScalar.Mul(&blind.Key)
		current = secp256k1.NewPrivateKey(&nextScalar)
	}

	const perHop = packet.PerHopRoutingSize
	const betaSize = packet.BetaSize

	// Virtual beta "beyond" the destination: pure pseudo-random pad, the
	// base case the backward construction peels layers off of.
	betaBytes := pcrypto.PRG(pcrypto.PadKey(secrets[0]), betaSize)

	// Filler: the bytes hops 0..n-2 append to beta while peeling, as they
	// will appear at the end of the destination's beta. Each peel extends
	// beta by perHop bytes of its own PRG stream, so the filler grows by
	// perHop per hop and is XORed with that hop's stream tail.
	var filler []byte
	for i := 0; i < n-1; i++ {
		filler = append(filler, make([]byte, perHop)...)
		stream := pcrypto.PRG(secrets[i], betaSize+perHop)
		pcrypto.XOR(filler, filler, stream[betaSize+perHop-len(filler):])
	}

	var nextMAC [pcrypto.TagSize]byte
	for i := n - 1; i >= 0; i-- {
		var slot packet.RoutingSlot
		if i == n-1 {
			// Destination: zero address marks termination (the destination-termination step).
			slot.NextAddress = packet.Address{}
		} else {
			slot.NextAddress = path[i+1].Address
			slot.NextMAC = nextMAC
			copy(slot.NextTransactionKey[:], pcrypto.DeriveTransactionKey(secrets[i+1]))
		}

		slotBuf := make([]byte, perHop)
		slot.Encode(slotBuf)

		shifted := make([]byte, betaSize)
		copy(shifted[perHop:], betaBytes[:betaSize-perHop])
		copy(shifted[:perHop], slotBuf)

		stream := pcrypto.PRG(secrets[i], betaSize)
		xored := make([]byte, betaSize)
		pcrypto.XOR(xored, shifted, stream)
		betaBytes = xored

		if i == n-1 {
			// Place the filler at the destination's tail so that every
			// earlier hop's peel reproduces the beta the next hop's MAC
			// covers, bit-for-bit (the filler mechanism, the transform's
			// beta-peel step: this is what keeps the packet size constant
			// at every hop).
			copy(betaBytes[betaSize-len(filler):], filler)
		}

		tag := pcrypto.MAC(secrets[i], betaBytes)
		copy(nextMAC[:], tag)
	}

	header := packet.Header{Beta: [betaSize]byte(betaBytes), MAC: nextMAC}
	header.SetAlpha(alphas[0])

	// Onion-encrypt the message: destination's key applied first
	// (innermost), so hop 0's key ends up the outer layer it peels
	// first (the message-layering step, step 6).
	msgCipher := make([]byte, packet.MessageSize)
	copy(msgCipher, message)
	for i := n - 1; i >= 0; i-- {
		msgCipher = pcrypto.StreamCipher(pcrypto.DeriveMessageKey(secrets[i]), msgCipher)
	}
	var msgArray packet.Message
	copy(msgArray[:], msgCipher)

	challenge := ticket.CreateChallenge(pcrypto.DeriveTransactionKey(secrets[0]), signer)

	txKey := transactionKeyFor(secrets[0])
	sealedTx := packet.Seal(firstHopTx, txKey)

	pkt := &packet.Packet{
		Header:      header,
		Transaction: sealedTx,
		Challenge:   *challenge,
		Message:     msgArray,
	}

	combined := make([]CombinedSecret, n)
	for i := 0; i < n; i++ {
		k := pcrypto.DeriveTransactionKey(secrets[i])
		hashed := pcrypto.Hash(k)
		combined[i] = CombinedSecret{
			SharedSecret:      secrets[i],
			TransactionKey:    k,
			HashedKeyHalf:     hashed,
			KeyHalfCommitment: ticket.KeyHalfCommitment(k),
		}
	}

	return pkt, combined, nil
}
