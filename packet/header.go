package packet

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/pcrypto"
)

// ErrMalformedHeader is returned when a header's alpha group element does
// not parse to a valid curve point. This is a silent-drop class error
// (the silent-drop class): an implementation must not distinguish this from a MAC failure
// in anything it logs or returns to the peer.
var ErrMalformedHeader = errors.New("packet: malformed header")

// Address identifies a hop by its routing address, as carried in a beta
// routing slot. It is the packet-level view of a node's on-chain identity;
// the chain package's account addresses use the same representation.
type Address [AddressSize]byte

// IsZero reports whether the address is the all-zero destination marker
// used to zero-pad the innermost (destination) routing slot.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Header is the fixed-size routing header described in the wire format: an alpha group
// element, a beta ciphertext encoding one onion layer per hop, and a MAC
// covering beta that the current hop verifies before touching anything
// else.
type Header struct {
	Alpha [pcrypto.GroupElementSize]byte
	Beta  [BetaSize]byte
	MAC   [pcrypto.TagSize]byte
}

// AlphaPoint parses Alpha into a secp256k1 public point.
func (h *Header) AlphaPoint() (*secp256k1.PublicKey, error) {
	pub, err := secp256k1.ParsePubKey(h.Alpha[:])
	if err != nil {
		return nil, ErrMalformedHeader
	}
	return pub, nil
}

// SetAlpha stores alpha's compressed serialization in the header.
func (h *Header) SetAlpha(alpha *secp256k1.PublicKey) {
	copy(h.Alpha[:], alpha.SerializeCompressed())
}

// ComputeMAC derives and stores the MAC over Beta using the per-hop shared
// secret s (the forward-construction step).
func (h *Header) ComputeMAC(s []byte) {
	copy(h.MAC[:], pcrypto.MAC(s, h.Beta[:]))
}

// VerifyMAC checks the header's MAC against a freshly derived one for
// shared secret s (the transform's MAC-check step).
func (h *Header) VerifyMAC(s []byte) bool {
	return pcrypto.VerifyMAC(s, h.Beta[:], h.MAC[:])
}

// Encode writes the header's fixed-size wire representation into dst, which
// must be at least HeaderSize bytes.
func (h *Header) Encode(dst []byte) {
	if len(dst) < HeaderSize {
		panic(fmt.Sprintf("packet: header encode buffer too small: %d", len(dst)))
	}
	off := 0
	copy(dst[off:], h.Alpha[:])
	off += len(h.Alpha)
	copy(dst[off:], h.Beta[:])
	off += len(h.Beta)
	copy(dst[off:], h.MAC[:])
}

// DecodeHeader parses a fixed-size header from the front of src.
func DecodeHeader(src []byte) (*Header, error) {
	if len(src) < HeaderSize {
		return nil, ErrMalformedHeader
	}

	h := &Header{}
	off := 0
	copy(h.Alpha[:], src[off:off+len(h.Alpha)])
	off += len(h.Alpha)
	copy(h.Beta[:], src[off:off+len(h.Beta)])
	off += len(h.Beta)
	copy(h.MAC[:], src[off:off+len(h.MAC)])

	return h, nil
}

// RoutingSlot is one hop's worth of routing information, packed into and
// peeled out of Beta: the address of the next hop, the MAC that hop must
// verify, and the transaction key the next hop will derive on its own —
// placed here because only the sender can compute it in advance, and the
// current hop needs it to sign a Challenge the next hop can verify (the challenge mechanism).
type RoutingSlot struct {
	NextAddress        Address
	NextMAC            [pcrypto.TagSize]byte
	NextTransactionKey [pcrypto.SecretSize]byte
}

// Encode writes the routing slot's fixed-size wire representation into dst.
func (r RoutingSlot) Encode(dst []byte) {
	off := 0
	copy(dst[off:off+AddressSize], r.NextAddress[:])
	off += AddressSize
	copy(dst[off:off+len(r.NextMAC)], r.NextMAC[:])
	off += len(r.NextMAC)
	copy(dst[off:off+len(r.NextTransactionKey)], r.NextTransactionKey[:])
}

// DecodeRoutingSlot parses one routing slot from the front of src.
func DecodeRoutingSlot(src []byte) RoutingSlot {
	var r RoutingSlot
	off := 0
	copy(r.NextAddress[:], src[off:off+AddressSize])
	off += AddressSize
	copy(r.NextMAC[:], src[off:off+len(r.NextMAC)])
	off += len(r.NextMAC)
	copy(r.NextTransactionKey[:], src[off:off+len(r.NextTransactionKey)])
	return r
}
