// Package packet implements the fixed-size on-wire packet format of the wire format:
// Header ‖ Transaction ‖ Challenge ‖ Message, with no length prefixes. Every
// byte range has a compile-time-fixed size; a frame of any other length is
// rejected before it is touched.
package packet

import "github.com/hoprnet/hopr-core/pcrypto"

const (
	// MaxHops is the maximum number of nodes a path may contain, the
	// destination included (each takes one beta routing slot). A path of
	// exactly MaxHops nodes is accepted; MaxHops+1 is rejected at
	// construction (boundary-case behavior).
	MaxHops = 3

	// AddressSize is the length in bytes of a peer's routing address, as
	// carried in each beta routing slot.
	AddressSize = 20

	// TransactionKeySize is the size in bytes of a derived transaction
	// key (pcrypto.DeriveTransactionKey's output).
	TransactionKeySize = pcrypto.SecretSize

	// PerHopRoutingSize is the size in bytes of one hop's slot within
	// beta: the next hop's address, the MAC the next hop verifies, and
	// the next hop's transaction key — onion-encrypted for the current
	// hop alone, since only the sender can derive it (a design note below
	// in DESIGN.md: resolves how a hop signs a Challenge the next hop,
	// and only the next hop, can verify).
	PerHopRoutingSize = AddressSize + pcrypto.TagSize + TransactionKeySize

	// BetaSize is the total size of the beta ciphertext (the wire format Header
	// invariant |beta| = maxHops · perHopRoutingBytes).
	BetaSize = MaxHops * PerHopRoutingSize

	// HeaderSize is the total size of a packet's Header: alpha ‖ beta ‖ mac.
	HeaderSize = pcrypto.GroupElementSize + BetaSize + pcrypto.TagSize

	// curvePointSize is the size of the compressed secp256k1 point
	// carried in a Transaction.
	curvePointSize = 33

	// signatureSize is the size of a compact (non-recoverable) ECDSA
	// signature: 32-byte r, 32-byte s.
	signatureSize = 64

	// TransactionSize is the total size of an embedded Transaction.
	TransactionSize = ChannelIDSize + 8 /* index */ + 8 /* value */ +
		curvePointSize + signatureSize + 1 /* recovery */

	// ChallengeSize is the total size of an embedded Challenge: a
	// recoverable secp256k1 signature (64-byte r‖s plus 1-byte recovery
	// id).
	ChallengeSize = signatureSize + 1

	// MessageSize is the fixed size of the onion-encrypted message body.
	MessageSize = 500

	// Size is the total size of a packet frame. A transport that
	// receives a frame of any other length must reject it outright
	// (the wire format, the silent-drop class: "malformed packet length").
	Size = HeaderSize + TransactionSize + ChallengeSize + MessageSize

	// ChannelIDSize is the length in bytes of a channel identifier
	// (H(accountA ‖ accountB)).
	ChannelIDSize = 32
)
