// Package ticket implements the Σ-challenge and probabilistic ticket
// mechanism of the challenge mechanism and the wire format that ties packet forwarding to payment: a
// relayer can redeem a ticket only by revealing a key-half it obtains from
// correctly decrypting the next hop's acknowledgement.
package ticket

import (
	"crypto/sha256"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/hoprnet/hopr-core/packet"
)

// ErrInvalidChallenge is returned when a challenge's signature does not
// recover, or recovers to a peer other than the one expected. Silent-drop
// class (the silent-drop class).
var ErrInvalidChallenge = errors.New("ticket: invalid challenge signature")

// CreateChallenge signs H(transactionKey) with signer's on-chain key
// (the challenge mechanism). A hop calls this once, over the next hop's transaction key, every
// time it forwards a packet (the challenge-issuing step at the sender, step 8 at every
// relay): the resulting signature is the one piece of data the next hop
// can check on its own, because the next hop is the only other party able
// to derive the same transactionKey from its private key and the packet's
// alpha.
//
// UpdateChallenge is the same operation under the name used for the
// in-path case; both are implemented by this one function. See
// DESIGN.md for why a hop cannot instead sign over its own hashedKeyHalf as
// literally read in the forward-assembly step: it has no way to derive the next hop's
// transactionKey except from the value planted for it in that hop's beta
// routing slot (packet.RoutingSlot.NextTransactionKey), which a construction
// pass or a prior hop's transform populates.
func CreateChallenge(transactionKey []byte, signer *secp256k1.PrivateKey) *packet.Challenge {
	return sign(sha256.Sum256(transactionKey), signer)
}

// UpdateChallenge is an alias for CreateChallenge kept under the name
// used for the per-hop re-signing step; see CreateChallenge's doc
// comment for why both operations collapse to the same thing here.
func UpdateChallenge(nextTransactionKey []byte, signer *secp256k1.PrivateKey) *packet.Challenge {
	return CreateChallenge(nextTransactionKey, signer)
}

// GetCounterparty recovers the public key that signed ch over
// H(transactionKey) (the challenge mechanism). The caller always supplies its own locally
// derived transactionKey (pcrypto.DeriveTransactionKey(s) for its own
// shared secret s); recovery succeeds only if the previous hop signed
// exactly that hash, which is the invariant the challenge mechanism requires.
func GetCounterparty(ch *packet.Challenge, transactionKey []byte) (*secp256k1.PublicKey, error) {
	return recover(ch, sha256.Sum256(transactionKey))
}

func sign(hash [32]byte, priv *secp256k1.PrivateKey) *packet.Challenge {
	sig := ecdsa.SignCompact(priv, hash[:], false)

	var out packet.Challenge
	copy(out.Signature[:], sig[1:])
	out.Recovery = sig[0] - 27
	return &out
}

func recover(ch *packet.Challenge, hash [32]byte) (*secp256k1.PublicKey, error) {
	compact := make([]byte, 1+64)
	compact[0] = ch.Recovery + 27
	copy(compact[1:], ch.Signature[:])

	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return nil, ErrInvalidChallenge
	}
	return pub, nil
}
