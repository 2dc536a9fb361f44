package chain

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AddressFromPubKey derives the on-chain account address a public key
// controls: Hash160 (RIPEMD160∘SHA256) of its compressed encoding, the
// same construction btcutil uses for a P2PKH script hash. Every
// signature-recovery check in this module (the channel-binding
// transaction signer, the onion transform's previous-hop challenge
// signer) resolves down to comparing this derived address against a
// channel record's known counterparty.
func AddressFromPubKey(pub *secp256k1.PublicKey) Address {
	h := btcutil.Hash160(pub.SerializeCompressed())
	var addr Address
	copy(addr[:], h)
	return addr
}
