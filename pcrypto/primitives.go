// Package pcrypto implements the primitive cryptographic operations shared
// by the packet and onion packages: scalar/point arithmetic on secp256k1,
// HKDF-style key derivation with domain-separated labels, a PRG built on
// chacha20, a constant-time MAC, and a stream cipher.
//
// Every derivation in this package is deterministic in the shared secret: no
// function here reaches for crypto/rand. Re-deriving the same secret must
// reproduce the same bytes, since ticket verification depends on it.
package pcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const (
	// GroupElementSize is the length in bytes of a compressed secp256k1
	// point, used for alpha in the packet header.
	GroupElementSize = 33

	// SecretSize is the length in bytes of a derived shared secret.
	SecretSize = 32

	// TagSize is the length in bytes of a MAC tag.
	TagSize = 32

	// ReplayTagSize is the length in bytes of a replay-guard tag (the replay guard).
	ReplayTagSize = 16
)

// domain-separation labels. Each must be distinct so that deriving multiple
// keys from the same shared secret yields independent values.
var (
	labelMAC          = []byte("HOPR-mac")
	labelPRG          = []byte("HOPR-prg")
	labelTransaction  = []byte("HOPR-transaction-key")
	labelHashedKey    = []byte("HOPR-hashed-key")
	labelTagParam     = []byte("HOPR-replay-tag")
	labelBlinding     = []byte("HOPR-blinding")
	labelMessage      = []byte("HOPR-message")
	labelFillerPrefix = []byte("HOPR-filler")
	labelPad          = []byte("HOPR-pad")
)

// ErrSelfTest is a fatal-class error (the error classification): a cryptographic primitive failed
// a deterministic self-check, meaning the process's arithmetic cannot be
// trusted.
var ErrSelfTest = errors.New("pcrypto: primitive self-test failed")

// Scalar is a secp256k1 private scalar, used both as a hop's long-term
// private key and as the sender's ephemeral path key.
type Scalar = secp256k1.PrivateKey

// Point is a secp256k1 public point, used as alpha and as a public key.
type Point = secp256k1.PublicKey

// deriveKey runs HKDF-SHA256 over secret with the given label, producing
// length bytes. HKDF is used instead of a single HMAC so that derivations of
// different output lengths (e.g. the 32-byte PRG cipher key vs. a 16-byte
// replay tag) remain independent even when they share a label accidentally.
func deriveKey(label, secret []byte, length int) []byte {
	r := hkdf.New(sha256.New, secret, nil, label)
	out := make([]byte, length)
	if _, err := r.Read(out); err != nil {
		// HKDF only fails if the requested output exceeds its maximum
		// expansion; our labels never approach it.
		panic(err)
	}
	return out
}

// DeriveSecret computes the ECDH shared secret s = privKey * alpha, hashed
// down to a fixed-size secret. This is the hop-side half of the key exchange
// that the sender performs with Blind below.
func DeriveSecret(alpha *Point, privKey *Scalar) []byte {
	var point, result secp256k1.JacobianPoint
	alpha.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&privKey.Key, &point, &result)
	result.ToAffine()

	shared := secp256k1.NewPublicKey(&result.X, &result.Y)
	sum := sha256.Sum256(shared.SerializeCompressed())
	return sum[:]
}

// Blind derives the blinding scalar for shared secret s. The sender
// multiplies the current ephemeral scalar by this value to produce the next
// hop's alpha; each hop can recompute the same scalar from its own alpha and
// s, which is what lets it peel one layer without learning the path.
func Blind(alpha *Point, s []byte) *Scalar {
	h := sha256.Sum256(append(alpha.SerializeCompressed(), s...))
	return secp256k1.PrivKeyFromBytes(h[:])
}

// BlindAlpha returns alpha' = alpha * blind(alpha, s), the next hop's group
// element.
func BlindAlpha(alpha *Point, s []byte) *Point {
	b := Blind(alpha, s)

	var point, result secp256k1.JacobianPoint
	alpha.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&b.Key, &point, &result)
	result.ToAffine()

	return secp256k1.NewPublicKey(&result.X, &result.Y)
}

// PRG derives a pseudo-random byte stream of the given length from a shared
// secret, using an all-zero nonce: the secret itself carries all the
// unpredictability this packet format requires, and a fixed nonce keeps the
// derivation reproducible (each hop regenerates, from its own shared
// secret, the same stream the sender used at construction).
func PRG(s []byte, length int) []byte {
	key := deriveKey(labelPRG, s, chacha20.KeySize)
	nonce := make([]byte, chacha20.NonceSize)

	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		panic(err)
	}

	out := make([]byte, length)
	cipher.XORKeyStream(out, out)
	return out
}

// StreamCipher XORs data with a PRG stream derived from s, either encrypting
// or decrypting it (XOR is its own inverse).
func StreamCipher(s []byte, data []byte) []byte {
	out := make([]byte, len(data))
	XOR(out, data, PRG(s, len(data)))
	return out
}

// MAC computes a MAC tag over data keyed by a key derived from s.
func MAC(s []byte, data []byte) []byte {
	key := deriveKey(labelMAC, s, TagSize)
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyMAC checks tag against a freshly computed MAC over data, using a
// constant-time comparison so that the check leaks no timing information
// about where bytes first differ.
func VerifyMAC(s, data, tag []byte) bool {
	expected := MAC(s, data)
	return subtle.ConstantTimeCompare(expected, tag) == 1
}

// DeriveTransactionKey derives the symmetric key used to encrypt the
// Transaction embedded in a packet (the transaction-sealing step, the packet-channel binding): k = HOPR-transaction-key(s).
func DeriveTransactionKey(s []byte) []byte {
	return deriveKey(labelTransaction, s, SecretSize)
}

// DeriveHashedKey derives H(k), the hashed key-half a hop reveals on
// successfully forwarding a packet (the forward-assembly step, the Challenge mechanism).
func DeriveHashedKey(s []byte) []byte {
	k := DeriveTransactionKey(s)
	sum := sha256.Sum256(k)
	return sum[:]
}

// DeriveTagParameters derives the 16-byte replay-guard tag for a shared
// secret (the replay guard).
func DeriveTagParameters(s []byte) [ReplayTagSize]byte {
	var tag [ReplayTagSize]byte
	copy(tag[:], deriveKey(labelTagParam, s, ReplayTagSize))
	return tag
}

// DeriveMessageKey derives the stream-cipher key a hop uses to peel one
// onion layer of the Message body (the message-layering step, the transaction-sealing step).
func DeriveMessageKey(s []byte) []byte {
	return deriveKey(labelMessage, s, SecretSize)
}

// FillerKey derives a filler-labelled key from s. onion.Construct does
// not use it: the beta filler is built from each hop's PRG(s) stream, the
// same stream that hop's peel extends beta with (the transform's beta-peel
// step).
func FillerKey(s []byte) []byte {
	return deriveKey(labelFillerPrefix, s, SecretSize)
}

// PadKey derives the key that seeds the pseudo-random base layer beta
// is built on top of at construction time — the "virtual" layer beyond
// the destination, from which the backward construction peels real
// routing slots outward (the transform's beta-peel step).
func PadKey(s []byte) []byte {
	return deriveKey(labelPad, s, SecretSize)
}

// CombineKeyHalvesXOR combines two key-halves by XOR: the literal
// byte-wise alternative to ticket.CombineKeyHalves's curve-point
// combination. Nothing in this module calls it (see DESIGN.md for why
// ticket.Ticket's OnChainSecret is defined by the curve-point version).
func CombineKeyHalvesXOR(a, b []byte) []byte {
	out := make([]byte, len(a))
	XOR(out, a, b)
	return out
}

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// XOR writes the byte-wise XOR of a and b into dst, which must be at least
// as long as the shorter of a and b.
func XOR(dst, a, b []byte) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dst[i] = a[i] ^ b[i]
	}
}

// SelfTest exercises the deterministic round-trip MAC/PRG/secret properties
// this package depends on and returns ErrSelfTest if any fails. Nothing in
// this module calls it automatically; a failure here is fatal (the fatal class).
func SelfTest() error {
	priv := secp256k1.PrivKeyFromBytes(deriveKey([]byte("self-test"), []byte("seed"), 32))
	alpha := priv.PubKey()

	s1 := DeriveSecret(alpha, priv)
	s2 := DeriveSecret(alpha, priv)
	if !hmac.Equal(s1, s2) {
		return ErrSelfTest
	}

	data := []byte("hopr-self-test-payload")
	tag := MAC(s1, data)
	if !VerifyMAC(s1, data, tag) {
		return ErrSelfTest
	}

	stream1 := PRG(s1, 64)
	stream2 := PRG(s1, 64)
	if !hmac.Equal(stream1, stream2) {
		return ErrSelfTest
	}

	enc := StreamCipher(s1, data)
	dec := StreamCipher(s1, enc)
	if string(dec) != string(data) {
		return ErrSelfTest
	}

	return nil
}
