package packet

import (
	"encoding/binary"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/hoprnet/hopr-core/pcrypto"
)

// EncryptedTransaction is the on-wire, still-encrypted form of a
// Transaction: the packet format never carries a Transaction's fields in
// the clear. It is sealed under H(kᵢ), the hash of the receiving hop's
// transaction key, which the sending hop takes from its routing slot and
// the receiving hop derives from its shared secret (the packet-channel
// binding). The sending hop's own transaction key is not mixed into it.
type EncryptedTransaction [TransactionSize]byte

// Seal encrypts t under key, producing the bytes that travel on the wire.
func Seal(t *Transaction, key []byte) EncryptedTransaction {
	plain := make([]byte, TransactionSize)
	t.Encode(plain)

	cipher := pcrypto.StreamCipher(key, plain)

	var out EncryptedTransaction
	copy(out[:], cipher)
	return out
}

// Open decrypts an EncryptedTransaction under key and parses its fields.
// Any parse failure (e.g. a wrong key producing garbage) is reported as
// ErrMalformedTransaction, a silent-drop class error (the silent-drop class).
func Open(enc EncryptedTransaction, key []byte) (*Transaction, error) {
	plain := pcrypto.StreamCipher(key, enc[:])
	return DecodeTransaction(plain)
}

// ErrMalformedTransaction is returned when a Transaction's fixed-size
// encoding cannot be parsed, or its signature does not recover to a valid
// point. Silent-drop class (the silent-drop class).
var ErrMalformedTransaction = errors.New("packet: malformed transaction")

// ChannelID identifies a payment channel: H(accountA ‖ accountB) with
// accountA the lexicographically smaller address (the wire format, the channel state machine funding
// direction rule).
type ChannelID [ChannelIDSize]byte

// Transaction is the signed channel update embedded in a packet (the wire format): a
// monotonic per-channel index, a directional value, and a signature that
// must recover to the sender (the previous hop in the path).
type Transaction struct {
	ChannelID  ChannelID
	Index      uint64
	Value      uint64
	CurvePoint [33]byte
	Signature  [signatureSize]byte
	Recovery   byte
}

// signedFields returns the 32-byte digest the signature covers: SHA-256
// over everything except the signature and recovery byte themselves.
func (t *Transaction) signedFields() []byte {
	buf := make([]byte, ChannelIDSize+8+8+33)
	off := 0
	copy(buf[off:], t.ChannelID[:])
	off += ChannelIDSize
	binary.BigEndian.PutUint64(buf[off:], t.Index)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], t.Value)
	off += 8
	copy(buf[off:], t.CurvePoint[:])
	sum := pcrypto.Hash(buf)
	return sum[:]
}

// Sign signs the transaction's fields with priv and stores the resulting
// recoverable signature.
func (t *Transaction) Sign(priv *secp256k1.PrivateKey) {
	sig := ecdsa.SignCompact(priv, t.signedFields(), false)
	// SignCompact prepends a 1-byte recovery-and-version header; unpack
	// it into Recovery ‖ Signature the way the wire format expects.
	t.Recovery = sig[0] - 27
	copy(t.Signature[:], sig[1:])
}

// Counterparty recovers and returns the public key that signed this
// transaction. The caller (channel.Manager.AcceptTransaction) is
// responsible for comparing the result against the channel's known
// counterparty: recovery alone does not authenticate anything, since
// it succeeds for any syntactically valid signature.
func (t *Transaction) Counterparty() (*secp256k1.PublicKey, error) {
	compact := make([]byte, 1+signatureSize)
	compact[0] = t.Recovery + 27
	copy(compact[1:], t.Signature[:])

	pub, _, err := ecdsa.RecoverCompact(compact, t.signedFields())
	if err != nil {
		return nil, ErrMalformedTransaction
	}
	return pub, nil
}

// Encode writes the transaction's fixed-size wire representation into dst.
func (t *Transaction) Encode(dst []byte) {
	off := 0
	copy(dst[off:], t.ChannelID[:])
	off += ChannelIDSize
	binary.BigEndian.PutUint64(dst[off:], t.Index)
	off += 8
	binary.BigEndian.PutUint64(dst[off:], t.Value)
	off += 8
	copy(dst[off:], t.CurvePoint[:])
	off += len(t.CurvePoint)
	copy(dst[off:], t.Signature[:])
	off += len(t.Signature)
	dst[off] = t.Recovery
}

// DecodeTransaction parses a fixed-size Transaction from the front of src.
func DecodeTransaction(src []byte) (*Transaction, error) {
	if len(src) < TransactionSize {
		return nil, ErrMalformedTransaction
	}

	t := &Transaction{}
	off := 0
	copy(t.ChannelID[:], src[off:off+ChannelIDSize])
	off += ChannelIDSize
	t.Index = binary.BigEndian.Uint64(src[off:])
	off += 8
	t.Value = binary.BigEndian.Uint64(src[off:])
	off += 8
	copy(t.CurvePoint[:], src[off:off+33])
	off += 33
	copy(t.Signature[:], src[off:off+signatureSize])
	off += signatureSize
	t.Recovery = src[off]

	return t, nil
}
