package ticket

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/packet"
)

// winProbDenominator is the fixed-point denominator WinProb is expressed
// against: a WinProb of winProbDenominator means probability 1 (every
// ticket wins). This module keeps tickets genuinely probabilistic rather
// than hard-coding WinProb to always-wins, so IsWinning is exercised as
// real logic rather than a disabled stub — see DESIGN.md.
const winProbDenominator = 1 << 56

// Ticket is the pending payment claim described in the wire format: only winning
// tickets are redeemed on-chain, but every ticket carries a real payment
// value in expectation.
type Ticket struct {
	ChannelID     packet.ChannelID
	Challenge     packet.Challenge
	HashedKeyHalf [32]byte
	Amount        uint64

	// WinProb is expressed as a numerator over winProbDenominator, so
	// that IsWinning's comparison is exact integer arithmetic rather
	// than float comparison.
	WinProb uint64

	// OnChainSecret is the pre-image a redeemer reveals on-chain: the
	// aggregate of all relevant key-halves, combined by elliptic-curve
	// point addition (CombineKeyHalves).
	OnChainSecret [33]byte
}

// WinProbAll is a WinProb numerator meaning "every ticket wins", useful
// for callers that want deterministic redemption during testing.
const WinProbAll = winProbDenominator

// IsWinning reports whether preImage wins against prob (expressed as a
// WinProb numerator over winProbDenominator): the ticket wins iff
// H(preImage) interpreted as a big-endian integer is less than
// prob · 2^N / winProbDenominator, for N the hash width in bits (the wire format, the documented edge cases
// scenario 6). channelID does not enter the hash.
func IsWinning(preImage []byte, channelID packet.ChannelID, prob uint64) bool {
	h := sha256.New()
	h.Write(preImage)
	digest := h.Sum(nil)

	value := new(big.Int).SetBytes(digest)

	threshold := new(big.Int).Lsh(big.NewInt(1), 256)
	threshold.Mul(threshold, new(big.Int).SetUint64(prob))
	threshold.Div(threshold, big.NewInt(winProbDenominator))

	return value.Cmp(threshold) < 0
}

// CombineKeyHalves reconstructs the aggregate pre-image that unlocks
// on-chain redemption by adding the given key-half commitments as points
// on secp256k1, in favor of the curve-point combination rather than XOR
// (see DESIGN.md): XOR of independently-chosen scalars has no algebraic
// relationship to their point commitments, so only point addition lets an
// on-chain verifier check the combination against G·sum without learning
// any individual share.
func CombineKeyHalves(halves ...*secp256k1.PublicKey) *secp256k1.PublicKey {
	if len(halves) == 0 {
		return nil
	}

	var acc secp256k1.JacobianPoint
	halves[0].AsJacobian(&acc)

	for _, h := range halves[1:] {
		var p secp256k1.JacobianPoint
		h.AsJacobian(&p)

		var sum secp256k1.JacobianPoint
		secp256k1.AddNonConst(&acc, &p, &sum)
		acc = sum
	}

	acc.ToAffine()
	return secp256k1.NewPublicKey(&acc.X, &acc.Y)
}

// KeyHalfCommitment returns the public commitment G·k for a transaction
// key k, treating k as a scalar. This is the "key-half" point that
// CombineKeyHalves aggregates across hops.
func KeyHalfCommitment(transactionKey []byte) *secp256k1.PublicKey {
	var scalar secp256k1.ModNScalar
	scalar.SetByteSlice(transactionKey)

	priv := secp256k1.NewPrivateKey(&scalar)
	return priv.PubKey()
}

// EncodeIndex is a small helper for callers that key a per-channel
// challenge or nonce store by index.
func EncodeIndex(index uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	return buf
}
