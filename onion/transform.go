package onion

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/binding"
	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/channel"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/pcrypto"
	"github.com/hoprnet/hopr-core/replay"
	"github.com/hoprnet/hopr-core/ticket"
)

// Action is the disposition a hop reaches after transforming one packet.
type Action int

const (
	// ActionDrop covers every silent-drop reason of the silent-drop class: malformed
	// header, bad MAC, replay, inactive channel, insufficient fee, a
	// bad-index update, or an unrecoverable challenge signature. None of
	// these are distinguished from one another in anything returned
	// here or logged by a caller — that indistinguishability is the
	// point (the silent-drop class).
	ActionDrop Action = iota

	// ActionForward means this hop is not the destination: NextHeader,
	// NextTransactionKey, NextChallenge and NextMessage are populated for
	// the caller to seal a transaction for and send onward.
	ActionForward

	// ActionDeliver means the zero-address marker was reached: Message
	// holds the fully-peeled plaintext.
	ActionDeliver
)

// Result is what one hop learns from transforming an inbound packet.
type Result struct {
	Action Action

	// Received and HashedKeyHalf are populated for both ActionForward
	// and ActionDeliver: every hop that accepts a packet gets the key its
	// pending ticket is keyed by (the pending-ticket-registration step),
	// whether or not it is the final recipient. Transform does not store
	// a ticket under it.
	Received      uint64
	HashedKeyHalf [32]byte

	// Message is the plaintext, valid only when Action == ActionDeliver.
	Message []byte

	// The following are valid only when Action == ActionForward.
	NextAddress        packet.Address
	NextHeader         packet.Header
	NextTransactionKey [pcrypto.SecretSize]byte
	// NextSealKey is H(NextTransactionKey), the key the outgoing
	// transaction must be sealed under (see transactionKeyFor).
	NextSealKey   [32]byte
	NextChallenge packet.Challenge
	NextMessage   packet.Message
}

// Transform implements the per-hop transform: verify the header MAC,
// check and record the replay tag, peel one routing slot out of beta,
// open and bind the embedded transaction against the channel from prev,
// verify the inbound challenge is recoverable, and peel one layer off
// the message. guard is this hop's replay store; mgr/record are the
// payment channel from prev to this hop (already loaded by the caller).
//
// A non-nil error here means an infrastructure or fatal condition (the fatal class:
// a store failure, ErrNonceReused, ErrStateDivergence) that must reach a
// supervisor, never an adversarial-input classification — those always
// come back as Result{Action: ActionDrop}, nil.
func Transform(
	priv *secp256k1.PrivateKey,
	guard *replay.Guard,
	mgr *channel.Manager,
	record *channel.Record,
	prev chain.Address,
	pkt *packet.Packet,
) (*Result, error) {
	alpha, err := pkt.Header.AlphaPoint()
	if err != nil {
		return &Result{Action: ActionDrop}, nil
	}

	s := pcrypto.DeriveSecret(alpha, priv)

	// Step 1: MAC.
	if !pkt.Header.VerifyMAC(s) {
		return &Result{Action: ActionDrop}, nil
	}

	// Step 2: replay tag.
	tag := pcrypto.DeriveTagParameters(s)
	seen, err := guard.SeenOrInsert(tag)
	if err != nil {
		return nil, err
	}
	if seen {
		return &Result{Action: ActionDrop}, nil
	}

	// Step 3: peel one routing slot out of beta.
	const perHop = packet.PerHopRoutingSize
	const betaSize = packet.BetaSize

	extended := make([]byte, betaSize+perHop)
	copy(extended, pkt.Header.Beta[:])
	stream := pcrypto.PRG(s, betaSize+perHop)
	xored := make([]byte, betaSize+perHop)
	pcrypto.XOR(xored, extended, stream)

	slot := packet.DecodeRoutingSlot(xored[:perHop])
	var newBeta [packet.BetaSize]byte
	copy(newBeta[:], xored[perHop:perHop+betaSize])

	// Step 4: open and bind the embedded transaction. A destination
	// takes no relay fee of its own (the packet-channel binding: RELAY_FEE applies only to
	// hops that forward); every other hop requires channel.RelayFee,
	// known now because the routing slot decoded in step 3 already
	// reveals whether this is the terminal hop.
	terminal := slot.NextAddress.IsZero()
	fee := uint64(channel.RelayFee)
	if terminal {
		fee = 0
	}

	txKey := transactionKeyFor(s)
	tx, err := packet.Open(pkt.Transaction, txKey)
	if err != nil {
		return &Result{Action: ActionDrop}, nil
	}

	bound, err := binding.Bind(mgr, record, prev, tx, s, fee)
	if err != nil {
		if errors.Is(err, binding.ErrChannelNotActive) {
			return &Result{Action: ActionDrop}, nil
		}
		var insufficientFee *channel.ErrInsufficientFee
		var indexRegression *channel.ErrIndexRegression
		var signerMismatch *channel.ErrSignerMismatch
		if errors.As(err, &insufficientFee) || errors.As(err, &indexRegression) || errors.As(err, &signerMismatch) {
			return &Result{Action: ActionDrop}, nil
		}
		// Anything else (ErrNonceReused, ErrStateDivergence, a store
		// failure) is fatal (the fatal class).
		return nil, err
	}

	// Step 5: the inbound challenge must be recoverable against this
	// hop's own transaction key — proof the previous hop actually knew
	// it before forwarding — and must recover to prev's identity, not
	// just to some syntactically valid signature. ECDSA recovery always
	// returns *a* public key for any well-formed signature over any
	// hash; it is the equality check against the channel's expected
	// counterparty that actually authenticates the previous hop.
	challengeSigner, err := ticket.GetCounterparty(&pkt.Challenge, pcrypto.DeriveTransactionKey(s))
	if err != nil {
		return &Result{Action: ActionDrop}, nil
	}
	if chain.AddressFromPubKey(challengeSigner) != prev {
		return &Result{Action: ActionDrop}, nil
	}

	// Step 6: peel one layer off the message.
	msgKey := pcrypto.DeriveMessageKey(s)
	peeledMsg := pcrypto.StreamCipher(msgKey, pkt.Message[:])

	// Step 7: terminate or forward.
	if terminal {
		return &Result{
			Action:        ActionDeliver,
			Received:      bound.Received,
			HashedKeyHalf: bound.HashedKeyHalf,
			Message:       peeledMsg,
		}, nil
	}

	// Step 8: build the next hop's header and re-sign the challenge.
	nextHeader := packet.Header{Beta: newBeta, MAC: slot.NextMAC}
	nextHeader.SetAlpha(pcrypto.BlindAlpha(alpha, s))

	nextChallenge := ticket.UpdateChallenge(slot.NextTransactionKey[:], priv)

	var nextMsg packet.Message
	copy(nextMsg[:], peeledMsg)

	return &Result{
		Action:             ActionForward,
		Received:           bound.Received,
		HashedKeyHalf:      bound.HashedKeyHalf,
		NextAddress:        slot.NextAddress,
		NextHeader:         nextHeader,
		NextTransactionKey: slot.NextTransactionKey,
		NextSealKey:        pcrypto.Hash(slot.NextTransactionKey[:]),
		NextChallenge:      *nextChallenge,
		NextMessage:        nextMsg,
	}, nil
}

// BuildForwardPacket assembles the packet a forwarding hop sends on to
// Result.NextAddress, once the caller has looked up the channel to that
// next hop and built the outgoing transaction via
// binding.OutgoingTransaction (the forward-assembly step, the outgoing-transaction step).
func BuildForwardPacket(r *Result, sealedTx packet.EncryptedTransaction) *packet.Packet {
	return &packet.Packet{
		Header:      r.NextHeader,
		Transaction: sealedTx,
		Challenge:   r.NextChallenge,
		Message:     r.NextMessage,
	}
}
