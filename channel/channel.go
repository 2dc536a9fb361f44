// Package channel implements the payment-channel state machine:
// per-counterparty bidirectional channels funded on-chain, updated by
// signed off-chain transactions, and eventually settled. Status mirrors
// the style of a state-derived-from-an-on-chain-counter ChannelStatus
// enum (as bchwallet's paymentchannels package does it), generalized to
// this module's own state table.
package channel

import (
	"bytes"
	"crypto/sha256"

	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/packet"
)

// Status is the off-chain view of a channel's lifecycle stage (the wire format, the channel state machine).
type Status uint8

const (
	StatusUninitialised Status = iota
	StatusFunding
	StatusOpen
	StatusPendingClosure
	StatusWithdrawable
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialised:
		return "uninitialised"
	case StatusFunding:
		return "funding"
	case StatusOpen:
		return "open"
	case StatusPendingClosure:
		return "pending_closure"
	case StatusWithdrawable:
		return "withdrawable"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ID is H(accountA ‖ accountB) with accountA ≤ accountB (the wire format).
type ID [32]byte

// ComputeID derives a channel's ID from its two participant addresses,
// independent of argument order (the funding-direction rule of the channel state machine
// fixes which one is partyA).
func ComputeID(a, b chain.Address) ID {
	pa, pb := orderAddresses(a, b)
	h := sha256.New()
	h.Write(pa[:])
	h.Write(pb[:])
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// orderAddresses returns (partyA, partyB): the lexicographically
// smaller address first, per the channel state machine's funding-direction rule.
func orderAddresses(a, b chain.Address) (partyA, partyB chain.Address) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// Record is the per-counterparty channel record of the wire format.
type Record struct {
	Counterparty chain.Address
	Self         chain.Address

	ID     ID
	Status Status

	// Balance is the channel's total on-chain deposit; PartyABalance
	// tracks partyA's share (the funding-direction rule).
	Balance       uint64
	PartyABalance uint64

	ClosureTime uint64

	LatestTransaction  *packet.Transaction
	RestoreTransaction *packet.Transaction

	// Index is the last accepted transaction index (the wire format: index strictly
	// increases within a channel).
	Index uint64

	// NonceSet holds every ticket-update signature hash ever accepted
	// on this channel (the wire format, testAndSetNonce).
	NonceSet map[[32]byte]struct{}
}

// IsPartyA reports whether Self is partyA under the funding-direction
// rule (the channel state machine).
func (r *Record) IsPartyA() bool {
	pa, _ := orderAddresses(r.Self, r.Counterparty)
	return pa == r.Self
}

// NewRecord returns a freshly funded, not-yet-on-chain channel record
// (status Funding, per the channel's create transition).
func NewRecord(self, counterparty chain.Address, balance uint64) *Record {
	return &Record{
		Counterparty: counterparty,
		Self:         self,
		ID:           ComputeID(self, counterparty),
		Status:       StatusFunding,
		Balance:      balance,
		NonceSet:     make(map[[32]byte]struct{}),
	}
}
