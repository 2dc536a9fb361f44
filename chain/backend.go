// Package chain defines the abstract chain-backend interface of the abstract chain/store interfaces: the
// on-chain operations and event streams the payment-channel state
// machine depends on, without committing to any particular Ethereum RPC
// library (Ethereum RPC plumbing is explicitly out of scope ).
package chain

import (
	"context"

	"github.com/hoprnet/hopr-core/fn"
)

// Address is an on-chain account address.
type Address [20]byte

// ChannelID identifies a channel on-chain, H(accountA ‖ accountB).
type ChannelID [32]byte

// Status is the on-chain channel status, derived from stateCounter mod
// 10 (the abstract chain/store interfaces).
type Status int

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

// StatusFromCounter derives a Status from the raw on-chain stateCounter
// via stateCounter mod 10 → ChannelStatus, as the chain backend specifies.
func StatusFromCounter(stateCounter uint64) Status {
	return Status(stateCounter % 10)
}

// ChannelInfo is the on-chain channel record returned by GetChannel.
type ChannelInfo struct {
	Deposit        uint64
	PartyABalance  uint64
	ClosureTime    uint64
	StateCounter   uint64
}

// Status derives this record's ChannelStatus from StateCounter.
func (c ChannelInfo) Status() Status {
	return StatusFromCounter(c.StateCounter)
}

// SettlementTx is the data a closeChannel call carries on-chain: the
// final signed transaction's components (the abstract chain/store interfaces, submitSettlement).
type SettlementTx struct {
	Index            uint64
	Nonce            []byte
	Value            uint64
	CurvePointX      []byte
	CurvePointParity byte
	SigR             []byte
	SigS             []byte
	Recovery         byte
}

// OpenedChannel is the on-chain event that advances Funding → Open.
type OpenedChannel struct {
	ChannelID ChannelID
	PartyA    Address
	PartyB    Address
}

// ClosedChannel is the on-chain event observed after a settlement
// transaction confirms.
type ClosedChannel struct {
	ChannelID ChannelID
}

// BlockHeader is the minimal piece of a new-block notification the
// state machine needs: enough to compare against a channel's
// closureTime (the withdraw operation).
type BlockHeader struct {
	Number int64
	Time   int64
}

// Backend is the abstract chain backend of the abstract chain/store interfaces. Every method may suspend
// (the concurrency model): callers must re-check channel state after any call returns.
type Backend interface {
	GetChannel(ctx context.Context, id ChannelID) (ChannelInfo, error)
	OpenChannel(ctx context.Context, counterparty Address) error
	InitiateChannelClosure(ctx context.Context, counterparty Address) error
	ClaimChannelClosure(ctx context.Context, counterparty Address) error
	CloseChannel(ctx context.Context, tx SettlementTx) error
	Withdraw(ctx context.Context, counterparty Address) error

	SendTransaction(ctx context.Context, tx []byte) error
	GetBlock(ctx context.Context, latest bool) (BlockHeader, error)
	Subscribe(ctx context.Context) (<-chan BlockHeader, error)

	// OpenedChannels and ClosedChannels stream on-chain events filtered
	// to the participants the caller cares about; fn.Option[Address] of
	// None means "no filter, all participants".
	OpenedChannels(ctx context.Context, participant fn.Option[Address]) (<-chan OpenedChannel, error)
	ClosedChannels(ctx context.Context, participant fn.Option[Address]) (<-chan ClosedChannel, error)

	// TestBlockAdvance drives block time forward on a local test chain
	// (the design notes: the `mineBlock` test hack belongs only behind this method,
	// invoked by a test harness, never by core logic).
	TestBlockAdvance(ctx context.Context) error
}
