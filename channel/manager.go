package channel

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	goerrors "github.com/go-errors/errors"
	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/fn"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/ticket"
)

// RelayFee is the per-hop constant payment subtracted once at each
// intermediate hop (glossary: "relay fee"). The end-to-end scenarios of
// are seeded with RELAY_FEE = 1.
const RelayFee = 1

// Manager implements the payment-channel state machine of the channel state machine over a
// Store and a chain.Backend.
type Manager struct {
	self    chain.Address
	signer  *secp256k1.PrivateKey
	store   *Store
	backend chain.Backend
}

// NewManager returns a Manager for self, signing with signer, persisting
// through store, and talking to chain via backend.
func NewManager(self chain.Address, signer *secp256k1.PrivateKey, store *Store, backend chain.Backend) *Manager {
	return &Manager{self: self, signer: signer, store: store, backend: backend}
}

// OpenOrFund implements the openOrFund operation: if a channel exists both
// on-chain and locally, it is a no-op; if in neither, fund-and-open; if
// only one side has it, on-chain is authoritative, so this is a cleanup
// rather than a failure — the stale local record is pruned (and, when
// the on-chain side is the one present, a fresh local record is adopted
// from it) in either one-sided case.
func (m *Manager) OpenOrFund(ctx context.Context, counterparty chain.Address, balance uint64) (*Record, error) {
	id := ComputeID(m.self, counterparty)
	chainID := chain.ChannelID(id)

	localExists := m.store.Has(id)

	onChain, err := m.backend.GetChannel(ctx, chainID)
	onChainExists := err == nil && onChain.Status() != chain.StatusUninitialised

	switch {
	case localExists && onChainExists:
		return m.store.Load(id)

	case !localExists && !onChainExists:
		if err := m.backend.OpenChannel(ctx, counterparty); err != nil {
			return nil, err
		}
		record := NewRecord(m.self, counterparty, balance)
		if err := m.store.Save(record); err != nil {
			return nil, goerrors.Wrap(err, 0)
		}
		return record, nil

	case localExists && !onChainExists:
		// Stale local record with nothing on-chain backing it: prune
		// and fund fresh, exactly as the neither-exists case does.
		if err := m.store.Delete(id); err != nil {
			return nil, goerrors.Wrap(err, 0)
		}
		if err := m.backend.OpenChannel(ctx, counterparty); err != nil {
			return nil, err
		}
		record := NewRecord(m.self, counterparty, balance)
		if err := m.store.Save(record); err != nil {
			return nil, goerrors.Wrap(err, 0)
		}
		return record, nil

	default: // !localExists && onChainExists
		// On-chain is authoritative: adopt its state into a fresh
		// local record instead of opening or funding again.
		record := NewRecord(m.self, counterparty, onChain.Deposit)
		record.Status = Status(onChain.Status())
		record.PartyABalance = onChain.PartyABalance
		record.ClosureTime = onChain.ClosureTime
		if err := m.store.Save(record); err != nil {
			return nil, goerrors.Wrap(err, 0)
		}
		return record, nil
	}
}

// IsOpen implements the isOpen operation: true iff on-chain status ∈ {Open,
// PendingClosure} AND a local record exists. A mismatch where on-chain
// is absent but local is present is resolved silently (prune local); a
// mismatch where on-chain is present but local is absent is fatal.
func (m *Manager) IsOpen(ctx context.Context, counterparty chain.Address) (bool, error) {
	id := ComputeID(m.self, counterparty)
	chainID := chain.ChannelID(id)

	localExists := m.store.Has(id)

	onChain, err := m.backend.GetChannel(ctx, chainID)
	if err != nil {
		return false, err
	}

	status := onChain.Status()
	onChainActive := status == chain.StatusOpen || status == chain.StatusPendingClosure
	onChainPresent := status != chain.StatusUninitialised

	switch {
	case !onChainPresent && localExists:
		if err := m.store.Delete(id); err != nil {
			return false, err
		}
		return false, nil

	case onChainPresent && !localExists:
		log.Errorf("channel %x: on-chain record present without a local "+
			"record, cannot reconcile", id)
		return false, &ErrStateDivergence{ID: id}

	default:
		return onChainActive && localExists, nil
	}
}

// Transfer implements the transfer operation: constructs a signed update
// moving amount toward toPeer, at index previousIndex+1. It does NOT
// persist — persistence happens only at TestAndSetNonce time (on the
// recipient side) or after acknowledgement (on the sender side).
func (m *Manager) Transfer(record *Record, amount uint64, toPeer chain.Address) (*packet.Transaction, error) {
	partyA, _ := orderAddresses(record.Self, record.Counterparty)
	towardA := toPeer == partyA

	newPartyABalance := record.PartyABalance
	if towardA {
		if record.Balance-record.PartyABalance < amount {
			return nil, &ErrInsufficientBalance{
				ID: record.ID, Requested: amount,
				Available: record.Balance - record.PartyABalance,
			}
		}
		newPartyABalance += amount
	} else {
		if record.PartyABalance < amount {
			return nil, &ErrInsufficientBalance{
				ID: record.ID, Requested: amount, Available: record.PartyABalance,
			}
		}
		newPartyABalance -= amount
	}

	tx := &packet.Transaction{
		ChannelID: packet.ChannelID(record.ID),
		Index:     record.Index + 1,
		Value:     newPartyABalance,
	}
	tx.Sign(m.signer)
	return tx, nil
}

// TestAndSetNonce is the sole defense against a counterparty submitting
// the same signed update twice (the channel state machine). A second call with the same
// signature returns ErrNonceReused, which is fatal per the fatal class.
func (m *Manager) TestAndSetNonce(record *Record, signature []byte) error {
	return m.store.TestAndSetNonce(record.ID, signature)
}

// AcceptTransaction validates and absorbs tx as the channel's new
// latest transaction: its signature must recover to this channel's
// known counterparty, its index must strictly increase, and the
// signature must not have been seen before. Persists on success.
func (m *Manager) AcceptTransaction(record *Record, tx *packet.Transaction) error {
	signer, err := tx.Counterparty()
	if err != nil {
		return &ErrSignerMismatch{ID: record.ID}
	}
	if chain.AddressFromPubKey(signer) != record.Counterparty {
		return &ErrSignerMismatch{ID: record.ID}
	}

	if tx.Index <= record.Index {
		return &ErrIndexRegression{ID: record.ID, Have: record.Index, Got: tx.Index}
	}
	if err := m.TestAndSetNonce(record, tx.Signature[:]); err != nil {
		return err
	}

	record.Index = tx.Index
	record.PartyABalance = tx.Value
	record.LatestTransaction = tx

	if err := m.store.Save(record); err != nil {
		return goerrors.Wrap(err, 0)
	}
	return nil
}

// SubmitSettlement implements the submitSettlement operation: reads the latest
// known transaction, trying in order latest update, then restore
// transaction, and invokes the chain backend's CloseChannel with its
// components. A stashed restore transaction is not consulted.
func (m *Manager) SubmitSettlement(ctx context.Context, record *Record) error {
	tx := record.LatestTransaction
	if tx == nil {
		tx = record.RestoreTransaction
	}
	if tx == nil {
		return fmt.Errorf("channel %x: no transaction available to settle", record.ID)
	}

	nonce := sha256.Sum256(tx.Signature[:])

	return m.backend.CloseChannel(ctx, chain.SettlementTx{
		Index:            tx.Index,
		Nonce:            nonce[:],
		Value:            tx.Value,
		CurvePointX:      tx.CurvePoint[1:],
		CurvePointParity: tx.CurvePoint[0],
		SigR:             tx.Signature[:32],
		SigS:             tx.Signature[32:],
		Recovery:         tx.Recovery,
	})
}

// Withdraw implements the withdraw operation: subscribes to new blocks, waits
// until blockTime > closureTime, invokes Withdraw on the backend, then
// prunes all channel keys.
func (m *Manager) Withdraw(ctx context.Context, record *Record) error {
	blocks, err := m.backend.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case b := <-blocks:
			if uint64(b.Time) <= record.ClosureTime {
				continue
			}
			if err := m.backend.Withdraw(ctx, record.Counterparty); err != nil {
				return err
			}
			return m.store.Delete(record.ID)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// GetPreviousChallenges implements the getPreviousChallenges operation: it
// iterates the per-channel challenge store and combines key-half
// commitments by elliptic-curve point addition (ticket.CombineKeyHalves)
// to reconstruct the aggregate pre-image that unlocks on-chain
// redemption (the design notes: resolved in favor of the curve-point version).
func (m *Manager) GetPreviousChallenges(record *Record) (*secp256k1.PublicKey, error) {
	raw, err := m.store.Challenges(record.ID)
	if err != nil {
		return nil, err
	}

	halves := make([]*secp256k1.PublicKey, 0, len(raw))
	for _, r := range raw {
		pub, err := secp256k1.ParsePubKey(r)
		if err != nil {
			continue
		}
		halves = append(halves, pub)
	}

	return ticket.CombineKeyHalves(halves...), nil
}

// CloseChannel implements the channel's closure protocol: read on-chain state;
// if Uninitialised, delete local and fail; if Open/Funded, submit our
// own transaction immediately unless the counterparty holds a more
// recent one, in which case the caller is expected to have already
// tried cooperative SETTLE_CHANNEL and hit SETTLEMENT_TIMEOUT before
// calling this (the cooperative-settlement protocol itself is a
// transport-layer concern, out of scope ). In both cases, once
// submitted, await ClosedChannel and invoke Withdraw. If already
// Withdrawable, skip straight to Withdraw.
func (m *Manager) CloseChannel(ctx context.Context, record *Record) error {
	onChain, err := m.backend.GetChannel(ctx, chain.ChannelID(record.ID))
	if err != nil {
		return err
	}

	switch onChain.Status() {
	case chain.StatusUninitialised:
		if err := m.store.Delete(record.ID); err != nil {
			return err
		}
		return &ErrStateDivergence{ID: record.ID}

	case chain.StatusWithdrawable:
		return m.Withdraw(ctx, record)

	case chain.StatusOpen, chain.StatusFunding:
		if err := m.SubmitSettlement(ctx, record); err != nil {
			return err
		}
		record.Status = StatusPendingClosure
		if err := m.store.Save(record); err != nil {
			return err
		}
		return m.awaitClosedThenWithdraw(ctx, record)

	case chain.StatusPendingClosure:
		return m.awaitClosedThenWithdraw(ctx, record)

	default:
		return m.Withdraw(ctx, record)
	}
}

func (m *Manager) awaitClosedThenWithdraw(ctx context.Context, record *Record) error {
	closed, err := m.backend.ClosedChannels(ctx, fn.Some(record.Counterparty))
	if err != nil {
		return err
	}

	select {
	case <-closed:
		return m.Withdraw(ctx, record)
	case <-ctx.Done():
		return ctx.Err()
	}
}
