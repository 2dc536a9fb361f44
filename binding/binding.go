// Package binding implements the packet-channel binding step: at
// each hop, once the onion transform has verified the header MAC and
// decoded routing, this package decrypts the embedded transaction,
// validates and absorbs it against the channel state machine, and (for
// non-terminal hops) produces the outgoing transaction the onion
// transform re-encrypts for the next hop.
package binding

import (
	"errors"

	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/channel"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/hoprnet/hopr-core/pcrypto"
)

// ErrChannelNotActive is a silent-drop error (the silent-drop class, the channel-activity check):
// requires channel status Open or PendingClosure.
var ErrChannelNotActive = errors.New("binding: channel not open or pending closure")

// Result is the outcome of binding one packet to its channel at a
// single hop. The caller builds the outgoing transaction separately,
// via OutgoingTransaction, once it knows whether this hop is terminal.
type Result struct {
	// Received is the amount this hop received, after the
	// partyA/partyB direction rule is applied.
	Received uint64

	// HashedKeyHalf is the key the pending ticket for this hop is keyed
	// by (the pending-ticket-registration step). Bind computes and returns
	// it; it does not store a ticket under it.
	HashedKeyHalf [32]byte
}

// Bind implements the one batched action of the packet-channel binding at hop self, receiving
// tx from prev: validate channel status, compute the received amount,
// check fee and index, then persist the transaction and return the
// hashed key-half. sSelf is this hop's shared secret, used to derive the
// hashed key-half the resulting ticket is keyed by; no ticket record is
// written here.
func Bind(
	mgr *channel.Manager,
	record *channel.Record,
	prev chain.Address,
	tx *packet.Transaction,
	sSelf []byte,
	relayFee uint64,
) (*Result, error) {
	// Step 1: channel must be Open or PendingClosure.
	if record.Status != channel.StatusOpen && record.Status != channel.StatusPendingClosure {
		return nil, ErrChannelNotActive
	}

	// Step 2: compute received amount via the partyA/partyB rule.
	received := embeddedMoney(record, tx)

	// Step 3: fee and index checks.
	if received < relayFee {
		return nil, &channel.ErrInsufficientFee{Received: received, Required: relayFee}
	}
	if tx.Index != record.Index+1 {
		return nil, &channel.ErrIndexRegression{ID: record.ID, Have: record.Index, Got: tx.Index}
	}

	// Step 4: persist the transaction and derive the pending ticket's key.
	if err := mgr.AcceptTransaction(record, tx); err != nil {
		return nil, err
	}

	hashedKeyHalf := pcrypto.DeriveHashedKey(sSelf)
	var keyHalf [32]byte
	copy(keyHalf[:], hashedKeyHalf)

	return &Result{Received: received, HashedKeyHalf: keyHalf}, nil
}

// embeddedMoney computes the amount received at this hop from tx, per
// the partyA/partyB rule of the channel state machine: transfers from A reduce
// partyABalance, transfers from B reduce balance - partyABalance, so
// the amount actually received is the delta against the channel's
// currently recorded share for the payer's side.
func embeddedMoney(record *channel.Record, tx *packet.Transaction) uint64 {
	if tx.Value >= record.PartyABalance {
		return tx.Value - record.PartyABalance
	}
	return record.PartyABalance - tx.Value
}

// OutgoingTransaction builds and seals the transaction a non-terminal
// hop forwards to the next hop, paying received-relayFee (the outgoing-transaction step).
func OutgoingTransaction(
	mgr *channel.Manager,
	nextRecord *channel.Record,
	toPeer chain.Address,
	received, relayFee uint64,
	nextHopKey []byte,
) (*packet.EncryptedTransaction, error) {
	amount := received - relayFee

	tx, err := mgr.Transfer(nextRecord, amount, toPeer)
	if err != nil {
		return nil, err
	}

	sealed := packet.Seal(tx, nextHopKey)
	return &sealed, nil
}
