package channel

import "fmt"

// Errors are classified per the error classification into silent-drop, local-recoverable, and
// fatal kinds. Unlike lnwallet/errors.go's StructuredError (which is
// bound to lnwire message-field codes), these are plain typed errors:
// nothing here crosses the wire, so there is no field-code table to
// share.

// ErrWrongStatus is a silent-drop error (the silent-drop class): an operation requiring
// Open or PendingClosure found the channel in a different status.
type ErrWrongStatus struct {
	ID   ID
	Have Status
	Want []Status
}

func (e *ErrWrongStatus) Error() string {
	return fmt.Sprintf("channel %x: status %s not in %v", e.ID, e.Have, e.Want)
}

// ErrIndexRegression is a silent-drop error (the silent-drop class): an embedded
// transaction's index did not strictly increase.
type ErrIndexRegression struct {
	ID   ID
	Have uint64
	Got  uint64
}

func (e *ErrIndexRegression) Error() string {
	return fmt.Sprintf("channel %x: index regression, have %d got %d", e.ID, e.Have, e.Got)
}

// ErrInsufficientFee is a silent-drop error (the silent-drop class): the amount embedded
// in a transaction did not cover RELAY_FEE.
type ErrInsufficientFee struct {
	Received uint64
	Required uint64
}

func (e *ErrInsufficientFee) Error() string {
	return fmt.Sprintf("channel: received %d below required fee %d", e.Received, e.Required)
}

// ErrSignerMismatch is a silent-drop error (the silent-drop class): an
// embedded transaction's signature does not recover to the channel's
// known counterparty. Without this check a transaction's Value/Index
// fields are trusted from whoever forged a syntactically valid
// signature, not necessarily the peer this channel was opened with.
type ErrSignerMismatch struct {
	ID ID
}

func (e *ErrSignerMismatch) Error() string {
	return fmt.Sprintf("channel %x: transaction signer does not match channel counterparty", e.ID)
}

// ErrNonceReused is fatal (the fatal class): a counterparty submitted the same
// signed update twice. testAndSetNonce's sole purpose is to detect this.
type ErrNonceReused struct {
	ID ID
}

func (e *ErrNonceReused) Error() string {
	return fmt.Sprintf("channel %x: nonce reused, counterparty replayed a signed update", e.ID)
}

// ErrStateDivergence is fatal (the fatal class): on-chain state is present without
// a local record, a condition isOpen cannot safely proceed past.
type ErrStateDivergence struct {
	ID ID
}

func (e *ErrStateDivergence) Error() string {
	return fmt.Sprintf("channel %x: on-chain record present, no local record, cannot reconcile", e.ID)
}

// ErrInsufficientBalance is a silent-drop error (the silent-drop class, a boundary case: a
// channel with balance = 0 must not accept any transfer).
type ErrInsufficientBalance struct {
	ID        ID
	Requested uint64
	Available uint64
}

func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf(
		"channel %x: requested %d exceeds available %d",
		e.ID, e.Requested, e.Available,
	)
}

// ErrNotWithdrawable is a silent-drop error (a boundary case: withdraw
// before closureTime must revert).
type ErrNotWithdrawable struct {
	ID          ID
	ClosureTime uint64
	BlockTime   uint64
}

func (e *ErrNotWithdrawable) Error() string {
	return fmt.Sprintf(
		"channel %x: not withdrawable until block time %d, currently %d",
		e.ID, e.ClosureTime, e.BlockTime,
	)
}
