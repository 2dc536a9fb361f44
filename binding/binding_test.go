package binding

import (
	"context"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/hoprnet/hopr-core/chain"
	"github.com/hoprnet/hopr-core/channel"
	"github.com/hoprnet/hopr-core/fn"
	"github.com/hoprnet/hopr-core/kv"
	"github.com/hoprnet/hopr-core/packet"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct{}

func (f *fakeBackend) GetChannel(ctx context.Context, id chain.ChannelID) (chain.ChannelInfo, error) {
	return chain.ChannelInfo{}, nil
}
func (f *fakeBackend) OpenChannel(ctx context.Context, counterparty chain.Address) error { return nil }
func (f *fakeBackend) InitiateChannelClosure(ctx context.Context, counterparty chain.Address) error {
	return nil
}
func (f *fakeBackend) ClaimChannelClosure(ctx context.Context, counterparty chain.Address) error {
	return nil
}
func (f *fakeBackend) CloseChannel(ctx context.Context, tx chain.SettlementTx) error { return nil }
func (f *fakeBackend) Withdraw(ctx context.Context, counterparty chain.Address) error { return nil }
func (f *fakeBackend) SendTransaction(ctx context.Context, tx []byte) error           { return nil }
func (f *fakeBackend) GetBlock(ctx context.Context, latest bool) (chain.BlockHeader, error) {
	return chain.BlockHeader{}, nil
}
func (f *fakeBackend) Subscribe(ctx context.Context) (<-chan chain.BlockHeader, error) {
	return make(chan chain.BlockHeader), nil
}
func (f *fakeBackend) OpenedChannels(ctx context.Context, p fn.Option[chain.Address]) (<-chan chain.OpenedChannel, error) {
	return make(chan chain.OpenedChannel), nil
}
func (f *fakeBackend) ClosedChannels(ctx context.Context, p fn.Option[chain.Address]) (<-chan chain.ClosedChannel, error) {
	return make(chan chain.ClosedChannel), nil
}
func (f *fakeBackend) TestBlockAdvance(ctx context.Context) error { return nil }

func setup(t *testing.T) (*channel.Manager, *channel.Record, chain.Address, chain.Address, *secp256k1.PrivateKey) {
	t.Helper()

	selfSigner := secp256k1.PrivKeyFromBytes([]byte("binding-test-manager-signer-key"))
	prevSigner := secp256k1.PrivKeyFromBytes([]byte("binding-test-prev-peer-sign-key"))
	self := chain.AddressFromPubKey(selfSigner.PubKey())
	prev := chain.AddressFromPubKey(prevSigner.PubKey())

	store := channel.NewStore(kv.NewMemory())
	mgr := channel.NewManager(self, selfSigner, store, &fakeBackend{})

	record := channel.NewRecord(self, prev, 100)
	record.Status = channel.StatusOpen
	record.PartyABalance = 50 // self's address sorts first: self is partyA, prev is partyB
	require.NoError(t, store.Save(record))

	return mgr, record, prev, self, prevSigner
}

func TestBindAcceptsValidTransaction(t *testing.T) {
	t.Parallel()

	mgr, record, prev, _, prevSigner := setup(t)

	tx := &packet.Transaction{
		ChannelID: packet.ChannelID(record.ID),
		Index:     record.Index + 1,
		Value:     53, // partyABalance rises 50->53: prev (partyB) sent 3
	}
	tx.Sign(prevSigner)

	result, err := Bind(mgr, record, prev, tx, []byte("hop-shared-secret-32-bytes-xxxx"), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), result.Received)
}

func TestBindRejectsInactiveChannel(t *testing.T) {
	t.Parallel()

	mgr, record, prev, _, _ := setup(t)
	record.Status = channel.StatusClosed

	tx := &packet.Transaction{ChannelID: packet.ChannelID(record.ID), Index: record.Index + 1, Value: 47}

	_, err := Bind(mgr, record, prev, tx, []byte("hop-shared-secret-32-bytes-xxxx"), 1)
	require.ErrorIs(t, err, ErrChannelNotActive)
}

func TestBindRejectsInsufficientFee(t *testing.T) {
	t.Parallel()

	mgr, record, prev, _, _ := setup(t)

	tx := &packet.Transaction{
		ChannelID: packet.ChannelID(record.ID),
		Index:     record.Index + 1,
		Value:     50, // no movement at all: received = 0
	}

	_, err := Bind(mgr, record, prev, tx, []byte("hop-shared-secret-32-bytes-xxxx"), 1)
	require.Error(t, err)
	var insufficient *channel.ErrInsufficientFee
	require.ErrorAs(t, err, &insufficient)
}

func TestBindRejectsIndexRegression(t *testing.T) {
	t.Parallel()

	mgr, record, prev, _, _ := setup(t)
	record.Index = 5

	tx := &packet.Transaction{ChannelID: packet.ChannelID(record.ID), Index: 3, Value: 47}

	_, err := Bind(mgr, record, prev, tx, []byte("hop-shared-secret-32-bytes-xxxx"), 1)
	require.Error(t, err)
	var regression *channel.ErrIndexRegression
	require.ErrorAs(t, err, &regression)
}

func TestOutgoingTransactionPaysReceivedMinusFee(t *testing.T) {
	t.Parallel()

	mgr, record, _, self, _ := setup(t)
	var next chain.Address
	next[0] = 0x03

	nextRecord := channel.NewRecord(self, next, 100)
	nextRecord.Status = channel.StatusOpen
	nextRecord.PartyABalance = 0 // next (0x03...) is partyA; self (partyB) funded the full deposit

	sealed, err := OutgoingTransaction(mgr, nextRecord, next, 10, 1, []byte("next-hop-key-32-bytes-xxxxxxxxx"))
	require.NoError(t, err)

	opened, err := packet.Open(*sealed, []byte("next-hop-key-32-bytes-xxxxxxxxx"))
	require.NoError(t, err)
	require.Equal(t, uint64(9), opened.Value)
}
