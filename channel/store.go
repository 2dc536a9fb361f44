package channel

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/hoprnet/hopr-core/kv"
	"github.com/hoprnet/hopr-core/packet"
)

var errMalformedRecord = errors.New("channel: malformed stored record header")

// Store persists Records and their associated nonce set under the key
// layout the store's key layout documents, on top of an abstract kv.Store.
type Store struct {
	kv kv.Store
}

// NewStore returns a Store backed by db.
func NewStore(db kv.Store) *Store {
	return &Store{kv: db}
}

func u64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func parseU64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Has reports whether a local record exists for id.
func (s *Store) Has(id ID) bool {
	_, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsKey, id))
	return err == nil
}

// Load reads the local record for id. Returns kv.ErrNotFound if absent.
func (s *Store) Load(id ID) (*Record, error) {
	raw, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsKey, id))
	if err != nil {
		return nil, err
	}

	r := &Record{ID: id, NonceSet: make(map[[32]byte]struct{})}
	if err := decodeRecordHeader(raw, r); err != nil {
		return nil, err
	}

	if idx, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsIndex, id)); err == nil {
		r.Index = parseU64(idx)
	}
	if cv, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsCurrentValue, id)); err == nil {
		r.PartyABalance = parseU64(cv)
	}
	if tb, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsTotalBalance, id)); err == nil {
		r.Balance = parseU64(tb)
	}
	if txRaw, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsTx, id)); err == nil {
		tx, err := packet.DecodeTransaction(txRaw)
		if err == nil {
			r.LatestTransaction = tx
		}
	}
	if txRaw, err := s.kv.Get(kv.ChannelKey(kv.PrefixPaymentsRestoreTx, id)); err == nil {
		tx, err := packet.DecodeTransaction(txRaw)
		if err == nil {
			r.RestoreTransaction = tx
		}
	}

	return r, nil
}

// Save persists r's header fields and index/value counters in one
// batch (the concurrency model: a channel update is a single atomic persist step).
func (s *Store) Save(r *Record) error {
	ops := []kv.Op{
		{Key: kv.ChannelKey(kv.PrefixPaymentsKey, r.ID), Value: encodeRecordHeader(r)},
		{Key: kv.ChannelKey(kv.PrefixPaymentsIndex, r.ID), Value: u64(r.Index)},
		{Key: kv.ChannelKey(kv.PrefixPaymentsCurrentValue, r.ID), Value: u64(r.PartyABalance)},
		{Key: kv.ChannelKey(kv.PrefixPaymentsTotalBalance, r.ID), Value: u64(r.Balance)},
	}
	if r.LatestTransaction != nil {
		buf := make([]byte, packet.TransactionSize)
		r.LatestTransaction.Encode(buf)
		ops = append(ops, kv.Op{Key: kv.ChannelKey(kv.PrefixPaymentsTx, r.ID), Value: buf})
	}
	if r.RestoreTransaction != nil {
		buf := make([]byte, packet.TransactionSize)
		r.RestoreTransaction.Encode(buf)
		ops = append(ops, kv.Op{Key: kv.ChannelKey(kv.PrefixPaymentsRestoreTx, r.ID), Value: buf})
	}
	return s.kv.Batch(ops...)
}

// Delete prunes every key this channel owns, including its nonce and
// challenge entries (the withdraw operation: "prunes all channel keys").
func (s *Store) Delete(id ID) error {
	prefixes := []string{
		kv.PrefixPaymentsKey,
		kv.PrefixPaymentsTx,
		kv.PrefixPaymentsRestoreTx,
		kv.PrefixPaymentsStashedRestoreTx,
		kv.PrefixPaymentsIndex,
		kv.PrefixPaymentsCurrentValue,
		kv.PrefixPaymentsOnChainBalance,
		kv.PrefixPaymentsInitialBalance,
		kv.PrefixPaymentsTotalBalance,
	}
	ops := make([]kv.Op, 0, len(prefixes))
	for _, p := range prefixes {
		ops = append(ops, kv.Op{Key: kv.ChannelKey(p, id), Value: nil})
	}

	gte, lte := kv.ChallengePrefix(id)
	entries, err := s.kv.NewReadStream(gte, lte)
	if err != nil {
		return err
	}
	for _, e := range entries {
		ops = append(ops, kv.Op{Key: e.Key, Value: nil})
	}

	nonceLow := append([]byte("payments-nonce-"), id[:]...)
	nonceHigh := append([]byte{}, nonceLow...)
	for i := 0; i < sha256.Size; i++ {
		nonceLow = append(nonceLow, 0x00)
		nonceHigh = append(nonceHigh, 0xff)
	}
	nonces, err := s.kv.NewReadStream(nonceLow, nonceHigh)
	if err != nil {
		return err
	}
	for _, e := range nonces {
		ops = append(ops, kv.Op{Key: e.Key, Value: nil})
	}

	return s.kv.Batch(ops...)
}

// TestAndSetNonce computes key = ChannelId ‖ H(signature) and inserts it
// into the per-channel nonce set, returning ErrNonceReused on a second
// insert of the same signature (the channel state machine).
func (s *Store) TestAndSetNonce(id ID, signature []byte) error {
	h := sha256.Sum256(signature)

	key := make([]byte, 0, len(kv.PrefixPaymentsKey)+len(id)+len(h))
	key = append(key, "payments-nonce-"...)
	key = append(key, id[:]...)
	key = append(key, h[:]...)

	if _, err := s.kv.Get(key); err == nil {
		return &ErrNonceReused{ID: id}
	}
	return s.kv.Put(key, []byte{1})
}

// PutChallenge stores a (channelId, challenge) → keyHalfCommitment entry
// for getPreviousChallenges to later aggregate (the channel state machine).
func (s *Store) PutChallenge(id ID, challenge [33]byte, keyHalfCommitment []byte) error {
	return s.kv.Put(kv.ChallengeKey(id, challenge), keyHalfCommitment)
}

// Challenges returns every key-half commitment stored for id, in
// challenge-key order.
func (s *Store) Challenges(id ID) ([][]byte, error) {
	gte, lte := kv.ChallengePrefix(id)
	entries, err := s.kv.NewReadStream(gte, lte)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out, nil
}

// encodeRecordHeader encodes the fixed-size subset of Record saved under
// "payments-key-": everything except the counters and transactions that
// have their own key prefixes (so that index/value updates do not
// require rewriting the whole record).
func encodeRecordHeader(r *Record) []byte {
	buf := make([]byte, 20+20+1+8)
	off := 0
	copy(buf[off:], r.Self[:])
	off += 20
	copy(buf[off:], r.Counterparty[:])
	off += 20
	buf[off] = byte(r.Status)
	off++
	binary.BigEndian.PutUint64(buf[off:], r.ClosureTime)
	return buf
}

func decodeRecordHeader(buf []byte, r *Record) error {
	if len(buf) < 20+20+1+8 {
		return errMalformedRecord
	}
	off := 0
	copy(r.Self[:], buf[off:off+20])
	off += 20
	copy(r.Counterparty[:], buf[off:off+20])
	off += 20
	r.Status = Status(buf[off])
	off++
	r.ClosureTime = binary.BigEndian.Uint64(buf[off:])
	return nil
}
