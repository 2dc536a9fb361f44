package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTransaction() Transaction {
	var tx Transaction
	tx.ChannelID = ChannelID{1, 2, 3}
	tx.Index = 7
	tx.Value = 1000
	tx.CurvePoint[0] = 0x02
	for i := range tx.Signature {
		tx.Signature[i] = byte(i)
	}
	tx.Recovery = 1
	return tx
}

func samplePacket() *Packet {
	p := &Packet{}
	for i := range p.Header.Alpha {
		p.Header.Alpha[i] = byte(i)
	}
	for i := range p.Header.Beta {
		p.Header.Beta[i] = byte(i * 3)
	}
	for i := range p.Header.MAC {
		p.Header.MAC[i] = byte(i * 7)
	}
	tx := sampleTransaction()
	sealed := Seal(&tx, []byte("packet-test-encryption-key-bytes"))
	p.Transaction = sealed
	for i := range p.Challenge.Signature {
		p.Challenge.Signature[i] = byte(i * 5)
	}
	p.Challenge.Recovery = 0
	for i := range p.Message {
		p.Message[i] = byte(i)
	}
	return p
}

// TestRoundTrip is the round-trip law of the documented edge cases: fromBuffer(p.toBuffer()) ≡ p
// bit-for-bit for every packet.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	p := samplePacket()
	buf := p.ToBuffer()
	require.Len(t, buf, Size)

	got, err := FromBuffer(buf)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

// TestWrongSizeRejected covers the wire format: no frame of any size other than Size is
// accepted.
func TestWrongSizeRejected(t *testing.T) {
	t.Parallel()

	p := samplePacket()
	buf := p.ToBuffer()

	_, err := FromBuffer(buf[:len(buf)-1])
	require.ErrorIs(t, err, ErrWrongSize)

	_, err = FromBuffer(append(buf, 0))
	require.ErrorIs(t, err, ErrWrongSize)
}

func TestRoutingSlotRoundTrip(t *testing.T) {
	t.Parallel()

	var slot RoutingSlot
	slot.NextAddress = Address{0xaa, 0xbb}
	for i := range slot.NextMAC {
		slot.NextMAC[i] = byte(i)
	}
	for i := range slot.NextTransactionKey {
		slot.NextTransactionKey[i] = byte(i * 2)
	}

	buf := make([]byte, PerHopRoutingSize)
	slot.Encode(buf)

	got := DecodeRoutingSlot(buf)
	require.Equal(t, slot, got)
}

func TestMaxHopsConstant(t *testing.T) {
	t.Parallel()
	require.Equal(t, BetaSize, MaxHops*PerHopRoutingSize)
}

func TestTransactionSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	tx := sampleTransaction()
	key := []byte("a-key-derived-from-two-hops-xyz!")

	sealed := Seal(&tx, key)
	opened, err := Open(sealed, key)
	require.NoError(t, err)
	require.Equal(t, tx, *opened)
}

func TestTransactionOpenWrongKeyFails(t *testing.T) {
	t.Parallel()

	tx := sampleTransaction()
	sealed := Seal(&tx, []byte("the-right-key-the-right-key-rig"))

	opened, err := Open(sealed, []byte("the-wrong-key-the-wrong-key-wro"))
	// A wrong key produces garbage bytes; it may or may not fail to parse,
	// but it must never reproduce the original plaintext.
	if err == nil {
		require.NotEqual(t, tx, *opened)
	}
}
