package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetPutDelete(t *testing.T) {
	t.Parallel()

	s := NewMemory()

	_, err := s.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete([]byte("a")))
	_, err = s.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBatchIsAtomicView(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	require.NoError(t, s.Put([]byte("keep"), []byte("v")))

	require.NoError(t, s.Batch(
		Op{Key: []byte("a"), Value: []byte("1")},
		Op{Key: []byte("keep"), Value: nil},
		Op{Key: []byte("b"), Value: []byte("2")},
	))

	_, err := s.Get([]byte("keep"))
	require.ErrorIs(t, err, ErrNotFound)

	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

func TestMemoryReadStreamOrderAndBounds(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	for _, k := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, s.Put([]byte(k), []byte(k)))
	}

	entries, err := s.NewReadStream([]byte("b"), []byte("d"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "b", string(entries[0].Key))
	require.Equal(t, "c", string(entries[1].Key))
	require.Equal(t, "d", string(entries[2].Key))
}

func TestChannelKeyAndPacketTagKey(t *testing.T) {
	t.Parallel()

	var channelID [32]byte
	channelID[0] = 0xab

	key := ChannelKey(PrefixPaymentsIndex, channelID)
	require.True(t, len(key) == len(PrefixPaymentsIndex)+32)

	var tag [16]byte
	tag[0] = 0x01
	tagKey := PacketTagKey(tag)
	require.True(t, len(tagKey) == len(PrefixPacketTag)+16)
}

func TestChallengePrefixBounds(t *testing.T) {
	t.Parallel()

	var channelID [32]byte
	channelID[0] = 0x01

	gte, lte := ChallengePrefix(channelID)
	var challenge [33]byte
	challenge[32] = 0x7f

	key := ChallengeKey(channelID, challenge)
	require.True(t, string(gte) <= string(key))
	require.True(t, string(key) <= string(lte))
}
