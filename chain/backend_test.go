package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusFromCounter(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusUninitialised, StatusFromCounter(0))
	require.Equal(t, StatusFunding, StatusFromCounter(1))
	require.Equal(t, StatusOpen, StatusFromCounter(2))
	require.Equal(t, StatusPendingClosure, StatusFromCounter(3))
	require.Equal(t, StatusWithdrawable, StatusFromCounter(4))
	require.Equal(t, StatusClosed, StatusFromCounter(5))

	// mod 10 wraps.
	require.Equal(t, StatusOpen, StatusFromCounter(12))
}

func TestChannelInfoStatus(t *testing.T) {
	t.Parallel()

	info := ChannelInfo{StateCounter: 2}
	require.Equal(t, StatusOpen, info.Status())
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "open", StatusOpen.String())
	require.Equal(t, "unknown", Status(99).String())
}
