package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTicker implements ticker.Ticker with a channel the test controls
// directly, rather than relying on a real wall-clock interval.
type fakeTicker struct {
	ch chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time, 1)}
}

func (f *fakeTicker) Ticks() <-chan time.Time { return f.ch }
func (f *fakeTicker) Resume()                 {}
func (f *fakeTicker) Stop()                   {}
func (f *fakeTicker) force()                  { f.ch <- time.Now() }

func TestMonitorShutsDownAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	ft := newFakeTicker()

	var mu sync.Mutex
	var shutdownReason string
	shutdownCh := make(chan struct{})

	m := NewMonitor(&Config{
		Watches: []*Watch{
			{
				Name: "rpc",
				Check: func(ctx context.Context) error {
					return errors.New("connection refused")
				},
				Interval: ft,
				Attempts: 2,
			},
		},
		Shutdown: func(format string, params ...interface{}) {
			mu.Lock()
			defer mu.Unlock()
			shutdownReason = format
			close(shutdownCh)
		},
	})

	require.NoError(t, m.Start())
	ft.force()
	ft.force()

	select {
	case <-shutdownCh:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never requested shutdown")
	}

	mu.Lock()
	require.Contains(t, shutdownReason, "watch")
	mu.Unlock()

	require.NoError(t, m.Stop())
}

func TestMonitorRecoversBetweenFailures(t *testing.T) {
	t.Parallel()

	ft := newFakeTicker()
	calls := 0

	shutdownCalled := false
	m := NewMonitor(&Config{
		Watches: []*Watch{
			{
				Name: "rpc",
				Check: func(ctx context.Context) error {
					calls++
					if calls%2 == 0 {
						return nil
					}
					return errors.New("transient")
				},
				Interval: ft,
				Attempts: 3,
			},
		},
		Shutdown: func(format string, params ...interface{}) {
			shutdownCalled = true
		},
	})

	require.NoError(t, m.Start())
	for i := 0; i < 6; i++ {
		ft.force()
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, m.Stop())

	require.False(t, shutdownCalled)
}
