package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/ticker"
)

// ShutdownFunc requests a safe process shutdown, giving a reason.
type ShutdownFunc func(format string, params ...interface{})

// Watch is one liveness check the Monitor periodically runs: whether a
// backend dependency (RPC connectivity, block-subscription freshness)
// is still healthy. Unlike a payment-channel operation, a failed Watch
// is never silently dropped (the fatal class): it is a fatal condition reported to
// Shutdown.
type Watch struct {
	// Name describes the check, used only in logs.
	Name string

	// Check runs the check, returning an error on failure.
	Check func(ctx context.Context) error

	// Interval fires Check; owned and started by Monitor.
	Interval ticker.Ticker

	// Attempts is the number of consecutive failures tolerated before
	// Shutdown is invoked.
	Attempts int
}

// Config configures a Monitor.
type Config struct {
	Watches  []*Watch
	Shutdown ShutdownFunc
}

// Monitor periodically runs a set of chain-backend liveness checks,
// invoking Shutdown if any exceeds its configured failure budget. This
// is the the fatal class fatal-error path for backend connectivity: a backend that
// stops answering is treated the same way lnd's healthcheck package
// treats a failed critical resource.
type Monitor struct {
	started int32
	stopped int32

	cfg *Config

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewMonitor returns a Monitor for cfg.
func NewMonitor(cfg *Config) *Monitor {
	return &Monitor{
		cfg:  cfg,
		quit: make(chan struct{}),
	}
}

// Start launches one goroutine per configured watch; watches with
// Attempts == 0 are skipped.
func (m *Monitor) Start() error {
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return errors.New("chain: monitor already started")
	}

	for _, w := range m.cfg.Watches {
		w := w
		if w.Attempts == 0 {
			continue
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.run(w)
		}()
	}

	return nil
}

// Stop signals every watch goroutine to exit and waits for them to do so.
func (m *Monitor) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.stopped, 0, 1) {
		return fmt.Errorf("chain: monitor already stopped")
	}

	close(m.quit)
	m.wg.Wait()
	return nil
}

func (m *Monitor) run(w *Watch) {
	w.Interval.Resume()
	defer w.Interval.Stop()

	failures := 0
	for {
		select {
		case <-w.Interval.Ticks():
			ctx := context.Background()
			if err := w.Check(ctx); err != nil {
				failures++
				if failures >= w.Attempts {
					m.cfg.Shutdown(
						"chain: watch %q failed %d consecutive "+
							"times: %v", w.Name, failures, err,
					)
					return
				}
				continue
			}
			failures = 0

		case <-m.quit:
			return
		}
	}
}
