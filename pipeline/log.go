package pipeline

import "github.com/btcsuite/btclog"

// log is the logger used by this package, following the same
// subsystem-tag convention lnd's packages use (disabled until a caller
// installs a real backend via UseLogger).
var log = btclog.Disabled

// UseLogger installs a logger for the pipeline package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
