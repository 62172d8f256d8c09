package waiter

import (
	"os"
	"syscall"
)

type Option func(*waiterCfg)

type waiterCfg struct {
	signals []os.Signal
}

func defaultConfig() *waiterCfg {
	return &waiterCfg{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// WithSignals replaces the signals that stop the waiter. Passing none
// disables signal handling, leaving only the parent context and CancelFunc.
func WithSignals(signals ...os.Signal) Option {
	return func(cfg *waiterCfg) {
		cfg.signals = signals
	}
}
