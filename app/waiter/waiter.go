package waiter

import (
	"context"
	"os/signal"

	"golang.org/x/sync/errgroup"
)

type WaitFunc func(ctx context.Context) error

// Waiter runs a set of long lived funcs until one fails, the parent context
// is canceled or a termination signal arrives.
type Waiter interface {
	Add(fns ...WaitFunc)
	Wait() error
	Context() context.Context
	CancelFunc() context.CancelFunc
}

type waiter struct {
	ctx      context.Context
	cancelFn context.CancelFunc
	fns      []WaitFunc
}

func NewWaiter(ctx context.Context, cancelFn context.CancelFunc, options ...Option) Waiter {
	cfg := defaultConfig()
	for _, option := range options {
		option(cfg)
	}

	if len(cfg.signals) == 0 {
		return &waiter{ctx: ctx, cancelFn: cancelFn}
	}

	sigCtx, stop := signal.NotifyContext(ctx, cfg.signals...)
	return &waiter{
		ctx: sigCtx,
		cancelFn: func() {
			stop()
			cancelFn()
		},
	}
}

func (w *waiter) Add(fns ...WaitFunc) {
	w.fns = append(w.fns, fns...)
}

func (w *waiter) Wait() error {
	group, gCtx := errgroup.WithContext(w.ctx)

	group.Go(func() error {
		<-gCtx.Done()
		w.cancelFn()
		return nil
	})

	for _, fn := range w.fns {
		fn := fn
		group.Go(func() error {
			return fn(gCtx)
		})
	}

	return group.Wait()
}

func (w *waiter) Context() context.Context {
	return w.ctx
}

func (w *waiter) CancelFunc() context.CancelFunc {
	return w.cancelFn
}
