package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/leshachaplin/mouselog/internal/domain"
)

type memQueue struct {
	ch         chan domain.EventBatch
	publishErr error
}

func newMemQueue() *memQueue {
	return &memQueue{ch: make(chan domain.EventBatch, 16)}
}

func (q *memQueue) Publish(ctx context.Context, _ string, payload any) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	select {
	case q.ch <- payload.(domain.EventBatch):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memQueue) Consume(ctx context.Context, taskPayload chan<- domain.EventBatch, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case batch := <-q.ch:
			select {
			case taskPayload <- batch:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}
}

type deadLetters struct {
	mu       sync.Mutex
	payloads []payload
}

func (d *deadLetters) Publish(_ context.Context, _ string, p any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p.(payload))
	return nil
}

func (d *deadLetters) Payloads() []payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]payload(nil), d.payloads...)
}

func testBatch(i int) domain.EventBatch {
	return domain.EventBatch{
		ID:       fmt.Sprintf("session_%d", i),
		ClientIP: "127.0.0.1",
		Events: []domain.Event{{
			EventType: domain.MouseMove,
			SessionID: fmt.Sprintf("session_%d", i),
			EventID:   fmt.Sprintf("event_session_%d_0", i),
		}},
	}
}

func TestPool_ExecutesEveryBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := map[string]struct {
		cfg        Config
		taskAmount int
	}{
		"tasks more than workers": {
			cfg:        Config{NumWorkers: 3},
			taskAmount: 100,
		},
		"tasks less than workers": {
			cfg:        Config{NumWorkers: 20},
			taskAmount: 5,
		},
		"default workers": {
			taskAmount: 10,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			var executed atomic.Int32
			pool := New(context.Background(), tc.cfg, newMemQueue(), zerolog.Nop())
			pool.Start(func(ctx context.Context, batch domain.EventBatch) error {
				if len(batch.Events) == 1 {
					executed.Add(1)
				}
				return nil
			})

			for i := 0; i < tc.taskAmount; i++ {
				pool.Process(testBatch(i))
			}

			require.Eventually(t, func() bool {
				return int(executed.Load()) == tc.taskAmount
			}, 5*time.Second, 10*time.Millisecond)
			pool.GracefulStop()
		})
	}
}

func TestPool_FailuresGoToErrorQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	errInsert := errors.New("insert failed")
	dead := &deadLetters{}
	pool := New(context.Background(), Config{NumWorkers: 2}, newMemQueue(), zerolog.Nop(), WithErrorQueue(dead))
	pool.Start(func(context.Context, domain.EventBatch) error {
		return errInsert
	})

	pool.Process(testBatch(1))
	require.Eventually(t, func() bool {
		return len(dead.Payloads()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	pool.GracefulStop()

	p := dead.Payloads()[0]
	require.Equal(t, "session_1", p.Payload.ID)
	require.EqualError(t, p.GetErrorReason(), errInsert.Error())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(data), `"error_reason":"insert failed"`)
}

func TestPool_PublishFailureIsNotFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := newMemQueue()
	queue.publishErr = errors.New("broker not available")

	var executed atomic.Int32
	dead := &deadLetters{}
	pool := New(context.Background(), Config{NumWorkers: 1}, queue, zerolog.Nop(), WithErrorQueue(dead))
	pool.Start(func(context.Context, domain.EventBatch) error {
		executed.Add(1)
		return nil
	})

	pool.Process(testBatch(1))
	require.Eventually(t, func() bool {
		return len(dead.Payloads()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	pool.GracefulStop()
	require.Zero(t, executed.Load())

	// without an error queue the failure is only logged
	logged := New(context.Background(), Config{NumWorkers: 1}, queue, zerolog.Nop())
	logged.Start(func(context.Context, domain.EventBatch) error { return nil })
	logged.Process(testBatch(2))
	logged.GracefulStop()
}

func TestPool_ProcessAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := newMemQueue()
	pool := New(context.Background(), Config{NumWorkers: 1}, queue, zerolog.Nop())
	pool.Start(func(context.Context, domain.EventBatch) error { return nil })
	pool.GracefulStop()
	pool.GracefulStop()

	pool.Process(testBatch(1))
	require.Empty(t, queue.ch)
}
