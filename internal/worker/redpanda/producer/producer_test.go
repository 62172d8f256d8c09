package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLinearBackOff(t *testing.T) {
	errBroker := errors.New("broker not available")

	cases := map[string]struct {
		attempts      int
		failures      int
		failWith      error
		expectedCalls int
		expectedError error
	}{
		"ok - first attempt": {
			attempts:      3,
			expectedCalls: 1,
		},
		"ok - after retries": {
			attempts:      3,
			failures:      2,
			failWith:      errBroker,
			expectedCalls: 3,
		},
		"attempts exhausted": {
			attempts:      2,
			failures:      5,
			failWith:      errBroker,
			expectedCalls: 2,
			expectedError: errBroker,
		},
		"canceled is not retried": {
			attempts:      5,
			failures:      5,
			failWith:      context.Canceled,
			expectedCalls: 1,
			expectedError: context.Canceled,
		},
	}

	logger := zerolog.Nop()
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			calls := 0
			err := linearBackOff(context.Background(), &logger, tc.attempts, time.Millisecond, func() error {
				calls++
				if calls <= tc.failures {
					return tc.failWith
				}
				return nil
			})

			require.Equal(t, tc.expectedCalls, calls)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLinearBackOff_StopsWaitingOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	errBroker := errors.New("broker not available")
	start := time.Now()
	err := linearBackOff(ctx, &logger, 3, time.Hour, func() error {
		return errBroker
	})
	require.ErrorIs(t, err, errBroker)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Minute)
}
