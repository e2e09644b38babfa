package gate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_UnknownNameErrors(t *testing.T) {
	g, err := New(map[string]int{OCR: 1})
	require.NoError(t, err)

	err = g.Acquire(context.Background(), "not-a-gate")
	assert.Error(t, err)
}

func TestGate_RejectsNonPositivePermits(t *testing.T) {
	_, err := New(map[string]int{OCR: 0})
	assert.Error(t, err)
}

func TestGate_LimitsConcurrency(t *testing.T) {
	g, err := New(map[string]int{LLM: 2})
	require.NoError(t, err)

	var current, max int64
	start := make(chan struct{})
	done := make(chan struct{})

	run := func() {
		require.NoError(t, g.Acquire(context.Background(), LLM))
		defer g.Release(LLM)

		n := atomic.AddInt64(&current, 1)
		for {
			m := atomic.LoadInt64(&max)
			if n <= m || atomic.CompareAndSwapInt64(&max, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		done <- struct{}{}
	}

	for i := 0; i < 5; i++ {
		go func() {
			<-start
			run()
		}()
	}
	close(start)

	for i := 0; i < 5; i++ {
		<-done
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(2))
}

func TestGate_CancellationUnblocksWaiter(t *testing.T) {
	g, err := New(map[string]int{OCR: 1})
	require.NoError(t, err)

	// Hold the only permit.
	require.NoError(t, g.Acquire(context.Background(), OCR))
	defer g.Release(OCR)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Acquire(ctx, OCR)
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter did not unblock")
	}
}

func TestGate_Do_ReleasesOnPanic(t *testing.T) {
	g, err := New(map[string]int{OCR: 1})
	require.NoError(t, err)

	func() {
		defer func() { _ = recover() }()
		_ = g.Do(context.Background(), OCR, func(ctx context.Context) error {
			panic("boom")
		})
	}()

	// If the permit leaked, this would block forever; use a short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, g.Acquire(ctx, OCR))
}
