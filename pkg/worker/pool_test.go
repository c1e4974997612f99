package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	var ran int32
	jobs := 100
	for i := 0; i < jobs; i++ {
		err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
		require.NoError(t, err)
	}
	p.Close()

	assert.Equal(t, int32(jobs), atomic.LoadInt32(&ran))
}

func TestSubmitAfterClose(t *testing.T) {
	p := NewPool(1, 2)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	p.Close()
	cancel()
	err := p.Submit(func(ctx context.Context) error { return nil })
	assert.Same(t, ErrPoolClosed, err)
}

func TestSubmitRecoversFromCloseRace(t *testing.T) {
	p := NewPool(1, 1)
	// no workers: the second Submit blocks on the full queue
	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))

	done := make(chan error, 1)
	go func() {
		done <- p.Submit(func(ctx context.Context) error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)

	p.Close()

	assert.Same(t, ErrPoolClosed, <-done)
}

func TestSubmitCtxHonoursDeadline(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Close()
	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.SubmitCtx(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContextCancellationStopsWorkers(t *testing.T) {
	p := NewPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after context cancellation")
	}
}

func TestCloseRunsQueuedJobsWithCanceledContext(t *testing.T) {
	p := NewPool(1, 4)
	var got error
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		got = ctx.Err()
		return nil
	}))
	p.Close()
	assert.ErrorIs(t, got, context.Canceled)
}

func TestPoolReportsErrorsAndPanics(t *testing.T) {
	p := NewPool(1, 4)
	var mu sync.Mutex
	var errs []error
	p.OnError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	p.Start(context.Background())

	boom := errors.New("boom")
	require.NoError(t, p.Submit(func(ctx context.Context) error { return boom }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { panic("bad job") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, errs[1].Error(), "bad job")
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewPool(2, 2)
	p.Start(context.Background())
	p.Close()
	p.Close()
	assert.Equal(t, 2, p.Workers())
}

func TestContextCancellationClosesPool(t *testing.T) {
	p := NewPool(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	release := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		<-release
		return nil
	}))
	queued := Go(p, func(ctx context.Context) (int, error) { return 1, ctx.Err() })

	cancel()
	close(release)

	select {
	case <-queued.Done():
	case <-time.After(time.Second):
		t.Fatal("queued job never resolved after context cancellation")
	}
	_, err := queued.Wait()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return errors.Is(p.Submit(func(ctx context.Context) error { return nil }), ErrPoolClosed)
	}, time.Second, 5*time.Millisecond)
	p.Close()
}
