package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoReturnsValue(t *testing.T) {
	p := NewPool(2, 4)
	p.Start(context.Background())
	defer p.Close()

	task := Go(p, func(ctx context.Context) (int, error) { return 42, nil })
	v, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, ok := task.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.NoError(t, task.Err())
}

func TestGoPropagatesFailure(t *testing.T) {
	p := NewPool(1, 4)
	p.Start(context.Background())
	defer p.Close()

	boom := errors.New("boom")
	task := Go(p, func(ctx context.Context) (string, error) { return "ignored", boom })
	_, err := task.Wait()
	assert.ErrorIs(t, err, boom)

	_, ok := task.Value()
	assert.False(t, ok)
	assert.ErrorIs(t, task.Err(), boom)
}

func TestGoRecoversPanic(t *testing.T) {
	p := NewPool(1, 4)
	p.Start(context.Background())
	defer p.Close()

	task := Go(p, func(ctx context.Context) (bool, error) { panic("kaboom") })
	v, err := task.Wait()
	require.Error(t, err)
	assert.False(t, v)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestGoOnClosedPool(t *testing.T) {
	p := NewPool(1, 1)
	p.Close()

	task := Go(p, func(ctx context.Context) (int, error) { return 1, nil })
	_, err := task.Wait()
	assert.Same(t, ErrPoolClosed, err)
}

func TestPendingTask(t *testing.T) {
	p := NewPool(1, 1)
	release := make(chan struct{})
	p.Start(context.Background())
	defer p.Close()

	task := Go(p, func(ctx context.Context) (int, error) {
		<-release
		return 7, nil
	})
	_, ok := task.Value()
	assert.False(t, ok)
	assert.NoError(t, task.Err())

	close(release)
	<-task.Done()
	v, ok := task.Value()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestResolved(t *testing.T) {
	task := Resolved(true, nil)
	v, ok := task.Value()
	assert.True(t, ok)
	assert.True(t, v)
}
