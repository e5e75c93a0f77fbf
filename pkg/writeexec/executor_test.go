package writeexec

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsExclusively(t *testing.T) {
	e := New()
	var concurrent int32
	var maxConcurrent int32

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			_, err := Submit(e, context.Background(), func(ctx context.Context) (Result[int], error) {
				n := atomic.AddInt32(&concurrent, 1)
				if n > atomic.LoadInt32(&maxConcurrent) {
					atomic.StoreInt32(&maxConcurrent, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&concurrent, -1)
				return Result[int]{Value: 1}, nil
			})
			require.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, int32(1), maxConcurrent)
}

func TestSubmitForAccountIsolatesUnrelatedAccounts(t *testing.T) {
	e := New()
	var concurrent int32
	var maxConcurrent int32

	done := make(chan struct{})
	for i := int64(0); i < 4; i++ {
		go func(acc int64) {
			_, err := SubmitForAccount(e, context.Background(), acc, func(ctx context.Context) (Result[int], error) {
				n := atomic.AddInt32(&concurrent, 1)
				if n > atomic.LoadInt32(&maxConcurrent) {
					atomic.StoreInt32(&maxConcurrent, n)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&concurrent, -1)
				return Result[int]{Value: 1}, nil
			})
			require.NoError(t, err)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Greater(t, maxConcurrent, int32(1))
}

func TestSubmitRunsCacheMutationBeforeEvents(t *testing.T) {
	e := New()
	var order []string

	_, err := Submit(e, context.Background(), func(ctx context.Context) (Result[int], error) {
		return Result[int]{
			Value:         1,
			CacheMutation: func() { order = append(order, "cache") },
			Events:        func() { order = append(order, "events") },
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "events"}, order)
}

func TestSubmitPropagatesClosureError(t *testing.T) {
	e := New()
	sentinel := assert.AnError
	_, err := Submit(e, context.Background(), func(ctx context.Context) (Result[int], error) {
		return Result[int]{}, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestShutdownRejectsNewSubmissionsAndDrainsInFlight(t *testing.T) {
	e := New()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = Submit(e, context.Background(), func(ctx context.Context) (Result[int], error) {
			close(started)
			<-release
			return Result[int]{Value: 1}, nil
		})
	}()
	<-started

	shutdownDone := make(chan struct{})
	go func() {
		e.Shutdown()
		close(shutdownDone)
	}()

	_, err := Submit(e, context.Background(), func(ctx context.Context) (Result[int], error) {
		return Result[int]{Value: 2}, nil
	})
	assert.ErrorIs(t, err, ErrShuttingDown)

	close(release)
	<-shutdownDone
}
