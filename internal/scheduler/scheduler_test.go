package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(nil, time.Second)
	err := s.Add("sync", "not a schedule", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_RunRecoversAndTimesOut(t *testing.T) {
	s := New(time.UTC, 20*time.Millisecond)

	var calls int32
	s.run("panics", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		panic("boom")
	})
	s.run("fails", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("failed")
	})
	s.run("times out", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return ctx.Err()
	})

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(time.UTC, time.Second)
	require.NoError(t, s.Add("sync", "@every 1h", func(ctx context.Context) error { return nil }))

	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
