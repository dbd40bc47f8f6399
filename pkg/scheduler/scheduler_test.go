package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, cfg *Config) *Scheduler {
	t.Helper()
	s, err := New(cfg, logger.NewNoop())
	require.NoError(t, err)
	return s
}

func fastRetry(max uint64) *Config {
	return &Config{
		WithSeconds: true,
		Retry: RetryConfig{
			MaxRetries:      max,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	}
}

func TestNewInvalidLocation(t *testing.T) {
	_, err := New(&Config{Location: "Mars/Olympus"}, logger.NewNoop())
	assert.Error(t, err)
}

func TestRunNowRetries(t *testing.T) {
	s := newTestScheduler(t, fastRetry(3))

	var calls atomic.Int32
	err := s.RunNow("flaky", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunNowGivesUp(t *testing.T) {
	s := newTestScheduler(t, fastRetry(2))

	var calls atomic.Int32
	boom := errors.New("boom")
	err := s.RunNow("broken", func(ctx context.Context) error {
		calls.Add(1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(t, fastRetry(0))

	fired := make(chan struct{}, 4)
	require.NoError(t, s.AddJob("tick", "@every 1s", func(ctx context.Context) error {
		fired <- struct{}{}
		return nil
	}))
	assert.ErrorIs(t, s.AddJob("tick", "@every 1s", nil), ErrDuplicateJob)
	assert.Error(t, s.AddJob("bad", "not a spec", nil))

	_, ok := s.NextRun("tick")
	assert.True(t, ok)

	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	s.RemoveJob("tick")
	_, ok = s.NextRun("tick")
	assert.False(t, ok)
}

func TestStopCancelsContext(t *testing.T) {
	s := newTestScheduler(t, fastRetry(0))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	err := s.RunNow("after-stop", func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.Error(t, err)
}
