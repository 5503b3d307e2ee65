package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIntervalScheduler_RunsJobImmediatelyAndOnTicks(t *testing.T) {
	s := NewIntervalScheduler(IntervalSchedulerConfig{RunTimeout: time.Second}, zap.NewNop())

	var runs atomic.Int32
	s.Register(IntervalJob{
		Name:     "drain",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestIntervalScheduler_FailingJobKeepsTicking(t *testing.T) {
	s := NewIntervalScheduler(IntervalSchedulerConfig{RunTimeout: time.Second}, zap.NewNop())

	var runs atomic.Int32
	s.Register(IntervalJob{
		Name:     "sweep",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("credentials missing")
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestIntervalScheduler_StopWaitsForJobs(t *testing.T) {
	s := NewIntervalScheduler(IntervalSchedulerConfig{RunTimeout: time.Second}, zap.NewNop())

	started := make(chan struct{})
	var finished atomic.Bool
	s.Register(IntervalJob{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			finished.Store(true)
			return ctx.Err()
		},
	})

	require.NoError(t, s.Start(context.Background()))
	<-started

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished.Load())
}

func TestIntervalScheduler_RunTimeoutCancelsContext(t *testing.T) {
	s := NewIntervalScheduler(IntervalSchedulerConfig{RunTimeout: 10 * time.Millisecond}, zap.NewNop())

	timedOut := make(chan struct{})
	s.Register(IntervalJob{
		Name:     "probe",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(timedOut)
			return ctx.Err()
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("run context was not cancelled by the timeout")
	}
}

func TestIntervalScheduler_StartIsIdempotent(t *testing.T) {
	s := NewIntervalScheduler(IntervalSchedulerConfig{}, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestIntervalScheduler_RegisterAfterStartIsIgnored(t *testing.T) {
	s := NewIntervalScheduler(IntervalSchedulerConfig{}, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	var runs atomic.Int32
	s.Register(IntervalJob{
		Name:     "late",
		Interval: time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())
}
