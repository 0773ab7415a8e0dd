package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSkipsDisabledJobs(t *testing.T) {
	s, err := New(time.Second,
		Job{Name: "letters", Spec: "", Run: func(context.Context) {}},
		Job{Name: "tokens", Spec: "0 0 3 * * *", Run: func(context.Context) {}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(time.Second, Job{Name: "letters", Spec: "every now and then", Run: func(context.Context) {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register job letters")
}

func TestRunExecutesJobsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	s, err := New(time.Second, Job{Name: "tick", Spec: "* * * * * *", Run: func(ctx context.Context) {
		if _, ok := ctx.Deadline(); ok {
			runs.Add(1)
		}
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestPanickingJobDoesNotEscape(t *testing.T) {
	s, err := New(0, Job{Name: "boom", Spec: "* * * * * *", Run: func(context.Context) { panic("boom") }})
	require.NoError(t, err)
	assert.NotPanics(t, s.wrap(Job{Name: "boom", Run: func(context.Context) { panic("boom") }}))
}
