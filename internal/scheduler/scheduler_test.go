package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/collabcore/collabcore/internal/scheduler"
	"github.com/collabcore/collabcore/internal/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() scheduler.Config {
	return scheduler.Config{
		CycleTime:       100 * time.Millisecond,
		BufferCritical:  20,
		BufferSecondary: 40,
		BufferAuxiliary: 40,
	}
}

// TestCycleBudgetHonored is spec.md §8 scenario 1: five 10ms tasks fit
// comfortably inside an 80ms non-critical budget and all run in the first
// cycle; the critical sweep fires at least once.
func TestCycleBudgetHonored(t *testing.T) {
	q := taskqueue.New(10)
	var ran int32
	for i := 0; i < 5; i++ {
		q.Put(taskqueue.Task{
			Fn:        func() { atomic.AddInt32(&ran, 1) },
			WorstCase: 10 * time.Millisecond,
		})
	}

	var sweeps int32
	sweep := taskqueue.Task{
		Fn:        func() { atomic.AddInt32(&sweeps, 1) },
		WorstCase: time.Millisecond,
	}

	sch := scheduler.New(baseConfig(), q, sweep, nil, nil)
	sch.Start()
	time.Sleep(150 * time.Millisecond)
	sch.Stop()
	sch.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&sweeps), int32(1))
	assert.Equal(t, 0, q.Len())
}

// TestOverrunDeferral is spec.md §8 scenario 2: a 200ms task exceeds the
// 80ms non-critical budget outright, so admission control never runs it;
// it stays queued across cycles while the critical sweep keeps firing.
func TestOverrunDeferral(t *testing.T) {
	q := taskqueue.New(10)
	var ran int32
	q.Put(taskqueue.Task{
		Fn:        func() { atomic.AddInt32(&ran, 1) },
		WorstCase: 200 * time.Millisecond,
		Debug:     "oversized",
	})

	var sweeps int32
	sweep := taskqueue.Task{
		Fn:        func() { atomic.AddInt32(&sweeps, 1) },
		WorstCase: time.Millisecond,
	}

	sch := scheduler.New(baseConfig(), q, sweep, nil, nil)
	sch.Start()
	time.Sleep(250 * time.Millisecond)
	sch.Stop()
	sch.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&ran), "oversized task must never be admitted")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&sweeps), int32(1))
	assert.Equal(t, 1, q.Len(), "task must remain queued, re-inserted at the tail each cycle")
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	q := taskqueue.New(1)
	sch := scheduler.New(baseConfig(), q, taskqueue.Task{Fn: func() {}}, nil, nil)
	sch.Start()
	require.Equal(t, scheduler.Running, sch.State())
	sch.Start() // no-op, must not panic or spawn a second loop
	assert.Equal(t, scheduler.Running, sch.State())
	sch.Stop()
	sch.Wait()
	assert.Equal(t, scheduler.Stopped, sch.State())
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	q := taskqueue.New(1)
	sch := scheduler.New(baseConfig(), q, taskqueue.Task{Fn: func() {}}, nil, nil)
	assert.NotPanics(t, sch.Stop)
	assert.Equal(t, scheduler.Stopped, sch.State())
}

func TestCriticalSweepSkippedWhenBudgetExhausted(t *testing.T) {
	cfg := scheduler.Config{
		CycleTime:       20 * time.Millisecond,
		BufferCritical:  1,
		BufferSecondary: 49,
		BufferAuxiliary: 49,
	}
	q := taskqueue.New(1)
	var sweeps int32
	sweep := taskqueue.Task{
		Fn:        func() { atomic.AddInt32(&sweeps, 1) },
		WorstCase: 50 * time.Millisecond, // far larger than T_crit
	}

	var logged int32
	logger := loggerFunc(func(string, ...interface{}) { atomic.AddInt32(&logged, 1) })

	sch := scheduler.New(cfg, q, sweep, logger, nil)
	sch.Start()
	time.Sleep(80 * time.Millisecond)
	sch.Stop()
	sch.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&sweeps))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&logged), int32(1))
}

type loggerFunc func(format string, v ...interface{})

func (f loggerFunc) Printf(format string, v ...interface{}) { f(format, v...) }
