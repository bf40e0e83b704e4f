// Package scheduler implements the cooperative, budget-based cycle worker
// described in spec.md §4.4. It is grounded on the teacher's periodic
// `time.Ticker` sweep in cmd/mcp.go's watchEmbeddings loop, generalized from
// a fixed 3-second refresh tick into the two-phase, admission-controlled
// cycle this spec requires: a non-critical band that drains the TaskQueue
// under a worst-case-duration budget, followed by a critical sweep that the
// caller supplies as an ordinary Task.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/collabcore/collabcore/internal/taskqueue"
)

// State is one of the scheduler's three lifecycle states (spec.md §4.4).
type State int

const (
	Stopped State = iota
	Running
	StopRequested
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case StopRequested:
		return "StopRequested"
	default:
		return "Unknown"
	}
}

// Config holds the cycle period and the three band percentages. Percentages
// must sum to at most 100; Config does not itself validate this — see
// internal/config for the validated, disk-loaded counterpart.
type Config struct {
	CycleTime       time.Duration
	BufferCritical  float64
	BufferSecondary float64
	BufferAuxiliary float64
}

func (c Config) tCrit() time.Duration {
	return time.Duration(float64(c.CycleTime) * c.BufferCritical / 100)
}

func (c Config) tNonCritical() time.Duration {
	return time.Duration(float64(c.CycleTime) * (c.BufferSecondary + c.BufferAuxiliary) / 100)
}

// Logger is the minimal logging surface the scheduler needs.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Scheduler runs the cycle loop described in spec.md §4.4 against a
// taskqueue.Queue and a caller-supplied critical sweep task. The current
// cycle always completes before Stop takes effect.
type Scheduler struct {
	cfg           Config
	queue         *taskqueue.Queue
	criticalSweep taskqueue.Task
	logger        Logger
	now           func() time.Time

	mu    sync.Mutex
	state State

	stopRequested chan struct{}
	done          chan struct{}
}

// New creates a Scheduler in the Stopped state. now defaults to time.Now
// when nil; tests may inject a deterministic clock.
func New(cfg Config, queue *taskqueue.Queue, criticalSweep taskqueue.Task, logger Logger, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cfg:           cfg,
		queue:         queue,
		criticalSweep: criticalSweep,
		logger:        logger,
		now:           now,
		state:         Stopped,
	}
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Stopped -> Running and launches the cycle loop on a new
// goroutine. Calling Start while already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.state != Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Running
	s.stopRequested = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

// Stop requests termination: Running -> StopRequested. The current cycle
// finishes before the loop actually exits; call Wait to block until it has.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	s.state = StopRequested
	close(s.stopRequested)
}

// Wait blocks until the run loop has exited after a Stop.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) stopWasRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopRequested == nil {
		return false
	}
	select {
	case <-s.stopRequested:
		return true
	default:
		return false
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	now := s.now()
	deadlineNC := now.Add(s.cfg.tNonCritical())
	deadlineCrit := deadlineNC.Add(s.cfg.tCrit())

	for {
		s.runNonCriticalPhase(&deadlineNC)
		s.runCriticalPhase(deadlineCrit)

		deadlineNC = deadlineNC.Add(s.cfg.CycleTime)
		deadlineCrit = deadlineCrit.Add(s.cfg.CycleTime)

		if s.stopWasRequested() {
			s.mu.Lock()
			s.state = Stopped
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) runNonCriticalPhase(deadlineNC *time.Time) {
	for {
		now := s.now()
		remaining := deadlineNC.Sub(now)
		if remaining <= 0 {
			return
		}

		task, ok := s.queue.GetWithTimeout(remaining)
		if !ok {
			return
		}

		now = s.now()
		if now.Add(task.WorstCase).Before(*deadlineNC) {
			task.Fn()
		} else {
			s.queue.Put(task)
			// Hold the rest of the band so the next cycle starts on its
			// anchor instead of immediately re-offering the same task.
			time.Sleep(deadlineNC.Sub(s.now()))
			return
		}
	}
}

func (s *Scheduler) runCriticalPhase(deadlineCrit time.Time) {
	now := s.now()
	if now.Add(s.criticalSweep.WorstCase).Before(deadlineCrit) {
		s.criticalSweep.Fn()
	} else {
		s.logger.Printf("scheduler: skipping critical sweep, insufficient budget this cycle")
	}
}
