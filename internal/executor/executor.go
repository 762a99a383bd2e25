// Package executor provides the serialized-execution context shared by the
// whole device: one unit of device-affecting work runs to completion before
// the next begins, so tool bodies and alarm side effects never race each
// other or UI state.
package executor

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

const queueDepth = 64

// Executor runs scheduled work on a single worker goroutine in FIFO order.
//
// There is no cancellation primitive for in-flight work: a slow unit of
// work delays everything queued behind it. Timeouts, if needed, belong
// inside the work itself.
type Executor struct {
	log  *slog.Logger
	jobs chan job

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type job struct {
	id string
	fn func()
}

// New creates an executor. Call Start before scheduling work.
func New(log *slog.Logger) *Executor {
	return &Executor{
		log:  log.With("component", "executor"),
		jobs: make(chan job, queueDepth),
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (e *Executor) Start() {
	e.wg.Add(1)

	go e.run()
}

// Schedule submits work to the queue. Each job carries a ULID for log
// correlation. Work submitted after Stop is dropped with a warning.
func (e *Executor) Schedule(fn func()) {
	j := job{id: ulid.Make().String(), fn: fn}

	select {
	case e.jobs <- j:
	case <-e.done:
		e.log.Warn("executor stopped, dropping job", "job_id", j.id)
	}
}

// Stop shuts the worker down and waits for the in-flight job to finish.
// Queued jobs that have not started are dropped. Safe to call repeatedly.
func (e *Executor) Stop() {
	e.closeOnce.Do(func() {
		close(e.done)
	})

	e.wg.Wait()
}

func (e *Executor) run() {
	defer e.wg.Done()

	for {
		select {
		case j := <-e.jobs:
			e.runJob(j)

		case <-e.done:
			return
		}
	}
}

// runJob isolates panics so a faulty unit of work cannot take down the
// shared context.
func (e *Executor) runJob(j job) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("job panicked", "job_id", j.id, "panic", r)
		}
	}()

	e.log.Debug("running job", "job_id", j.id)
	j.fn()
}
