// Package pool dispatches many coder jobs concurrently, one goroutine per
// in-flight job bounded by a semaphore: a feeder goroutine, an
// ordered-pending channel, and a semaphore of worker slots, driving whole
// Job.Run() calls. The coder itself runs single-threaded internally, so all
// parallelism belongs to the caller dispatching many chunks at once. Panic
// recovery per job follows the same pattern as internal/middleware/recovery.go.
package pool

import (
	"context"
	"runtime"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Task is one unit of work submitted to a Pool. index is the task's
// position in the submitted slice, preserved in the returned Result order
// regardless of completion order.
type Task func(ctx context.Context) (result interface{}, err error)

// Result is one Task's outcome.
type Result struct {
	Index  int
	Value  interface{}
	Err    error
	Panic  interface{}
}

type job struct {
	index int
	task  Task
	done  chan struct{}
	res   Result
}

// Pool bounds how many Tasks run concurrently.
type Pool struct {
	concurrency int
	logger      *logrus.Logger
}

// New builds a Pool. concurrency <= 0 defaults to runtime.NumCPU(). logger
// may be nil, in which case panic recoveries are swallowed silently (same
// default nil-check style as the rest of this module's logging call sites).
func New(concurrency int, logger *logrus.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool{concurrency: concurrency, logger: logger}
}

// Run executes every task in tasks with up to p.concurrency running at
// once, and returns their Results in the same order tasks was given —
// mirroring how the chunked readers deliver chunk N's plaintext in order
// even though chunk N+1 may finish encrypting first. Run blocks until every
// task has completed, or ctx is cancelled (in which case not-yet-started
// tasks are skipped and their Result carries ctx.Err()).
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	pending := make(chan *job, p.concurrency*2)
	workerSlots := make(chan struct{}, p.concurrency)

	go p.feed(ctx, tasks, pending, workerSlots)

	results := make([]Result, len(tasks))
	for j := range pending {
		<-j.done
		results[j.index] = j.res
	}
	return results
}

func (p *Pool) feed(ctx context.Context, tasks []Task, pending chan<- *job, workerSlots chan struct{}) {
	defer close(pending)

	for i, t := range tasks {
		j := &job{index: i, task: t, done: make(chan struct{})}

		select {
		case pending <- j:
		case <-ctx.Done():
			j.res = Result{Index: i, Err: ctx.Err()}
			close(j.done)
			pending <- j
			continue
		}

		select {
		case workerSlots <- struct{}{}:
		case <-ctx.Done():
			j.res = Result{Index: i, Err: ctx.Err()}
			close(j.done)
			continue
		}

		// select picks at random among ready cases, so a slot may have been
		// taken even though ctx was already cancelled.
		if err := ctx.Err(); err != nil {
			<-workerSlots
			j.res = Result{Index: i, Err: err}
			close(j.done)
			continue
		}

		go func(j *job) {
			defer func() { <-workerSlots }()
			p.runOne(ctx, j)
		}(j)
	}
}

func (p *Pool) runOne(ctx context.Context, j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.WithFields(logrus.Fields{
					"index": j.index,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("pool: task panicked")
			}
			j.res = Result{Index: j.index, Panic: r}
		}
	}()

	val, err := j.task(ctx)
	j.res = Result{Index: j.index, Value: val, Err: err}
}
