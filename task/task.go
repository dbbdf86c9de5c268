// Package task is a worker pool draining one FIFO queue of heterogeneous tasks: plain
// functions, bound methods, closures, dependency-counted jobs and quit sentinels.
package task

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/akmonengine/quill/logging"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindFunc
	KindMethod
	KindClosure
	KindJob
	KindQuit
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindMethod:
		return "method"
	case KindClosure:
		return "closure"
	case KindJob:
		return "job"
	case KindQuit:
		return "quit"
	}
	return "none"
}

// Task holds exactly one payload, selected by its kind. Build it with Func, Method, Closure
// or JobTask.
type Task struct {
	kind     Kind
	fn       func()
	method   func(any)
	receiver any
	job      *Job
}

// Func wraps a plain function value
func Func(fn func()) Task {
	return Task{kind: KindFunc, fn: fn}
}

// Method binds fn to receiver at queue time
func Method[T any](receiver T, fn func(T)) Task {
	return Task{
		kind:     KindMethod,
		receiver: receiver,
		method:   func(r any) { fn(r.(T)) },
	}
}

// Closure wraps a function capturing its own state
func Closure(fn func()) Task {
	return Task{kind: KindClosure, fn: fn}
}

func JobTask(job *Job) Task {
	return Task{kind: KindJob, job: job}
}

var quitTask = Task{kind: KindQuit}

func (t Task) Kind() Kind {
	return t.kind
}

// Invoke runs the payload. A panic is logged and re-raised: a lost task is worse than a crash.
// Quit tasks are only meaningful to the worker loop, invoking one is an error.
func (t Task) Invoke(log *logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task: %v task panicked: %v", t.describe(), r)
			panic(r)
		}
	}()

	switch t.kind {
	case KindFunc, KindClosure:
		t.fn()
	case KindMethod:
		t.method(t.receiver)
	case KindJob:
		t.job.execute()
	case KindQuit:
		log.Errorf("task: quit task invoked directly")
	default:
		log.Errorf("task: empty task invoked")
	}
}

func (t Task) describe() string {
	if t.kind == KindJob {
		return fmt.Sprintf("job %q", t.job.Name)
	}
	return t.kind.String()
}

// Job runs once all of its dependencies are resolved. Dependents registered with AddDependent
// lose one dependency when the job finishes.
type Job struct {
	Name  string
	Color uint32

	fn        func()
	scheduler *Scheduler
	remaining atomic.Int32

	// queued is set by the one call allowed to hand the job to the scheduler
	queued  atomic.Bool
	started atomic.Bool

	mu         sync.Mutex
	finished   bool
	dependents []*Job
	done       chan struct{}
}

func newJob(scheduler *Scheduler, name string, color uint32, fn func(), dependencies int) *Job {
	job := &Job{
		Name:      name,
		Color:     color,
		fn:        fn,
		scheduler: scheduler,
		done:      make(chan struct{}),
	}
	job.remaining.Store(int32(dependencies))
	return job
}

// RemainingDependencies is the number of dependencies still to resolve
func (j *Job) RemainingDependencies() int {
	return int(j.remaining.Load())
}

// RemoveDependency resolves one dependency, queueing the job when it was the last
func (j *Job) RemoveDependency() {
	switch remaining := j.remaining.Add(-1); {
	case remaining == 0:
		j.scheduler.queueReady(j)
	case remaining < 0:
		j.scheduler.log.Errorf("task: job %q released more dependencies than it had", j.Name)
	}
}

// AddDependent makes other wait for this job. If the job already finished, the dependency is
// resolved immediately.
func (j *Job) AddDependent(other *Job) {
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		other.RemoveDependency()
		return
	}
	j.dependents = append(j.dependents, other)
	j.mu.Unlock()
}

// Done is closed once the job has run
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) IsDone() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job has run, helping the scheduler drain its queue meanwhile
func (j *Job) Wait() {
	j.scheduler.help(j)
}

func (j *Job) execute() {
	if !j.started.CompareAndSwap(false, true) {
		j.scheduler.log.Errorf("task: job %q invoked again, dropped", j.Name)
		return
	}
	if j.fn != nil {
		j.fn()
	}

	j.mu.Lock()
	j.finished = true
	dependents := j.dependents
	j.dependents = nil
	j.mu.Unlock()

	close(j.done)
	for _, dependent := range dependents {
		dependent.RemoveDependency()
	}
}
