package task

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akmonengine/quill/logging"
)

var (
	ErrShutdown  = errors.New("task: scheduler is shut down")
	ErrJobQueued = errors.New("task: job already queued")
)

// wakeAllThreshold is the batch size above which every worker is woken
const wakeAllThreshold = 4

type Config struct {
	// Threads is the number of workers, at least 1
	Threads int
	// DrainAttempts is how many empty polls a woken worker makes before waiting again
	DrainAttempts int
	// IdleWait bounds how long an idle worker sleeps without a wake signal
	IdleWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threads:       max(1, runtime.NumCPU()-1),
		DrainAttempts: 3,
		IdleWait:      5 * time.Millisecond,
	}
}

// Stats is a snapshot of the pool
type Stats struct {
	Threads  int
	Alive    int
	Queued   int
	Executed uint64
}

// Scheduler owns the workers and their shared queue. QueueTask, SetThreads and Shutdown are
// meant for the owning goroutine; QueueTaskFromBackgroundThread and the job functions may be
// called from anywhere, workers included.
type Scheduler struct {
	log    *logging.Logger
	config Config

	mu      sync.Mutex
	queue   []Task
	target  int
	closed  bool
	wake    chan struct{}
	workers sync.WaitGroup

	alive    atomic.Int32
	executed atomic.Uint64
}

func NewScheduler(config Config, log *logging.Logger) *Scheduler {
	defaults := DefaultConfig()
	if config.Threads <= 0 {
		config.Threads = defaults.Threads
	}
	if config.DrainAttempts <= 0 {
		config.DrainAttempts = defaults.DrainAttempts
	}
	if config.IdleWait <= 0 {
		config.IdleWait = defaults.IdleWait
	}

	s := &Scheduler{
		log:    log,
		config: config,
		wake:   make(chan struct{}, 256),
	}
	s.SetThreads(config.Threads)

	return s
}

// QueueTask appends a task and wakes one worker
func (s *Scheduler) QueueTask(task Task) error {
	return s.enqueue(1, task)
}

// QueueTaskFromBackgroundThread is QueueTask for goroutines other than the owner
func (s *Scheduler) QueueTaskFromBackgroundThread(task Task) error {
	return s.enqueue(1, task)
}

// CreateJob allocates a job. Without dependencies it is queued right away, otherwise once the
// last RemoveDependency call resolves it.
func (s *Scheduler) CreateJob(name string, color uint32, fn func(), dependencies int) *Job {
	job := newJob(s, name, color, fn, max(0, dependencies))
	if dependencies <= 0 {
		s.queueReady(job)
	}
	return job
}

// QueueJob queues a job once. Queueing it again, by hand or through its last dependency, is
// logged and the job is dropped with ErrJobQueued.
func (s *Scheduler) QueueJob(job *Job) error {
	if !s.claim(job) {
		return ErrJobQueued
	}
	return s.enqueue(1, JobTask(job))
}

// QueueJobs queues a batch. Small batches wake one or two workers, larger ones wake them all.
// Jobs that were already queued are skipped and reported with ErrJobQueued.
func (s *Scheduler) QueueJobs(jobs []*Job) error {
	tasks := make([]Task, 0, len(jobs))
	var err error
	for _, job := range jobs {
		if !s.claim(job) {
			err = ErrJobQueued
			continue
		}
		tasks = append(tasks, JobTask(job))
	}
	if len(tasks) == 0 {
		return err
	}

	wake := min(len(tasks), 2)
	if len(tasks) > wakeAllThreshold {
		wake = -1
	}
	if queueErr := s.enqueue(wake, tasks...); queueErr != nil {
		return queueErr
	}
	return err
}

func (s *Scheduler) claim(job *Job) bool {
	if job.queued.CompareAndSwap(false, true) {
		return true
	}
	s.log.Errorf("task: job %q queued twice, dropped", job.Name)
	return false
}

// queueReady queues a job whose dependencies are resolved.
//
// A job released after Shutdown was never queued, so the shutdown guarantee does not cover
// it: it runs inline on the releasing goroutine, otherwise whoever waits on it would hang.
func (s *Scheduler) queueReady(job *Job) {
	if err := s.QueueJob(job); errors.Is(err, ErrShutdown) {
		s.log.Warnf("task: job %q released after shutdown, running inline", job.Name)
		JobTask(job).Invoke(s.log)
	}
}

// enqueue appends the tasks and wakes n workers, every worker when n is negative
func (s *Scheduler) enqueue(n int, tasks ...Task) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShutdown
	}
	s.queue = append(s.queue, tasks...)
	if n < 0 {
		n = s.target
	}
	s.mu.Unlock()

	s.signal(n)
	return nil
}

func (s *Scheduler) signal(n int) {
	for i := 0; i < n; i++ {
		select {
		case s.wake <- struct{}{}:
		default:
			return
		}
	}
}

func (s *Scheduler) pop() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *Scheduler) popLocked() (Task, bool) {
	if len(s.queue) == 0 {
		return Task{}, false
	}
	task := s.queue[0]
	s.queue[0] = Task{}
	s.queue = s.queue[1:]
	return task, true
}

// popWork is pop for goroutines that are not workers: quit sentinels stay queued
func (s *Scheduler) popWork() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].kind == KindQuit {
		return Task{}, false
	}
	return s.popLocked()
}

func (s *Scheduler) run(task Task) {
	task.Invoke(s.log)
	s.executed.Add(1)
}

// SetThreads converges the pool to count workers, at least one. New workers start at once;
// surplus workers leave when they reach one of the quit sentinels queued here.
func (s *Scheduler) SetThreads(count int) {
	count = max(1, count)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warnf("task: SetThreads(%d) after shutdown", count)
		return
	}
	diff := count - s.target
	s.target = count
	for i := 0; i < -diff; i++ {
		s.queue = append(s.queue, quitTask)
	}
	for i := 0; i < diff; i++ {
		s.workers.Add(1)
		s.alive.Add(1)
		go s.work()
	}
	s.mu.Unlock()

	if diff < 0 {
		s.signal(count - diff)
	}
	s.log.Debugf("task: scheduler set to %d threads", count)
}

// GetThreads returns the target set by the last SetThreads
func (s *Scheduler) GetThreads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// AliveWorkers counts the worker goroutines that have not exited yet
func (s *Scheduler) AliveWorkers() int {
	return int(s.alive.Load())
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Threads:  s.target,
		Alive:    int(s.alive.Load()),
		Queued:   len(s.queue),
		Executed: s.executed.Load(),
	}
}

// Shutdown refuses new tasks, lets every worker finish the queued ones and waits for them
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for i, n := 0, s.target; i < n; i++ {
		s.queue = append(s.queue, quitTask)
	}
	workers := s.target
	s.target = 0
	s.mu.Unlock()

	s.signal(workers)
	s.workers.Wait()
	s.log.Debugf("task: scheduler shut down after %d tasks", s.executed.Load())
}

// work is one worker: wait, drain the queue, try a few more times, wait again
func (s *Scheduler) work() {
	defer s.workers.Done()
	defer s.alive.Add(-1)

	timer := time.NewTimer(s.config.IdleWait)
	defer timer.Stop()

	for {
		for attempt := 0; attempt < s.config.DrainAttempts; attempt++ {
			for {
				task, ok := s.pop()
				if !ok {
					break
				}
				if task.kind == KindQuit {
					return
				}
				s.run(task)
				attempt = 0
			}
			runtime.Gosched()
		}

		timer.Reset(s.config.IdleWait)
		select {
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// help runs queued tasks on the calling goroutine until job is done
func (s *Scheduler) help(job *Job) {
	for {
		if job.IsDone() {
			return
		}
		if task, ok := s.popWork(); ok {
			s.run(task)
			continue
		}

		select {
		case <-job.Done():
			return
		case <-time.After(s.config.IdleWait):
		}
	}
}

// ParallelFor splits [0, count) into chunks run as jobs, and waits for all of them while
// helping with the queue. It satisfies solver.JobSystem.
func (s *Scheduler) ParallelFor(name string, count int, fn func(start, end int)) {
	if count <= 0 {
		return
	}

	threads := s.GetThreads()
	if threads <= 1 || count == 1 {
		fn(0, count)
		return
	}

	chunks := min(count, threads*2)
	chunkSize := (count + chunks - 1) / chunks
	chunks = (count + chunkSize - 1) / chunkSize

	barrier := newJob(s, name, 0, nil, chunks)
	jobs := make([]*Job, 0, chunks)
	for start := 0; start < count; start += chunkSize {
		start := start
		end := min(start+chunkSize, count)
		job := newJob(s, name, 0, func() { fn(start, end) }, 0)
		job.AddDependent(barrier)
		jobs = append(jobs, job)
	}

	if err := s.QueueJobs(jobs); errors.Is(err, ErrShutdown) {
		for _, job := range jobs {
			JobTask(job).Invoke(s.log)
		}
	}
	barrier.Wait()
}
