package task

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akmonengine/quill/logging"
)

func newTestScheduler(t *testing.T, threads int) *Scheduler {
	t.Helper()
	s := NewScheduler(Config{Threads: threads, DrainAttempts: 2, IdleWait: time.Millisecond}, logging.Discard())
	t.Cleanup(s.Shutdown)
	return s
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

// =============================================================================
// Task Tests
// =============================================================================

type counter struct {
	n int
}

func (c *counter) increment() {
	c.n++
}

func TestTask_InvokeVariants(t *testing.T) {
	log := logging.Discard()
	c := &counter{}

	Func(c.increment).Invoke(log)
	Method(c, (*counter).increment).Invoke(log)
	Closure(func() { c.n += 10 }).Invoke(log)

	if c.n != 12 {
		t.Errorf("counter = %d, want 12", c.n)
	}
}

func TestTask_KindStrings(t *testing.T) {
	tests := []struct {
		task Task
		want Kind
	}{
		{Func(func() {}), KindFunc},
		{Method(1, func(int) {}), KindMethod},
		{Closure(func() {}), KindClosure},
		{JobTask(&Job{}), KindJob},
		{quitTask, KindQuit},
		{Task{}, KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if tt.task.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v", tt.task.Kind(), tt.want)
			}
		})
	}
}

func TestTask_PanicIsLoggedAndRethrown(t *testing.T) {
	var logged []string
	log := logging.New(io.Discard, logging.LevelDebug)
	log.Redirect(func(level logging.Level, message string) {
		logged = append(logged, message)
	})

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
		if len(logged) != 1 || !strings.Contains(logged[0], "panicked: boom") {
			t.Errorf("logged %v", logged)
		}
	}()

	Func(func() { panic("boom") }).Invoke(log)
	t.Error("Invoke returned after a panic")
}

func TestTask_QuitInvokeIsAnError(t *testing.T) {
	var levels []logging.Level
	log := logging.New(io.Discard, logging.LevelDebug)
	log.Redirect(func(level logging.Level, message string) {
		levels = append(levels, level)
	})

	quitTask.Invoke(log)

	if len(levels) != 1 || levels[0] != logging.LevelError {
		t.Errorf("levels = %v, want one error", levels)
	}
}

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestScheduler_RunsEveryTaskBeforeShutdown(t *testing.T) {
	s := NewScheduler(Config{Threads: 4}, logging.Discard())

	var ran atomic.Int64
	for i := 0; i < 1000; i++ {
		if err := s.QueueTask(Func(func() { ran.Add(1) })); err != nil {
			t.Fatalf("QueueTask: %v", err)
		}
	}
	s.Shutdown()

	if ran.Load() != 1000 {
		t.Errorf("ran %d tasks, want 1000", ran.Load())
	}
	if alive := s.AliveWorkers(); alive != 0 {
		t.Errorf("%d workers still alive", alive)
	}
	if err := s.QueueTask(Func(func() { ran.Add(1) })); !errors.Is(err, ErrShutdown) {
		t.Errorf("QueueTask after shutdown = %v, want ErrShutdown", err)
	}
	if ran.Load() != 1000 {
		t.Error("a task ran after shutdown")
	}
}

func TestScheduler_FIFO(t *testing.T) {
	s := newTestScheduler(t, 1)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		s.QueueTaskFromBackgroundThread(Closure(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 49 {
				close(done)
			}
		}))
	}
	<-done

	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d", i, v)
		}
	}
}

func TestScheduler_SetThreadsConverges(t *testing.T) {
	s := newTestScheduler(t, 2)

	tests := []int{6, 3, 1, 0, 4}
	for _, count := range tests {
		s.SetThreads(count)
		want := max(1, count)
		if got := s.GetThreads(); got != want {
			t.Fatalf("GetThreads() = %d after SetThreads(%d)", got, count)
		}
		if !eventually(t, 2*time.Second, func() bool { return s.AliveWorkers() == want }) {
			t.Fatalf("alive workers = %d, want %d", s.AliveWorkers(), want)
		}
	}
}

func TestScheduler_JobDependencies(t *testing.T) {
	s := newTestScheduler(t, 3)

	var firstDone atomic.Bool
	var orderOK atomic.Bool
	last := s.CreateJob("last", 0xff0000, func() { orderOK.Store(firstDone.Load()) }, 2)

	if last.RemainingDependencies() != 2 {
		t.Fatalf("remaining = %d, want 2", last.RemainingDependencies())
	}

	first := s.CreateJob("first", 0, func() { firstDone.Store(true) }, 1)
	first.AddDependent(last)
	last.RemoveDependency()
	first.RemoveDependency()

	select {
	case <-last.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dependent job never ran")
	}
	if !orderOK.Load() {
		t.Error("dependent ran before its dependency")
	}
}

func TestScheduler_AddDependentAfterFinish(t *testing.T) {
	s := newTestScheduler(t, 1)

	first := s.CreateJob("first", 0, func() {}, 0)
	first.Wait()

	var ran atomic.Bool
	second := s.CreateJob("second", 0, func() { ran.Store(true) }, 1)
	first.AddDependent(second)
	second.Wait()

	if !ran.Load() {
		t.Error("second job did not run")
	}
}

func TestScheduler_QueueJobs(t *testing.T) {
	s := newTestScheduler(t, 4)

	for _, size := range []int{1, 2, 16} {
		var ran atomic.Int64
		jobs := make([]*Job, size)
		for i := range jobs {
			jobs[i] = newJob(s, "batch", 0, func() { ran.Add(1) }, 0)
		}
		if err := s.QueueJobs(jobs); err != nil {
			t.Fatal(err)
		}
		for _, job := range jobs {
			job.Wait()
		}
		if ran.Load() != int64(size) {
			t.Errorf("batch of %d ran %d jobs", size, ran.Load())
		}
	}
}

func TestScheduler_ParallelFor(t *testing.T) {
	s := newTestScheduler(t, 4)

	tests := []int{0, 1, 7, 1000}
	for _, count := range tests {
		visits := make([]atomic.Int32, count)
		s.ParallelFor("test", count, func(start, end int) {
			for i := start; i < end; i++ {
				visits[i].Add(1)
			}
		})
		for i := range visits {
			if v := visits[i].Load(); v != 1 {
				t.Fatalf("count %d: index %d visited %d times", count, i, v)
			}
		}
	}
}

func TestScheduler_NestedParallelForFromWorker(t *testing.T) {
	s := newTestScheduler(t, 2)

	var total atomic.Int64
	outer := s.CreateJob("outer", 0, func() {
		s.ParallelFor("inner", 100, func(start, end int) {
			total.Add(int64(end - start))
		})
	}, 0)

	select {
	case <-outer.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("nested ParallelFor deadlocked")
	}
	if total.Load() != 100 {
		t.Errorf("total = %d, want 100", total.Load())
	}
}

func TestScheduler_Stats(t *testing.T) {
	s := newTestScheduler(t, 2)

	job := s.CreateJob("one", 0, func() {}, 0)
	job.Wait()

	if !eventually(t, time.Second, func() bool { return s.Stats().Executed >= 1 }) {
		t.Errorf("executed count never moved: %+v", s.Stats())
	}
	if stats := s.Stats(); stats.Threads != 2 || stats.Alive != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

// =============================================================================
// Job Ownership Tests
// =============================================================================

type messages struct {
	mu   sync.Mutex
	list []string
}

func (m *messages) count(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, message := range m.list {
		if strings.Contains(message, substr) {
			n++
		}
	}
	return n
}

func newCapturingScheduler(t *testing.T, threads int) (*Scheduler, *messages) {
	t.Helper()
	captured := &messages{}
	log := logging.New(io.Discard, logging.LevelDebug)
	log.Redirect(func(level logging.Level, message string) {
		if level < logging.LevelWarn {
			return
		}
		captured.mu.Lock()
		captured.list = append(captured.list, message)
		captured.mu.Unlock()
	})

	s := NewScheduler(Config{Threads: threads, DrainAttempts: 2, IdleWait: time.Millisecond}, log)
	t.Cleanup(s.Shutdown)
	return s, captured
}

func TestScheduler_JobRunsOnce(t *testing.T) {
	tests := []struct {
		name  string
		queue func(s *Scheduler, job *Job) error
		deps  int
	}{
		{"queued by hand, then released", func(s *Scheduler, job *Job) error {
			if err := s.QueueJob(job); err != nil {
				return err
			}
			job.Wait()
			job.RemoveDependency()
			return nil
		}, 1},
		{"queued twice", func(s *Scheduler, job *Job) error {
			if err := s.QueueJob(job); err != nil {
				return err
			}
			if err := s.QueueJob(job); !errors.Is(err, ErrJobQueued) {
				return errors.New("second QueueJob was accepted")
			}
			return nil
		}, 1},
		{"created ready, then queued", func(s *Scheduler, job *Job) error {
			if err := s.QueueJob(job); !errors.Is(err, ErrJobQueued) {
				return errors.New("QueueJob of a queued job was accepted")
			}
			return nil
		}, 0},
		{"twice in one batch", func(s *Scheduler, job *Job) error {
			if err := s.QueueJobs([]*Job{job, job}); !errors.Is(err, ErrJobQueued) {
				return errors.New("duplicate batch entry was accepted")
			}
			return nil
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, captured := newCapturingScheduler(t, 2)

			var runs atomic.Int64
			job := s.CreateJob("once", 0, func() { runs.Add(1) }, tt.deps)
			if err := tt.queue(s, job); err != nil {
				t.Fatal(err)
			}
			job.Wait()
			s.Shutdown()

			if runs.Load() != 1 {
				t.Errorf("job ran %d times", runs.Load())
			}
			if captured.count("queued twice") != 1 {
				t.Errorf("messages = %v", captured.list)
			}
		})
	}
}

func TestJob_InvokedTwiceRunsOnce(t *testing.T) {
	s, captured := newCapturingScheduler(t, 1)

	var runs atomic.Int64
	job := newJob(s, "direct", 0, func() { runs.Add(1) }, 0)
	JobTask(job).Invoke(s.log)
	JobTask(job).Invoke(s.log)

	if runs.Load() != 1 || !job.IsDone() {
		t.Errorf("runs = %d, done = %v", runs.Load(), job.IsDone())
	}
	if captured.count("invoked again") != 1 {
		t.Errorf("messages = %v", captured.list)
	}
}

func TestScheduler_JobReleasedAfterShutdownRunsInline(t *testing.T) {
	s, captured := newCapturingScheduler(t, 2)

	var ran atomic.Bool
	job := s.CreateJob("late", 0, func() { ran.Store(true) }, 1)
	s.Shutdown()

	job.RemoveDependency()
	if !ran.Load() || !job.IsDone() {
		t.Fatal("released job did not run on the releasing goroutine")
	}
	if captured.count("after shutdown") != 1 {
		t.Errorf("messages = %v", captured.list)
	}
	if err := s.QueueTask(Func(func() {})); !errors.Is(err, ErrShutdown) {
		t.Errorf("QueueTask after shutdown = %v", err)
	}
}
