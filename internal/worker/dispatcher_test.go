package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/memory"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
)

type funcRunner func(ctx context.Context, job *entities.FeedbackJob) error

func (f funcRunner) Process(ctx context.Context, job *entities.FeedbackJob) error {
	return f(ctx, job)
}

type resultRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *resultRecorder) RecordFeedbackJob(ctx context.Context, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestJob() *entities.FeedbackJob {
	msg := entities.NewUserMessage(primitive.NewObjectID(), "hello", "")
	return entities.NewFeedbackJob("user-1", msg, nil)
}

func newTestDispatcher(t *testing.T, runner Runner, config Config) (*Dispatcher, *memory.FeedbackJobRepository, *resultRecorder, *clock) {
	t.Helper()
	jobs := memory.NewFeedbackJobRepository()
	recorder := &resultRecorder{}
	d := NewDispatcher(jobs, runner, recorder, config, zaptest.NewLogger(t))
	// Slightly ahead so freshly created jobs are due
	c := &clock{now: entities.Now().Add(time.Second)}
	d.now = c.Now
	t.Cleanup(func() { d.Stop(context.Background()) })
	return d, jobs, recorder, c
}

func TestDispatcher_ScheduleRunsJob(t *testing.T) {
	var calls int
	var mu sync.Mutex
	runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if job.Attempts != 1 || job.Status != entities.JobStatusRunning {
			t.Errorf("Expected first running attempt, got %d/%s", job.Attempts, job.Status)
		}
		return nil
	})
	d, jobs, recorder, _ := newTestDispatcher(t, runner, Config{})

	job := newTestJob()
	d.Schedule(job)
	d.Wait()

	stored, err := jobs.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Expected persisted job: %v", err)
	}
	if stored.Status != entities.JobStatusDone {
		t.Errorf("Expected done, got %s", stored.Status)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(recorder.results) != 1 || recorder.results[0] != "done" {
		t.Errorf("Expected done result, got %v", recorder.results)
	}
}

func TestDispatcher_RetryWithBackoff(t *testing.T) {
	attempts := 0
	runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
		attempts++
		if attempts == 1 {
			return errors.New("connection reset")
		}
		return nil
	})
	d, jobs, recorder, c := newTestDispatcher(t, runner, Config{BaseBackoff: time.Minute, MaxBackoff: time.Hour})

	job := newTestJob()
	d.Schedule(job)
	d.Wait()

	stored, _ := jobs.GetByID(context.Background(), job.ID)
	if stored.Status != entities.JobStatusPending || stored.LastError != "connection reset" {
		t.Fatalf("Expected pending job with error, got %s/%q", stored.Status, stored.LastError)
	}
	if want := c.Now().Add(time.Minute); !stored.NextAttemptAt.Equal(want) {
		t.Errorf("Expected next attempt at %v, got %v", want, stored.NextAttemptAt)
	}

	// Not due yet
	if n, err := d.RunDue(context.Background()); err != nil || n != 0 {
		t.Errorf("Expected no due jobs, got %d (%v)", n, err)
	}

	c.Advance(time.Minute)
	if n, err := d.RunDue(context.Background()); err != nil || n != 1 {
		t.Fatalf("Expected one due job, got %d (%v)", n, err)
	}

	stored, _ = jobs.GetByID(context.Background(), job.ID)
	if stored.Status != entities.JobStatusDone || stored.Attempts != 2 {
		t.Errorf("Expected done after 2 attempts, got %s/%d", stored.Status, stored.Attempts)
	}
	if len(recorder.results) != 2 || recorder.results[0] != "retry" || recorder.results[1] != "done" {
		t.Errorf("Unexpected results %v", recorder.results)
	}
}

func TestDispatcher_DeadLetter(t *testing.T) {
	t.Run("max attempts", func(t *testing.T) {
		runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
			return errors.New("still broken")
		})
		d, jobs, _, c := newTestDispatcher(t, runner, Config{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Second})

		job := newTestJob()
		d.Schedule(job)
		d.Wait()
		for i := 0; i < 5; i++ {
			c.Advance(time.Second)
			if _, err := d.RunDue(context.Background()); err != nil {
				t.Fatalf("RunDue failed: %v", err)
			}
		}

		stored, _ := jobs.GetByID(context.Background(), job.ID)
		if stored.Status != entities.JobStatusDead || stored.Attempts != 3 {
			t.Errorf("Expected dead after 3 attempts, got %s/%d", stored.Status, stored.Attempts)
		}
	})

	t.Run("permanent", func(t *testing.T) {
		runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
			return Permanent(errors.New("message gone"))
		})
		d, jobs, recorder, _ := newTestDispatcher(t, runner, Config{})

		job := newTestJob()
		d.Schedule(job)
		d.Wait()

		stored, _ := jobs.GetByID(context.Background(), job.ID)
		if stored.Status != entities.JobStatusDead || stored.Attempts != 1 {
			t.Errorf("Expected dead after first attempt, got %s/%d", stored.Status, stored.Attempts)
		}
		if recorder.results[0] != "dead" {
			t.Errorf("Expected dead result, got %v", recorder.results)
		}
	})
}

func TestDispatcher_PanicIsRetried(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
		panic("boom")
	})
	d, jobs, _, _ := newTestDispatcher(t, runner, Config{})

	job := newTestJob()
	d.Schedule(job)
	d.Wait()

	stored, _ := jobs.GetByID(context.Background(), job.ID)
	if stored.Status != entities.JobStatusPending {
		t.Errorf("Expected pending job after panic, got %s", stored.Status)
	}
}

func TestDispatcher_RecoversAbandonedJob(t *testing.T) {
	done := make(chan struct{}, 1)
	runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
		done <- struct{}{}
		return nil
	})
	d, jobs, _, c := newTestDispatcher(t, runner, Config{Lease: time.Minute, JobTimeout: time.Second})

	// Claimed by a process that died
	job := newTestJob()
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := jobs.Claim(context.Background(), job.ID, c.Now(), time.Minute); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if n, _ := d.RunDue(context.Background()); n != 0 {
		t.Errorf("Expected leased job to be skipped, ran %d", n)
	}
	c.Advance(2 * time.Minute)
	if n, _ := d.RunDue(context.Background()); n != 1 {
		t.Errorf("Expected abandoned job to run, ran %d", n)
	}
	<-done
}

func TestDispatcher_Backoff(t *testing.T) {
	d := NewDispatcher(memory.NewFeedbackJobRepository(), nil, nil,
		Config{BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}, zaptest.NewLogger(t))

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{30, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := d.Backoff(tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestDispatcher_StopAndSweep(t *testing.T) {
	ran := make(chan primitive.ObjectID, 1)
	runner := funcRunner(func(ctx context.Context, job *entities.FeedbackJob) error {
		ran <- job.ID
		return nil
	})
	d, jobs, _, _ := newTestDispatcher(t, runner, Config{SweepInterval: 10 * time.Millisecond})

	job := newTestJob()
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	d.Start()
	select {
	case id := <-ran:
		if id != job.ID {
			t.Errorf("Expected job %s, got %s", job.ID.Hex(), id.Hex())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the sweeper to run the pending job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// Scheduling after stop drops the job without blocking
	d.Schedule(newTestJob())
	d.Wait()
}

func TestIsPermanent(t *testing.T) {
	if IsPermanent(errors.New("x")) {
		t.Error("Plain errors are not permanent")
	}
	wrapped := errors.Join(errors.New("ctx"), Permanent(errors.New("x")))
	if !IsPermanent(wrapped) {
		t.Error("Expected wrapped permanent error to be detected")
	}
	if Permanent(nil) != nil {
		t.Error("Expected Permanent(nil) to be nil")
	}
}
