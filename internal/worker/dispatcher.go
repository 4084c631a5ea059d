// Package worker runs feedback jobs in the background. Jobs are persisted
// before they run, retried with exponential backoff and dead-lettered when
// they keep failing.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// Runner processes one attempt of a job
type Runner interface {
	Process(ctx context.Context, job *entities.FeedbackJob) error
}

// Recorder counts job results
type Recorder interface {
	RecordFeedbackJob(ctx context.Context, result string)
}

// Config configures retries and the sweeper
type Config struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	Lease         time.Duration
	SweepInterval time.Duration
	JobTimeout    time.Duration
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		BaseBackoff:   5 * time.Second,
		MaxBackoff:    5 * time.Minute,
		Lease:         3 * time.Minute,
		SweepInterval: 30 * time.Second,
		JobTimeout:    2 * time.Minute,
	}
}

// Dispatcher schedules and executes feedback jobs
type Dispatcher struct {
	jobs     repositories.FeedbackJobRepository
	runner   Runner
	recorder Recorder
	config   Config
	now      func() time.Time
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	stopChan chan struct{}
	sweeper  sync.WaitGroup
}

// NewDispatcher creates a new dispatcher. recorder may be nil.
func NewDispatcher(jobs repositories.FeedbackJobRepository, runner Runner, recorder Recorder, config Config, logger *zap.Logger) *Dispatcher {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
		logger.Info("Using default max attempts", zap.Int("maxAttempts", config.MaxAttempts))
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = defaults.BaseBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.Lease <= 0 {
		config.Lease = defaults.Lease
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.Lease < config.JobTimeout {
		// A lease shorter than a run would let the sweeper steal live jobs
		config.Lease = config.JobTimeout + 30*time.Second
		logger.Info("Extending job lease past job timeout", zap.Duration("lease", config.Lease))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:     jobs,
		runner:   runner,
		recorder: recorder,
		config:   config,
		now:      entities.Now,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

// Schedule persists the job and runs it in the background. It never blocks
// the caller.
func (d *Dispatcher) Schedule(job *entities.FeedbackJob) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.logger.Error("Dispatcher stopped, feedback job dropped",
			zap.String("jobID", job.ID.Hex()),
			zap.String("messageID", job.MessageID.Hex()))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
		err := d.jobs.Create(ctx, job)
		cancel()
		if err != nil {
			d.logger.Error("Failed to persist feedback job",
				zap.String("jobID", job.ID.Hex()),
				zap.String("messageID", job.MessageID.Hex()),
				zap.Error(err))
			return
		}

		d.execute(job.ID)
	}()
}

// execute claims a specific job and runs it if it is still claimable
func (d *Dispatcher) execute(id primitive.ObjectID) {
	claimed, err := d.jobs.Claim(d.ctx, id, d.now(), d.config.Lease)
	if err != nil {
		d.logger.Error("Failed to claim feedback job", zap.String("jobID", id.Hex()), zap.Error(err))
		return
	}
	if claimed == nil {
		return
	}
	d.run(claimed)
}

// RunDue claims and runs every job that is due now, one after another. It
// returns how many jobs were run.
func (d *Dispatcher) RunDue(ctx context.Context) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		job, err := d.jobs.ClaimNextDue(ctx, d.now(), d.config.Lease)
		if err != nil {
			return count, fmt.Errorf("failed to claim due job: %w", err)
		}
		if job == nil {
			return count, nil
		}
		d.run(job)
		count++
	}
}

func (d *Dispatcher) run(job *entities.FeedbackJob) {
	logger := d.logger.With(
		zap.String("jobID", job.ID.Hex()),
		zap.String("messageID", job.MessageID.Hex()),
		zap.Int("attempt", job.Attempts))

	ctx, cancel := context.WithTimeout(d.ctx, d.config.JobTimeout)
	err := d.process(ctx, job)
	cancel()

	// Bookkeeping must survive the job's own deadline
	ctx, cancel = context.WithTimeout(context.WithoutCancel(d.ctx), 10*time.Second)
	defer cancel()
	now := d.now()

	switch {
	case err == nil:
		if markErr := d.jobs.MarkDone(ctx, job.ID, now); markErr != nil {
			logger.Error("Failed to mark job done", zap.Error(markErr))
		}
		d.record(ctx, "done")
		logger.Info("Feedback job done")

	case IsPermanent(err) || job.Attempts >= d.config.MaxAttempts:
		if markErr := d.jobs.MarkDead(ctx, job.ID, err.Error(), now); markErr != nil {
			logger.Error("Failed to dead-letter job", zap.Error(markErr))
		}
		d.record(ctx, "dead")
		logger.Error("Feedback job dead-lettered",
			zap.Bool("permanent", IsPermanent(err)),
			zap.Error(err))

	default:
		next := now.Add(d.Backoff(job.Attempts))
		if markErr := d.jobs.Reschedule(ctx, job.ID, next, err.Error(), now); markErr != nil {
			// The lease expires eventually and the sweeper retries anyway
			logger.Error("Failed to reschedule job", zap.Error(markErr))
		}
		d.record(ctx, "retry")
		logger.Warn("Feedback job failed, will retry",
			zap.Time("nextAttemptAt", next),
			zap.Error(err))
	}
}

func (d *Dispatcher) process(ctx context.Context, job *entities.FeedbackJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feedback job panicked: %v", r)
		}
	}()
	return d.runner.Process(ctx, job)
}

func (d *Dispatcher) record(ctx context.Context, result string) {
	if d.recorder != nil {
		d.recorder.RecordFeedbackJob(ctx, result)
	}
}

// Backoff returns the delay before the next attempt after attempts tries
func (d *Dispatcher) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := d.config.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.config.MaxBackoff {
			return d.config.MaxBackoff
		}
	}
	return min(delay, d.config.MaxBackoff)
}

// Wait blocks until all scheduled jobs finished their current attempt
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Stop stops the sweeper and waits for in-flight jobs until ctx expires.
// Jobs still running then are cancelled; their leases let a later process
// pick them up again.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.stopChan)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.sweeper.Wait()
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("Feedback dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		return errors.Join(errors.New("feedback dispatcher stopped before jobs finished"), ctx.Err())
	}
}
