package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Start begins the background sweep for retries and abandoned jobs
func (d *Dispatcher) Start() {
	d.sweeper.Add(1)
	go d.sweepLoop()
	d.logger.Info("Feedback dispatcher started", zap.Duration("sweepInterval", d.config.SweepInterval))
}

// sweepLoop runs the sweep periodically
func (d *Dispatcher) sweepLoop() {
	defer d.sweeper.Done()

	ticker := time.NewTicker(d.config.SweepInterval)
	defer ticker.Stop()

	// Pick up jobs left behind by a previous process right away
	d.runSweep()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.runSweep()
		}
	}
}

// runSweep runs all due jobs
func (d *Dispatcher) runSweep() {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.SweepInterval*10)
	defer cancel()

	count, err := d.RunDue(ctx)
	if err != nil && d.ctx.Err() == nil {
		d.logger.Error("Feedback sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		d.logger.Info("Feedback sweep completed", zap.Int("jobs", count))
	}
}
