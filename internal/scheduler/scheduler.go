// Package scheduler drives the background jobs named across the spec:
// monthly trust decay (§4.3), a nightly staleness sweep (§4.8), and the
// Layer-1 batch age ticker (§4.7), using robfig/cron/v3 the way the wider
// example pack's manifests declare it as a dependency for periodic jobs.
package scheduler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/chitinlabs/clawbuds-sub000/internal/layer1"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

// Scheduler owns the cron runtime and every registered background job. It
// respects a shutdown signal and lets an in-flight job finish before
// exiting (spec §5 Cancellation).
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
}

// New constructs a Scheduler. Jobs run with second-level precision disabled
// (standard 5-field cron expressions), matching typical background-job
// cadences.
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{cron: cron.New(), logger: logger}
}

// RegisterMonthlyTrustDecay schedules trust.Service.ApplyMonthlyDecay on
// the 1st of every month at 03:00.
func (s *Scheduler) RegisterMonthlyTrustDecay(trustSvc *trust.Service, decayFactor float64) error {
	_, err := s.cron.AddFunc("0 3 1 * *", func() {
		if err := trustSvc.ApplyMonthlyDecay(context.Background(), decayFactor); err != nil {
			s.logger.Printf("scheduler: monthly trust decay failed: %v", err)
		}
	})
	return err
}

// StalenessSweepFunc runs one full staleness analysis pass over every
// known Claw; supplied by the caller since it must enumerate owners via
// the Claws repository.
type StalenessSweepFunc func(ctx context.Context) error

// RegisterNightlyStalenessSweep schedules fn every night at 02:00.
func (s *Scheduler) RegisterNightlyStalenessSweep(fn StalenessSweepFunc) error {
	_, err := s.cron.AddFunc("0 2 * * *", func() {
		if err := fn(context.Background()); err != nil {
			s.logger.Printf("scheduler: nightly staleness sweep failed: %v", err)
		}
	})
	return err
}

// RegisterLayer1AgeTicker schedules the Layer-1 age-flush check every
// minute, catching batches whose oldest item has aged past maxWaitMs even
// without new arrivals to trigger the size-based flush.
func (s *Scheduler) RegisterLayer1AgeTicker(proc *layer1.Processor) error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		if err := proc.CheckAgeTrigger(context.Background()); err != nil {
			s.logger.Printf("scheduler: layer-1 age ticker failed: %v", err)
		}
	})
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop signals shutdown and blocks until any in-flight job finishes (spec
// §5: "Background jobs ... respect a shutdown signal and finish the
// in-flight batch, if any, before exiting").
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
