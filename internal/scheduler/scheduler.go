// Package scheduler drives the periodic analysis cycles.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CycleRunner runs one analysis cycle for a wallet. Implemented by the
// agent service.
type CycleRunner interface {
	RunAnalysisCycle(ctx context.Context, wallet string) error
}

// Scheduler triggers analysis cycles on a cron schedule. Wallets run
// sequentially within one tick; the per-wallet session locks make
// overlapping ticks safe regardless.
type Scheduler struct {
	cron    *cron.Cron
	runner  CycleRunner
	wallets []string
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a new scheduler
func New(runner CycleRunner, wallets []string, cycleTimeout time.Duration, log zerolog.Logger) *Scheduler {
	if cycleTimeout <= 0 {
		cycleTimeout = 10 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		wallets: wallets,
		timeout: cycleTimeout,
		log:     log.With().Str("service", "scheduler").Logger(),
	}
}

// Schedule registers the analysis cycle under the given cron spec
// (six-field, with seconds).
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runCycles)
	if err != nil {
		return err
	}
	s.log.Info().Str("spec", spec).Int("wallets", len(s.wallets)).Msg("Scheduled analysis cycles")
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runCycles() {
	for _, wallet := range s.wallets {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		start := time.Now()

		if err := s.runner.RunAnalysisCycle(ctx, wallet); err != nil {
			s.log.Error().Err(err).Str("wallet", wallet).Msg("Analysis cycle failed")
		} else {
			s.log.Debug().
				Str("wallet", wallet).
				Dur("took", time.Since(start)).
				Msg("Analysis cycle finished")
		}
		cancel()
	}
}
