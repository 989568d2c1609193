// Package retention runs periodic cleanup: expired idempotency
// reservations are swept so abandoned keys do not accumulate.
package retention

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/turnpike-ai/turnpike/internal/log"
)

// Sweepable is anything with expired state to reclaim. Sweep returns the
// number of entries removed.
type Sweepable interface {
	Sweep() int
}

// Sweeper schedules periodic sweeps over its targets.
type Sweeper struct {
	cron    *cron.Cron
	targets []Sweepable
}

// NewSweeper creates a sweeper running the given cron schedule
// (e.g. "*/1 * * * *" for every minute).
func NewSweeper(schedule string, targets ...Sweepable) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		targets: targets,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	total := 0
	for _, t := range s.targets {
		total += t.Sweep()
	}
	if total > 0 {
		log.Debug("retention sweep", "removed", total)
	}
}

// Start begins running the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
