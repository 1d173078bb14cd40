// Package scheduler runs the engine's periodic jobs: the match clock tick
// (bowler recovery, pressure re-smoothing) and the analyzer health probe.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/pitchsense/pitchsense-engine/internal/health"
	"github.com/pitchsense/pitchsense-engine/internal/matchstate"
)

// Scheduler manages the cron jobs around a live match.
type Scheduler struct {
	cron  *cron.Cron
	state *matchstate.State
	ring  *health.Ring
}

// New creates a scheduler over the match state and health ring.
func New(state *matchstate.State, ring *health.Ring, tickSpec, healthSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(),
		state: state,
		ring:  ring,
	}

	if _, err := s.cron.AddFunc(tickSpec, s.tick); err != nil {
		return nil, err
	}
	if ring != nil {
		if _, err := s.cron.AddFunc(healthSpec, ring.ProbeAsync); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tick() {
	s.state.Tick()
}
