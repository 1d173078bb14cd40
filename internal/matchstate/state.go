// Package matchstate holds the live match: score, balls, phases, per-bowler
// workload counters and the per-batter pressure states. It is the single
// writer for all of that state; every mutation goes through the State
// methods under one lock, so scoring, ticks and request assembly never race.
package matchstate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pitchsense/pitchsense-engine/internal/analyzer"
	"github.com/pitchsense/pitchsense-engine/internal/baseline"
	"github.com/pitchsense/pitchsense-engine/internal/bus"
	"github.com/pitchsense/pitchsense-engine/internal/metrics"
	"github.com/pitchsense/pitchsense-engine/internal/orchestrator"
	"github.com/pitchsense/pitchsense-engine/internal/pressure"
	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/router"
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

var (
	ErrUnknownPlayer = errors.New("player not in roster")
	ErrInningsOver   = errors.New("innings is over")
)

// Workload tuning.
const (
	ballsPerOver    = 6
	overFatigueFast = 0.6
	overFatigueSlow = 0.4
	restTickRelief  = 0.25
	spellResetIdle  = 2 // overs without bowling before a spell resets

	// Discipline windows, in legal deliveries.
	recentExtraWindow = 6
	trendWindow       = 12
)

// Config fixes the innings parameters.
type Config struct {
	Format      workload.Format
	Innings     int
	BallsTotal  int
	TargetScore int // 0 in the first innings
}

// BallEvent is one delivery as reported by the scorer.
type BallEvent struct {
	BowlerID string `json:"bowler_id"`
	BatterID string `json:"batter_id"`
	Runs     int    `json:"runs"`
	Extras   int    `json:"extras"`
	Four     bool   `json:"four"`
	Six      bool   `json:"six"`
	Wicket   bool   `json:"wicket"`
	NoBall   bool   `json:"no_ball"`
	Wide     bool   `json:"wide"`
}

// bowlerState accumulates one bowler's workload across the innings.
type bowlerState struct {
	oversBowled   float64
	spellOvers    float64
	ballsThisOver int
	lastOverIdx   int
	fatigue       float64
	strain        float64
	control       float64
	speed         float64
	power         float64
	noBallBalls   []int // legal-ball indices of recent no-balls/wides
}

// batterState accumulates one batter's scoring counters.
type batterState struct {
	runs       int
	ballsFaced int
	fours      int
	sixes      int
}

// State is the live match actor.
type State struct {
	mu sync.Mutex

	cfg Config
	ros *roster.Roster
	eng *pressure.Engine
	bus *bus.Bus

	score       int
	wickets     int
	legalBalls  int
	completedOv int

	activeBatter string
	activeBowler string

	bowlers   map[string]*bowlerState
	batters   map[string]*batterState
	baselines map[string]baseline.Baseline

	lastExtraBall int // legal-ball index of the last no-ball/wide, -1 if none
}

// New creates the match actor for one innings.
func New(cfg Config, ros *roster.Roster, eng *pressure.Engine, b *bus.Bus) *State {
	if cfg.BallsTotal <= 0 {
		switch cfg.Format {
		case workload.FormatODI:
			cfg.BallsTotal = 300
		default:
			cfg.BallsTotal = 120
		}
	}
	return &State{
		cfg:           cfg,
		ros:           ros,
		eng:           eng,
		bus:           b,
		bowlers:       make(map[string]*bowlerState),
		batters:       make(map[string]*batterState),
		baselines:     make(map[string]baseline.Baseline),
		lastExtraBall: -1,
	}
}

// SeedBaseline registers a player's pre-match baseline.
func (s *State) SeedBaseline(b baseline.Baseline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[b.PlayerID] = b.Normalize()
}

// SetActiveBatter switches the batter under pressure tracking. The outgoing
// batter's pressure state is reset.
func (s *State) SetActiveBatter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ros.ByID(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if s.activeBatter != "" && s.activeBatter != id {
		s.eng.Reset(s.activeBatter)
		metrics.PressureGauge.DeleteLabelValues(s.activeBatter)
	}
	s.activeBatter = id
	if _, ok := s.batters[id]; !ok {
		s.batters[id] = &batterState{}
	}
	return nil
}

// ApplyBall records one delivery, updates the bowler's workload, and runs a
// pressure update for the active batter.
func (s *State) ApplyBall(ev BallEvent) (pressure.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.legalBalls >= s.cfg.BallsTotal {
		return pressure.State{}, ErrInningsOver
	}
	bowler, ok := s.ros.ByID(ev.BowlerID)
	if !ok || !bowler.Role.IsBowling() {
		return pressure.State{}, fmt.Errorf("%w: bowler %s", ErrUnknownPlayer, ev.BowlerID)
	}
	if _, ok := s.ros.ByID(ev.BatterID); !ok {
		return pressure.State{}, fmt.Errorf("%w: batter %s", ErrUnknownPlayer, ev.BatterID)
	}

	s.score += ev.Runs + ev.Extras
	if ev.Wicket {
		s.wickets++
	}

	bw := s.bowler(ev.BowlerID)
	s.activeBowler = ev.BowlerID
	legal := !ev.NoBall && !ev.Wide
	if ev.NoBall || ev.Wide {
		s.lastExtraBall = s.legalBalls
		bw.noBallBalls = append(bw.noBallBalls, s.legalBalls)
	}
	if legal {
		s.legalBalls++
		bw.ballsThisOver++
		if bw.ballsThisOver >= ballsPerOver {
			s.completeOver(bw)
		}
	}

	bt := s.batter(ev.BatterID)
	if legal {
		bt.ballsFaced++
	}
	bt.runs += ev.Runs
	if ev.Four {
		bt.fours++
	}
	if ev.Six {
		bt.sixes++
	}

	if s.activeBatter == "" {
		s.activeBatter = ev.BatterID
	}

	st := s.updatePressureLocked()
	if s.bus != nil {
		s.bus.Publish(bus.EventMatchEvent, ev)
	}
	return st, nil
}

// completeOver closes the bowler's current over and charges its fatigue
// cost. Bowlers idle for long enough get a fresh spell.
func (s *State) completeOver(bw *bowlerState) {
	s.completedOv++
	bw.ballsThisOver = 0
	bw.oversBowled++
	bw.spellOvers++
	bw.lastOverIdx = s.completedOv

	cost := overFatigueSlow
	if p, ok := s.ros.ByID(s.activeBowler); ok && p.Role == roster.RoleFastBowler {
		cost = overFatigueFast
	}
	bw.fatigue = workload.Clamp(bw.fatigue+cost, 0, 10)

	for id, other := range s.bowlers {
		if id != s.activeBowler && s.completedOv-other.lastOverIdx >= spellResetIdle {
			other.spellOvers = 0
		}
	}
}

// Tick is the periodic clock: bowlers recover a little, and the active
// batter's pressure is re-smoothed toward the current target.
func (s *State) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, bw := range s.bowlers {
		if id != s.activeBowler {
			bw.fatigue = workload.Clamp(bw.fatigue-restTickRelief, 0, 10)
		}
	}
	s.updatePressureLocked()
}

// UpdateTelemetry applies an out-of-band telemetry reading for a bowler.
func (s *State) UpdateTelemetry(playerID string, fatigue, strain, control, speed, power float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ros.ByID(playerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	bw := s.bowler(playerID)
	bw.fatigue = workload.Clamp(fatigue, 0, 10)
	bw.strain = workload.Clamp(strain, 0, 10)
	bw.control = workload.Clamp(control, 0, 100)
	bw.speed = workload.Clamp(speed, 0, 100)
	bw.power = workload.Clamp(power, 0, 100)

	if s.bus != nil {
		s.bus.Publish(bus.EventWorkloadUpdated, playerID)
	}
	return nil
}

// Snapshot assembles the normalized workload snapshot for a player.
func (s *State) Snapshot(playerID string) (workload.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(playerID)
}

func (s *State) snapshotLocked(playerID string) (workload.Snapshot, error) {
	p, ok := s.ros.ByID(playerID)
	if !ok {
		return workload.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	bw := s.bowler(playerID)
	bl := s.baselines[playerID]

	snap := workload.Snapshot{
		PlayerID:        playerID,
		Role:            p.Role,
		OversBowled:     bw.oversBowled,
		MaxOvers:        s.cfg.Format.MaxOvers(),
		SpellLength:     bw.spellOvers,
		Fatigue:         bw.fatigue,
		FatigueLimit:    bl.FatigueLimit,
		SleepHours:      bl.SleepHours,
		RecoveryMinutes: bl.RecoveryMinutes,
		Control:         bw.control,
		Speed:           bw.speed,
		Power:           bw.power,
		Phase:           s.phaseLocked(),
		Unfit:           p.Unfit,
	}
	return workload.Normalize(snap), nil
}

// Score runs the workload scorer for a player.
func (s *State) Score(playerID string) (workload.Snapshot, workload.RiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshotLocked(playerID)
	if err != nil {
		return workload.Snapshot{}, workload.RiskState{}, err
	}
	return snap, workload.Score(snap), nil
}

// Signals assembles the router signals for a focus bowler.
func (s *State) Signals(playerID string) (router.Signals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signalsLocked(playerID)
}

func (s *State) signalsLocked(playerID string) (router.Signals, error) {
	snap, err := s.snapshotLocked(playerID)
	if err != nil {
		return router.Signals{}, err
	}
	risk := workload.Score(snap)
	bw := s.bowler(playerID)

	return router.Signals{
		Fatigue:            snap.Fatigue,
		Strain:             bw.strain,
		OversBowled:        snap.OversBowled,
		InjuryRisk:         risk.InjuryRisk,
		NoBallRisk:         risk.NoBallRisk,
		NoBallTrendUp:      s.noBallTrendUp(bw),
		RecentNoBallOrWide: s.lastExtraBall >= 0 && s.legalBalls-s.lastExtraBall <= recentExtraWindow,
		Pressure:           s.displayedPressureLocked(),
	}, nil
}

// noBallTrendUp reports two or more no-balls/wides inside the trend window.
func (s *State) noBallTrendUp(bw *bowlerState) bool {
	count := 0
	for _, idx := range bw.noBallBalls {
		if s.legalBalls-idx <= trendWindow {
			count++
		}
	}
	return count >= 2
}

// MatchContext is the wire view of the current situation.
func (s *State) MatchContext() analyzer.MatchContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchContextLocked()
}

func (s *State) matchContextLocked() analyzer.MatchContext {
	return analyzer.MatchContext{
		Format:          s.cfg.Format,
		Phase:           s.phaseLocked(),
		Innings:         s.cfg.Innings,
		Score:           s.score,
		WicketsDown:     s.wickets,
		BallsRemaining:  s.cfg.BallsTotal - s.legalBalls,
		BallsTotal:      s.cfg.BallsTotal,
		TargetScore:     s.cfg.TargetScore,
		RequiredRunRate: s.requiredRunRateLocked(),
		CurrentRunRate:  s.currentRunRateLocked(),
	}
}

// BuildRequest assembles a full analysis request around the focus bowler.
func (s *State) BuildRequest(focusID, note string) (orchestrator.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshotLocked(focusID)
	if err != nil {
		return orchestrator.Request{}, err
	}
	sig, err := s.signalsLocked(focusID)
	if err != nil {
		return orchestrator.Request{}, err
	}

	var wire *analyzer.PlayerBaseline
	if bl, ok := s.baselines[focusID]; ok {
		wire = &analyzer.PlayerBaseline{
			PlayerID:        bl.PlayerID,
			FatigueLimit:    bl.FatigueLimit,
			RecoveryMinutes: bl.RecoveryMinutes,
			SleepHours:      bl.SleepHours,
			Role:            bl.Role,
		}
	}

	return orchestrator.Request{
		ContextNote: note,
		TeamMode:    roster.TeamModeBowling,
		FocusRole:   snap.Role,
		Telemetry: analyzer.TelemetrySummary{
			Workload: snap,
			Risk:     workload.Score(snap),
			Pressure: sig.Pressure,
		},
		MatchContext: s.matchContextLocked(),
		Baseline:     wire,
		Players:      s.ros.Players(),
		Signals:      sig,
	}, nil
}

// Pressure returns the active batter's current pressure state.
func (s *State) Pressure() pressure.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeBatter == "" {
		return pressure.State{}
	}
	st, _ := s.eng.State(s.activeBatter)
	return st
}

// displayedPressureLocked reads the batting pressure without mutating any
// pressure state. No active batter means no pressure signal.
func (s *State) displayedPressureLocked() float64 {
	if s.activeBatter == "" {
		return 0
	}
	return s.eng.Displayed(s.activeBatter, s.pressureInputsLocked())
}

func (s *State) updatePressureLocked() pressure.State {
	if s.activeBatter == "" {
		return pressure.State{}
	}
	st := s.eng.Update(s.pressureInputsLocked())
	metrics.PressureGauge.WithLabelValues(s.activeBatter).Set(st.Displayed)
	if s.bus != nil {
		s.bus.Publish(bus.EventPressureUpdated, st)
	}
	log.Debug().
		Str("player", s.activeBatter).
		Float64("displayed", st.Displayed).
		Msg("pressure updated")
	return st
}

func (s *State) pressureInputsLocked() pressure.Inputs {
	bt := s.batter(s.activeBatter)
	ballsRemaining := s.cfg.BallsTotal - s.legalBalls
	oversRemaining := float64(ballsRemaining) / ballsPerOver

	return pressure.Inputs{
		PlayerID:        s.activeBatter,
		Phase:           s.phaseLocked(),
		RequiredRunRate: s.requiredRunRateLocked(),
		CurrentRunRate:  s.currentRunRateLocked(),
		WicketsDown:     s.wickets,
		BallsRemaining:  ballsRemaining,
		BallsTotal:      s.cfg.BallsTotal,
		TargetScore:     float64(s.cfg.TargetScore),
		ProjectedScore:  float64(s.score) + s.currentRunRateLocked()*oversRemaining,
		Runs:            bt.runs,
		BallsFaced:      bt.ballsFaced,
		Fours:           bt.fours,
		Sixes:           bt.sixes,
		OversExhausted:  ballsRemaining <= 0,
	}
}

func (s *State) currentRunRateLocked() float64 {
	if s.legalBalls == 0 {
		return 0
	}
	return float64(s.score) / (float64(s.legalBalls) / ballsPerOver)
}

func (s *State) requiredRunRateLocked() float64 {
	if s.cfg.TargetScore <= 0 {
		return 0
	}
	remaining := s.cfg.BallsTotal - s.legalBalls
	if remaining <= 0 {
		return 0
	}
	need := float64(s.cfg.TargetScore - s.score)
	if need <= 0 {
		return 0
	}
	return need / (float64(remaining) / ballsPerOver)
}

// phaseLocked derives the innings phase from the ball count. The powerplay
// covers the opening fielding-restriction overs, the death the closing
// stretch; unlimited formats have no phases.
func (s *State) phaseLocked() workload.Phase {
	var ppBalls, deathFrom int
	switch s.cfg.Format {
	case workload.FormatT20:
		ppBalls, deathFrom = 36, 96 // overs 1-6 and 17-20
	case workload.FormatODI:
		ppBalls, deathFrom = 60, 240 // overs 1-10 and 41-50
	default:
		return workload.PhaseMiddle
	}
	switch {
	case s.legalBalls < ppBalls:
		return workload.PhasePowerplay
	case s.legalBalls >= deathFrom:
		return workload.PhaseDeath
	default:
		return workload.PhaseMiddle
	}
}

func (s *State) bowler(id string) *bowlerState {
	bw, ok := s.bowlers[id]
	if !ok {
		bw = &bowlerState{lastOverIdx: s.completedOv}
		s.bowlers[id] = bw
	}
	return bw
}

func (s *State) batter(id string) *batterState {
	bt, ok := s.batters[id]
	if !ok {
		bt = &batterState{}
		s.batters[id] = bt
	}
	return bt
}
