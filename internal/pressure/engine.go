// Package pressure maintains the smoothed 0-10 batting pressure index for
// each active batter. The index chases a target computed from match-situation
// stressors, but is rate-limited so a single ball can never produce a
// discontinuous jump in the displayed value.
package pressure

import (
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

const (
	// smoothingAlpha is the exponential factor by which the base level moves
	// toward the target on every update.
	smoothingAlpha = 0.18

	// eventDecay shrinks the event delta each time a ball is consumed.
	eventDecay = 0.85

	// Per-update displayed change caps. Rises are damped harder than falls
	// so a collapsing chase reads quickly but panic builds gradually.
	maxRisePerUpdate = 0.35
	maxFallPerUpdate = 0.8

	// Event delta bounds.
	minEventDelta = -3.5
	maxEventDelta = 2.5

	// pressureFloor is added to the weighted stressor sum before clamping.
	pressureFloor = 2.0

	dotBallPenalty = 0.1
	fourRelief     = 0.5
	sixRelief      = 0.8
)

// Inputs carries the match situation for one pressure update. Zero values
// are safe: an absent target or ball budget simply contributes no stress.
type Inputs struct {
	PlayerID        string
	Phase           workload.Phase
	RequiredRunRate float64
	CurrentRunRate  float64
	WicketsDown     int
	BallsRemaining  int
	BallsTotal      int
	TargetScore     float64
	ProjectedScore  float64

	// Active batter scoring snapshot.
	Runs       int
	BallsFaced int
	Fours      int
	Sixes      int

	// OversExhausted freezes the engine: the last valid value is held
	// instead of being recomputed from a dead target.
	OversExhausted bool
}

// EventSnapshot records the batter counters the engine last saw, so the next
// update can tell which scoring events happened in between.
type EventSnapshot struct {
	Runs       int `json:"runs"`
	BallsFaced int `json:"balls_faced"`
	Fours      int `json:"fours"`
	Sixes      int `json:"sixes"`
}

// State is the per-player pressure state. Owned exclusively by the Engine;
// callers treat it as a value.
type State struct {
	PlayerID   string        `json:"player_id"`
	BaseLevel  float64       `json:"base_level"`
	EventDelta float64       `json:"event_delta"`
	Displayed  float64       `json:"displayed"`
	LastEvent  EventSnapshot `json:"last_event"`
	Frozen     bool          `json:"frozen,omitempty"`
}

// Stressor weights. The first column is the early-innings coefficient set,
// the second the endgame set; Update blends them by the endgame factor
// clamp((30 - ballsRemaining)/30, 0, 1).
var stressWeights = struct {
	runRateGap    [2]float64
	chase         [2]float64
	wicketsDown   [2]float64
	strikeRateGap [2]float64
	behindProj    [2]float64
	ballsConsumed [2]float64
	phase         [2]float64
}{
	runRateGap:    [2]float64{4.0, 5.0},
	chase:         [2]float64{2.5, 3.5},
	wicketsDown:   [2]float64{1.5, 1.0},
	strikeRateGap: [2]float64{1.1, 0.8},
	behindProj:    [2]float64{1.0, 0.5},
	ballsConsumed: [2]float64{0.7, 1.5},
	phase:         [2]float64{0.4, 0.6},
}

// Target computes the raw (unsmoothed) pressure target for the situation.
// Each stress term is normalized to [0,1] before weighting; a floor of 2.0
// is added and the result clamped to [0,10].
func Target(in Inputs) float64 {
	endgame := workload.Clamp((30-float64(in.BallsRemaining))/30, 0, 1)
	w := func(pair [2]float64) float64 {
		return workload.Lerp(pair[0], pair[1], endgame)
	}

	runRateGap := in.RequiredRunRate - in.CurrentRunRate
	sum := w(stressWeights.runRateGap) * workload.Clamp(runRateGap/3, 0, 1)
	sum += w(stressWeights.chase) * workload.Clamp((in.RequiredRunRate-8)/4, 0, 1)
	sum += w(stressWeights.wicketsDown) * workload.Clamp(float64(in.WicketsDown)/10, 0, 1)
	sum += w(stressWeights.strikeRateGap) * strikeRateGapStress(in)
	if in.TargetScore > 0 {
		sum += w(stressWeights.behindProj) * workload.Clamp((in.TargetScore-in.ProjectedScore)/30, 0, 1)
	}
	if in.BallsTotal > 0 {
		consumed := 1 - float64(in.BallsRemaining)/float64(in.BallsTotal)
		sum += w(stressWeights.ballsConsumed) * workload.Clamp(consumed, 0, 1)
	}
	sum += w(stressWeights.phase) * phaseStress(in.Phase)

	return workload.Clamp(pressureFloor+sum, 0, 10)
}

func strikeRateGapStress(in Inputs) float64 {
	requiredSR := in.RequiredRunRate / 6 * 100
	currentSR := in.CurrentRunRate / 6 * 100
	if in.BallsFaced > 0 {
		currentSR = float64(in.Runs) / float64(in.BallsFaced) * 100
	}
	return workload.Clamp((requiredSR-currentSR)/100, 0, 1)
}

func phaseStress(p workload.Phase) float64 {
	switch p {
	case workload.PhaseDeath:
		return 1.0
	case workload.PhaseMiddle:
		return 0.5
	default:
		return 0.25
	}
}

// Update advances the pressure state for one scoring event or clock tick.
// prev may be nil for a batter the engine has not seen; the state then
// starts at the freshly computed target with no event delta.
func Update(prev *State, in Inputs) State {
	if in.OversExhausted {
		if prev != nil {
			held := *prev
			held.Frozen = true
			return held
		}
		target := Target(in)
		return State{
			PlayerID:  in.PlayerID,
			BaseLevel: target,
			Displayed: target,
			LastEvent: snapshotOf(in),
			Frozen:    true,
		}
	}

	target := Target(in)

	if prev == nil {
		return State{
			PlayerID:  in.PlayerID,
			BaseLevel: target,
			Displayed: workload.Clamp(target, 0, 10),
			LastEvent: snapshotOf(in),
		}
	}

	base := prev.BaseLevel + smoothingAlpha*(target-prev.BaseLevel)
	delta := applyEvents(prev.EventDelta, prev.LastEvent, in)

	raw := workload.Clamp(base+delta, 0, 10)
	step := workload.Clamp(raw-prev.Displayed, -maxFallPerUpdate, maxRisePerUpdate)
	displayed := workload.Clamp(prev.Displayed+step, 0, 10)

	// Back-derive the delta from the rate-limited value so that
	// displayed == clamp(base+delta) holds on the stored state. The stored
	// delta is this consistency residue, not the clamped event accumulator:
	// while displayed trails a fast-moving target it can sit outside the
	// event bounds, and re-clamping it here would break the equality. The
	// bounds are re-imposed on the event path by applyEvents on the next
	// update.
	delta = displayed - base

	return State{
		PlayerID:   in.PlayerID,
		BaseLevel:  base,
		EventDelta: delta,
		Displayed:  displayed,
		LastEvent:  snapshotOf(in),
	}
}

// applyEvents folds the scoring events since the last snapshot into the
// event delta: decay and dot-ball penalty per consumed ball, boundary relief
// per new four or six, scaled up when the chase is already behind.
func applyEvents(delta float64, last EventSnapshot, in Inputs) float64 {
	ballsConsumed := in.BallsFaced - last.BallsFaced
	runsAdded := in.Runs - last.Runs
	newFours := in.Fours - last.Fours
	newSixes := in.Sixes - last.Sixes

	for i := 0; i < ballsConsumed; i++ {
		delta *= eventDecay
	}
	if ballsConsumed > 0 && runsAdded <= 0 {
		delta += dotBallPenalty * float64(ballsConsumed)
	}

	if newFours > 0 || newSixes > 0 {
		runRateGap := in.RequiredRunRate - in.CurrentRunRate
		reliefScale := 1 + 0.5*workload.Clamp(runRateGap/6, 0, 1)
		delta -= fourRelief * reliefScale * float64(max(newFours, 0))
		delta -= sixRelief * reliefScale * float64(max(newSixes, 0))
	}

	return workload.Clamp(delta, minEventDelta, maxEventDelta)
}

func snapshotOf(in Inputs) EventSnapshot {
	return EventSnapshot{
		Runs:       in.Runs,
		BallsFaced: in.BallsFaced,
		Fours:      in.Fours,
		Sixes:      in.Sixes,
	}
}

// Engine keys pressure state by player id. It is not safe for concurrent use
// from multiple goroutines; callers serialize updates (the match-state actor
// is the only writer).
type Engine struct {
	states map[string]State
}

// NewEngine creates an empty pressure engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]State)}
}

// Update advances the state for the player named in the inputs and returns
// the new state. Switching the active batter never mutates another player's
// stored state.
func (e *Engine) Update(in Inputs) State {
	var prev *State
	if s, ok := e.states[in.PlayerID]; ok {
		prev = &s
	}
	next := Update(prev, in)
	e.states[in.PlayerID] = next
	return next
}

// State returns the stored state for a player, if any.
func (e *Engine) State(playerID string) (State, bool) {
	s, ok := e.states[playerID]
	return s, ok
}

// Displayed returns the pressure value to surface for a player. A player
// without prior state falls back to the freshly computed target.
func (e *Engine) Displayed(playerID string, in Inputs) float64 {
	if s, ok := e.states[playerID]; ok {
		return s.Displayed
	}
	return Target(in)
}

// Reset drops a player's state, e.g. when they leave the roster.
func (e *Engine) Reset(playerID string) {
	delete(e.states, playerID)
}
