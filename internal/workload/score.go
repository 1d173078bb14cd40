// Package workload converts bowler telemetry and baselines into fatigue,
// load-ratio, and risk indices. Everything in this package is a pure
// function of a normalized Snapshot; nothing here performs I/O or keeps
// state between calls.
package workload

import (
	"math"

	"github.com/pitchsense/pitchsense-engine/internal/roster"
)

// Format identifies the match format; it caps the overs a bowler may bowl.
type Format string

const (
	FormatT20       Format = "t20"
	FormatODI       Format = "odi"
	FormatUnlimited Format = "unlimited"
)

// MaxOvers returns the per-bowler over cap for the format. Unlimited
// formats have no cap, reported as 0; the value must stay finite because
// snapshots carrying it are JSON-encoded on the analyzer wire.
func (f Format) MaxOvers() float64 {
	switch f {
	case FormatT20:
		return 4
	case FormatODI:
		return 10
	default:
		return 0
	}
}

// Phase is the stage of the innings.
type Phase string

const (
	PhasePowerplay Phase = "powerplay"
	PhaseMiddle    Phase = "middle"
	PhaseDeath     Phase = "death"
)

// Status bands the load ratio against the player's tolerance.
type Status string

const (
	StatusWithinSafeRange  Status = "WITHIN_SAFE_RANGE"
	StatusApproachingLimit Status = "APPROACHING_LIMIT"
	StatusExceededLimit    Status = "EXCEEDED_LIMIT"
)

// RiskBand is a coarse risk label derived from a 1-3 score.
type RiskBand string

const (
	RiskLow      RiskBand = "Low"
	RiskMedium   RiskBand = "Medium"
	RiskHigh     RiskBand = "High"
	RiskCritical RiskBand = "Critical"
)

// Snapshot is the normalized view of a bowler's current workload. It is
// derived, never persisted: callers rebuild it from telemetry and the
// player's baseline on every workload-affecting action.
type Snapshot struct {
	PlayerID        string      `json:"player_id"`
	Role            roster.Role `json:"role"`
	OversBowled     float64     `json:"overs_bowled"`
	MaxOvers        float64     `json:"max_overs"` // 0 means uncapped
	SpellLength     float64     `json:"spell_length"`
	Fatigue         float64     `json:"fatigue"`       // 0-10
	FatigueLimit    float64     `json:"fatigue_limit"` // 0-10, from baseline
	SleepHours      float64     `json:"sleep_hours"`
	RecoveryMinutes float64     `json:"recovery_minutes"`
	Control         float64     `json:"control"` // 0-100
	Speed           float64     `json:"speed"`   // 0-100
	Power           float64     `json:"power"`   // 0-100
	Phase           Phase       `json:"phase"`
	Unfit           bool        `json:"unfit,omitempty"`
}

// Normalize is the single normalization boundary for workload input. Every
// numeric field is clamped to its legal range so malformed telemetry never
// propagates NaN or out-of-range values downstream. NaN collapses to the
// lower bound.
func Normalize(s Snapshot) Snapshot {
	if s.MaxOvers < 0 || math.IsNaN(s.MaxOvers) || math.IsInf(s.MaxOvers, 0) {
		s.MaxOvers = 0
	}
	overCap := s.MaxOvers
	if overCap == 0 {
		overCap = math.MaxFloat64
	}
	s.OversBowled = clampNaN(s.OversBowled, 0, overCap)
	s.SpellLength = clampNaN(s.SpellLength, 0, overCap)
	s.Fatigue = clampNaN(s.Fatigue, 0, 10)
	s.FatigueLimit = clampNaN(s.FatigueLimit, 0, 10)
	s.SleepHours = clampNaN(s.SleepHours, 0, 12)
	s.RecoveryMinutes = clampNaN(s.RecoveryMinutes, 0, 240)
	s.Control = clampNaN(s.Control, 0, 100)
	s.Speed = clampNaN(s.Speed, 0, 100)
	s.Power = clampNaN(s.Power, 0, 100)
	if s.Phase == "" {
		s.Phase = PhaseMiddle
	}
	if s.Unfit {
		// A manual unfit override is deterministic: max fatigue, no formula.
		s.Fatigue = 10
	}
	return s
}

func clampNaN(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return Clamp(v, lo, hi)
}

// RiskState is the derived risk view of a Snapshot. It is recomputed from
// the snapshot on demand and never stored independently.
type RiskState struct {
	LoadRatio  float64  `json:"load_ratio"`
	Status     Status   `json:"status"`
	InjuryRisk RiskBand `json:"injury_risk"`
	NoBallRisk RiskBand `json:"no_ball_risk"`
}

// Score derives the risk state for a workload snapshot. The input is
// normalized first, so callers may pass raw telemetry.
func Score(s Snapshot) RiskState {
	s = Normalize(s)

	ratio := s.Fatigue / math.Max(1, s.FatigueLimit)

	status := StatusWithinSafeRange
	switch {
	case ratio > 1.0:
		status = StatusExceededLimit
	case ratio > 0.85:
		status = StatusApproachingLimit
	}

	return RiskState{
		LoadRatio:  ratio,
		Status:     status,
		InjuryRisk: injuryRisk(s, ratio),
		NoBallRisk: noBallRisk(s),
	}
}

// injuryRisk scores 1-3 and maps to a band. The unfit override bypasses the
// formula entirely.
func injuryRisk(s Snapshot, ratio float64) RiskBand {
	if s.Unfit {
		return RiskCritical
	}

	score := 1
	if ratio > 1.0 {
		score = 3
	} else if ratio > 0.7 {
		score = 2
	}
	if s.SpellLength >= 3 {
		score++
	}
	if s.Role == roster.RoleFastBowler {
		score++
	}
	if poorRecovery(s) {
		score++
	}
	if goodRecovery(s) {
		score--
	}
	return bandFromScore(ClampInt(score, 1, 3))
}

// noBallRisk scores 1-3 from fatigue, spell length, and innings phase.
func noBallRisk(s Snapshot) RiskBand {
	score := 1
	if s.Fatigue > 7 {
		score = 3
	} else if s.Fatigue >= 5 {
		score = 2
	}
	if s.SpellLength >= 3 {
		score++
	}
	if s.Phase == PhasePowerplay || s.Phase == PhaseDeath {
		score++
	}
	return bandFromScore(ClampInt(score, 1, 3))
}

func bandFromScore(score int) RiskBand {
	switch score {
	case 3:
		return RiskHigh
	case 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

func poorRecovery(s Snapshot) bool {
	return s.SleepHours < 5 || s.RecoveryMinutes < 20
}

func goodRecovery(s Snapshot) bool {
	return s.SleepHours >= 8 && s.RecoveryMinutes >= 120
}
