// Package baseline persists per-player fitness baselines: the durable copy
// lives in SQLite and a Redis cache fronts it for hot lookups during live
// play. Lookups are cache-aside; writes go through to both tiers.
package baseline

import (
	"context"
	"errors"
	"time"

	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

// ErrNotFound is returned when no baseline exists for the player.
var ErrNotFound = errors.New("baseline not found")

// Baseline is a player's pre-match fitness record. It seeds the workload
// snapshot before any live telemetry arrives.
type Baseline struct {
	PlayerID        string      `json:"player_id"`
	Role            roster.Role `json:"role"`
	FatigueLimit    float64     `json:"fatigue_limit"`
	SleepHours      float64     `json:"sleep_hours"`
	RecoveryMinutes float64     `json:"recovery_minutes"`
	Fit             bool        `json:"fit"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Normalize clamps the stored values into the ranges the scorer expects.
// Stored data can predate a range change, so clamping happens on read too.
func (b Baseline) Normalize() Baseline {
	b.SleepHours = workload.Clamp(b.SleepHours, 0, 12)
	b.RecoveryMinutes = workload.Clamp(b.RecoveryMinutes, 0, 240)
	b.FatigueLimit = workload.Clamp(b.FatigueLimit, 0, 10)
	return b
}

// Store is the persistence contract for baselines.
type Store interface {
	Get(ctx context.Context, playerID string) (Baseline, error)
	Put(ctx context.Context, b Baseline) error
	List(ctx context.Context) ([]Baseline, error)
	Close() error
}
