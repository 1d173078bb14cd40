// Package merge combines the possibly partial analyzer outputs with the
// locally derived scores into a single tactical recommendation. Merging is
// pure: the same raw results always produce the same recommendation.
package merge

import (
	"errors"
	"time"

	"github.com/pitchsense/pitchsense-engine/internal/analyzer"
	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/router"
)

// ErrNoUsableOutput is returned when every analyzer failed or came back
// empty. The merge fails outright rather than fabricating an empty
// recommendation.
var ErrNoUsableOutput = errors.New("no analyzer produced usable output")

// PartialWarning is the operator-facing notice attached to a partial merge.
const PartialWarning = "some signals unavailable; showing best available guidance"

// defaultAction is the generic safe fallback when an analyzer produced a
// report but no explicit next action.
const (
	defaultAction    = "Hold the current plan and reassess next over"
	defaultRationale = "specialist guidance was limited this cycle"
)

// RunStatus is the lifecycle state of one analyzer execution.
type RunStatus string

const (
	StatusRunning RunStatus = "RUNNING"
	StatusSuccess RunStatus = "SUCCESS"
	StatusSkipped RunStatus = "SKIPPED"
	StatusError   RunStatus = "ERROR"
)

// AgentRun tags one analyzer's execution status within a cycle.
type AgentRun struct {
	Analyzer router.Analyzer `json:"analyzer"`
	Status   RunStatus       `json:"status"`
	Reason   string          `json:"reason,omitempty"`
}

// RawResults is everything an analysis cycle gathered before merging.
type RawResults struct {
	RequestID string
	Decision  router.Decision
	Combined  *analyzer.CombinedResponse
	Tactical  *analyzer.TacticalResponse
	Runs      map[router.Analyzer]AgentRun
	Partial   bool
}

// SubstitutionSuggestion names a roster player the side should consider
// bringing on, and records which resolution stage produced it.
type SubstitutionSuggestion struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Source   string `json:"source"`
}

// Recommendation is the merged output of one completed analysis cycle.
// Immutable after creation; the next cycle replaces it wholesale.
type Recommendation struct {
	NextAction            string                  `json:"next_action"`
	Rationale             string                  `json:"rationale"`
	IfIgnored             string                  `json:"if_ignored,omitempty"`
	Alternatives          []string                `json:"alternatives,omitempty"`
	SuggestedSubstitution *SubstitutionSuggestion `json:"suggested_substitution,omitempty"`
	Warning               string                  `json:"warning,omitempty"`
	Partial               bool                    `json:"partial"`
	Intent                router.Intent           `json:"intent,omitempty"`
	RequestID             string                  `json:"request_id,omitempty"`
	Agents                []AgentRun              `json:"agents,omitempty"`
	GeneratedAt           time.Time               `json:"generated_at,omitempty"`
}

// Merge combines raw analyzer results into one recommendation. It fails with
// ErrNoUsableOutput when no analyzer produced anything actionable. The
// GeneratedAt stamp is left zero; the caller sets it once per cycle so that
// merging stays idempotent.
func Merge(raw RawResults, ros *roster.Roster, mode roster.TeamMode) (*Recommendation, error) {
	if !raw.Combined.HasUsableOutput() && !raw.Tactical.Usable() {
		return nil, ErrNoUsableOutput
	}

	rec := &Recommendation{
		NextAction: defaultAction,
		Rationale:  defaultRationale,
		Intent:     raw.Decision.Intent,
		RequestID:  raw.RequestID,
		Partial:    raw.Partial,
		Agents:     orderedRuns(raw.Runs),
	}

	// Prefer the combined decision, then the combined payload's tactical
	// slot, then the standalone tactical response.
	switch {
	case raw.Combined != nil && raw.Combined.CombinedDecision != nil && raw.Combined.CombinedDecision.NextAction != "":
		cd := raw.Combined.CombinedDecision
		rec.NextAction = cd.NextAction
		if cd.Rationale != "" {
			rec.Rationale = cd.Rationale
		}
		rec.IfIgnored = cd.IfIgnored
		rec.Alternatives = cd.Alternatives
	case raw.Combined != nil && raw.Combined.Tactical.Usable():
		applyTactical(rec, raw.Combined.Tactical)
	case raw.Tactical.Usable():
		applyTactical(rec, raw.Tactical)
	}

	if anyErrored(raw.Runs) {
		rec.Partial = true
	}
	if rec.Partial {
		rec.Warning = PartialWarning
	}

	rec.SuggestedSubstitution = resolveSubstitution(raw, ros, mode)
	return rec, nil
}

func applyTactical(rec *Recommendation, t *analyzer.TacticalResponse) {
	rec.NextAction = t.ImmediateAction
	if t.Rationale != "" {
		rec.Rationale = t.Rationale
	}
	rec.Alternatives = t.SuggestedAdjustments
}

func anyErrored(runs map[router.Analyzer]AgentRun) bool {
	for _, r := range runs {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}

// orderedRuns returns the agent runs in stable fatigue/risk/tactical order.
func orderedRuns(runs map[router.Analyzer]AgentRun) []AgentRun {
	if len(runs) == 0 {
		return nil
	}
	ordered := make([]AgentRun, 0, len(runs))
	for _, a := range []router.Analyzer{router.AnalyzerFatigue, router.AnalyzerRisk, router.AnalyzerTactical} {
		if r, ok := runs[a]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered
}
