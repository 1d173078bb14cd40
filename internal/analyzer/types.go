// Package analyzer is the typed HTTP client for the remote specialist
// analyzers (fatigue, risk, tactical). It owns the request/response wire
// contracts and the error taxonomy the orchestrator's fallback cascade is
// built on. Transport details (base URL, auth) are configuration.
package analyzer

import (
	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/router"
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

// MatchContext is the wire view of the live match situation.
type MatchContext struct {
	Format          workload.Format `json:"format"`
	Phase           workload.Phase  `json:"phase"`
	Innings         int             `json:"innings"`
	Score           int             `json:"score"`
	WicketsDown     int             `json:"wicketsDown"`
	BallsRemaining  int             `json:"ballsRemaining"`
	BallsTotal      int             `json:"ballsTotal"`
	TargetScore     int             `json:"targetScore,omitempty"`
	RequiredRunRate float64         `json:"requiredRunRate,omitempty"`
	CurrentRunRate  float64         `json:"currentRunRate"`
}

// TelemetrySummary bundles the locally derived scores sent to the analyzers.
type TelemetrySummary struct {
	Workload workload.Snapshot  `json:"workload"`
	Risk     workload.RiskState `json:"risk"`
	Pressure float64            `json:"pressure"`
}

// PlayerBaseline is the wire view of a player's baseline record.
type PlayerBaseline struct {
	PlayerID        string      `json:"playerId"`
	FatigueLimit    float64     `json:"fatigueLimit"`
	RecoveryMinutes float64     `json:"recoveryMinutes"`
	SleepHours      float64     `json:"sleepHours"`
	Role            roster.Role `json:"role"`
}

// AnalysisRequest is the request body for POST /orchestrate and
// POST /analysis/full (the latter with Mode set to "full").
type AnalysisRequest struct {
	RequestID    string           `json:"requestId"`
	Context      string           `json:"context"`
	Mode         string           `json:"mode,omitempty"`
	TeamMode     roster.TeamMode  `json:"teamMode"`
	FocusRole    roster.Role      `json:"focusRole"`
	Telemetry    TelemetrySummary `json:"telemetry"`
	MatchContext MatchContext     `json:"matchContext"`
	Baseline     *PlayerBaseline  `json:"baseline,omitempty"`
	Players      []roster.Player  `json:"players"`
	Router       *router.Decision `json:"routerDecision,omitempty"`
}

// TacticalRequest is the narrow request for POST /agents/tactical, the
// last-resort fallback path.
type TacticalRequest struct {
	RequestID    string           `json:"requestId"`
	TeamMode     roster.TeamMode  `json:"teamMode"`
	FocusRole    roster.Role      `json:"focusRole"`
	Telemetry    TelemetrySummary `json:"telemetry"`
	MatchContext MatchContext     `json:"matchContext"`
	Players      []roster.Player  `json:"players"`
}

// TacticalResponse is the tactical analyzer's own output shape.
type TacticalResponse struct {
	ImmediateAction      string   `json:"immediateAction"`
	Rationale            string   `json:"rationale"`
	SuggestedAdjustments []string `json:"suggestedAdjustments,omitempty"`
	SubstitutionAdvice   string   `json:"substitutionAdvice,omitempty"`
	Confidence           float64  `json:"confidence"`
	KeySignalsUsed       []string `json:"keySignalsUsed,omitempty"`
}

// Usable reports whether the response carries an actionable signal.
func (t *TacticalResponse) Usable() bool {
	return t != nil && t.ImmediateAction != ""
}

// AgentReport is the payload returned by the fatigue and risk specialists.
type AgentReport struct {
	Summary  string `json:"summary"`
	Advice   string `json:"advice,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// CombinedDecision is the merged decision block of the combined endpoints.
type CombinedDecision struct {
	NextAction            string   `json:"nextAction"`
	Rationale             string   `json:"rationale,omitempty"`
	IfIgnored             string   `json:"ifIgnored,omitempty"`
	Alternatives          []string `json:"alternatives,omitempty"`
	RecommendedSubstitute string   `json:"recommendedSubstitute,omitempty"`
	RotationSuggestion    string   `json:"rotationSuggestion,omitempty"`
}

// FinalRecommendation carries the role-specific closing call.
type FinalRecommendation struct {
	Decision      string `json:"decision,omitempty"`
	BowlingChange string `json:"bowlingChange,omitempty"`
	BattingChange string `json:"battingChange,omitempty"`
}

// Meta reports which agents the remote orchestrator actually executed.
type Meta struct {
	ExecutedAgents     []string `json:"executedAgents"`
	UsedFallbackAgents []string `json:"usedFallbackAgents,omitempty"`
}

// CombinedResponse is the response body of POST /orchestrate and
// POST /analysis/full.
type CombinedResponse struct {
	Fatigue             *AgentReport         `json:"fatigue,omitempty"`
	Risk                *AgentReport         `json:"risk,omitempty"`
	Tactical            *TacticalResponse    `json:"tactical,omitempty"`
	StrategicAnalysis   string               `json:"strategicAnalysis,omitempty"`
	CombinedDecision    *CombinedDecision    `json:"combinedDecision,omitempty"`
	FinalRecommendation *FinalRecommendation `json:"finalRecommendation,omitempty"`
	Router              *router.Decision     `json:"routerDecision,omitempty"`
	Meta                Meta                 `json:"meta"`
	Errors              []string             `json:"errors,omitempty"`

	// Partial is derived from an HTTP 207 status, not from the body.
	Partial bool `json:"-"`
}

// HasUsableOutput reports whether at least one analyzer produced something
// the merger can act on.
func (r *CombinedResponse) HasUsableOutput() bool {
	if r == nil {
		return false
	}
	if r.CombinedDecision != nil && r.CombinedDecision.NextAction != "" {
		return true
	}
	if r.Tactical.Usable() {
		return true
	}
	return r.Fatigue != nil || r.Risk != nil
}

// TacticalExecuted reports whether the remote orchestrator ran the tactical
// agent and returned usable tactical output.
func (r *CombinedResponse) TacticalExecuted() bool {
	if r == nil {
		return false
	}
	if r.Tactical.Usable() {
		return true
	}
	if r.CombinedDecision != nil && r.CombinedDecision.NextAction != "" {
		for _, a := range r.Meta.ExecutedAgents {
			if a == string(router.AnalyzerTactical) {
				return true
			}
		}
	}
	return false
}

// HealthResponse is the liveness probe response.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
