// Package router decides which remote specialist analyzers must run for an
// analysis cycle. Routing is a pure function of the current scores: it
// performs no I/O and keeps no memory across calls, so every cycle
// re-evaluates from scratch.
package router

import (
	"fmt"

	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

// Mode selects between operator-forced full coverage and signal-driven
// analyzer selection.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeFull Mode = "full"
)

// Analyzer names one of the three remote specialists.
type Analyzer string

const (
	AnalyzerFatigue  Analyzer = "fatigue"
	AnalyzerRisk     Analyzer = "risk"
	AnalyzerTactical Analyzer = "tactical"
)

// Intent labels the dominant reason a cycle is running. It is purely for
// operator-facing explanation and never changes which analyzers run.
type Intent string

const (
	IntentFullCoverage     Intent = "full-coverage"
	IntentInjuryPrevention Intent = "injury-prevention"
	IntentNoBallControl    Intent = "no-ball-control"
	IntentPressureControl  Intent = "pressure-control"
	IntentAttack           Intent = "attack"
)

// Routing thresholds.
const (
	fatigueTrigger  = 6.0
	strainTrigger   = 5.5
	oversTrigger    = 3.0
	pressureTrigger = 6.5
)

// Signals is the numeric state the router reads. It is assembled from the
// workload scorer and pressure engine outputs plus recent match events.
type Signals struct {
	Fatigue            float64           `json:"fatigue"`
	Strain             float64           `json:"strain"`
	OversBowled        float64           `json:"overs_bowled"`
	InjuryRisk         workload.RiskBand `json:"injury_risk"`
	NoBallRisk         workload.RiskBand `json:"no_ball_risk"`
	NoBallTrendUp      bool              `json:"no_ball_trend_up"`
	RecentNoBallOrWide bool              `json:"recent_no_ball_or_wide"`
	Pressure           float64           `json:"pressure"`
}

// Decision is the ephemeral routing result for one analysis request.
type Decision struct {
	Intent      Intent     `json:"intent"`
	Selected    []Analyzer `json:"selected"`
	Rationale   string     `json:"rationale"`
	SignalsUsed []string   `json:"signals_used"`
}

// Includes reports whether the decision selected the given analyzer.
func (d Decision) Includes(a Analyzer) bool {
	for _, s := range d.Selected {
		if s == a {
			return true
		}
	}
	return false
}

// Route produces the analyzer plan for the current signals. The tactical
// analyzer is always selected; in full mode all three run unconditionally.
func Route(sig Signals, mode Mode) Decision {
	if mode == ModeFull {
		return Decision{
			Intent:      IntentFullCoverage,
			Selected:    []Analyzer{AnalyzerFatigue, AnalyzerRisk, AnalyzerTactical},
			Rationale:   "operator requested full coverage",
			SignalsUsed: []string{"mode"},
		}
	}

	var (
		selected []Analyzer
		used     []string
	)

	noBallElevated := sig.NoBallRisk == workload.RiskHigh || sig.NoBallRisk == workload.RiskMedium ||
		sig.NoBallTrendUp || sig.RecentNoBallOrWide
	injuryElevated := sig.InjuryRisk == workload.RiskHigh || sig.InjuryRisk == workload.RiskCritical
	pressureElevated := sig.Pressure >= pressureTrigger

	if sig.Fatigue >= fatigueTrigger || sig.Strain >= strainTrigger || sig.OversBowled >= oversTrigger {
		selected = append(selected, AnalyzerFatigue)
		used = append(used, "fatigue", "strain", "overs_bowled")
	}
	if noBallElevated || injuryElevated || pressureElevated {
		selected = append(selected, AnalyzerRisk)
		if noBallElevated {
			used = append(used, "no_ball_risk")
		}
		if injuryElevated {
			used = append(used, "injury_risk")
		}
		if pressureElevated {
			used = append(used, "pressure")
		}
	}
	selected = append(selected, AnalyzerTactical)

	intent := IntentAttack
	switch {
	case injuryElevated:
		intent = IntentInjuryPrevention
	case noBallElevated:
		intent = IntentNoBallControl
	case pressureElevated:
		intent = IntentPressureControl
	}

	return Decision{
		Intent:      intent,
		Selected:    selected,
		Rationale:   rationaleFor(intent, sig),
		SignalsUsed: used,
	}
}

func rationaleFor(intent Intent, sig Signals) string {
	switch intent {
	case IntentInjuryPrevention:
		return fmt.Sprintf("injury risk %s; protecting the bowler takes priority", sig.InjuryRisk)
	case IntentNoBallControl:
		return fmt.Sprintf("no-ball risk %s with recent discipline signals; tightening control", sig.NoBallRisk)
	case IntentPressureControl:
		return fmt.Sprintf("batting pressure %.1f above threshold; managing the chase", sig.Pressure)
	default:
		return "no elevated signals; looking for attacking options"
	}
}
