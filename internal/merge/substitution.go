package merge

import (
	"github.com/pitchsense/pitchsense-engine/internal/roster"
)

// resolveSubstitution derives a best-effort substitution suggestion when the
// analyzers did not name one explicitly. Candidates are tried in a fixed
// preference order; each must resolve to a roster player eligible for the
// current team mode or it is discarded and the next is tried. The final
// free-text scan is a documented heuristic, bounded to roster names, not a
// primary contract.
func resolveSubstitution(raw RawResults, ros *roster.Roster, mode roster.TeamMode) *SubstitutionSuggestion {
	if ros == nil || ros.Len() == 0 {
		return nil
	}

	type candidate struct {
		text   string
		source string
	}
	var candidates []candidate
	add := func(text, source string) {
		if text != "" {
			candidates = append(candidates, candidate{text: text, source: source})
		}
	}

	if raw.Combined != nil {
		if cd := raw.Combined.CombinedDecision; cd != nil {
			add(cd.RecommendedSubstitute, "recommended-substitute")
			add(cd.RotationSuggestion, "rotation-suggestion")
		}
		if fr := raw.Combined.FinalRecommendation; fr != nil {
			if mode == roster.TeamModeBowling {
				add(fr.BowlingChange, "final-decision")
			} else {
				add(fr.BattingChange, "final-decision")
			}
			add(fr.Decision, "final-decision")
		}
		if raw.Combined.Tactical != nil {
			add(raw.Combined.Tactical.SubstitutionAdvice, "tactical-advice")
		}
	}
	if raw.Tactical != nil {
		add(raw.Tactical.SubstitutionAdvice, "tactical-advice")
	}

	for _, c := range candidates {
		if p, ok := ros.Resolve(c.text); ok && p.EligibleFor(mode) {
			return &SubstitutionSuggestion{PlayerID: p.ID, Name: p.Name, Source: c.source}
		}
	}

	// Last resort: scan free text for a roster name, longest first.
	for _, text := range freeTexts(raw) {
		if p, ok := ros.FindMentioned(text); ok && p.EligibleFor(mode) {
			return &SubstitutionSuggestion{PlayerID: p.ID, Name: p.Name, Source: "free-text-scan"}
		}
	}
	return nil
}

func freeTexts(raw RawResults) []string {
	var texts []string
	if raw.Combined != nil {
		if cd := raw.Combined.CombinedDecision; cd != nil {
			texts = append(texts, cd.NextAction, cd.Rationale)
		}
		if raw.Combined.Tactical != nil {
			texts = append(texts, raw.Combined.Tactical.ImmediateAction, raw.Combined.Tactical.Rationale)
		}
	}
	if raw.Tactical != nil {
		texts = append(texts, raw.Tactical.ImmediateAction, raw.Tactical.Rationale)
	}
	return texts
}
