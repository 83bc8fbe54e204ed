package matching

import (
	"github.com/jonathan/ats-analyzer/internal/types"
)

// Compare matches every JD requirement against the CV skills of the same
// category. An exact candidate beats a partial one; among equals the first CV
// skill wins. The result is consolidated and tagged as a local fallback.
func Compare(cv, jd types.SkillSet) *types.ComparisonResult {
	result := &types.ComparisonResult{
		Source: types.SourceLocalFallback,
	}

	for _, cat := range types.Categories {
		cvSkills := cv.Get(cat)
		matches := make([]types.MatchRecord, 0)
		missing := make([]types.MissingRecord, 0)

		for _, req := range jd.Get(cat) {
			best, kind := bestCandidate(cvSkills, req)
			if kind == kindNone {
				missing = append(missing, types.MissingRecord{
					Requirement: req,
					Reasoning:   "no CV skill matches by name, containment or abbreviation",
				})
				continue
			}
			matchType, _ := Match(best, req)
			matches = append(matches, types.MatchRecord{
				Requirement: req,
				CVSkill:     best,
				MatchType:   matchType,
				Reasoning:   reasonFor(kind, best, req),
			})
		}

		result.Matched.Set(cat, Consolidate(matches))
		result.Missing.Set(cat, missing)
	}

	result.Recompute(nil)
	return result
}

// bestCandidate returns the CV skill that best satisfies req
func bestCandidate(cvSkills []string, req string) (string, matchKind) {
	best := ""
	bestKind := kindNone
	for _, skill := range cvSkills {
		kind := classify(skill, req)
		if kind == kindExact {
			return skill, kind
		}
		if kind != kindNone && bestKind == kindNone {
			best, bestKind = skill, kind
		}
	}
	return best, bestKind
}
