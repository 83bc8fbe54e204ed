package ats

import (
	"github.com/jonathan/ats-analyzer/internal/types"
)

var categoryScoreNames = map[types.Category]string{
	types.CategoryTechnical: types.ScoreTechnicalSkills,
	types.CategorySoft:      types.ScoreSoftSkills,
	types.CategoryDomain:    types.ScoreDomainKeywords,
}

// CategoryRates derives the skill-based rates from a comparison: one rate per
// skill category that has requirements, plus skills_relevance from the
// overall match percentage.
func CategoryRates(cmp *types.ComparisonResult) map[string]float64 {
	rates := make(map[string]float64)
	if cmp == nil {
		return rates
	}
	for _, cat := range types.Categories {
		if rate, ok := cmp.CategoryRate(cat); ok {
			rates[categoryScoreNames[cat]] = rate
		}
	}
	if cmp.Summary.TotalRequirements > 0 {
		rates[types.ScoreSkillsRelevance] = cmp.Summary.MatchPercentage
	}
	return rates
}

// MergeRates adds the entries of extra that local does not already define.
func MergeRates(local, extra map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(local)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

// Outcomes pairs each requirement with whether the comparison covers it.
func Outcomes(reqs []types.Requirement, cmp *types.ComparisonResult) []types.RequirementOutcome {
	covered := make(map[types.Category]map[string]bool)
	if cmp != nil {
		for _, cat := range types.Categories {
			covered[cat] = cmp.MatchedRequirements(cat)
		}
	}

	out := make([]types.RequirementOutcome, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, types.RequirementOutcome{
			Requirement: r,
			Matched:     covered[r.Category][types.SkillKey(r.Skill)],
		})
	}
	return out
}
