//nolint:revive // types is a standard Go package name pattern
package types

// ATS category names
const (
	ScoreTechnicalSkills     = "technical_skills"
	ScoreSoftSkills          = "soft_skills"
	ScoreDomainKeywords      = "domain_keywords"
	ScoreSkillsRelevance     = "skills_relevance"
	ScoreExperienceAlignment = "experience_alignment"
	ScoreIndustryFit         = "industry_fit"
	ScoreRoleSeniority       = "role_seniority"
	ScoreTechnicalDepth      = "technical_depth"
)

// CategoryScore is one weighted component of an ATS score
type CategoryScore struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`        // 0-100
	Weight       float64 `json:"weight"`       // percentage points
	Contribution float64 `json:"contribution"` // score/100 * weight
	Available    bool    `json:"available"`
}

// RequirementBonus captures the essential/preferred adjustments on top of the weighted sum
type RequirementBonus struct {
	EssentialMatches int     `json:"essential_matches"`
	EssentialTotal   int     `json:"essential_total"`
	EssentialBonus   float64 `json:"essential_bonus"`
	EssentialPenalty float64 `json:"essential_penalty"`
	PreferredMatches int     `json:"preferred_matches"`
	PreferredTotal   int     `json:"preferred_total"`
	PreferredBonus   float64 `json:"preferred_bonus"`
}

// Net returns the bonus minus the penalty.
func (b RequirementBonus) Net() float64 {
	return b.EssentialBonus + b.PreferredBonus - b.EssentialPenalty
}

// ATSScoreBreakdown is the weighted ATS compatibility score
type ATSScoreBreakdown struct {
	Categories       []CategoryScore  `json:"categories"`
	RequirementBonus RequirementBonus `json:"requirement_bonus"`
	OverallScore     float64          `json:"overall_score"`
	Label            string           `json:"label"`
}

// Category returns the named category score, if present.
func (b *ATSScoreBreakdown) Category(name string) (CategoryScore, bool) {
	for _, c := range b.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategoryScore{}, false
}

// WeightedSum returns the sum of all category contributions.
func (b *ATSScoreBreakdown) WeightedSum() float64 {
	sum := 0.0
	for _, c := range b.Categories {
		sum += c.Contribution
	}
	return sum
}

// Clone returns a deep copy.
func (b *ATSScoreBreakdown) Clone() *ATSScoreBreakdown {
	if b == nil {
		return nil
	}
	out := *b
	out.Categories = make([]CategoryScore, len(b.Categories))
	copy(out.Categories, b.Categories)
	return &out
}

// RequirementOutcome pairs a requirement with whether the CV satisfies it
type RequirementOutcome struct {
	Requirement Requirement `json:"requirement"`
	Matched     bool        `json:"matched"`
}
