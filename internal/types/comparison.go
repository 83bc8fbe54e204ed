//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// MatchType classifies how a CV skill satisfies a requirement
type MatchType string

// MatchType constants, strongest first
const (
	MatchExact    MatchType = "exact"
	MatchSemantic MatchType = "semantic"
	MatchPartial  MatchType = "partial"
)

// Rank orders match types; higher is stronger.
func (m MatchType) Rank() int {
	switch m {
	case MatchExact:
		return 3
	case MatchSemantic:
		return 2
	case MatchPartial:
		return 1
	default:
		return 0
	}
}

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	return m.Rank() > 0
}

// Criticality marks a requirement as must-have or nice-to-have
type Criticality string

// Criticality constants
const (
	CriticalityEssential Criticality = "essential"
	CriticalityPreferred Criticality = "preferred"
)

// ParseCriticality maps wire values onto a Criticality. Unknown and empty
// values decode as preferred.
func ParseCriticality(s string) Criticality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "essential", "critical", "required", "must_have", "must-have":
		return CriticalityEssential
	default:
		return CriticalityPreferred
	}
}

// Requirement is a single JD requirement, immutable once extracted
type Requirement struct {
	Skill       string      `json:"skill"`
	Category    Category    `json:"category"`
	Criticality Criticality `json:"criticality"`
}

// IsEssential reports whether the requirement is must-have.
func (r Requirement) IsEssential() bool {
	return r.Criticality == CriticalityEssential
}

// MatchRecord credits one CV skill against one or more JD requirements.
// Covers lists every requirement the CV skill satisfies; a raw record covers
// only Requirement.
type MatchRecord struct {
	Requirement string    `json:"requirement"`
	CVSkill     string    `json:"cv_skill"`
	MatchType   MatchType `json:"match_type"`
	Reasoning   string    `json:"reasoning"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Covers      []string  `json:"covers,omitempty"`
}

// CoveredRequirements returns Covers, or the single Requirement for raw records.
func (m MatchRecord) CoveredRequirements() []string {
	if len(m.Covers) > 0 {
		return cloneStrings(m.Covers)
	}
	if m.Requirement == "" {
		return nil
	}
	return []string{m.Requirement}
}

// MissingRecord is a JD requirement no CV skill satisfies
type MissingRecord struct {
	Requirement string `json:"requirement"`
	Reasoning   string `json:"reasoning"`
}

// CategoryMatches holds matched records per category
type CategoryMatches struct {
	Technical []MatchRecord `json:"technical"`
	Soft      []MatchRecord `json:"soft"`
	Domain    []MatchRecord `json:"domain"`
}

// Get returns the records for a category.
func (c *CategoryMatches) Get(cat Category) []MatchRecord {
	switch cat {
	case CategoryTechnical:
		return c.Technical
	case CategorySoft:
		return c.Soft
	case CategoryDomain:
		return c.Domain
	default:
		return nil
	}
}

// Set replaces the records for a category.
func (c *CategoryMatches) Set(cat Category, records []MatchRecord) {
	switch cat {
	case CategoryTechnical:
		c.Technical = records
	case CategorySoft:
		c.Soft = records
	case CategoryDomain:
		c.Domain = records
	}
}

// Count returns the number of records across all categories.
func (c *CategoryMatches) Count() int {
	return len(c.Technical) + len(c.Soft) + len(c.Domain)
}

// CategoryMissing holds missing records per category
type CategoryMissing struct {
	Technical []MissingRecord `json:"technical"`
	Soft      []MissingRecord `json:"soft"`
	Domain    []MissingRecord `json:"domain"`
}

// Get returns the records for a category.
func (c *CategoryMissing) Get(cat Category) []MissingRecord {
	switch cat {
	case CategoryTechnical:
		return c.Technical
	case CategorySoft:
		return c.Soft
	case CategoryDomain:
		return c.Domain
	default:
		return nil
	}
}

// Set replaces the records for a category.
func (c *CategoryMissing) Set(cat Category, records []MissingRecord) {
	switch cat {
	case CategoryTechnical:
		c.Technical = records
	case CategorySoft:
		c.Soft = records
	case CategoryDomain:
		c.Domain = records
	}
}

// Count returns the number of records across all categories.
func (c *CategoryMissing) Count() int {
	return len(c.Technical) + len(c.Soft) + len(c.Domain)
}

// ComparisonSummary aggregates a comparison. TotalMatches counts unique CV
// skills credited, not requirement hits.
type ComparisonSummary struct {
	TotalRequirements int      `json:"total_requirements"`
	TotalMatches      int      `json:"total_matches"`
	MatchPercentage   float64  `json:"match_percentage"`
	CriticalGaps      []string `json:"critical_gaps"`
}

// ComparisonSource tells where a comparison came from
type ComparisonSource string

// ComparisonSource constants
const (
	SourceRemote        ComparisonSource = "remote"
	SourceLocalFallback ComparisonSource = "local_fallback"
)

// ComparisonResult is the canonical CV-vs-JD skill comparison
type ComparisonResult struct {
	Matched        CategoryMatches   `json:"matched"`
	Missing        CategoryMissing   `json:"missing"`
	Summary        ComparisonSummary `json:"summary"`
	Source         ComparisonSource  `json:"source"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
}

// IsFallback reports whether the local matcher produced this result.
func (r *ComparisonResult) IsFallback() bool {
	return r.Source == SourceLocalFallback
}

// CategoryRate returns the match percentage for one category, computed over
// consolidated matches. ok is false when the category has no requirements.
func (r *ComparisonResult) CategoryRate(cat Category) (rate float64, ok bool) {
	matched := len(r.Matched.Get(cat))
	total := r.categoryRequirementCount(cat)
	if total == 0 {
		return 0, false
	}
	return percentage(matched, total), true
}

// MatchedRequirements returns the lowercased requirements covered by matches in a category.
func (r *ComparisonResult) MatchedRequirements(cat Category) map[string]bool {
	covered := make(map[string]bool)
	for _, m := range r.Matched.Get(cat) {
		for _, req := range m.CoveredRequirements() {
			covered[SkillKey(req)] = true
		}
	}
	return covered
}

// Recompute rebuilds the summary from the matched and missing lists.
// essential holds lowercased essential requirement names; it may be nil.
func (r *ComparisonResult) Recompute(essential map[string]bool) {
	total := 0
	for _, cat := range Categories {
		total += r.categoryRequirementCount(cat)
	}

	gaps := make([]string, 0)
	for _, cat := range Categories {
		for _, m := range r.Missing.Get(cat) {
			if essential[SkillKey(m.Requirement)] {
				gaps = append(gaps, m.Requirement)
			}
		}
	}

	r.Summary = ComparisonSummary{
		TotalRequirements: total,
		TotalMatches:      r.Matched.Count(),
		MatchPercentage:   percentage(r.Matched.Count(), total),
		CriticalGaps:      gaps,
	}
}

// Validate checks the matched/missing partition invariant for every category.
func (r *ComparisonResult) Validate() error {
	for _, cat := range Categories {
		seen := make(map[string]string)
		for _, m := range r.Matched.Get(cat) {
			for _, req := range m.CoveredRequirements() {
				key := SkillKey(req)
				if _, dup := seen[key]; dup {
					return fmt.Errorf("%s requirement %q matched more than once", cat, req)
				}
				seen[key] = "matched"
			}
		}
		for _, m := range r.Missing.Get(cat) {
			key := SkillKey(m.Requirement)
			if where, dup := seen[key]; dup {
				if where == "missing" {
					return fmt.Errorf("%s requirement %q missing more than once", cat, m.Requirement)
				}
				return fmt.Errorf("%s requirement %q is both missing and matched", cat, m.Requirement)
			}
			seen[key] = "missing"
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *ComparisonResult) Clone() *ComparisonResult {
	if r == nil {
		return nil
	}
	out := *r
	for _, cat := range Categories {
		out.Matched.Set(cat, cloneMatches(r.Matched.Get(cat)))
		missing := r.Missing.Get(cat)
		if missing != nil {
			cp := make([]MissingRecord, len(missing))
			copy(cp, missing)
			out.Missing.Set(cat, cp)
		}
	}
	out.Summary.CriticalGaps = cloneStrings(r.Summary.CriticalGaps)
	return &out
}

func (r *ComparisonResult) categoryRequirementCount(cat Category) int {
	n := len(r.Missing.Get(cat))
	for _, m := range r.Matched.Get(cat) {
		n += len(m.CoveredRequirements())
	}
	return n
}

func cloneMatches(in []MatchRecord) []MatchRecord {
	if in == nil {
		return nil
	}
	out := make([]MatchRecord, len(in))
	for i, m := range in {
		out[i] = m
		if m.Covers != nil {
			out[i].Covers = cloneStrings(m.Covers)
		}
		if m.Confidence != nil {
			c := *m.Confidence
			out[i].Confidence = &c
		}
	}
	return out
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// EssentialSet returns the lowercased names of the essential requirements.
func EssentialSet(reqs []Requirement) map[string]bool {
	set := make(map[string]bool)
	for _, r := range reqs {
		if r.IsEssential() {
			set[SkillKey(r.Skill)] = true
		}
	}
	return set
}
