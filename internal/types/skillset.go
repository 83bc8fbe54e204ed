// Package types provides type definitions for structured data used throughout the ATS analyzer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category identifies one of the three skill lists of a SkillSet
type Category string

// Category constants
const (
	CategoryTechnical Category = "technical"
	CategorySoft      Category = "soft"
	CategoryDomain    Category = "domain"
)

// Categories lists every category in canonical order.
var Categories = []Category{CategoryTechnical, CategorySoft, CategoryDomain}

// ParseCategory converts a wire value into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryTechnical:
		return CategoryTechnical, nil
	case CategorySoft:
		return CategorySoft, nil
	case CategoryDomain:
		return CategoryDomain, nil
	default:
		return "", fmt.Errorf("unknown skill category %q", s)
	}
}

// SkillSet is an immutable set of technical, soft and domain skills.
// Each list is unique (case-insensitive), order-preserving and free of blank entries.
type SkillSet struct {
	technical []string
	soft      []string
	domain    []string
}

// NewSkillSet builds a SkillSet, trimming entries and dropping blanks and
// case-insensitive duplicates while keeping first-seen order.
func NewSkillSet(technical, soft, domain []string) SkillSet {
	return SkillSet{
		technical: uniqueSkills(technical),
		soft:      uniqueSkills(soft),
		domain:    uniqueSkills(domain),
	}
}

// Technical returns a copy of the technical skills.
func (s SkillSet) Technical() []string { return cloneStrings(s.technical) }

// Soft returns a copy of the soft skills.
func (s SkillSet) Soft() []string { return cloneStrings(s.soft) }

// Domain returns a copy of the domain skills.
func (s SkillSet) Domain() []string { return cloneStrings(s.domain) }

// Get returns a copy of the skills for a category.
func (s SkillSet) Get(c Category) []string {
	switch c {
	case CategoryTechnical:
		return s.Technical()
	case CategorySoft:
		return s.Soft()
	case CategoryDomain:
		return s.Domain()
	default:
		return nil
	}
}

// Len returns the total number of skills across all categories.
func (s SkillSet) Len() int {
	return len(s.technical) + len(s.soft) + len(s.domain)
}

// IsEmpty reports whether the set has no skills at all.
func (s SkillSet) IsEmpty() bool {
	return s.Len() == 0
}

// Equal reports whether two sets hold the same skills in the same order.
func (s SkillSet) Equal(other SkillSet) bool {
	return equalStrings(s.technical, other.technical) &&
		equalStrings(s.soft, other.soft) &&
		equalStrings(s.domain, other.domain)
}

// skillSetJSON is the wire form of a SkillSet
type skillSetJSON struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Domain    []string `json:"domain"`
}

// MarshalJSON encodes the set with empty lists rather than null.
func (s SkillSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(skillSetJSON{
		Technical: nonNil(s.technical),
		Soft:      nonNil(s.soft),
		Domain:    nonNil(s.domain),
	})
}

// UnmarshalJSON decodes and normalizes a set.
func (s *SkillSet) UnmarshalJSON(data []byte) error {
	var raw skillSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewSkillSet(raw.Technical, raw.Soft, raw.Domain)
	return nil
}

// EqualFold reports whether two skill names are the same, ignoring case and surrounding space.
func EqualFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SkillKey returns the comparison key for a skill name.
func SkillKey(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

func uniqueSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, skill := range skills {
		trimmed := strings.TrimSpace(skill)
		if trimmed == "" {
			continue
		}
		key := SkillKey(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
