// Package matching provides the deterministic local skill matcher and match consolidation.
package matching

import (
	"fmt"
	"strings"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// abbreviations maps common short forms to their full skill names
var abbreviations = map[string]string{
	"js":       "javascript",
	"ts":       "typescript",
	"py":       "python",
	"ml":       "machine learning",
	"ai":       "artificial intelligence",
	"k8s":      "kubernetes",
	"golang":   "go",
	"postgres": "postgresql",
	"aws":      "amazon web services",
	"nlp":      "natural language processing",
	"ci":       "continuous integration",
	"ux":       "user experience",
}

// matchKind records which rule produced a local match
type matchKind int

const (
	kindNone matchKind = iota
	kindExact
	kindContains
	kindAbbreviation
)

// Match reports whether a CV skill satisfies a JD skill using, in order:
// case-insensitive equality, substring containment in either direction,
// and the abbreviation table. Equality yields MatchExact, the rest MatchPartial.
func Match(cv, jd string) (types.MatchType, bool) {
	switch classify(cv, jd) {
	case kindExact:
		return types.MatchExact, true
	case kindContains, kindAbbreviation:
		return types.MatchPartial, true
	default:
		return "", false
	}
}

func classify(cv, jd string) matchKind {
	c := types.SkillKey(cv)
	j := types.SkillKey(jd)
	if c == "" || j == "" {
		return kindNone
	}

	if c == j {
		return kindExact
	}

	if strings.Contains(c, j) || strings.Contains(j, c) {
		return kindContains
	}

	ec := expand(c)
	ej := expand(j)
	if ec == c && ej == j {
		return kindNone
	}
	if ec == ej || strings.Contains(ec, ej) || strings.Contains(ej, ec) {
		return kindAbbreviation
	}

	return kindNone
}

// expand returns the full form of a known abbreviation, or s unchanged
func expand(s string) string {
	if full, ok := abbreviations[s]; ok {
		return full
	}
	return s
}

func reasonFor(kind matchKind, cv, jd string) string {
	switch kind {
	case kindExact:
		return fmt.Sprintf("CV skill %q equals requirement", cv)
	case kindContains:
		return fmt.Sprintf("%q and %q overlap by containment", cv, jd)
	case kindAbbreviation:
		return fmt.Sprintf("%q and %q are the same skill by abbreviation", cv, jd)
	default:
		return ""
	}
}
