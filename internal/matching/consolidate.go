package matching

import (
	"fmt"
	"strings"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// Consolidate credits each CV skill once. Records are grouped by CV skill
// (case-insensitive); the representative requirement is the one with the
// strongest match type, ties going to the first in input order. When a skill
// covers two or more requirements its reasoning lists all of them.
// Output order follows the first appearance of each CV skill.
func Consolidate(matches []types.MatchRecord) []types.MatchRecord {
	if len(matches) == 0 {
		return []types.MatchRecord{}
	}

	order := make([]string, 0, len(matches))
	groups := make(map[string][]types.MatchRecord)
	loose := make([]types.MatchRecord, 0)
	for _, m := range matches {
		key := types.SkillKey(m.CVSkill)
		if key == "" {
			// no skill to group on
			order = append(order, "")
			loose = append(loose, m)
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	result := make([]types.MatchRecord, 0, len(order))
	ungrouped := 0
	for _, key := range order {
		if key == "" {
			result = append(result, loose[ungrouped])
			ungrouped++
			continue
		}
		result = append(result, merge(groups[key]))
	}
	return result
}

// merge folds the records of one CV skill into a single record
func merge(group []types.MatchRecord) types.MatchRecord {
	if len(group) == 1 {
		return group[0]
	}

	rep := group[0]
	for _, m := range group[1:] {
		if m.MatchType.Rank() > rep.MatchType.Rank() {
			rep = m
		}
	}

	covers := make([]string, 0, len(group))
	seen := make(map[string]bool)
	notes := make([]string, 0, len(group))
	for _, m := range group {
		for _, req := range m.CoveredRequirements() {
			key := types.SkillKey(req)
			if seen[key] {
				continue
			}
			seen[key] = true
			covers = append(covers, req)
		}
		notes = append(notes, describe(m))
	}

	merged := rep
	merged.Covers = covers
	if len(covers) >= 2 {
		merged.Reasoning = fmt.Sprintf("%s credited once for %d requirements (%s): %s",
			rep.CVSkill, len(covers), strings.Join(covers, ", "), strings.Join(notes, "; "))
	}
	return merged
}

func describe(m types.MatchRecord) string {
	reqs := strings.Join(m.CoveredRequirements(), ", ")
	if m.Reasoning == "" {
		return fmt.Sprintf("%s [%s]", reqs, m.MatchType)
	}
	return fmt.Sprintf("%s [%s] %s", reqs, m.MatchType, m.Reasoning)
}
