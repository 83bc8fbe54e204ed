// Package observability provides formatted output for the analyze command.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/ats-analyzer/internal/events"
	"github.com/jonathan/ats-analyzer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintEvent writes one progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(ev events.Event) {
	marker := "•"
	switch {
	case ev.IsError:
		marker = "✗"
	case ev.Phase == events.Completed || ev.Phase == events.CacheHit:
		marker = "✓"
	}
	fmt.Fprintf(p.out, "%s %s [%s] %s\n", ev.Time.Format("15:04:05"), marker, ev.Phase, ev.Message)
}

// PrintSkills outputs the extracted CV and JD skills per category.
func (p *Printer) PrintSkills(skills *types.ExtractedSkills) {
	if skills == nil {
		return
	}

	var sb strings.Builder
	for _, cat := range types.Categories {
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(string(cat))))
		sb.WriteString(fmt.Sprintf("  CV: %s\n", listOrDash(skills.CV.Get(cat))))
		sb.WriteString(fmt.Sprintf("  JD: %s\n", listOrDash(skills.JD.Get(cat))))
	}
	p.printBox("EXTRACTED SKILLS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScore outputs a score breakdown under title.
func (p *Printer) PrintScore(title string, score *types.ATSScoreBreakdown) {
	if score == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:  %.1f (%s)\n\n", score.OverallScore, score.Label))
	for _, c := range score.Categories {
		if !c.Available {
			sb.WriteString(fmt.Sprintf("  %-22s   n/a\n", c.Name))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-22s %5.1f  x%4.0f%% = %5.2f\n", c.Name, c.Score, c.Weight, c.Contribution))
	}
	b := score.RequirementBonus
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Essential: %d/%d  +%.1f  -%.1f\n", b.EssentialMatches, b.EssentialTotal, b.EssentialBonus, b.EssentialPenalty))
	sb.WriteString(fmt.Sprintf("Preferred: %d/%d  +%.1f", b.PreferredMatches, b.PreferredTotal, b.PreferredBonus))
	p.printBox(title, sb.String())
}

// PrintComparison outputs matched and missing requirements.
func (p *Printer) PrintComparison(cmp *types.ComparisonResult) {
	if cmp == nil {
		return
	}

	var sb strings.Builder
	s := cmp.Summary
	sb.WriteString(fmt.Sprintf("Matched %d of %d requirements (%.1f%%)\n", s.TotalMatches, s.TotalRequirements, s.MatchPercentage))
	if cmp.IsFallback() {
		sb.WriteString(fmt.Sprintf("Source:  local matcher (%s)\n", cmp.FallbackReason))
	}

	matched := make([]types.MatchRecord, 0)
	missing := make([]types.MissingRecord, 0)
	for _, cat := range types.Categories {
		matched = append(matched, cmp.Matched.Get(cat)...)
		missing = append(missing, cmp.Missing.Get(cat)...)
	}

	if len(matched) > 0 {
		sb.WriteString("\nMatched:\n")
		for i := 0; i < min(len(matched), maxItemsToShow); i++ {
			m := matched[i]
			sb.WriteString(fmt.Sprintf("  ✓ %s ← %s (%s)\n", m.Requirement, m.CVSkill, m.MatchType))
		}
		if len(matched) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(matched)-maxItemsToShow))
		}
	}
	if len(missing) > 0 {
		sb.WriteString("\nMissing:\n")
		for i := 0; i < min(len(missing), maxItemsToShow); i++ {
			sb.WriteString(fmt.Sprintf("  ✗ %s\n", missing[i].Requirement))
		}
		if len(missing) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(missing)-maxItemsToShow))
		}
	}
	if len(s.CriticalGaps) > 0 {
		sb.WriteString(fmt.Sprintf("\nCritical gaps: %s\n", strings.Join(s.CriticalGaps, ", ")))
	}

	p.printBox("SKILL COMPARISON", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecommendation outputs the backend's advice.
func (p *Printer) PrintRecommendation(rec *types.AIRecommendation) {
	if rec == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(rec.Summary)
	if len(rec.Strengths) > 0 {
		sb.WriteString("\n\nStrengths:")
		for _, s := range rec.Strengths {
			sb.WriteString("\n  • " + s)
		}
	}
	if len(rec.Recommendations) > 0 {
		sb.WriteString("\n\nRecommendations:")
		for _, r := range rec.Recommendations {
			sb.WriteString("\n  • " + r)
		}
	}
	p.printBox("RECOMMENDATIONS", sb.String())
}

// PrintResult outputs every available part of a result, then a status line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintResult(state types.State, r *types.AnalysisResult, errMsg string) {
	if r != nil {
		p.PrintSkills(r.Skills)
		p.PrintScore("ESTIMATED ATS SCORE", r.MatchAnalysis)
		p.PrintComparison(r.Comparison)
		p.PrintScore("BACKEND COMPONENT ANALYSIS", r.ComponentAnalysis)
		if r.FinalATSScore != nil {
			fmt.Fprintf(p.out, "Final ATS score: %.1f\n", *r.FinalATSScore)
		}
		p.PrintRecommendation(r.AIRecommendation)
	}

	switch state {
	case types.StateCompleted:
		source := "fresh"
		if r != nil && r.FromCache {
			source = "cached"
		}
		elapsed := time.Duration(0)
		if r != nil {
			elapsed = r.Elapsed.Round(time.Millisecond)
		}
		fmt.Fprintf(p.out, "✅ analysis %s (%s, %s)\n", state, source, elapsed)
	case types.StateError:
		fmt.Fprintf(p.out, "❌ analysis failed: %s\n", errMsg)
	default:
		fmt.Fprintf(p.out, "⚠ analysis %s\n", state)
	}
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
