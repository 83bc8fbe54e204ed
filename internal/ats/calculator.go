package ats

import (
	"math"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// Calculator turns category rates and requirement outcomes into an ATS score
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator. The config must already be valid.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Calculate scores a CV against a JD.
//
// rates maps category names to match rates in 0..100; a category absent from
// rates scores 0 and is marked unavailable. reqs lists every extracted JD
// requirement with whether the CV satisfies it.
func (c *Calculator) Calculate(rates map[string]float64, reqs []types.RequirementOutcome) *types.ATSScoreBreakdown {
	breakdown := &types.ATSScoreBreakdown{
		Categories: make([]types.CategoryScore, 0, len(c.cfg.Weights)),
	}

	for _, w := range c.cfg.Weights {
		score := types.CategoryScore{Name: w.Name, Weight: w.Weight}
		if rate, ok := rates[w.Name]; ok {
			score.Score = clamp(rate, 0, 100)
			score.Available = true
		}
		score.Contribution = score.Score / 100 * w.Weight
		breakdown.Categories = append(breakdown.Categories, score)
	}

	baseline := breakdown.WeightedSum()
	breakdown.RequirementBonus = c.requirementBonus(baseline, reqs)

	overall := baseline + breakdown.RequirementBonus.Net()
	breakdown.OverallScore = clamp(overall, 0, 100)
	breakdown.Label = c.Label(breakdown.OverallScore)
	return breakdown
}

func (c *Calculator) requirementBonus(baseline float64, reqs []types.RequirementOutcome) types.RequirementBonus {
	var bonus types.RequirementBonus
	for _, r := range reqs {
		if r.Requirement.IsEssential() {
			bonus.EssentialTotal++
			if r.Matched {
				bonus.EssentialMatches++
			}
			continue
		}
		bonus.PreferredTotal++
		if r.Matched {
			bonus.PreferredMatches++
		}
	}

	points := c.cfg.EssentialPointsLarge
	if bonus.EssentialTotal <= c.cfg.EssentialSmallSetSize {
		points = c.cfg.EssentialPointsSmall
	}
	bonus.EssentialBonus = math.Min(float64(bonus.EssentialMatches)*points, c.cfg.EssentialBonusCap)

	missing := bonus.EssentialTotal - bonus.EssentialMatches
	fraction := math.Min(float64(missing)*c.cfg.EssentialPenaltyRate, c.cfg.MaxPenaltyFraction)
	bonus.EssentialPenalty = baseline * fraction

	bonus.PreferredBonus = math.Min(float64(bonus.PreferredMatches)*c.cfg.PreferredPoints, c.cfg.PreferredBonusCap)
	return bonus
}

// Label returns the band label for an overall score.
func (c *Calculator) Label(score float64) string {
	for _, b := range c.cfg.Bands {
		if score >= b.Min {
			return b.Label
		}
	}
	if len(c.cfg.Bands) == 0 {
		return ""
	}
	return c.cfg.Bands[len(c.cfg.Bands)-1].Label
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
