// Package ats computes weighted ATS compatibility scores from category match rates
// and requirement outcomes.
package ats

import (
	"fmt"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// Weight assigns a percentage weight to one score category
type Weight struct {
	Name   string  `json:"name" mapstructure:"name"`
	Weight float64 `json:"weight" mapstructure:"weight"`
}

// Band maps a minimum overall score to a label
type Band struct {
	Min   float64 `json:"min" mapstructure:"min"`
	Label string  `json:"label" mapstructure:"label"`
}

// Config holds the scoring weights, requirement bonus constants and label bands.
type Config struct {
	Weights []Weight `json:"weights" mapstructure:"weights"`

	// Essential requirements earn EssentialPointsSmall each when there are at
	// most EssentialSmallSetSize of them, otherwise EssentialPointsLarge.
	EssentialSmallSetSize int     `json:"essential_small_set_size" mapstructure:"essential_small_set_size"`
	EssentialPointsSmall  float64 `json:"essential_points_small" mapstructure:"essential_points_small"`
	EssentialPointsLarge  float64 `json:"essential_points_large" mapstructure:"essential_points_large"`
	EssentialBonusCap     float64 `json:"essential_bonus_cap" mapstructure:"essential_bonus_cap"`

	// Each missing essential requirement removes EssentialPenaltyRate of the
	// weighted baseline, up to MaxPenaltyFraction in total.
	EssentialPenaltyRate float64 `json:"essential_penalty_rate" mapstructure:"essential_penalty_rate"`
	MaxPenaltyFraction   float64 `json:"max_penalty_fraction" mapstructure:"max_penalty_fraction"`

	PreferredPoints   float64 `json:"preferred_points" mapstructure:"preferred_points"`
	PreferredBonusCap float64 `json:"preferred_bonus_cap" mapstructure:"preferred_bonus_cap"`

	// Bands are checked in order; the first with Min <= score wins.
	Bands []Band `json:"bands" mapstructure:"bands"`
}

// DefaultWeights returns the standard category weights.
func DefaultWeights() []Weight {
	return []Weight{
		{Name: types.ScoreTechnicalSkills, Weight: 25},
		{Name: types.ScoreSoftSkills, Weight: 10},
		{Name: types.ScoreDomainKeywords, Weight: 8},
		{Name: types.ScoreSkillsRelevance, Weight: 12},
		{Name: types.ScoreExperienceAlignment, Weight: 15},
		{Name: types.ScoreIndustryFit, Weight: 10},
		{Name: types.ScoreRoleSeniority, Weight: 8},
		{Name: types.ScoreTechnicalDepth, Weight: 3},
	}
}

// DefaultBands returns the standard score labels.
func DefaultBands() []Band {
	return []Band{
		{Min: 90, Label: "Excellent"},
		{Min: 80, Label: "Good"},
		{Min: 70, Label: "Fair"},
		{Min: 60, Label: "Needs improvement"},
		{Min: 0, Label: "Poor fit"},
	}
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:               DefaultWeights(),
		EssentialSmallSetSize: 3,
		EssentialPointsSmall:  3,
		EssentialPointsLarge:  2,
		EssentialBonusCap:     15,
		EssentialPenaltyRate:  0.10,
		MaxPenaltyFraction:    0.50,
		PreferredPoints:       1,
		PreferredBonusCap:     5,
		Bands:                 DefaultBands(),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Weights) == 0 {
		return &ConfigError{Field: "weights", Message: "at least one weight is required"}
	}
	seen := make(map[string]bool)
	for _, w := range c.Weights {
		if w.Name == "" {
			return &ConfigError{Field: "weights", Message: "weight name is required"}
		}
		if seen[w.Name] {
			return &ConfigError{Field: "weights", Message: fmt.Sprintf("duplicate weight %q", w.Name)}
		}
		seen[w.Name] = true
		if w.Weight < 0 {
			return &ConfigError{Field: "weights", Message: fmt.Sprintf("weight %q must be non-negative", w.Name)}
		}
	}

	if c.EssentialSmallSetSize < 0 {
		return &ConfigError{Field: "essential_small_set_size", Message: "must be non-negative"}
	}
	for field, v := range map[string]float64{
		"essential_points_small": c.EssentialPointsSmall,
		"essential_points_large": c.EssentialPointsLarge,
		"essential_bonus_cap":    c.EssentialBonusCap,
		"preferred_points":       c.PreferredPoints,
		"preferred_bonus_cap":    c.PreferredBonusCap,
	} {
		if v < 0 {
			return &ConfigError{Field: field, Message: "must be non-negative"}
		}
	}
	if c.EssentialPenaltyRate < 0 || c.EssentialPenaltyRate > 1 {
		return &ConfigError{Field: "essential_penalty_rate", Message: "must be between 0 and 1"}
	}
	if c.MaxPenaltyFraction < 0 || c.MaxPenaltyFraction > 1 {
		return &ConfigError{Field: "max_penalty_fraction", Message: "must be between 0 and 1"}
	}

	if len(c.Bands) == 0 {
		return &ConfigError{Field: "bands", Message: "at least one band is required"}
	}
	for i := 1; i < len(c.Bands); i++ {
		if c.Bands[i].Min > c.Bands[i-1].Min {
			return &ConfigError{Field: "bands", Message: "bands must be ordered by descending minimum"}
		}
	}
	return nil
}

// MergeWithDefaults fills empty weights and bands from DefaultConfig.
// Scalar knobs are left alone since zero is a valid setting for them.
func (c *Config) MergeWithDefaults() {
	defaults := DefaultConfig()
	if len(c.Weights) == 0 {
		c.Weights = defaults.Weights
	}
	if len(c.Bands) == 0 {
		c.Bands = defaults.Bands
	}
}
