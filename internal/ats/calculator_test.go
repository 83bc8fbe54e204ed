package ats

import (
	"testing"

	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allRates(v float64) map[string]float64 {
	rates := make(map[string]float64)
	for _, w := range DefaultWeights() {
		rates[w.Name] = v
	}
	return rates
}

func outcomes(essentialMatched, essentialMissing, preferredMatched, preferredMissing int) []types.RequirementOutcome {
	out := make([]types.RequirementOutcome, 0)
	add := func(n int, crit types.Criticality, matched bool) {
		for i := 0; i < n; i++ {
			out = append(out, types.RequirementOutcome{
				Requirement: types.Requirement{Skill: "skill", Category: types.CategoryTechnical, Criticality: crit},
				Matched:     matched,
			})
		}
	}
	add(essentialMatched, types.CriticalityEssential, true)
	add(essentialMissing, types.CriticalityEssential, false)
	add(preferredMatched, types.CriticalityPreferred, true)
	add(preferredMissing, types.CriticalityPreferred, false)
	return out
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	total := 0.0
	for _, w := range cfg.Weights {
		total += w.Weight
	}
	assert.Equal(t, 91.0, total)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"no weights", func(c *Config) { c.Weights = nil }, "weights"},
		{"duplicate weight", func(c *Config) { c.Weights = append(c.Weights, Weight{Name: types.ScoreSoftSkills, Weight: 1}) }, "weights"},
		{"negative weight", func(c *Config) { c.Weights[0].Weight = -1 }, "weights"},
		{"penalty rate above one", func(c *Config) { c.EssentialPenaltyRate = 1.5 }, "essential_penalty_rate"},
		{"negative cap", func(c *Config) { c.PreferredBonusCap = -1 }, "preferred_bonus_cap"},
		{"no bands", func(c *Config) { c.Bands = nil }, "bands"},
		{"unordered bands", func(c *Config) { c.Bands = []Band{{Min: 50, Label: "a"}, {Min: 80, Label: "b"}} }, "bands"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfig_MergeWithDefaults(t *testing.T) {
	cfg := Config{EssentialBonusCap: 20}
	cfg.MergeWithDefaults()

	assert.Equal(t, 20.0, cfg.EssentialBonusCap)
	assert.Equal(t, DefaultWeights(), cfg.Weights)
	assert.Len(t, cfg.Bands, 5)
	assert.Zero(t, cfg.EssentialPenaltyRate, "scalar zeros are kept")
	assert.Zero(t, cfg.PreferredPoints)
}

func TestCalculate_ZeroPenaltyAndPreferred(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EssentialPenaltyRate = 0
	cfg.PreferredPoints = 0
	cfg.MergeWithDefaults()
	require.NoError(t, cfg.Validate())

	got := NewCalculator(cfg).Calculate(allRates(50), outcomes(2, 2, 2, 0))

	assert.Zero(t, got.RequirementBonus.EssentialPenalty)
	assert.Zero(t, got.RequirementBonus.PreferredBonus)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name          string
		rates         map[string]float64
		reqs          []types.RequirementOutcome
		wantOverall   float64
		wantBonus     float64
		wantPenalty   float64
		wantPreferred float64
		wantLabel     string
	}{
		{
			name:          "strong match with small essential set",
			rates:         allRates(100),
			reqs:          outcomes(2, 0, 1, 0),
			wantOverall:   98,
			wantBonus:     6,
			wantPreferred: 1,
			wantLabel:     "Excellent",
		},
		{
			name:          "large essential set with gaps",
			rates:         allRates(50),
			reqs:          outcomes(2, 2, 0, 3),
			wantOverall:   45.5 + 4 - 9.1,
			wantBonus:     4,
			wantPenalty:   9.1,
			wantPreferred: 0,
			wantLabel:     "Poor fit",
		},
		{
			name:          "essential bonus capped",
			rates:         allRates(0),
			reqs:          outcomes(10, 0, 0, 0),
			wantOverall:   15,
			wantBonus:     15,
			wantPreferred: 0,
			wantLabel:     "Poor fit",
		},
		{
			name:          "penalty fraction capped at half",
			rates:         allRates(100),
			reqs:          outcomes(0, 8, 0, 0),
			wantOverall:   45.5,
			wantPenalty:   45.5,
			wantPreferred: 0,
			wantLabel:     "Poor fit",
		},
		{
			name:          "preferred bonus capped",
			rates:         allRates(80),
			reqs:          outcomes(0, 0, 9, 0),
			wantOverall:   72.8 + 5,
			wantPreferred: 5,
			wantLabel:     "Fair",
		},
		{
			name:          "clamped to 100",
			rates:         allRates(100),
			reqs:          outcomes(3, 0, 6, 0),
			wantOverall:   100,
			wantBonus:     9,
			wantPreferred: 5,
			wantLabel:     "Excellent",
		},
		{
			name:        "no requirements",
			rates:       allRates(100),
			reqs:        nil,
			wantOverall: 91,
			wantLabel:   "Excellent",
		},
	}

	calc := NewCalculator(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.rates, tt.reqs)

			assert.InDelta(t, tt.wantOverall, got.OverallScore, 1e-9)
			assert.InDelta(t, tt.wantBonus, got.RequirementBonus.EssentialBonus, 1e-9)
			assert.InDelta(t, tt.wantPenalty, got.RequirementBonus.EssentialPenalty, 1e-9)
			assert.InDelta(t, tt.wantPreferred, got.RequirementBonus.PreferredBonus, 1e-9)
			assert.Equal(t, tt.wantLabel, got.Label)
		})
	}
}

func TestCalculate_OverallMatchesBreakdown(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	rates := map[string]float64{
		types.ScoreTechnicalSkills:     66.7,
		types.ScoreSoftSkills:          40,
		types.ScoreSkillsRelevance:     55,
		types.ScoreExperienceAlignment: 72,
	}

	got := calc.Calculate(rates, outcomes(1, 1, 2, 1))

	want := got.WeightedSum() + got.RequirementBonus.Net()
	assert.InDelta(t, clamp(want, 0, 100), got.OverallScore, 1e-9)
}

func TestCalculate_AbsentRatesUnavailable(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	got := calc.Calculate(map[string]float64{types.ScoreTechnicalSkills: 80}, nil)

	require.Len(t, got.Categories, 8)
	tech, ok := got.Category(types.ScoreTechnicalSkills)
	require.True(t, ok)
	assert.True(t, tech.Available)
	assert.InDelta(t, 20, tech.Contribution, 1e-9)

	industry, ok := got.Category(types.ScoreIndustryFit)
	require.True(t, ok)
	assert.False(t, industry.Available)
	assert.Zero(t, industry.Score)
	assert.Zero(t, industry.Contribution)
}

func TestCalculate_RatesClamped(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	got := calc.Calculate(map[string]float64{
		types.ScoreTechnicalSkills: 150,
		types.ScoreSoftSkills:      -20,
	}, nil)

	tech, _ := got.Category(types.ScoreTechnicalSkills)
	soft, _ := got.Category(types.ScoreSoftSkills)
	assert.Equal(t, 100.0, tech.Score)
	assert.Equal(t, 0.0, soft.Score)
}

func TestCalculate_MonotonicInEveryRate(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	reqs := outcomes(1, 3, 1, 1)

	for _, w := range DefaultWeights() {
		t.Run(w.Name, func(t *testing.T) {
			prev := -1.0
			for rate := 0.0; rate <= 100; rate += 10 {
				rates := allRates(40)
				rates[w.Name] = rate
				got := calc.Calculate(rates, reqs).OverallScore
				assert.GreaterOrEqual(t, got, prev)
				prev = got
			}
		})
	}
}

func TestLabel(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	tests := []struct {
		score float64
		want  string
	}{
		{100, "Excellent"},
		{90, "Excellent"},
		{89.9, "Good"},
		{80, "Good"},
		{75, "Fair"},
		{60, "Needs improvement"},
		{59.99, "Poor fit"},
		{0, "Poor fit"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, calc.Label(tt.score), "score %v", tt.score)
	}
}
