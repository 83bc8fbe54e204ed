package comparison

import (
	"testing"

	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directResult = `{
	"matched": {
		"technical": [
			{"requirement": "Python", "cv_skill": "Python", "match_type": "exact", "reasoning": "same skill", "confidence": 99},
			{"requirement": "React.js", "cv_skill": "React", "match_type": "semantic", "reasoning": "React.js is React", "confidence": 92}
		],
		"soft": [],
		"domain": []
	},
	"missing": {
		"technical": [{"requirement": "MySQL", "reasoning": "no relational database other than PostgreSQL"}],
		"soft": [],
		"domain": []
	}
}`

func scenarioJD() types.SkillSet {
	return types.NewSkillSet([]string{"Python", "React.js", "MySQL"}, nil, nil)
}

func TestAdapt_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"direct", directResult},
		{"nested", `{"comparison_result": ` + directResult + `}`},
		{"raw response string", `{"raw_response": "Here is the comparison:\n` + escape(directResult) + `\nHope this helps"}`},
		{"raw response object", `{"raw_response": ` + directResult + `}`},
		{"bare text with fence", "Sure!\n```json\n" + directResult + "\n```"},
		{"json string body", `"` + escape(directResult) + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Adapt([]byte(tt.body), scenarioJD())
			require.NoError(t, err)

			assert.Equal(t, types.SourceRemote, result.Source)
			require.Len(t, result.Matched.Technical, 2)
			assert.Equal(t, "React", result.Matched.Technical[1].CVSkill)
			assert.Equal(t, types.MatchSemantic, result.Matched.Technical[1].MatchType)
			require.NotNil(t, result.Matched.Technical[1].Confidence)
			assert.Equal(t, 92.0, *result.Matched.Technical[1].Confidence)
			require.Len(t, result.Missing.Technical, 1)
			assert.Equal(t, "MySQL", result.Missing.Technical[0].Requirement)
			assert.Equal(t, 3, result.Summary.TotalRequirements)
			assert.Equal(t, 2, result.Summary.TotalMatches)
		})
	}
}

func TestAdapt_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "   "},
		{"no json", "I cannot help with that."},
		{"truncated", `{"matched": {"technical": [`},
		{"unrecognized shape", `{"result": "ok"}`},
		{"schema violation", `{"matched": {"technical": [{"requirement": "Go"}]}, "missing": {}}`},
		{"unknown category", `{"matched": {"hardware": []}, "missing": {}}`},
		{"nested too deeply", `{"comparison_result": {"comparison_result": {"comparison_result": {"comparison_result": {"comparison_result": {}}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Adapt([]byte(tt.body), scenarioJD())
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestAdapt_EnforcesCompleteness(t *testing.T) {
	body := `{
		"matched": {"technical": [
			{"requirement": "Python", "cv_skill": "Python"},
			{"requirement": "python", "cv_skill": "Django", "match_type": "semantic"},
			{"requirement": "REST", "cv_skill": "FastAPI"}
		]},
		"missing": {"technical": [
			{"requirement": "Python", "reasoning": "duplicate of a match"},
			{"requirement": "Kafka"},
			{"requirement": "kafka"}
		]}
	}`
	jd := types.NewSkillSet([]string{"Python", "REST", "Kafka", "Terraform"}, []string{"Mentoring"}, nil)

	result, err := Adapt([]byte(body), jd)
	require.NoError(t, err)

	require.Len(t, result.Matched.Technical, 2, "second record for Python is dropped")
	assert.Equal(t, types.MatchExact, result.Matched.Technical[0].MatchType, "absent match type filled as exact on equal names")
	assert.Equal(t, types.MatchSemantic, result.Matched.Technical[1].MatchType, "absent match type filled as semantic otherwise")

	missing := make([]string, 0)
	for _, m := range result.Missing.Technical {
		missing = append(missing, m.Requirement)
	}
	assert.Equal(t, []string{"Kafka", "Terraform"}, missing)
	require.Len(t, result.Missing.Soft, 1)
	assert.Equal(t, "Mentoring", result.Missing.Soft[0].Requirement)

	assert.Equal(t, 5, result.Summary.TotalRequirements)
	assert.Equal(t, 2, result.Summary.TotalMatches)
	require.NoError(t, result.Validate())
}

func TestAdapt_ConsolidatesAndRecomputes(t *testing.T) {
	body := `{
		"matched": {"technical": [
			{"requirement": "SQL", "cv_skill": "PostgreSQL", "match_type": "semantic", "reasoning": "PostgreSQL is SQL"},
			{"requirement": "PostgreSQL", "cv_skill": "PostgreSQL", "match_type": "exact", "reasoning": "same"},
			{"requirement": "Relational databases", "cv_skill": "postgresql", "match_type": "semantic", "reasoning": "RDBMS"}
		]},
		"missing": {"technical": [{"requirement": "Redis"}]},
		"summary": {"total_requirements": 99, "total_matches": 3, "match_percentage": 75}
	}`
	jd := types.NewSkillSet([]string{"SQL", "PostgreSQL", "Relational databases", "Redis"}, nil, nil)

	result, err := Adapt([]byte(body), jd)
	require.NoError(t, err)

	require.Len(t, result.Matched.Technical, 1)
	assert.Equal(t, "PostgreSQL", result.Matched.Technical[0].Requirement)
	assert.Len(t, result.Matched.Technical[0].Covers, 3)
	assert.Equal(t, 4, result.Summary.TotalRequirements, "summary is recomputed, not trusted")
	assert.Equal(t, 1, result.Summary.TotalMatches)
	assert.InDelta(t, 25.0, result.Summary.MatchPercentage, 1e-9)
}

func TestAdapt_KeepsRemoteClassification(t *testing.T) {
	// The local matcher would call React.js/React a match; the remote said missing.
	body := `{"matched": {}, "missing": {"technical": [{"requirement": "React.js", "reasoning": "low confidence"}]}}`
	jd := types.NewSkillSet([]string{"React.js"}, nil, nil)

	result, err := Adapt([]byte(body), jd)
	require.NoError(t, err)

	assert.Empty(t, result.Matched.Technical)
	require.Len(t, result.Missing.Technical, 1)
	assert.Equal(t, "low confidence", result.Missing.Technical[0].Reasoning)
}

func TestAdapt_DropsUnusableRecords(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMatched []string
		wantMissing []string
	}{
		{
			name:        "blank requirement",
			body:        `{"matched": {"technical": [{"requirement": "  ", "cv_skill": "Rust"}]}, "missing": {}}`,
			wantMissing: []string{"Go"},
		},
		{
			name:        "blank cv skill",
			body:        `{"matched": {"technical": [{"requirement": "Go", "cv_skill": " "}]}, "missing": {}}`,
			wantMissing: []string{"Go"},
		},
		{
			name:        "requirement not in job description",
			body:        `{"matched": {"technical": [{"requirement": "Rust", "cv_skill": "Rust"}, {"requirement": "go", "cv_skill": "Golang"}]}, "missing": {"technical": [{"requirement": "COBOL"}]}}`,
			wantMatched: []string{"go"},
		},
		{
			name:        "requirement from another category",
			body:        `{"matched": {"soft": [{"requirement": "Go", "cv_skill": "Go"}]}, "missing": {}}`,
			wantMissing: []string{"Go"},
		},
	}

	jd := types.NewSkillSet([]string{"Go"}, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Adapt([]byte(tt.body), jd)
			require.NoError(t, err)

			matched := make([]string, 0)
			for _, cat := range types.Categories {
				for _, m := range result.Matched.Get(cat) {
					matched = append(matched, m.Requirement)
				}
			}
			missing := make([]string, 0)
			for _, m := range result.Missing.Technical {
				missing = append(missing, m.Requirement)
			}
			assert.ElementsMatch(t, tt.wantMatched, matched)
			assert.ElementsMatch(t, tt.wantMissing, missing)

			assert.Equal(t, 1, result.Summary.TotalRequirements)
			assert.Equal(t, len(tt.wantMatched), result.Summary.TotalMatches)
			assert.InDelta(t, float64(100*len(tt.wantMatched)), result.Summary.MatchPercentage, 1e-9)
			require.NoError(t, result.Validate())
		})
	}
}

func escape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '"':
			out = append(out, '\\', '"')
		case '\n':
			out = append(out, '\\', 'n')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
