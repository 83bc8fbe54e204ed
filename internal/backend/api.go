package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	CVID       string `json:"cv_id"`
	JDText     string `json:"jd_text"`
	ForceRerun bool   `json:"force_rerun,omitempty"`
}

// AnalyzeResponse carries the extracted skills and the id of the
// asynchronous job computing the final score and recommendations.
type AnalyzeResponse struct {
	JobID        string
	CVSkills     types.SkillSet
	JDSkills     types.SkillSet
	Requirements []types.Requirement
}

type wireRequirement struct {
	Skill       string `json:"skill"`
	Category    string `json:"category"`
	Criticality string `json:"criticality"`
}

type wireAnalyzeResponse struct {
	JobID        string            `json:"job_id"`
	CVSkills     types.SkillSet    `json:"cv_skills"`
	JDSkills     types.SkillSet    `json:"jd_skills"`
	Requirements []wireRequirement `json:"requirements"`
}

// Analyze extracts skills from the CV and JD and starts the backend job.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	data, err := c.do(ctx, http.MethodPost, EndpointAnalyze, EndpointAnalyze, req)
	if err != nil {
		return nil, err
	}

	var wire wireAnalyzeResponse
	if err := decode(EndpointAnalyze, data, &wire); err != nil {
		return nil, err
	}

	reqs, err := requirementsFrom(wire.Requirements, wire.JDSkills)
	if err != nil {
		return nil, &ParseError{Endpoint: EndpointAnalyze, Message: "invalid requirements", Cause: err}
	}

	return &AnalyzeResponse{
		JobID:        strings.TrimSpace(wire.JobID),
		CVSkills:     wire.CVSkills,
		JDSkills:     wire.JDSkills,
		Requirements: reqs,
	}, nil
}

// requirementsFrom validates the wire requirements. When the backend sends
// none, every JD skill becomes a preferred requirement.
func requirementsFrom(wire []wireRequirement, jd types.SkillSet) ([]types.Requirement, error) {
	if len(wire) == 0 {
		reqs := make([]types.Requirement, 0, jd.Len())
		for _, cat := range types.Categories {
			for _, skill := range jd.Get(cat) {
				reqs = append(reqs, types.Requirement{Skill: skill, Category: cat, Criticality: types.CriticalityPreferred})
			}
		}
		return reqs, nil
	}

	reqs := make([]types.Requirement, 0, len(wire))
	for _, w := range wire {
		skill := strings.TrimSpace(w.Skill)
		if skill == "" {
			continue
		}
		cat, err := types.ParseCategory(w.Category)
		if err != nil {
			return nil, fmt.Errorf("requirement %q: %w", skill, err)
		}
		reqs = append(reqs, types.Requirement{
			Skill:       skill,
			Category:    cat,
			Criticality: types.ParseCriticality(w.Criticality),
		})
	}
	return reqs, nil
}

// CompareSkillsRequest is the body of POST /compare-skills
type CompareSkillsRequest struct {
	CVSkills types.SkillSet `json:"cv_skills"`
	JDSkills types.SkillSet `json:"jd_skills"`
	Prompt   string         `json:"prompt,omitempty"`
	JDText   string         `json:"jd_text,omitempty"`
}

// CompareSkills asks the backend for a semantic comparison. The body is
// returned undecoded because the service answers in several shapes.
func (c *Client) CompareSkills(ctx context.Context, req CompareSkillsRequest) ([]byte, error) {
	return c.do(ctx, http.MethodPost, EndpointCompareSkills, EndpointCompareSkills, req)
}

// EnhancedScoreRequest is the body of POST /ats/enhanced-score
type EnhancedScoreRequest struct {
	CVID              string                  `json:"cv_id"`
	JobID             string                  `json:"job_id,omitempty"`
	CVSkills          types.SkillSet          `json:"cv_skills"`
	JDSkills          types.SkillSet          `json:"jd_skills"`
	JDText            string                  `json:"jd_text"`
	SkillComparison   *types.ComparisonResult `json:"skill_comparison,omitempty"`
	ExtractedKeywords []string                `json:"extracted_keywords,omitempty"`
}

// EnhancedScore returns backend-computed category rates (0-100) keyed by
// category name, such as experience_alignment or industry_fit. The service
// answers either with a category_scores map or with a full breakdown, in
// which case only available categories are used.
func (c *Client) EnhancedScore(ctx context.Context, req EnhancedScoreRequest) (map[string]float64, error) {
	data, err := c.do(ctx, http.MethodPost, EndpointEnhancedScore, EndpointEnhancedScore, req)
	if err != nil {
		return nil, err
	}

	var wire struct {
		CategoryScores map[string]float64    `json:"category_scores"`
		Categories     []types.CategoryScore `json:"categories"`
	}
	if err := decode(EndpointEnhancedScore, data, &wire); err != nil {
		return nil, err
	}
	if wire.CategoryScores != nil {
		return wire.CategoryScores, nil
	}
	if len(wire.Categories) == 0 {
		return nil, &ParseError{Endpoint: EndpointEnhancedScore, Message: "response has no category scores"}
	}
	rates := make(map[string]float64, len(wire.Categories))
	for _, cat := range wire.Categories {
		if cat.Name != "" && cat.Available {
			rates[cat.Name] = cat.Score
		}
	}
	return rates, nil
}

// JobStatusResponse is the state of a backend job
type JobStatusResponse struct {
	Status types.JobStatus  `json:"status"`
	Result *types.JobResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// JobStatus fetches the status of a backend job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, &TransportError{Endpoint: "/jobs/{id}/status", Message: "job id is required"}
	}
	path := fmt.Sprintf(endpointJobStatus, url.PathEscape(jobID))
	const endpoint = "/jobs/{id}/status"

	data, err := c.do(ctx, http.MethodGet, endpoint, path, nil)
	if err != nil {
		return nil, err
	}

	var resp JobStatusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ParseError{Endpoint: endpoint, Message: "invalid JSON response", Cause: err}
	}
	switch resp.Status {
	case types.JobPending, types.JobRunning, types.JobCompleted, types.JobFailed:
	default:
		return nil, &ParseError{Endpoint: endpoint, Message: fmt.Sprintf("unknown job status %q", resp.Status)}
	}
	return &resp, nil
}
