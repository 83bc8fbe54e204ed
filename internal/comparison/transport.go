package comparison

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/llm"
	"github.com/jonathan/ats-analyzer/internal/prompts"
	"github.com/jonathan/ats-analyzer/internal/types"
)

// Request is one comparison to perform
type Request struct {
	CVSkills types.SkillSet
	JDSkills types.SkillSet
	JDText   string
}

// Transport delivers a comparison request to a semantic matcher and returns
// its raw reply.
type Transport interface {
	Compare(ctx context.Context, req Request) ([]byte, error)
}

// SkillComparer is the part of the backend client the HTTP transport needs.
type SkillComparer interface {
	CompareSkills(ctx context.Context, req backend.CompareSkillsRequest) ([]byte, error)
}

// HTTPTransport sends comparisons to the backend's /compare-skills endpoint.
type HTTPTransport struct {
	client SkillComparer
	// SendPrompt includes the rendered matching prompt so the backend can
	// forward it to its own model.
	SendPrompt bool
}

// NewHTTPTransport creates a transport over the backend client.
func NewHTTPTransport(client SkillComparer) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Compare implements Transport.
func (t *HTTPTransport) Compare(ctx context.Context, req Request) ([]byte, error) {
	body := backend.CompareSkillsRequest{
		CVSkills: req.CVSkills,
		JDSkills: req.JDSkills,
		JDText:   req.JDText,
	}
	if t.SendPrompt {
		prompt, err := BuildPrompt(req)
		if err != nil {
			return nil, err
		}
		body.Prompt = prompt
	}
	return t.client.CompareSkills(ctx, body)
}

// LLMTransport asks a language model directly.
type LLMTransport struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMTransport creates a transport over an LLM client.
func NewLLMTransport(client llm.Client, tier llm.ModelTier) *LLMTransport {
	if tier == "" {
		tier = llm.TierStandard
	}
	return &LLMTransport{client: client, tier: tier}
}

// Compare implements Transport.
func (t *LLMTransport) Compare(ctx context.Context, req Request) ([]byte, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}
	text, err := t.client.GenerateJSON(ctx, prompt, t.tier)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// BuildPrompt renders the matching prompt for a request.
func BuildPrompt(req Request) (string, error) {
	template, err := prompts.Get(prompts.ComparisonFile, prompts.KeyCompareSkills)
	if err != nil {
		return "", err
	}
	cv, err := json.Marshal(req.CVSkills)
	if err != nil {
		return "", fmt.Errorf("failed to encode CV skills: %w", err)
	}
	jd, err := json.Marshal(req.JDSkills)
	if err != nil {
		return "", fmt.Errorf("failed to encode JD skills: %w", err)
	}
	return prompts.Format(template, map[string]string{
		"CVSkills": string(cv),
		"JDSkills": string(jd),
		"JDText":   req.JDText,
	}), nil
}
