package comparison

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/jonathan/ats-analyzer/internal/llm"
	"github.com/jonathan/ats-analyzer/internal/matching"
	"github.com/jonathan/ats-analyzer/internal/schemas"
	"github.com/jonathan/ats-analyzer/internal/types"
)

// maxUnwrapDepth bounds how many envelopes the adapter peels off.
const maxUnwrapDepth = 4

type wireMatch struct {
	Requirement string   `json:"requirement"`
	CVSkill     string   `json:"cv_skill"`
	MatchType   string   `json:"match_type"`
	Reasoning   string   `json:"reasoning"`
	Confidence  *float64 `json:"confidence"`
}

type wireMissing struct {
	Requirement string `json:"requirement"`
	Reasoning   string `json:"reasoning"`
}

type wireResult struct {
	Matched map[string][]wireMatch   `json:"matched"`
	Missing map[string][]wireMissing `json:"missing"`
}

// locate finds the canonical comparison document inside a reply. It accepts
// the document itself, a {"comparison_result": ...} envelope, a
// {"raw_response": "..."} envelope and bare text with JSON embedded in it.
func locate(body []byte) ([]byte, error) {
	doc := bytes.TrimSpace(body)
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		if len(doc) == 0 {
			return nil, &ParseError{Message: "empty response"}
		}

		if doc[0] != '{' {
			// a JSON string holding the reply, or bare text
			var text string
			if doc[0] == '"' && json.Unmarshal(doc, &text) == nil {
				doc = bytes.TrimSpace([]byte(text))
				continue
			}
			extracted := llm.ExtractJSON(string(doc))
			if !strings.HasPrefix(extracted, "{") {
				return nil, &ParseError{Message: "response contains no JSON object"}
			}
			doc = []byte(extracted)
			continue
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(doc, &envelope); err != nil {
			return nil, &ParseError{Message: "invalid JSON", Cause: err}
		}
		if _, ok := envelope["matched"]; ok {
			return doc, nil
		}
		if inner, ok := envelope["comparison_result"]; ok {
			doc = bytes.TrimSpace(inner)
			continue
		}
		if raw, ok := envelope["raw_response"]; ok {
			doc = bytes.TrimSpace(raw)
			continue
		}
		if _, ok := envelope["missing"]; ok {
			return doc, nil
		}
		return nil, &ParseError{Message: "unrecognized response shape"}
	}
	return nil, &ParseError{Message: "response nested too deeply"}
}

// decode validates the canonical document and decodes it.
func decode(doc []byte) (*wireResult, error) {
	if err := schemas.Validate(schemas.ComparisonSchema, doc); err != nil {
		return nil, &ParseError{Message: "response does not match comparison schema", Cause: err}
	}
	var wire wireResult
	if err := json.Unmarshal(doc, &wire); err != nil {
		return nil, &ParseError{Message: "invalid comparison document", Cause: err}
	}
	for key := range wire.Matched {
		if _, err := types.ParseCategory(key); err != nil {
			return nil, &ParseError{Message: "unknown matched category", Cause: err}
		}
	}
	for key := range wire.Missing {
		if _, err := types.ParseCategory(key); err != nil {
			return nil, &ParseError{Message: "unknown missing category", Cause: err}
		}
	}
	return &wire, nil
}

// Adapt turns a raw comparison reply into a canonical result for jd. The
// remote classification is kept as is: records never move between matched
// and missing. Duplicate entries, blank entries and requirements the job
// description does not list are dropped, requirements the reply did not
// classify are reported missing, matches are consolidated and the summary is
// recomputed.
func Adapt(body []byte, jd types.SkillSet) (*types.ComparisonResult, error) {
	doc, err := locate(body)
	if err != nil {
		return nil, err
	}
	wire, err := decode(doc)
	if err != nil {
		return nil, err
	}

	result := &types.ComparisonResult{Source: types.SourceRemote}
	for _, cat := range types.Categories {
		known := make(map[string]bool)
		for _, req := range jd.Get(cat) {
			known[types.SkillKey(req)] = true
		}
		matches, classified := adaptMatches(categoryEntries(wire.Matched, cat), known)
		missing := adaptMissing(categoryEntries(wire.Missing, cat), known, classified)

		for _, req := range jd.Get(cat) {
			key := types.SkillKey(req)
			if classified[key] {
				continue
			}
			classified[key] = true
			missing = append(missing, types.MissingRecord{
				Requirement: req,
				Reasoning:   "not classified by the comparison service",
			})
		}

		result.Matched.Set(cat, matching.Consolidate(matches))
		result.Missing.Set(cat, missing)
	}

	result.Recompute(nil)
	if err := result.Validate(); err != nil {
		return nil, &ParseError{Message: "inconsistent comparison", Cause: err}
	}
	return result, nil
}

// categoryEntries looks up a category case-insensitively.
func categoryEntries[T any](m map[string][]T, cat types.Category) []T {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []T
	for _, key := range keys {
		if c, err := types.ParseCategory(key); err == nil && c == cat {
			out = append(out, m[key]...)
		}
	}
	return out
}

// adaptMatches normalizes match records, keeping the first record for each
// known requirement. Records with a blank side or a requirement outside
// known are dropped. classified holds the requirements the records cover.
func adaptMatches(wire []wireMatch, known map[string]bool) ([]types.MatchRecord, map[string]bool) {
	classified := make(map[string]bool)
	matches := make([]types.MatchRecord, 0, len(wire))
	for _, w := range wire {
		req := strings.TrimSpace(w.Requirement)
		cv := strings.TrimSpace(w.CVSkill)
		if req == "" || cv == "" {
			continue
		}
		key := types.SkillKey(req)
		if !known[key] || classified[key] {
			continue
		}
		classified[key] = true

		matches = append(matches, types.MatchRecord{
			Requirement: req,
			CVSkill:     cv,
			MatchType:   matchTypeOf(w.MatchType, req, cv),
			Reasoning:   strings.TrimSpace(w.Reasoning),
			Confidence:  w.Confidence,
		})
	}
	return matches, classified
}

// adaptMissing drops missing entries for requirements already classified
// or outside known, and classifies the rest.
func adaptMissing(wire []wireMissing, known, classified map[string]bool) []types.MissingRecord {
	missing := make([]types.MissingRecord, 0, len(wire))
	for _, w := range wire {
		req := strings.TrimSpace(w.Requirement)
		key := types.SkillKey(req)
		if req == "" || !known[key] || classified[key] {
			continue
		}
		classified[key] = true
		missing = append(missing, types.MissingRecord{
			Requirement: req,
			Reasoning:   strings.TrimSpace(w.Reasoning),
		})
	}
	return missing
}

// matchTypeOf keeps a valid remote match type and fills an absent one.
func matchTypeOf(raw, req, cv string) types.MatchType {
	mt := types.MatchType(strings.ToLower(strings.TrimSpace(raw)))
	if mt.Valid() {
		return mt
	}
	if types.EqualFold(req, cv) {
		return types.MatchExact
	}
	return types.MatchSemantic
}
