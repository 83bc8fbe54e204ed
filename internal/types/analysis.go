//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"
)

// State is the lifecycle state of an analysis controller
type State string

// State constants
const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateCompleted State = "completed"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transitions happen without a new request.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// Phase names one step of the progressive reveal
type Phase string

// Phase constants in default reveal order
const (
	PhaseSkills            Phase = "skills"
	PhaseMatchAnalysis     Phase = "match_analysis"
	PhaseSkillComparison   Phase = "skill_comparison"
	PhaseComponentAnalysis Phase = "component_analysis"
	PhaseAIRecommendation  Phase = "ai_recommendation"
)

// DefaultPhaseOrder is the reveal order used unless configured otherwise.
var DefaultPhaseOrder = []Phase{
	PhaseSkills,
	PhaseMatchAnalysis,
	PhaseSkillComparison,
	PhaseComponentAnalysis,
	PhaseAIRecommendation,
}

// ExtractedSkills holds the skill sets extracted from the CV and the JD
type ExtractedSkills struct {
	CV SkillSet `json:"cv"`
	JD SkillSet `json:"jd"`
}

// AIRecommendation is the backend's narrative advice for the candidate
type AIRecommendation struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// JobStatus is the state of an asynchronous backend job
type JobStatus string

// JobStatus constants
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobResult is the payload of a completed backend job. Any field may be nil
// when the backend could not produce it.
type JobResult struct {
	ComponentAnalysis *ATSScoreBreakdown `json:"component_analysis,omitempty"`
	FinalATSScore     *float64           `json:"final_ats_score,omitempty"`
	AIRecommendation  *AIRecommendation  `json:"ai_recommendation,omitempty"`
}

// AnalysisResult is everything known about one (CV, JD) analysis.
// Nil sub-results are not yet available.
type AnalysisResult struct {
	SessionID         string             `json:"session_id"`
	CVID              string             `json:"cv_id"`
	JDFingerprint     string             `json:"jd_fingerprint"`
	JobID             string             `json:"job_id,omitempty"`
	Skills            *ExtractedSkills   `json:"skills,omitempty"`
	Requirements      []Requirement      `json:"requirements,omitempty"`
	MatchAnalysis     *ATSScoreBreakdown `json:"match_analysis,omitempty"`
	Comparison        *ComparisonResult  `json:"comparison,omitempty"`
	ComponentAnalysis *ATSScoreBreakdown `json:"component_analysis,omitempty"`
	FinalATSScore     *float64           `json:"final_ats_score,omitempty"`
	AIRecommendation  *AIRecommendation  `json:"ai_recommendation,omitempty"`
	RevealedPhases    []Phase            `json:"revealed_phases"`
	FromCache         bool               `json:"from_cache"`
	Elapsed           time.Duration      `json:"elapsed"`
	CreatedAt         time.Time          `json:"created_at"`
}

// ValidPhase reports whether p is one of the known reveal phases.
func ValidPhase(p Phase) bool {
	for _, known := range DefaultPhaseOrder {
		if p == known {
			return true
		}
	}
	return false
}

// HasPhase reports whether the data backing a phase is present.
func (r *AnalysisResult) HasPhase(p Phase) bool {
	switch p {
	case PhaseSkills:
		return r.Skills != nil
	case PhaseMatchAnalysis:
		return r.MatchAnalysis != nil
	case PhaseSkillComparison:
		return r.Comparison != nil
	case PhaseComponentAnalysis:
		return r.ComponentAnalysis != nil || r.FinalATSScore != nil
	case PhaseAIRecommendation:
		return r.AIRecommendation != nil
	default:
		return false
	}
}

// IsComplete reports whether every phase has data.
func (r *AnalysisResult) IsComplete() bool {
	for _, p := range DefaultPhaseOrder {
		if !r.HasPhase(p) {
			return false
		}
	}
	return true
}

// Revealed reports whether a phase has been disclosed to the caller.
func (r *AnalysisResult) Revealed(p Phase) bool {
	for _, rp := range r.RevealedPhases {
		if rp == p {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Skills != nil {
		skills := *r.Skills
		out.Skills = &skills
	}
	if r.Requirements != nil {
		out.Requirements = make([]Requirement, len(r.Requirements))
		copy(out.Requirements, r.Requirements)
	}
	out.MatchAnalysis = r.MatchAnalysis.Clone()
	out.Comparison = r.Comparison.Clone()
	out.ComponentAnalysis = r.ComponentAnalysis.Clone()
	if r.FinalATSScore != nil {
		score := *r.FinalATSScore
		out.FinalATSScore = &score
	}
	if r.AIRecommendation != nil {
		rec := *r.AIRecommendation
		rec.Strengths = cloneStrings(r.AIRecommendation.Strengths)
		rec.Recommendations = cloneStrings(r.AIRecommendation.Recommendations)
		out.AIRecommendation = &rec
	}
	out.RevealedPhases = make([]Phase, len(r.RevealedPhases))
	copy(out.RevealedPhases, r.RevealedPhases)
	return &out
}
