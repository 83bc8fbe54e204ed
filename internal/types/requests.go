//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnalyzeRequest starts an analysis of one CV against one job description.
type AnalyzeRequest struct {
	CVID       string `json:"cv_id" validate:"required,max=256"`
	JDText     string `json:"jd_text" validate:"required,max=100000"`
	ForceRerun bool   `json:"force_rerun,omitempty"`
}

// RefreshRequest re-runs the last analysis of a session.
type RefreshRequest struct {
	ForceRerun bool `json:"force_rerun,omitempty"`
}

// Validate trims the request and validates it using the validator.
func (r *AnalyzeRequest) Validate() error {
	r.CVID = strings.TrimSpace(r.CVID)
	r.JDText = strings.TrimSpace(r.JDText)
	validate := validator.New()
	return validate.Struct(r)
}

// AnalysisResponse is the query surface of one analysis session.
type AnalysisResponse struct {
	SessionID string          `json:"session_id"`
	State     State           `json:"state"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}
