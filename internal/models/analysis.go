package models

import "time"

// Modality is one independent analysis channel.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVoice Modality = "voice"
	ModalityFace  Modality = "face"
)

// Modalities lists every modality in the order used for tie-breaking and reporting.
var Modalities = []Modality{ModalityText, ModalityVoice, ModalityFace}

// ParseModality converts s into a Modality, reporting whether it is known.
func ParseModality(s string) (Modality, bool) {
	switch m := Modality(s); m {
	case ModalityText, ModalityVoice, ModalityFace:
		return m, true
	default:
		return "", false
	}
}

// ResultState is the terminal state of an analysis or fusion request.
type ResultState string

const (
	StateSucceeded   ResultState = "succeeded"
	StateDegraded    ResultState = "degraded"
	StateUnavailable ResultState = "unavailable"
)

// FallbackReason explains why a fallback result was produced instead of live data.
type FallbackReason string

const (
	ReasonTimeout           FallbackReason = "timeout"
	ReasonUnreachable       FallbackReason = "unreachable"
	ReasonBadStatus         FallbackReason = "bad_status"
	ReasonMalformedResponse FallbackReason = "malformed_response"
	ReasonCircuitOpen       FallbackReason = "circuit_open"
	ReasonNotConfigured     FallbackReason = "not_configured"
)

// NeutralLabel is reported whenever no live emotion data is available.
const NeutralLabel = "neutral"

// AnalysisRequest is a single-modality payload sent to an analysis service.
// Text carries the text modality, Blob carries audio or image bytes.
type AnalysisRequest struct {
	Modality Modality
	UserID   string
	Text     string
	Blob     []byte
}

// AnalysisResult is the outcome of one modality. Unavailable results carry a Reason
// and must never contribute to a fusion.
type AnalysisResult struct {
	Modality Modality       `json:"modality"`
	Label    string         `json:"label"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
	State    ResultState    `json:"state"`
	Reason   FallbackReason `json:"reason,omitempty"`
}

// Live reports whether the result carries data returned by the analysis service.
func (r AnalysisResult) Live() bool {
	return r.State == StateSucceeded
}

// FallbackResult builds the neutral placeholder returned when a modality cannot be analyzed.
func FallbackResult(modality Modality, reason FallbackReason) AnalysisResult {
	return AnalysisResult{
		Modality: modality,
		Label:    NeutralLabel,
		Score:    0,
		State:    StateUnavailable,
		Reason:   reason,
	}
}

// FusionRequest holds at most one request per modality for a single user.
type FusionRequest struct {
	UserID   string
	Requests []AnalysisRequest
}

// ModalityBreakdown records how one requested modality took part in a fusion.
type ModalityBreakdown struct {
	Modality        Modality       `json:"modality"`
	BaseWeight      float64        `json:"baseWeight"`
	EffectiveWeight float64        `json:"effectiveWeight"`
	Contributed     bool           `json:"contributed"`
	Result          AnalysisResult `json:"result"`
}

// FusionResult combines whichever modalities returned live data.
type FusionResult struct {
	FusionID   string              `json:"fusionId"`
	UserID     string              `json:"userId"`
	Label      string              `json:"label"`
	Score      float64             `json:"score"`
	Confidence float64             `json:"confidence"`
	State      ResultState         `json:"state"`
	NoData     bool                `json:"noData"`
	Breakdown  []ModalityBreakdown `json:"breakdown"`
	Excluded   []Modality          `json:"excluded"`
	Summary    string              `json:"summary"`
	CreatedAt  time.Time           `json:"createdAt"`
}
