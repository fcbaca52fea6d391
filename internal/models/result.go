package models

// VideoMetadata describes an uploaded video after validation.
type VideoMetadata struct {
	FileName   string  `json:"fileName"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
	Resolution string  `json:"resolution"`
	Type       string  `json:"type"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// StepResult is the verdict for a single action step.
type StepResult string

const (
	StepPass    StepResult = "pass"
	StepFail    StepResult = "fail"
	StepUnknown StepResult = "unknown"
)

// ActionStep is one scored sub-behavior of inhaler technique. Time, Score
// and ConfidenceScore are index-aligned parallel sequences; all three may
// be empty, which means the step was not detected.
type ActionStep struct {
	ID              string       `json:"id"`
	Order           int          `json:"order"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Time            []float64    `json:"time"`
	Score           []int        `json:"score"`
	ConfidenceScore [][2]float64 `json:"confidenceScore"`
	Result          StepResult   `json:"result"`
}

// Detected reports whether the step was observed at least once.
func (s ActionStep) Detected() bool {
	return len(s.Time) > 0
}

// ReferenceTimes are the three backend-detected timestamps bounding the
// inhaler-use event within the video. The inhalerIN <= faceONinhaler <=
// inhalerOUT ordering is descriptive, not enforced.
type ReferenceTimes struct {
	InhalerIN     float64 `json:"inhalerIN"`
	FaceONInhaler float64 `json:"faceONinhaler"`
	InhalerOUT    float64 `json:"inhalerOUT"`
}

// Ordered reports whether the timestamps respect their nominal ordering.
func (r ReferenceTimes) Ordered() bool {
	return r.InhalerIN <= r.FaceONInhaler && r.FaceONInhaler <= r.InhalerOUT
}

type AnalysisSummary struct {
	TotalSteps  int     `json:"totalSteps"`
	PassedSteps int     `json:"passedSteps"`
	FailedSteps int     `json:"failedSteps"`
	Score       float64 `json:"score"`
}

type ModelInfo struct {
	Models       []string `json:"models"`
	AnalysisTime float64  `json:"analysisTime"`
}

// AnalysisResult is the structure produced exactly once per completed run
// by the external analysis backend.
type AnalysisResult struct {
	Status         string          `json:"status"`
	DeviceType     string          `json:"deviceType"`
	VideoInfo      *VideoMetadata  `json:"videoInfo"`
	ReferenceTimes *ReferenceTimes `json:"referenceTimes"`
	ActionSteps    []ActionStep    `json:"actionSteps"`
	Summary        *AnalysisSummary `json:"summary"`
	ModelInfo      *ModelInfo      `json:"modelInfo"`
	Errors         []string        `json:"errors"`
}
