package queue

const (
	TypeAnalysisRun = "analysis:run"
)

// AnalysisRunPayload names a pending assessment whose recording is already
// in object storage.
type AnalysisRunPayload struct {
	AssessmentID string `json:"assessment_id"`
}
