package fluency

// Report is the complete assessment of one recording. Its JSON field names
// and value ranges are the engine's output contract.
type Report struct {
	Text        string       `json:"text"`
	CleanedText string       `json:"cleaned_text"`
	FillerWords []FillerSpan `json:"filler_words"`
	FillerCount int          `json:"filler_count"`

	DurationSeconds float64 `json:"duration_seconds"`
	WordCount       int     `json:"word_count"`
	WPM             float64 `json:"wpm"`

	TotalPauses          int       `json:"total_pauses"`
	TotalHesitations     int       `json:"total_hesitations"`
	PauseDurations       []float64 `json:"pause_durations"`
	AveragePauseDuration float64   `json:"average_pause_duration"`
	TotalPauseTime       float64   `json:"total_pause_time"`
	HesitationWords      []string  `json:"hesitation_words"`

	FluencyScore   float64 `json:"fluency_score"`
	PauseRatio     float64 `json:"pause_ratio"`
	HesitationRate float64 `json:"hesitation_rate"`

	ConfidenceScore float64  `json:"confidence_score"`
	WPMScore        float64  `json:"wpm_score"`
	FillerScore     float64  `json:"filler_score"`
	PauseScore      float64  `json:"pause_score"`
	HesitationScore float64  `json:"hesitation_score"`
	OverallRating   string   `json:"overall_rating"`
	Recommendations []string `json:"recommendations"`
}
