package models

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ScoredMatch is one candidate card scored against the normalized attributes.
// Score is always the sum of ScoreBreakdown.
type ScoredMatch struct {
	Card           Card           `json:"card"`
	Score          int            `json:"score"`
	ScoreBreakdown map[string]int `json:"score_breakdown"`
	Confidence     Confidence     `json:"confidence"`
	Reasoning      []string       `json:"reasoning"`
}

// SearchAttempt records one executed search strategy.
type SearchAttempt struct {
	Strategy    string         `json:"strategy"`
	Query       map[string]any `json:"query"`
	ResultCount int            `json:"result_count"`
	Error       string         `json:"error,omitempty"`
}
