package entities

// BurnoutQuestion is one step of the burnout assessment. Multimodal
// questions are answered with a recorded utterance; the rest with text.
type BurnoutQuestion struct {
	QuestionID int    `json:"questionId"`
	Question   string `json:"question"`
	Domain     string `json:"domain"`
	Multimodal bool   `json:"multimodal"`
}

// AssessmentResult is the backend's final scoring of an assessment session.
type AssessmentResult struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}
