package websocket

import (
	"time"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

// Outbound message types (client to backend).
const (
	TypeStartBurnout       = "start-burnout"
	TypeStartSession       = "start-session"
	TypeHeader             = "header"
	TypeAnswer             = "answer"
	TypeAssessmentComplete = "assessment-complete"
)

// Inbound message types (backend to client).
const (
	TypeInputTranscription  = "input-transcription"
	TypeOutputTranscription = "output-transcription"
	TypeAudio               = "audio"
	TypeBurnoutQuestions    = "burnout-questions"
	TypeAssessmentResult    = "assessment-result"
)

// StartBurnoutMessage kicks off an assessment session. Sent exactly once,
// on the first open transition.
type StartBurnoutMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	UserID    string `json:"userId,omitempty"`
}

// StartSessionMessage kicks off a conversational CBT session.
type StartSessionMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	UserID    string `json:"userId,omitempty"`
}

// HeaderMessage frames one media blob. It is always written immediately
// before the binary frame it describes, and a header+blob pair is never
// interleaved with another utterance's pair.
type HeaderMessage struct {
	Type           string            `json:"type"`
	SessionID      string            `json:"session_id"`
	FileID         string            `json:"file_id"`
	Modality       entities.Modality `json:"modality"`
	TimestampStart string            `json:"timestamp_start"`
	TimestampEnd   string            `json:"timestamp_end"`
	UserID         string            `json:"user_id"`
}

// NewHeaderMessage builds the header for one modality of an utterance.
func NewHeaderMessage(sessionID, userID string, u entities.Utterance, m entities.Modality) HeaderMessage {
	return HeaderMessage{
		Type:           TypeHeader,
		SessionID:      sessionID,
		FileID:         u.FileID,
		Modality:       m,
		TimestampStart: u.Start.Format(time.RFC3339Nano),
		TimestampEnd:   u.End.Format(time.RFC3339Nano),
		UserID:         userID,
	}
}

// AnswerMessage submits a non-multimodal assessment answer.
type AnswerMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	QuestionID int    `json:"questionId"`
	Response   string `json:"response"`
}

// AssessmentCompleteMessage is the end-of-assessment signal, sent exactly
// once per session.
type AssessmentCompleteMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// BurnoutQuestionsMessage is the backend's question batch.
type BurnoutQuestionsMessage struct {
	Type      string                     `json:"type"`
	SessionID string                     `json:"sessionId"`
	Questions []entities.BurnoutQuestion `json:"questions"`
}

// AssessmentResultMessage is the backend's final score, the single trigger
// for session-completion side effects.
type AssessmentResultMessage struct {
	Type    string  `json:"type"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}
