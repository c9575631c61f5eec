package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/domain/repositories"
	"github.com/maremivazquez1/dta-client/internal/capture"
	ws "github.com/maremivazquez1/dta-client/internal/websocket"
)

// BurnoutAssessment runs the multi-step burnout questionnaire over the
// session socket: kickoff, question batch, per-question answers, the
// end-of-assessment signal, and the final result.
type BurnoutAssessment struct {
	transport  repositories.Transport
	classifier Classifier
	log        *ConversationLog
	userID     string
	logger     *zap.Logger

	mu           sync.Mutex
	sessionID    string
	questions    []entities.BurnoutQuestion
	responses    map[int]string
	current      int
	started      bool
	completeSent bool
	pipeline     *capture.Pipeline
	store        repositories.CredentialStore

	utterances     chan entities.Utterance
	questionsReady chan struct{}
	done           chan struct{}
}

func NewBurnoutAssessment(
	transport repositories.Transport,
	classifier Classifier,
	log *ConversationLog,
	userID string,
	logger *zap.Logger,
) *BurnoutAssessment {
	a := &BurnoutAssessment{
		transport:      transport,
		classifier:     classifier,
		log:            log,
		userID:         userID,
		logger:         logger,
		responses:      make(map[int]string),
		utterances:     make(chan entities.Utterance, 1),
		questionsReady: make(chan struct{}),
		done:           make(chan struct{}),
	}
	return a
}

// AttachCapture wires a capture pipeline for multimodal questions. The
// pipeline must dispatch over this assessment's transport and call
// OnUtteranceSent from its hook.
func (a *BurnoutAssessment) AttachCapture(pipeline *capture.Pipeline) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pipeline = pipeline
}

// PersistSessionID registers a store; the backend-assigned session id is
// written there when the question batch arrives.
func (a *BurnoutAssessment) PersistSessionID(store repositories.CredentialStore) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = store
}

// OnUtteranceSent is wired as the capture pipeline hook: the dispatched
// utterance answers the active multimodal question.
func (a *BurnoutAssessment) OnUtteranceSent(u entities.Utterance) {
	select {
	case a.utterances <- u:
	default:
		a.logger.Warn("Utterance dropped; no multimodal answer pending",
			zap.String("fileID", u.FileID))
	}
}

// AnswerWithRecording answers a multimodal question with a recorded
// utterance: it waits for the capture pipeline to dispatch the utterance's
// header+blob pair over the session socket, then submits the utterance file
// id as the response, correlating the answer with its uploaded media.
func (a *BurnoutAssessment) AnswerWithRecording(ctx context.Context, questionID int) error {
	a.mu.Lock()
	pipeline := a.pipeline
	a.mu.Unlock()
	if pipeline == nil {
		return fmt.Errorf("no capture pipeline attached")
	}

	select {
	case u := <-a.utterances:
		// Assessments have no assistant reply to re-open the turn gate, so
		// the next question's recording is unblocked here.
		pipeline.ClearAwaiting()
		return a.Answer(questionID, u.FileID)
	case <-ctx.Done():
		return fmt.Errorf("waiting for recorded answer: %w", ctx.Err())
	}
}

// OnResult registers the completion side effect, fired exactly once per
// session even if duplicate result frames arrive.
func (a *BurnoutAssessment) OnResult(fn func(entities.AssessmentResult)) {
	a.log.OnAssessmentResult(func(res entities.AssessmentResult) {
		fn(res)
		close(a.done)
	})
}

// Start sends the assessment kickoff exactly once, on the first open
// transition, and begins consuming inbound traffic.
func (a *BurnoutAssessment) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("assessment already started")
	}
	a.started = true
	a.mu.Unlock()

	kickoff := ws.StartBurnoutMessage{
		Type:      ws.TypeStartBurnout,
		RequestID: uuid.NewString(),
		UserID:    a.userID,
	}
	payload, err := json.Marshal(kickoff)
	if err != nil {
		return fmt.Errorf("encode kickoff: %w", err)
	}
	a.transport.SendText(payload)
	a.logger.Info("Assessment kickoff sent", zap.String("requestID", kickoff.RequestID))

	go a.consumeFrames()
	return nil
}

func (a *BurnoutAssessment) consumeFrames() {
	for frame := range a.transport.Frames() {
		msg, ok := a.classifier.Classify(frame)
		if !ok {
			continue
		}
		a.log.Append(msg)

		if msg.Kind == entities.MessageKindDomainEvent &&
			msg.Event != nil && msg.Event.Kind == ws.TypeBurnoutQuestions {
			a.loadQuestions(msg.Event.Payload)
		}
	}
	a.log.Append(entities.NewSystemNotice("Connection closed."))
}

func (a *BurnoutAssessment) loadQuestions(payload json.RawMessage) {
	var batch ws.BurnoutQuestionsMessage
	if err := json.Unmarshal(payload, &batch); err != nil {
		a.logger.Error("Failed to decode question batch", zap.Error(err))
		return
	}

	a.mu.Lock()
	first := a.questions == nil
	a.sessionID = batch.SessionID
	a.questions = batch.Questions
	store := a.store
	a.mu.Unlock()

	if store != nil {
		if err := store.Put(repositories.KeySessionID, batch.SessionID); err != nil {
			a.logger.Warn("Could not persist session id", zap.Error(err))
		}
	}
	if first {
		close(a.questionsReady)
	}
	a.logger.Info("Questions received",
		zap.String("sessionID", batch.SessionID),
		zap.Int("count", len(batch.Questions)))
}

// QuestionsReady is closed once the question batch has arrived.
func (a *BurnoutAssessment) QuestionsReady() <-chan struct{} {
	return a.questionsReady
}

// Done is closed once the completion side effect has fired.
func (a *BurnoutAssessment) Done() <-chan struct{} {
	return a.done
}

// Questions returns the question batch.
func (a *BurnoutAssessment) Questions() []entities.BurnoutQuestion {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]entities.BurnoutQuestion, len(a.questions))
	copy(out, a.questions)
	return out
}

// SessionID returns the backend-assigned assessment session id.
func (a *BurnoutAssessment) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// CurrentQuestion returns the active step, or false past the last one.
func (a *BurnoutAssessment) CurrentQuestion() (entities.BurnoutQuestion, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current < 0 || a.current >= len(a.questions) {
		return entities.BurnoutQuestion{}, false
	}
	return a.questions[a.current], true
}

// Answer records and submits the response for one question. Multimodal
// answers pass the utterance file id as the response, correlating the
// answer with its uploaded media.
func (a *BurnoutAssessment) Answer(questionID int, response string) error {
	a.mu.Lock()
	if a.sessionID == "" {
		a.mu.Unlock()
		return fmt.Errorf("no assessment session yet")
	}
	a.responses[questionID] = response
	sessionID := a.sessionID
	a.mu.Unlock()

	msg := ws.AnswerMessage{
		Type:       ws.TypeAnswer,
		SessionID:  sessionID,
		QuestionID: questionID,
		Response:   response,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	a.transport.SendText(payload)
	return nil
}

// Next advances past the current question; it requires an answer first. On
// leaving the last question the end-of-assessment signal is sent, exactly
// once.
func (a *BurnoutAssessment) Next() error {
	a.mu.Lock()
	q, ok := a.currentLocked()
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("no active question")
	}
	if _, answered := a.responses[q.QuestionID]; !answered {
		a.mu.Unlock()
		return fmt.Errorf("question %d not answered", q.QuestionID)
	}
	a.current++
	finished := a.current >= len(a.questions) && !a.completeSent
	if finished {
		a.completeSent = true
	}
	sessionID := a.sessionID
	a.mu.Unlock()

	if !finished {
		return nil
	}

	complete := ws.AssessmentCompleteMessage{
		Type:      ws.TypeAssessmentComplete,
		SessionID: sessionID,
	}
	payload, err := json.Marshal(complete)
	if err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}
	a.transport.SendText(payload)
	a.logger.Info("Assessment complete signal sent", zap.String("sessionID", sessionID))
	return nil
}

func (a *BurnoutAssessment) currentLocked() (entities.BurnoutQuestion, bool) {
	if a.current < 0 || a.current >= len(a.questions) {
		return entities.BurnoutQuestion{}, false
	}
	return a.questions[a.current], true
}
