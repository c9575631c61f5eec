package usecase

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	ws "github.com/maremivazquez1/dta-client/internal/websocket"
)

// ConversationLog is the append-only ordered record of a session's
// classified messages. The only in-place mutation is resolving a pending
// placeholder with its arrived content.
type ConversationLog struct {
	mu       sync.Mutex
	messages []entities.Message

	completed bool
	onResult  func(entities.AssessmentResult)

	logger *zap.Logger
}

func NewConversationLog(logger *zap.Logger) *ConversationLog {
	return &ConversationLog{logger: logger}
}

// OnAssessmentResult registers the session-completion side effect. It fires
// exactly once per session, even if duplicate result frames arrive.
func (l *ConversationLog) OnAssessmentResult(fn func(entities.AssessmentResult)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onResult = fn
}

// Append adds a message in arrival order. A transcript or assistant reply
// resolves a pending placeholder of the same role in place when one exists;
// there is at most one pending placeholder per role at a time.
func (l *ConversationLog) Append(msg entities.Message) {
	var fire func(entities.AssessmentResult)
	var result entities.AssessmentResult

	l.mu.Lock()
	if l.resolvesPending(msg) {
		for i := range l.messages {
			if l.messages[i].Pending && l.messages[i].Role == msg.Role {
				msg.Pending = false
				l.messages[i] = msg
				l.mu.Unlock()
				return
			}
		}
	}
	l.messages = append(l.messages, msg)

	if msg.Kind == entities.MessageKindDomainEvent &&
		msg.Event != nil && msg.Event.Kind == ws.TypeAssessmentResult && !l.completed {
		if err := json.Unmarshal(msg.Event.Payload, &result); err != nil {
			l.logger.Error("Failed to decode assessment result", zap.Error(err))
		} else {
			l.completed = true
			fire = l.onResult
		}
	}
	l.mu.Unlock()

	if fire != nil {
		fire(result)
	}
}

func (l *ConversationLog) resolvesPending(msg entities.Message) bool {
	if msg.Pending {
		return false
	}
	return msg.Kind == entities.MessageKindTranscript ||
		msg.Kind == entities.MessageKindAssistantReply
}

// AddPending inserts an unresolved placeholder for role, shown until its
// resolution arrives. A second pending entry for the same role is refused.
func (l *ConversationLog) AddPending(role entities.MessageRole, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.messages {
		if l.messages[i].Pending && l.messages[i].Role == role {
			l.logger.Warn("Pending placeholder already present", zap.String("role", string(role)))
			return
		}
	}
	l.messages = append(l.messages, entities.NewPending(role, text))
}

// Messages returns a snapshot of the full ordered log.
func (l *ConversationLog) Messages() []entities.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entities.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Completed reports whether the assessment-result side effect has fired.
func (l *ConversationLog) Completed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}
