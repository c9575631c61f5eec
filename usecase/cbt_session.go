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

const sessionGreeting = "Hello, how can I help you today?"

// CBTSession drives one real-time therapy conversation: capture on the way
// out, classification and accumulation on the way in. It owns the transport
// and the capture pipeline for its lifetime; ending the session releases
// both.
type CBTSession struct {
	transport  repositories.Transport
	classifier Classifier
	log        *ConversationLog
	pipeline   *capture.Pipeline
	player     repositories.Player
	logger     *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Classifier is the slice of frame classification the session needs.
type Classifier interface {
	Classify(frame entities.InboundFrame) (entities.Message, bool)
}

func NewCBTSession(
	transport repositories.Transport,
	classifier Classifier,
	log *ConversationLog,
	pipeline *capture.Pipeline,
	player repositories.Player,
	logger *zap.Logger,
) *CBTSession {
	log.Append(entities.NewAssistantReply(sessionGreeting))
	return &CBTSession{
		transport:  transport,
		classifier: classifier,
		log:        log,
		pipeline:   pipeline,
		player:     player,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Log exposes the conversation log for rendering.
func (s *CBTSession) Log() *ConversationLog {
	return s.log
}

// Pipeline exposes the capture pipeline for mute toggles.
func (s *CBTSession) Pipeline() *capture.Pipeline {
	return s.pipeline
}

// Start begins capturing and consuming inbound traffic. Device acquisition
// failure aborts the session; a notice is accumulated and no capture state
// is left armed.
func (s *CBTSession) Start(ctx context.Context) error {
	if err := s.pipeline.Start(ctx); err != nil {
		s.log.Append(entities.NewSystemNotice("Could not access your microphone or camera. The session was not started."))
		return fmt.Errorf("start capture: %w", err)
	}

	kickoff := ws.StartSessionMessage{Type: ws.TypeStartSession, RequestID: uuid.NewString()}
	if payload, err := json.Marshal(kickoff); err == nil {
		s.transport.SendText(payload)
	}

	go s.consumeFrames()
	return nil
}

// OnUtteranceSent is wired as the capture pipeline hook: once an utterance
// is on the wire, an optimistic placeholder shows in the transcript until
// its transcription arrives.
func (s *CBTSession) OnUtteranceSent(entities.Utterance) {
	s.log.AddPending(entities.MessageRoleUser, entities.PendingTranscriptText)
}

func (s *CBTSession) consumeFrames() {
	for frame := range s.transport.Frames() {
		msg, ok := s.classifier.Classify(frame)
		if !ok {
			continue
		}
		s.handle(msg)
	}

	// Transport ended, whatever the cause. Represent it in the transcript
	// rather than failing.
	select {
	case <-s.done:
	default:
		s.log.Append(entities.NewSystemNotice("Connection closed."))
	}
}

func (s *CBTSession) handle(msg entities.Message) {
	switch msg.Kind {
	case entities.MessageKindTranscript:
		// Resolves the pending user placeholder.
		s.log.Append(msg)

	case entities.MessageKindAssistantReply:
		s.log.Append(msg)
		s.pipeline.ClearAwaiting()

	case entities.MessageKindAudioReply:
		s.log.Append(msg)
		s.pipeline.ClearAwaiting()
		if msg.Audio != nil && s.player != nil {
			// A new reply supersedes whatever is still playing.
			s.player.Stop()
			if err := s.player.Play(*msg.Audio); err != nil {
				s.logger.Warn("Could not play assistant audio", zap.Error(err))
			}
		}

	default:
		s.log.Append(msg)
	}
}

// Close ends the session: capture released, playback stopped, transport
// closed. Idempotent and safe from any state.
func (s *CBTSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.pipeline.Stop()
		if s.player != nil {
			s.player.Stop()
		}
		_ = s.transport.Close()
		s.logger.Info("Session ended")
	})
	return nil
}
