package websocket

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

// inboundEnvelope sniffs the discriminator and common fields of a text
// frame. Unknown fields are ignored; the raw payload travels with domain
// events so consumers can decode the full shape.
type inboundEnvelope struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Audio string          `json:"audio"`
	Error json.RawMessage `json:"error"`
	Code  int             `json:"code"`
}

// Classifier converts inbound frames into conversation messages. It is pure
// apart from logging: no I/O, no retained state.
type Classifier struct {
	logger *zap.Logger
}

func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify maps one inbound frame to at most one conversation message. It
// never fails: malformed or unrecognized frames are logged and dropped,
// reported by ok == false.
func (cl *Classifier) Classify(frame entities.InboundFrame) (entities.Message, bool) {
	switch frame.Kind {
	case entities.FrameBinary:
		// Binary frames are always synthesized audio. Default MIME is
		// audio/mpeg unless the protocol framed it otherwise.
		clip := &entities.AudioClip{MIME: "audio/mpeg", Data: frame.Payload}
		return entities.NewAudioReply("", clip), true

	case entities.FrameText:
		return cl.classifyText(frame.Payload)

	default:
		cl.logger.Warn("Unknown frame kind dropped", zap.Int("kind", int(frame.Kind)))
		return entities.Message{}, false
	}
}

func (cl *Classifier) classifyText(payload []byte) (entities.Message, bool) {
	var env inboundEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		cl.logger.Warn("Malformed text frame dropped", zap.Error(err))
		return entities.Message{}, false
	}

	// Upstream processing errors are presented as the assistant briefly
	// failing to respond, not as raw error text.
	if len(env.Error) > 0 && string(env.Error) != "null" {
		cl.logger.Warn("Upstream error frame",
			zap.ByteString("error", env.Error),
			zap.Int("code", env.Code))
		return entities.NewAudioReply(entities.AudioErrorFallbackText, nil), true
	}

	switch env.Type {
	case TypeInputTranscription:
		return entities.NewTranscript(env.Text), true

	case TypeOutputTranscription:
		return entities.NewAssistantReply(env.Text), true

	case TypeAudio:
		var clip *entities.AudioClip
		if env.Audio != "" {
			clip = &entities.AudioClip{MIME: "audio/mpeg", URL: env.Audio}
		}
		return entities.NewAudioReply(env.Text, clip), true

	case TypeBurnoutQuestions, TypeAssessmentResult:
		return entities.NewDomainEvent(env.Type, json.RawMessage(payload)), true

	default:
		cl.logger.Warn("Unrecognized message type dropped", zap.String("type", env.Type))
		return entities.Message{}, false
	}
}
