package websocket

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

func TestClassify_BinaryFrameIsAudioReply(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	payload := []byte{0x01, 0x02, 0x03}
	msg, ok := cl.Classify(entities.InboundFrame{Kind: entities.FrameBinary, Payload: payload})
	if !ok {
		t.Fatal("binary frame dropped")
	}
	if msg.Kind != entities.MessageKindAudioReply {
		t.Errorf("kind = %s, want audio-reply", msg.Kind)
	}
	if msg.Text != entities.DefaultAudioCaption {
		t.Errorf("caption = %q, want default caption", msg.Text)
	}
	if msg.Audio == nil || msg.Audio.MIME != "audio/mpeg" {
		t.Errorf("audio clip = %+v, want audio/mpeg clip", msg.Audio)
	}
	if msg.Audio != nil && len(msg.Audio.Data) != len(payload) {
		t.Errorf("clip data length = %d, want %d", len(msg.Audio.Data), len(payload))
	}
}

func TestClassify_InputTranscription(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	msg, ok := cl.Classify(textFrame(t, map[string]string{
		"type": "input-transcription",
		"text": "I feel tired",
	}))
	if !ok {
		t.Fatal("frame dropped")
	}
	if msg.Kind != entities.MessageKindTranscript || msg.Role != entities.MessageRoleUser {
		t.Errorf("got kind=%s role=%s, want user transcript", msg.Kind, msg.Role)
	}
	if msg.Text != "I feel tired" {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestClassify_OutputTranscription(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	msg, ok := cl.Classify(textFrame(t, map[string]string{
		"type": "output-transcription",
		"text": "Tell me more",
	}))
	if !ok {
		t.Fatal("frame dropped")
	}
	if msg.Kind != entities.MessageKindAssistantReply || msg.Role != entities.MessageRoleAssistant {
		t.Errorf("got kind=%s role=%s, want assistant reply", msg.Kind, msg.Role)
	}
}

func TestClassify_AudioURLFrame(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	msg, ok := cl.Classify(textFrame(t, map[string]string{
		"type":  "audio",
		"audio": "https://cdn.example.com/reply.mp3",
	}))
	if !ok {
		t.Fatal("frame dropped")
	}
	if msg.Kind != entities.MessageKindAudioReply {
		t.Errorf("kind = %s, want audio-reply", msg.Kind)
	}
	if msg.Audio == nil || msg.Audio.URL != "https://cdn.example.com/reply.mp3" {
		t.Errorf("clip = %+v, want URL clip", msg.Audio)
	}
	if msg.Text != entities.DefaultAudioCaption {
		t.Errorf("caption = %q, want default caption", msg.Text)
	}
}

func TestClassify_ErrorFrameBecomesApology(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	msg, ok := cl.Classify(textFrame(t, map[string]interface{}{
		"error": "transcription backend unavailable",
		"code":  503,
	}))
	if !ok {
		t.Fatal("error frame dropped")
	}
	if msg.Kind != entities.MessageKindAudioReply {
		t.Errorf("kind = %s, want audio-reply", msg.Kind)
	}
	if msg.Text != entities.AudioErrorFallbackText {
		t.Errorf("text = %q, want the fixed apology", msg.Text)
	}
	if msg.Audio != nil {
		t.Errorf("apology carries a clip: %+v", msg.Audio)
	}
}

func TestClassify_NullErrorFieldIsNotAnError(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	msg, ok := cl.Classify(entities.InboundFrame{
		Kind:    entities.FrameText,
		Payload: []byte(`{"type":"output-transcription","text":"hi","error":null}`),
	})
	if !ok {
		t.Fatal("frame dropped")
	}
	if msg.Kind != entities.MessageKindAssistantReply {
		t.Errorf("kind = %s, want assistant reply", msg.Kind)
	}
}

func TestClassify_DomainEventsCarryRawPayload(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	raw := `{"type":"assessment-result","score":72.5,"summary":"high"}`
	msg, ok := cl.Classify(entities.InboundFrame{
		Kind:    entities.FrameText,
		Payload: []byte(raw),
	})
	if !ok {
		t.Fatal("frame dropped")
	}
	if msg.Kind != entities.MessageKindDomainEvent {
		t.Fatalf("kind = %s, want domain-event", msg.Kind)
	}
	if msg.Event.Kind != TypeAssessmentResult {
		t.Errorf("event kind = %q", msg.Event.Kind)
	}
	var decoded AssessmentResultMessage
	if err := json.Unmarshal(msg.Event.Payload, &decoded); err != nil {
		t.Fatalf("payload does not round-trip: %v", err)
	}
	if decoded.Score != 72.5 {
		t.Errorf("score = %v", decoded.Score)
	}
}

func TestClassify_MalformedAndUnknownFramesDropped(t *testing.T) {
	cl := NewClassifier(zap.NewNop())

	if _, ok := cl.Classify(entities.InboundFrame{
		Kind:    entities.FrameText,
		Payload: []byte(`{not json`),
	}); ok {
		t.Error("malformed frame classified")
	}

	if _, ok := cl.Classify(textFrame(t, map[string]string{"type": "telemetry"})); ok {
		t.Error("unknown type classified")
	}
}

func textFrame(t *testing.T, v interface{}) entities.InboundFrame {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return entities.InboundFrame{Kind: entities.FrameText, Payload: payload}
}
