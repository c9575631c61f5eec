package entities

import (
	"encoding/json"
	"time"
)

// MessageRole identifies the sender of a conversation entry.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// MessageKind discriminates the closed set of conversation message variants.
type MessageKind string

const (
	MessageKindTranscript     MessageKind = "transcript"
	MessageKindAssistantReply MessageKind = "assistant-reply"
	MessageKindAudioReply     MessageKind = "audio-reply"
	MessageKindSystemNotice   MessageKind = "system-notice"
	MessageKindDomainEvent    MessageKind = "domain-event"
)

const (
	// AudioErrorFallbackText is shown in place of raw upstream error text.
	// Upstream failures are presented as the assistant briefly failing to
	// respond, never as an error dump in the transcript.
	AudioErrorFallbackText = "Sorry, something went wrong while processing your audio. Please try again later."

	// DefaultAudioCaption captions a binary audio reply that arrived without
	// a paired transcript frame.
	DefaultAudioCaption = "Processed audio response"

	// PendingTranscriptText is the optimistic placeholder shown while a user
	// utterance is being transcribed by the backend.
	PendingTranscriptText = "Transcribing your message..."
)

// AudioClip references a playable audio payload received from the backend,
// either raw bytes from a binary frame or an inline URL from a text frame.
type AudioClip struct {
	MIME string
	Data []byte
	URL  string
}

// DomainEvent carries a session-specific structured message that downstream
// code pattern-matches on Kind. Payload is the full frame body.
type DomainEvent struct {
	Kind    string
	Payload json.RawMessage
}

// Message is one entry in the conversation log.
type Message struct {
	Kind      MessageKind
	Role      MessageRole
	Text      string
	Audio     *AudioClip
	Event     *DomainEvent
	Pending   bool
	Timestamp time.Time
}

// NewTranscript builds a finalized user utterance transcript.
func NewTranscript(text string) Message {
	return Message{
		Kind:      MessageKindTranscript,
		Role:      MessageRoleUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewAssistantReply builds a finalized assistant text turn.
func NewAssistantReply(text string) Message {
	return Message{
		Kind:      MessageKindAssistantReply,
		Role:      MessageRoleAssistant,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewAudioReply builds an assistant audio turn. An empty text falls back to
// the default caption.
func NewAudioReply(text string, clip *AudioClip) Message {
	if text == "" {
		text = DefaultAudioCaption
	}
	return Message{
		Kind:      MessageKindAudioReply,
		Role:      MessageRoleAssistant,
		Text:      text,
		Audio:     clip,
		Timestamp: time.Now(),
	}
}

// NewSystemNotice builds a connection lifecycle or upstream-error notice.
func NewSystemNotice(text string) Message {
	return Message{
		Kind:      MessageKindSystemNotice,
		Role:      MessageRoleSystem,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewDomainEvent builds a structured session event.
func NewDomainEvent(kind string, payload json.RawMessage) Message {
	return Message{
		Kind:      MessageKindDomainEvent,
		Role:      MessageRoleSystem,
		Event:     &DomainEvent{Kind: kind, Payload: payload},
		Timestamp: time.Now(),
	}
}

// NewPending builds an unresolved placeholder for the given role.
func NewPending(role MessageRole, text string) Message {
	return Message{
		Kind:      MessageKindTranscript,
		Role:      role,
		Text:      text,
		Pending:   true,
		Timestamp: time.Now(),
	}
}
