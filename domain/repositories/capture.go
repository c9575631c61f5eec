package repositories

import (
	"context"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

// MediaTrack is one live input track (microphone or camera). Disabling a
// track mutes it without tearing down the underlying device: chunks keep
// flowing and the consumer decides to discard them.
type MediaTrack interface {
	Modality() entities.Modality

	// Chunks yields encoded media chunks until the track is stopped, at
	// which point the channel is closed.
	Chunks() <-chan []byte

	SetEnabled(enabled bool)
	Enabled() bool

	// Stop releases the device. Idempotent.
	Stop() error
}

// MediaSource acquires live input tracks for a session. Acquisition failure
// (device missing, permission denied) is an error; the session must not
// proceed silently without its devices.
type MediaSource interface {
	Acquire(ctx context.Context, modalities []entities.Modality) ([]MediaTrack, error)
}

// Recorder buffers chunks for one modality and assembles them into a single
// blob when stopped.
type Recorder interface {
	// Start clears any previous buffer and begins accepting chunks.
	Start()

	// Write appends one chunk. Chunks written while not recording are
	// discarded.
	Write(chunk []byte)

	// Stop finalizes the current utterance and returns the assembled blob.
	// The blob's Data is empty when nothing was buffered.
	Stop() entities.MediaBlob

	Recording() bool
}

// SpeechEvent is a voice-activity transition.
type SpeechEvent int

const (
	SpeechStarted SpeechEvent = iota
	SpeechStopped
)

// VoiceActivity classifies microphone audio levels into speaking and
// stopped-speaking transitions.
type VoiceActivity interface {
	// Process feeds one audio chunk to the detector.
	Process(chunk []byte)

	// Events yields transitions until Stop is called.
	Events() <-chan SpeechEvent

	Stop()
}

// Player plays assistant audio replies. Stop interrupts playback
// immediately, which is how barge-in is implemented.
type Player interface {
	Play(clip entities.AudioClip) error
	Stop()
	Playing() bool
}
