package entities

import "time"

// Modality tags a recorded artifact as audio or video. The wire protocol
// tags modality per blob, so an utterance spanning both produces two
// header+blob pairs.
type Modality string

const (
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

// MediaBlob is one finalized recorder artifact for a single modality.
type MediaBlob struct {
	Modality Modality
	MIME     string
	Data     []byte
}

// Utterance is one continuous span of captured user speech/video, from the
// voice-activity "speaking" signal to "stopped speaking". At most one
// utterance is in flight per connection.
type Utterance struct {
	FileID string
	Start  time.Time
	End    time.Time
	Blobs  []MediaBlob
}
