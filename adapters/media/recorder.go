package media

import (
	"bytes"
	"sync"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

// Default container types per modality.
const (
	AudioMIME = "audio/webm;codecs=opus"
	VideoMIME = "video/webm"
)

// ChunkRecorder buffers one modality's chunks and assembles them into a
// single blob on stop.
type ChunkRecorder struct {
	modality entities.Modality
	mime     string

	mu        sync.Mutex
	recording bool
	chunks    [][]byte
}

func NewChunkRecorder(modality entities.Modality, mime string) *ChunkRecorder {
	if mime == "" {
		if modality == entities.ModalityVideo {
			mime = VideoMIME
		} else {
			mime = AudioMIME
		}
	}
	return &ChunkRecorder{modality: modality, mime: mime}
}

// Start clears any previous buffer and begins accepting chunks.
func (r *ChunkRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.chunks = r.chunks[:0]
}

// Write appends one chunk while recording; otherwise the chunk is
// discarded.
func (r *ChunkRecorder) Write(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || len(chunk) == 0 {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.chunks = append(r.chunks, buf)
}

// Stop assembles the buffered chunks into one blob and clears the buffer.
func (r *ChunkRecorder) Stop() entities.MediaBlob {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	data := bytes.Join(r.chunks, nil)
	r.chunks = r.chunks[:0]
	return entities.MediaBlob{
		Modality: r.modality,
		MIME:     r.mime,
		Data:     data,
	}
}

// Recording reports whether the recorder is accepting chunks.
func (r *ChunkRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
