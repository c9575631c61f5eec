package media

import (
	"bytes"
	"testing"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

func TestChunkRecorder_AssemblesChunksInOrder(t *testing.T) {
	rec := NewChunkRecorder(entities.ModalityAudio, "")

	rec.Start()
	if !rec.Recording() {
		t.Fatal("not recording after Start")
	}
	rec.Write([]byte("abc"))
	rec.Write([]byte("def"))

	blob := rec.Stop()
	if rec.Recording() {
		t.Error("still recording after Stop")
	}
	if !bytes.Equal(blob.Data, []byte("abcdef")) {
		t.Errorf("data = %q", blob.Data)
	}
	if blob.Modality != entities.ModalityAudio {
		t.Errorf("modality = %s", blob.Modality)
	}
	if blob.MIME != AudioMIME {
		t.Errorf("mime = %q", blob.MIME)
	}
}

func TestChunkRecorder_DiscardsOutsideRecording(t *testing.T) {
	rec := NewChunkRecorder(entities.ModalityAudio, "")

	// Written before Start, must not leak into the next utterance.
	rec.Write([]byte("early"))

	rec.Start()
	rec.Write([]byte("kept"))
	blob := rec.Stop()
	if !bytes.Equal(blob.Data, []byte("kept")) {
		t.Errorf("data = %q", blob.Data)
	}

	rec.Write([]byte("late"))
	blob = rec.Stop()
	if len(blob.Data) != 0 {
		t.Errorf("data after stop = %q, want empty", blob.Data)
	}
}

func TestChunkRecorder_StartClearsPreviousBuffer(t *testing.T) {
	rec := NewChunkRecorder(entities.ModalityVideo, "")

	rec.Start()
	rec.Write([]byte("first utterance"))
	rec.Start()
	rec.Write([]byte("second"))

	blob := rec.Stop()
	if !bytes.Equal(blob.Data, []byte("second")) {
		t.Errorf("data = %q", blob.Data)
	}
	if blob.MIME != VideoMIME {
		t.Errorf("mime = %q", blob.MIME)
	}
}

func TestChunkRecorder_CopiesChunkData(t *testing.T) {
	rec := NewChunkRecorder(entities.ModalityAudio, "")

	chunk := []byte("original")
	rec.Start()
	rec.Write(chunk)
	copy(chunk, "mutated!")

	blob := rec.Stop()
	if !bytes.Equal(blob.Data, []byte("original")) {
		t.Errorf("data = %q; recorder must copy chunks", blob.Data)
	}
}
