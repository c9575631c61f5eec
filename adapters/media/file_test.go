package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

func writeTestPCM(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "sample.pcm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_ReplaysWholeFile(t *testing.T) {
	// 16000 Hz mono s16le, 30 ms chunks: 960 bytes per chunk.
	path := writeTestPCM(t, 2400)
	source := NewFileSource(path, 16000, 1, false, zap.NewNop())

	tracks, err := source.Acquire(context.Background(), []entities.Modality{entities.ModalityAudio})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(tracks))
	}
	track := tracks[0]
	defer track.Stop()

	if track.Modality() != entities.ModalityAudio {
		t.Errorf("modality = %s", track.Modality())
	}
	if !track.Enabled() {
		t.Error("track not enabled by default")
	}

	var got []byte
	chunks := 0
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-track.Chunks():
			if !ok {
				if chunks != 3 {
					t.Errorf("chunks = %d, want 3 (960+960+480 bytes)", chunks)
				}
				if len(got) != 2400 {
					t.Errorf("replayed %d bytes, want 2400", len(got))
				}
				want := make([]byte, 2400)
				for i := range want {
					want[i] = byte(i)
				}
				if !bytes.Equal(got, want) {
					t.Error("replayed bytes do not match the file")
				}
				return
			}
			chunks++
			got = append(got, chunk...)
		case <-timeout:
			t.Fatal("track never drained")
		}
	}
}

func TestFileSource_RejectsVideo(t *testing.T) {
	source := NewFileSource(writeTestPCM(t, 100), 16000, 1, false, zap.NewNop())
	if _, err := source.Acquire(context.Background(),
		[]entities.Modality{entities.ModalityVideo}); err == nil {
		t.Error("video acquisition succeeded on a file source")
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	source := NewFileSource(filepath.Join(t.TempDir(), "absent.pcm"), 16000, 1, false, zap.NewNop())
	if _, err := source.Acquire(context.Background(),
		[]entities.Modality{entities.ModalityAudio}); err == nil {
		t.Error("acquisition succeeded on a missing file")
	}
}

func TestFileTrack_StopEndsStream(t *testing.T) {
	// Large file so the feeder is still mid-stream when stopped.
	source := NewFileSource(writeTestPCM(t, 960*100), 16000, 1, true, zap.NewNop())

	tracks, err := source.Acquire(context.Background(), []entities.Modality{entities.ModalityAudio})
	if err != nil {
		t.Fatal(err)
	}
	track := tracks[0]

	if err := track.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := track.Stop(); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-track.Chunks():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("chunk channel never closed after stop")
		}
	}
}
