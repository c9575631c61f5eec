package media

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/domain/repositories"
)

// FileSource replays a raw s16le PCM file as a live microphone track, for
// headless runs and protocol exercises against a backend without real
// devices attached.
type FileSource struct {
	Path       string
	SampleRate int
	Channels   int
	Realtime   bool // pace chunks at wall-clock speed

	logger *zap.Logger
}

func NewFileSource(path string, sampleRate, channels int, realtime bool, logger *zap.Logger) *FileSource {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &FileSource{
		Path:       path,
		SampleRate: sampleRate,
		Channels:   channels,
		Realtime:   realtime,
		logger:     logger,
	}
}

// Acquire provides a single audio track backed by the file. Video is not
// supported by this source.
func (s *FileSource) Acquire(ctx context.Context, modalities []entities.Modality) ([]repositories.MediaTrack, error) {
	for _, m := range modalities {
		if m != entities.ModalityAudio {
			return nil, fmt.Errorf("file source supports audio only, got %q", m)
		}
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	t := &fileTrack{
		chunks: make(chan []byte, 32),
		stop:   make(chan struct{}),
	}
	t.enabled.Store(true)

	chunkSize := s.SampleRate * s.Channels * 2 * 30 / 1000
	interval := time.Duration(0)
	if s.Realtime {
		interval = 30 * time.Millisecond
	}
	go t.feed(ctx, data, chunkSize, interval)

	s.logger.Info("File audio source acquired",
		zap.String("path", s.Path), zap.Int("bytes", len(data)))
	return []repositories.MediaTrack{t}, nil
}

type fileTrack struct {
	chunks   chan []byte
	enabled  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
}

func (t *fileTrack) feed(ctx context.Context, data []byte, chunkSize int, interval time.Duration) {
	defer close(t.chunks)
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		select {
		case t.chunks <- data[start:end]:
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		}
		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			}
		}
	}
}

func (t *fileTrack) Modality() entities.Modality { return entities.ModalityAudio }
func (t *fileTrack) Chunks() <-chan []byte       { return t.chunks }
func (t *fileTrack) SetEnabled(enabled bool)     { t.enabled.Store(enabled) }
func (t *fileTrack) Enabled() bool               { return t.enabled.Load() }

func (t *fileTrack) Stop() error {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	return nil
}
