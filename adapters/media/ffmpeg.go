// Package media provides the client's capture devices: an ffmpeg-backed
// live source for microphone and camera, a file-backed source for headless
// runs and tests, and the chunk recorder both feed.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/domain/repositories"
)

// FFmpegConfig selects the capture devices and audio format.
type FFmpegConfig struct {
	Command string // ffmpeg binary, default "ffmpeg"

	AudioFormat string // e.g. "pulse", "alsa", "avfoundation"
	AudioDevice string
	SampleRate  int
	Channels    int

	VideoFormat string // e.g. "v4l2", "avfoundation"
	VideoDevice string
}

// FFmpegSource captures live microphone/camera input by spawning one ffmpeg
// subprocess per modality: s16le PCM on stdout for audio, webm for video.
type FFmpegSource struct {
	cfg    FFmpegConfig
	logger *zap.Logger
}

func NewFFmpegSource(cfg FFmpegConfig, logger *zap.Logger) *FFmpegSource {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "pulse"
	}
	if cfg.AudioDevice == "" {
		cfg.AudioDevice = "default"
	}
	return &FFmpegSource{cfg: cfg, logger: logger}
}

// Acquire starts one capture process per requested modality. Any failure
// stops the tracks already started; the session must not run half-equipped.
func (s *FFmpegSource) Acquire(ctx context.Context, modalities []entities.Modality) ([]repositories.MediaTrack, error) {
	tracks := make([]repositories.MediaTrack, 0, len(modalities))
	for _, m := range modalities {
		track, err := s.startTrack(ctx, m)
		if err != nil {
			for _, t := range tracks {
				_ = t.Stop()
			}
			return nil, fmt.Errorf("acquire %s device: %w", m, err)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (s *FFmpegSource) startTrack(ctx context.Context, m entities.Modality) (repositories.MediaTrack, error) {
	var args []string
	var chunkSize int
	switch m {
	case entities.ModalityAudio:
		args = []string{
			"-nostdin",
			"-hide_banner",
			"-loglevel", "warning",
			"-f", s.cfg.AudioFormat,
			"-i", s.cfg.AudioDevice,
			"-ac", strconv.Itoa(s.cfg.Channels),
			"-ar", strconv.Itoa(s.cfg.SampleRate),
			"-f", "s16le",
			"-",
		}
		// 30ms of s16le PCM per chunk, matching the detector's polling
		// cadence.
		chunkSize = s.cfg.SampleRate * s.cfg.Channels * 2 * 30 / 1000
	case entities.ModalityVideo:
		if s.cfg.VideoFormat == "" || s.cfg.VideoDevice == "" {
			return nil, fmt.Errorf("video capture not configured")
		}
		args = []string{
			"-nostdin",
			"-hide_banner",
			"-loglevel", "warning",
			"-f", s.cfg.VideoFormat,
			"-i", s.cfg.VideoDevice,
			"-c:v", "libvpx",
			"-deadline", "realtime",
			"-f", "webm",
			"-",
		}
		chunkSize = 32 * 1024
	default:
		return nil, fmt.Errorf("unsupported modality %q", m)
	}

	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Give ffmpeg a moment to fail fast on a missing or busy device.
	select {
	case err := <-waitErr:
		return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stderr.String())
	case <-time.After(250 * time.Millisecond):
	}

	t := &ffmpegTrack{
		modality: m,
		stdout:   stdout,
		process:  cmd.Process,
		waitErr:  waitErr,
		chunks:   make(chan []byte, 32),
		logger:   s.logger,
	}
	t.enabled.Store(true)
	go t.readLoop(chunkSize)

	s.logger.Info("Capture device acquired", zap.String("modality", string(m)))
	return t, nil
}

type ffmpegTrack struct {
	modality entities.Modality
	stdout   io.ReadCloser
	process  *os.Process
	waitErr  <-chan error

	chunks  chan []byte
	enabled atomic.Bool

	stopOnce sync.Once
	logger   *zap.Logger
}

func (t *ffmpegTrack) Modality() entities.Modality { return t.modality }

func (t *ffmpegTrack) Chunks() <-chan []byte { return t.chunks }

func (t *ffmpegTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *ffmpegTrack) Enabled() bool { return t.enabled.Load() }

func (t *ffmpegTrack) readLoop(chunkSize int) {
	defer close(t.chunks)
	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(t.stdout, buf)
		if n > 0 {
			t.chunks <- buf[:n]
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				t.logger.Warn("Capture read ended", zap.Error(err))
			}
			return
		}
	}
}

// Stop releases the device. Idempotent.
func (t *ffmpegTrack) Stop() error {
	t.stopOnce.Do(func() {
		if t.process != nil {
			_ = t.process.Signal(os.Interrupt)
		}
		select {
		case <-t.waitErr:
		case <-time.After(2 * time.Second):
			if t.process != nil {
				_ = t.process.Kill()
			}
		}
		_ = t.stdout.Close()
	})
	return nil
}
