// Package vad flags "speaking" versus "stopped speaking" from microphone
// audio levels, the local signal that delimits an utterance.
package vad

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/repositories"
)

const (
	// DefaultThresholdDB is the dBFS level above which a chunk counts as
	// speech.
	DefaultThresholdDB = -45.0

	// DefaultHangTime is how long levels must stay below threshold before
	// a stopped-speaking transition, so brief pauses do not split an
	// utterance.
	DefaultHangTime = 150 * time.Millisecond

	// silenceFloorDB stands in for the level of an all-zero chunk.
	silenceFloorDB = -96.0
)

// Config tunes the detector.
type Config struct {
	ThresholdDB float64
	HangTime    time.Duration
}

// Energy detects speech boundaries from the RMS energy of s16le PCM chunks.
// The stopped-speaking transition is debounced by HangTime.
type Energy struct {
	cfg    Config
	events chan repositories.SpeechEvent
	logger *zap.Logger

	mu        sync.Mutex
	speaking  bool
	lastLoud  bool
	debounced func(func())

	stopOnce sync.Once
	stopped  bool
}

func NewEnergy(cfg Config, logger *zap.Logger) *Energy {
	if cfg.ThresholdDB == 0 {
		cfg.ThresholdDB = DefaultThresholdDB
	}
	if cfg.HangTime <= 0 {
		cfg.HangTime = DefaultHangTime
	}
	return &Energy{
		cfg:       cfg,
		events:    make(chan repositories.SpeechEvent, 16),
		logger:    logger,
		debounced: debounce.New(cfg.HangTime),
	}
}

// Events yields speaking transitions until Stop is called.
func (e *Energy) Events() <-chan repositories.SpeechEvent {
	return e.events
}

// Process feeds one PCM chunk to the detector. Safe to call after Stop, at
// which point it is a no-op.
func (e *Energy) Process(chunk []byte) {
	level := rmsDB(chunk)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	loud := level >= e.cfg.ThresholdDB
	switch {
	case loud && !e.speaking:
		e.speaking = true
		e.emitLocked(repositories.SpeechStarted)
	case loud && !e.lastLoud:
		// Speech resumed within the hang window; supersede the pending
		// stop with a no-op.
		e.debounced(func() {})
	case !loud && e.lastLoud && e.speaking:
		e.debounced(e.speechStopped)
	}
	e.lastLoud = loud
}

// speechStopped fires after HangTime of silence.
func (e *Energy) speechStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || !e.speaking || e.lastLoud {
		return
	}
	e.speaking = false
	e.emitLocked(repositories.SpeechStopped)
}

func (e *Energy) emitLocked(ev repositories.SpeechEvent) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("Voice-activity event dropped; consumer too slow",
			zap.Int("event", int(ev)))
	}
}

// Stop detaches the detector. Idempotent.
func (e *Energy) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
		close(e.events)
	})
}

// rmsDB computes the RMS level of an s16le chunk in dBFS.
func rmsDB(chunk []byte) float64 {
	sampleCount := len(chunk) / 2
	if sampleCount == 0 {
		return silenceFloorDB
	}

	var sum float64
	for i := 0; i < sampleCount*2; i += 2 {
		s := int16(binary.LittleEndian.Uint16(chunk[i : i+2]))
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(sampleCount))
	if rms <= 0 {
		return silenceFloorDB
	}
	return 20 * math.Log10(rms)
}
