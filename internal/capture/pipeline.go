package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/domain/repositories"
	ws "github.com/maremivazquez1/dta-client/internal/websocket"
)

// State is the capture pipeline lifecycle.
type State int32

const (
	StateIdle State = iota
	StateAcquiring
	StateArmed
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Config identifies the session an utterance belongs to and which
// modalities are in scope for it.
type Config struct {
	SessionID  string
	UserID     string
	Modalities []entities.Modality
}

// Hooks are callbacks into the owning session.
type Hooks struct {
	// OnUtteranceSent fires after an utterance's header+blob pairs have
	// been queued on the transport.
	OnUtteranceSent func(entities.Utterance)
}

// Pipeline coordinates live device capture, voice-activity detection, and
// one recorder per modality, producing discrete utterances that are framed
// with a header and sent over the transport in strict header-then-payload
// order.
type Pipeline struct {
	cfg         Config
	source      repositories.MediaSource
	vad         repositories.VoiceActivity
	player      repositories.Player
	transport   repositories.Transport
	newRecorder func(entities.Modality) repositories.Recorder
	hooks       Hooks
	logger      *zap.Logger

	state    atomic.Int32
	awaiting atomic.Bool

	mu        sync.Mutex
	tracks    []repositories.MediaTrack
	recorders map[entities.Modality]repositories.Recorder
	current   entities.Utterance

	// dispatchMu serializes utterance dispatch so header+blob pairs are
	// never interleaved across utterances.
	dispatchMu sync.Mutex

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewPipeline(
	cfg Config,
	source repositories.MediaSource,
	vad repositories.VoiceActivity,
	player repositories.Player,
	transport repositories.Transport,
	newRecorder func(entities.Modality) repositories.Recorder,
	hooks Hooks,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		source:      source,
		vad:         vad,
		player:      player,
		transport:   transport,
		newRecorder: newRecorder,
		hooks:       hooks,
		logger:      logger,
		recorders:   make(map[entities.Modality]repositories.Recorder),
		done:        make(chan struct{}),
	}
}

// State returns the pipeline lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Awaiting reports whether an assistant response is pending. While true, no
// new utterance recording starts.
func (p *Pipeline) Awaiting() bool {
	return p.awaiting.Load()
}

// ClearAwaiting re-opens turn-taking once a terminal assistant message has
// been accumulated.
func (p *Pipeline) ClearAwaiting() {
	p.awaiting.Store(false)
}

// Start acquires the session's devices and arms voice-activity detection.
// On acquisition failure the pipeline returns to idle and the session must
// not proceed.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateAcquiring)) {
		return fmt.Errorf("capture pipeline already started (state %s)", p.State())
	}

	tracks, err := p.source.Acquire(ctx, p.cfg.Modalities)
	if err != nil {
		p.state.Store(int32(StateIdle))
		return fmt.Errorf("acquire media devices: %w", err)
	}

	p.mu.Lock()
	p.tracks = tracks
	for _, m := range p.cfg.Modalities {
		p.recorders[m] = p.newRecorder(m)
	}
	p.mu.Unlock()

	for _, t := range tracks {
		p.wg.Add(1)
		go p.trackLoop(t)
	}
	p.wg.Add(1)
	go p.eventLoop()

	p.state.Store(int32(StateArmed))
	p.logger.Info("Capture pipeline armed",
		zap.String("sessionID", p.cfg.SessionID),
		zap.Int("tracks", len(tracks)))
	return nil
}

// trackLoop forwards a track's chunks to its recorder and, for audio, to
// the voice-activity detector. Muted tracks keep producing chunks but they
// are discarded here.
func (p *Pipeline) trackLoop(t repositories.MediaTrack) {
	defer p.wg.Done()

	p.mu.Lock()
	rec := p.recorders[t.Modality()]
	p.mu.Unlock()

	for chunk := range t.Chunks() {
		if !t.Enabled() {
			continue
		}
		if t.Modality() == entities.ModalityAudio {
			p.vad.Process(chunk)
		}
		if rec != nil {
			rec.Write(chunk)
		}
	}
}

func (p *Pipeline) eventLoop() {
	defer p.wg.Done()
	for {
		select {
		case ev, ok := <-p.vad.Events():
			if !ok {
				return
			}
			switch ev {
			case repositories.SpeechStarted:
				p.handleSpeaking()
			case repositories.SpeechStopped:
				p.handleStoppedSpeaking()
			}
		case <-p.done:
			return
		}
	}
}

func (p *Pipeline) handleSpeaking() {
	// Barge-in: the user interrupting assistant audio stops playback at
	// once, even while a reply is pending. Turn-taking is still enforced
	// below: no new recording starts while awaiting.
	if p.player != nil && p.player.Playing() {
		p.player.Stop()
		p.logger.Info("Playback interrupted by user speech")
	}

	if p.awaiting.Load() {
		p.logger.Info("Assistant response pending; ignoring user speech")
		return
	}
	if !p.state.CompareAndSwap(int32(StateArmed), int32(StateRecording)) {
		return
	}

	p.mu.Lock()
	// The utterance identity is minted here, at the armed-to-recording
	// transition; the same id correlates the header with its blob.
	p.current = entities.Utterance{
		FileID: uuid.NewString(),
		Start:  time.Now(),
	}
	for _, rec := range p.recorders {
		rec.Start()
	}
	fileID := p.current.FileID
	p.mu.Unlock()

	p.logger.Info("Utterance recording started", zap.String("fileID", fileID))
}

func (p *Pipeline) handleStoppedSpeaking() {
	// A duplicate stopped-speaking signal finds the pipeline out of the
	// recording state and is ignored, so an utterance is finalized and
	// sent at most once.
	if !p.state.CompareAndSwap(int32(StateRecording), int32(StateFinalizing)) {
		return
	}

	p.mu.Lock()
	utt := p.current
	p.mu.Unlock()
	utt.End = time.Now()

	p.finalize(utt)
}

// finalize stops every recorder in scope, waits for all of them regardless
// of completion order, and dispatches the utterance.
func (p *Pipeline) finalize(utt entities.Utterance) {
	p.mu.Lock()
	recs := make([]repositories.Recorder, 0, len(p.cfg.Modalities))
	for _, m := range p.cfg.Modalities {
		if rec, ok := p.recorders[m]; ok {
			recs = append(recs, rec)
		}
	}
	p.mu.Unlock()

	blobs := make([]entities.MediaBlob, len(recs))
	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func(i int, rec repositories.Recorder) {
			defer wg.Done()
			blobs[i] = rec.Stop()
		}(i, rec)
	}
	wg.Wait()

	utt.Blobs = utt.Blobs[:0]
	for _, b := range blobs {
		if len(b.Data) > 0 {
			utt.Blobs = append(utt.Blobs, b)
		}
	}
	if len(utt.Blobs) == 0 {
		p.logger.Warn("No buffered media for utterance; not sending",
			zap.String("fileID", utt.FileID))
		p.state.Store(int32(StateArmed))
		return
	}

	// Gate further turns before anything reaches the wire.
	p.awaiting.Store(true)
	p.dispatch(utt)
	p.state.Store(int32(StateArmed))

	if p.hooks.OnUtteranceSent != nil {
		p.hooks.OnUtteranceSent(utt)
	}
}

// dispatch writes one header message immediately followed by its blob for
// each modality recorded. The pair order is strict and pairs from distinct
// utterances never interleave.
func (p *Pipeline) dispatch(utt entities.Utterance) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	for _, blob := range utt.Blobs {
		header := ws.NewHeaderMessage(p.cfg.SessionID, p.cfg.UserID, utt, blob.Modality)
		payload, err := json.Marshal(header)
		if err != nil {
			p.logger.Error("Failed to encode utterance header",
				zap.String("fileID", utt.FileID), zap.Error(err))
			continue
		}
		p.transport.SendText(payload)
		p.transport.SendBinary(blob.Data)
		p.logger.Info("Utterance dispatched",
			zap.String("fileID", utt.FileID),
			zap.String("modality", string(blob.Modality)),
			zap.Int("size", len(blob.Data)))
	}
}

// SetMuted flips the enabled flag on the matching track without tearing
// down the recorder or the stream.
func (p *Pipeline) SetMuted(m entities.Modality, muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tracks {
		if t.Modality() == m {
			t.SetEnabled(!muted)
			p.logger.Info("Track mute toggled",
				zap.String("modality", string(m)), zap.Bool("muted", muted))
		}
	}
}

// Muted reports whether the matching track is currently disabled.
func (p *Pipeline) Muted(m entities.Modality) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tracks {
		if t.Modality() == m {
			return !t.Enabled()
		}
	}
	return false
}

// Stop ends the session's capture from any state: recorders are stopped and
// discarded, tracks released, the detector detached. Safe to call multiple
// times.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		prev := State(p.state.Swap(int32(StateIdle)))
		close(p.done)

		p.vad.Stop()

		p.mu.Lock()
		tracks := p.tracks
		recs := make([]repositories.Recorder, 0, len(p.recorders))
		for _, rec := range p.recorders {
			recs = append(recs, rec)
		}
		p.mu.Unlock()

		for _, t := range tracks {
			_ = t.Stop()
		}
		for _, rec := range recs {
			if rec.Recording() {
				_ = rec.Stop()
			}
		}
		if p.player != nil {
			p.player.Stop()
		}

		p.wg.Wait()
		p.logger.Info("Capture pipeline stopped", zap.Stringer("from", prev))
	})
}
