package media

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

// ExecPlayer plays assistant audio by piping it to an external player
// process (ffplay by default). Stop kills the process immediately, which is
// what barge-in relies on.
type ExecPlayer struct {
	command string
	logger  *zap.Logger

	mu      sync.Mutex
	current *exec.Cmd
}

func NewExecPlayer(command string, logger *zap.Logger) *ExecPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &ExecPlayer{command: command, logger: logger}
}

// Play starts playback of the clip, superseding any clip still playing.
// Clips referencing a URL rather than inline bytes are handed to the player
// as an input argument.
func (p *ExecPlayer) Play(clip entities.AudioClip) error {
	p.Stop()

	var cmd *exec.Cmd
	var stdin io.WriteCloser
	var err error

	switch {
	case len(clip.Data) > 0:
		cmd = exec.Command(p.command, "-autoexit", "-nodisp", "-loglevel", "quiet", "-i", "-")
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("player stdin: %w", err)
		}
	case clip.URL != "":
		cmd = exec.Command(p.command, "-autoexit", "-nodisp", "-loglevel", "quiet", "-i", clip.URL)
	default:
		return fmt.Errorf("audio clip has no payload")
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	p.mu.Lock()
	p.current = cmd
	p.mu.Unlock()

	if stdin != nil {
		go func() {
			_, _ = stdin.Write(clip.Data)
			_ = stdin.Close()
		}()
	}

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.current == cmd {
			p.current = nil
		}
		p.mu.Unlock()
		if err != nil {
			p.logger.Debug("Player exited", zap.Error(err))
		}
	}()

	return nil
}

// Stop interrupts playback immediately. Idempotent.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	cmd := p.current
	p.current = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Playing reports whether a clip is currently playing.
func (p *ExecPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}
