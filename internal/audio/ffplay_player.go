package audio

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"voicewidget/internal/domain"
)

// Player previews finalized recordings with ffplay. At most one preview runs
// at a time; starting a new one stops the previous.
type Player struct {
	command string

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewPlayer(command string) *Player {
	if command == "" {
		command = "ffplay"
	}
	return &Player{command: command}
}

// Play starts playback of the artifact and calls done once it finishes on its
// own. done is not called when playback is stopped explicitly.
func (p *Player) Play(ctx context.Context, artifact domain.Artifact, done func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		p.cmd = nil
	}

	cmd := exec.CommandContext(ctx, p.command,
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffplay: %w", err)
	}
	p.cmd = cmd

	go func() {
		_, _ = stdin.Write(artifact.Data)
		_ = stdin.Close()
		err := cmd.Wait()

		p.mu.Lock()
		current := p.cmd == cmd
		if current {
			p.cmd = nil
		}
		p.mu.Unlock()

		if current && err == nil && done != nil {
			done()
		}
	}()

	return nil
}

// Stop kills the active preview, if any.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	p.cmd = nil
	return err
}
