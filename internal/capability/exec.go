package capability

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/tidyhost/engage/internal/logger"
)

// CommandPlayer plays the alert cue through an external player binary
// (paplay, aplay, afplay). Availability is detected up front so a missing
// player skips the channel instead of surfacing an error per alert.
type CommandPlayer struct {
	command   string
	soundFile string
	enabled   bool
	logger    *logger.Logger
}

// NewCommandPlayer creates an exec-backed audio player.
func NewCommandPlayer(command, soundFile string, enabled bool, logger *logger.Logger) *CommandPlayer {
	return &CommandPlayer{
		command:   command,
		soundFile: soundFile,
		enabled:   enabled,
		logger:    logger.WithComponent("audio_player"),
	}
}

func (p *CommandPlayer) Available() bool {
	if !p.enabled {
		return false
	}
	if _, err := exec.LookPath(p.command); err != nil {
		return false
	}
	if _, err := os.Stat(p.soundFile); err != nil {
		return false
	}
	return true
}

func (p *CommandPlayer) PlayAlert(ctx context.Context) error {
	if !p.Available() {
		return fmt.Errorf("audio playback unavailable: %s", p.command)
	}

	cmd := exec.CommandContext(ctx, p.command, p.soundFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("playback failed: %w (output: %s)", err, string(out))
	}
	return nil
}

// CommandSpeaker synthesizes speech through an external binary
// (espeak-ng, say).
type CommandSpeaker struct {
	command string
	enabled bool
	logger  *logger.Logger
}

// NewCommandSpeaker creates an exec-backed speech synthesizer.
func NewCommandSpeaker(command string, enabled bool, logger *logger.Logger) *CommandSpeaker {
	return &CommandSpeaker{
		command: command,
		enabled: enabled,
		logger:  logger.WithComponent("speaker"),
	}
}

func (s *CommandSpeaker) Available() bool {
	if !s.enabled {
		return false
	}
	_, err := exec.LookPath(s.command)
	return err == nil
}

func (s *CommandSpeaker) Speak(ctx context.Context, text, locale string) error {
	if !s.Available() {
		return fmt.Errorf("speech synthesis unavailable: %s", s.command)
	}

	args := []string{}
	if locale != "" {
		args = append(args, "-v", locale)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speech failed: %w (output: %s)", err, string(out))
	}
	return nil
}
