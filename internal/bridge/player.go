package bridge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"
)

// ErrNoPlayer means no known playback binary is installed.
var ErrNoPlayer = errors.New("no audio playback tool found")

// Player renders one audio artifact to the speakers.
type Player interface {
	Play(ctx context.Context, path string) error
}

type playerTool struct {
	binary string
	args   []string
}

// playerCandidates lists playback tools in preference order for the
// current platform. All of them take the file path as the last
// argument and block until playback ends.
func playerCandidates() []playerTool {
	switch runtime.GOOS {
	case "darwin":
		return []playerTool{
			{binary: "afplay"},
			{binary: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
		}
	default:
		return []playerTool{
			{binary: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
			{binary: "mpv", args: []string{"--no-video", "--really-quiet"}},
			{binary: "mpg123", args: []string{"-q"}},
		}
	}
}

// ExecPlayer shells out to the first playback tool found on PATH.
type ExecPlayer struct {
	tool   playerTool
	logger zerolog.Logger
}

// NewExecPlayer probes for a playback tool.
func NewExecPlayer(logger zerolog.Logger) (*ExecPlayer, error) {
	for _, tool := range playerCandidates() {
		if _, err := exec.LookPath(tool.binary); err == nil {
			logger.Debug().Str("binary", tool.binary).Msg("Playback tool selected")
			return &ExecPlayer{tool: tool, logger: logger}, nil
		}
	}
	return nil, ErrNoPlayer
}

// Play blocks until the artifact finishes or ctx cancels.
func (p *ExecPlayer) Play(ctx context.Context, path string) error {
	args := append(append([]string{}, p.tool.args...), path)
	cmd := exec.CommandContext(ctx, p.tool.binary, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %w", p.tool.binary, path, err)
	}
	return nil
}
