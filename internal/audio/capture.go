package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// CaptureSource abstracts the microphone. Frames are float32 samples
// normalized to [-1, 1].
type CaptureSource interface {
	Start(ctx context.Context) error
	ReadFrame(buf []float32) (int, error)
	Stop() error
}

// captureTool is one external recorder candidate producing s16le PCM
// at the capture format on stdout.
type captureTool struct {
	binary string
	args   []string
}

func captureCandidates() []captureTool {
	rate := strconv.Itoa(SampleRate)
	ffmpegInput := []string{"-f", "alsa", "-i", "default"}
	if runtime.GOOS == "darwin" {
		ffmpegInput = []string{"-f", "avfoundation", "-i", ":0"}
	}
	return []captureTool{
		{"ffmpeg", append(append([]string{"-hide_banner", "-loglevel", "error"}, ffmpegInput...),
			"-ar", rate, "-ac", "1", "-f", "s16le", "-")},
		{"arecord", []string{"-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-t", "raw"}},
		{"sox", []string{"-q", "-d", "-t", "raw", "-r", rate, "-e", "signed", "-b", "16", "-c", "1", "-"}},
	}
}

// CommandSource captures audio by running an external recorder and
// reading raw PCM off its stdout. The first available of ffmpeg,
// arecord and sox is used.
type CommandSource struct {
	tool   captureTool
	logger zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewCommandSource resolves a capture tool for this system.
func NewCommandSource(logger zerolog.Logger) (*CommandSource, error) {
	for _, tool := range captureCandidates() {
		if path, err := exec.LookPath(tool.binary); err == nil {
			return &CommandSource{
				tool:   captureTool{binary: path, args: tool.args},
				logger: logger.With().Str("component", "capture").Logger(),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: tried ffmpeg, arecord, sox", ErrNoCaptureTool)
}

// Start launches the recorder process.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return ErrAlreadyStarted
	}

	cmd := exec.CommandContext(ctx, s.tool.binary, s.tool.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.tool.binary, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.logger.Debug().Str("tool", s.tool.binary).Msg("Capture started")
	return nil
}

// ReadFrame fills buf with the next samples. Returns io.EOF when the
// recorder exits.
func (s *CommandSource) ReadFrame(buf []float32) (int, error) {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()
	if stdout == nil {
		return 0, ErrCaptureStopped
	}

	raw := make([]byte, len(buf)*2)
	n, err := io.ReadFull(stdout, raw)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if n < 2 {
		return 0, err
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		buf[i] = float32(v) / 32768.0
	}
	return samples, err
}

// Stop terminates the recorder.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}

	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	s.logger.Debug().Msg("Capture stopped")
	return nil
}
