package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Offline fallback voices per language. macOS ships these with the say
// command; the espeak-ng set uses its language identifiers.
var (
	sayVoices = map[string]string{
		"zh":  "Tingting",
		"yue": "Sinji",
		"ja":  "Kyoko",
		"ko":  "Yuna",
		"en":  "Samantha",
	}
	espeakVoices = map[string]string{
		"zh":  "cmn",
		"yue": "yue",
		"ja":  "ja",
		"ko":  "ko",
		"en":  "en-us",
	}
)

// SystemProvider synthesizes speech with whatever the OS ships: say on
// macOS, espeak-ng elsewhere. Quality is a fallback, availability is
// the point.
type SystemProvider struct {
	binary  string
	store   *ArtifactStore
	logger  zerolog.Logger
	timeout time.Duration
}

// NewSystemProvider resolves the synthesis command for this OS.
func NewSystemProvider(logger zerolog.Logger, store *ArtifactStore) (*SystemProvider, error) {
	binary, err := resolveSystemBinary()
	if err != nil {
		return nil, err
	}
	return &SystemProvider{
		binary:  binary,
		store:   store,
		logger:  logger.With().Str("provider", "system").Logger(),
		timeout: 30 * time.Second,
	}, nil
}

func resolveSystemBinary() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no system synthesizer found (tried %s)",
		ErrProviderUnavailable, strings.Join(candidates, ", "))
}

// Name returns the provider identifier.
func (p *SystemProvider) Name() string {
	return "system"
}

// Synthesize shells out to the OS synthesizer and returns the written
// artifact.
func (p *SystemProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResult, error) {
	startTime := time.Now()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	language := req.Language
	if language == "" {
		language = DetectLanguage(text)
	}

	var (
		path  string
		voice string
		args  []string
	)
	if strings.HasSuffix(p.binary, "say") {
		path = p.store.Path("aiff")
		voice = sayVoices[language]
		args = []string{"-o", path}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, text)
	} else {
		path = p.store.Path("wav")
		voice = espeakVoices[language]
		args = []string{"-w", path}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, text)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.binary, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("system tts: %v: %s", err, bytes.TrimSpace(out))
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, ErrNoAudio
	}
	// Match the artifact store's permissions; the synthesizer created
	// the file with its own umask.
	_ = os.Chmod(path, 0o600)

	format := strings.TrimPrefix(strings.ToLower(path[strings.LastIndex(path, ".")+1:]), ".")
	processingTime := time.Since(startTime)
	p.logger.Info().
		Str("voice", voice).
		Str("language", language).
		Dur("time", processingTime).
		Msg("Synthesis complete")

	return &SynthesizeResult{
		AudioPath:      path,
		Voice:          voice,
		Language:       language,
		Format:         format,
		ProcessingTime: processingTime,
	}, nil
}

// Health re-resolves the binary.
func (p *SystemProvider) Health(_ context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
