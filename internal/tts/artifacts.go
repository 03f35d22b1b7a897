package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultArtifactDirName = "cortexvoice_audio"

// ArtifactStore owns the directory synthesized audio lands in. Files
// get random names and owner-only permissions.
type ArtifactStore struct {
	dir    string
	logger zerolog.Logger
}

// NewArtifactStore creates the artifact directory if needed. An empty
// dir defaults to a subdirectory of the system temp dir.
func NewArtifactStore(dir string, logger zerolog.Logger) (*ArtifactStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), defaultArtifactDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &ArtifactStore{
		dir:    dir,
		logger: logger.With().Str("component", "artifacts").Logger(),
	}, nil
}

// Dir returns the artifact directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Path reserves a fresh artifact path with the given extension. Nothing
// is created; subprocess providers write the file themselves.
func (s *ArtifactStore) Path(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(s.dir, uuid.NewString()+"."+ext)
}

// Save writes audio bytes to a fresh artifact, readable by owner only.
func (s *ArtifactStore) Save(data []byte, ext string) (string, error) {
	path := s.Path(ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Reaper sweeps the artifact directory on a ticker, deleting files
// older than maxAge. Emitted audio paths stay readable until well after
// the host had its chance to play them; nothing is deleted eagerly.
type Reaper struct {
	store    *ArtifactStore
	maxAge   time.Duration
	interval time.Duration
	logger   zerolog.Logger
	done     chan struct{}
}

// NewReaper creates a reaper. Defaults: 10 minute age, 1 minute sweep
// interval.
func NewReaper(store *ArtifactStore, maxAge, interval time.Duration, logger zerolog.Logger) *Reaper {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With().Str("component", "reaper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	go r.loop()
}

// Stop ends the sweep loop.
func (r *Reaper) Stop() {
	close(r.done)
}

func (r *Reaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.sweep(); n > 0 {
				r.logger.Debug().Int("removed", n).Msg("Swept old artifacts")
			}
		case <-r.done:
			return
		}
	}
}

func (r *Reaper) sweep() int {
	entries, err := os.ReadDir(r.store.Dir())
	if err != nil {
		r.logger.Warn().Err(err).Msg("Artifact sweep failed")
		return 0
	}

	cutoff := time.Now().Add(-r.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.store.Dir(), entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}
