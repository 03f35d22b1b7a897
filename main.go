// CortexVoice daemon - the local voice assistant worker process.
//
// The process speaks line-delimited JSON: commands on stdin, events on
// stdout. Logs go to file and stderr, never stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexvoice/internal/config"
	"github.com/normanking/cortexvoice/internal/daemon"
	"github.com/normanking/cortexvoice/internal/logging"
)

func main() {
	// Bootstrap logger for everything before the config is read.
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	loadEnvFiles(boot)

	cfg, err := config.Load()
	if err != nil {
		boot.Warn().Err(err).Msg("Config load failed, using defaults")
		cfg = config.DefaultConfig()
	}

	syslog, err := logging.New(logging.Config{
		Dir:     cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer syslog.Close()

	logger := syslog.Logger
	logger.Info().Str("log_file", syslog.Path()).Msg("CortexVoice daemon starting")

	recorder := buildRecorder(cfg, logger)
	recognizer := buildRecognizer(cfg, logger)
	chat := buildChat(cfg, logger)
	synthesizer, reaper := buildSynthesizer(cfg, logger)
	if reaper != nil {
		reaper.Start()
		defer reaper.Stop()
	}
	store := buildHistoryStore(cfg, logger)

	opts := daemon.Options{
		Config:      cfg,
		Logger:      logger,
		Recognizer:  recognizer,
		Chat:        chat,
		Synthesizer: synthesizer,
		Store:       store,
	}
	if recorder != nil {
		opts.Recorder = recorder
	}
	d := daemon.New(opts)

	// Edits to the config file apply between commands.
	if dir, err := config.Dir(); err == nil {
		watcher, err := config.WatchDir(dir, logger, func(next *config.Config) {
			logger.Info().Msg("Config file changed, reloading")
			d.ReplaceConfig(next)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Config watcher unavailable")
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Daemon run failed")
		os.Exit(1)
	}
}

// loadEnvFiles reads KEY=VALUE pairs from the shared cortex env file
// and this app's own, without overriding what the environment already
// has. API keys live here instead of the config file.
func loadEnvFiles(logger zerolog.Logger) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}

	envPaths := []string{
		filepath.Join(home, ".cortex", ".env"),
		filepath.Join(home, ".cortexvoice", ".env"),
	}
	for _, envPath := range envPaths {
		file, err := os.Open(envPath)
		if err != nil {
			continue
		}

		loaded := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.Trim(strings.TrimSpace(value), "\"'")
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
				loaded++
			}
		}
		file.Close()

		if loaded > 0 {
			logger.Info().Str("source", envPath).Int("count", loaded).Msg("Loaded environment variables")
		}
	}
}
