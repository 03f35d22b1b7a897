package main

import (
	"github.com/rs/zerolog"

	"github.com/normanking/cortexvoice/internal/audio"
	"github.com/normanking/cortexvoice/internal/config"
	"github.com/normanking/cortexvoice/internal/history"
	"github.com/normanking/cortexvoice/internal/llm"
	"github.com/normanking/cortexvoice/internal/stt"
	"github.com/normanking/cortexvoice/internal/tts"
)

// Backend construction. A missing or unknown backend disables its
// commands and shows up in health, it never stops the daemon.

func buildRecorder(cfg *config.Config, logger zerolog.Logger) *audio.Recorder {
	source, err := audio.NewCommandSource(logger)
	if err != nil {
		logger.Warn().Err(err).Msg("No capture tool found, recording disabled")
		return nil
	}
	detector := audio.NewEnergyDetector(audio.DefaultEnergyConfig())
	return audio.NewRecorder(source, detector, recorderConfig(cfg.Audio), logger)
}

func recorderConfig(a config.AudioConfig) audio.RecorderConfig {
	rc := audio.DefaultRecorderConfig()
	if a.VADThreshold > 0 {
		rc.Threshold = a.VADThreshold
	}
	if a.VADConsecutive > 0 {
		rc.Consecutive = a.VADConsecutive
	}
	if a.PreBuffer > 0 {
		rc.PreBuffer = a.PreBuffer
	}
	if a.MinSpeech > 0 {
		rc.MinSpeech = a.MinSpeech
	}
	if a.SilenceAfter > 0 {
		rc.SilenceAfter = a.SilenceAfter
	}
	if a.MaxDuration > 0 {
		rc.MaxDuration = a.MaxDuration
	}
	if a.InitialTimeout > 0 {
		rc.InitialTimeout = a.InitialTimeout
	}
	return rc
}

func buildRecognizer(cfg *config.Config, logger zerolog.Logger) stt.Provider {
	switch cfg.STT.Provider {
	case "sensevoice":
		return stt.NewSenseVoiceProvider(logger, &stt.SenseVoiceConfig{
			BaseURL:  cfg.STT.BaseURL,
			APIKey:   cfg.STT.APIKey,
			Model:    cfg.STT.Model,
			Language: cfg.STT.Language,
			Timeout:  cfg.STT.Timeout,
		})
	case "whisper":
		return stt.NewWhisperAPIProvider(logger, &stt.WhisperAPIConfig{
			BaseURL:  cfg.STT.BaseURL,
			APIKey:   cfg.STT.APIKey,
			Model:    cfg.STT.Model,
			Language: cfg.STT.Language,
			Timeout:  cfg.STT.Timeout,
		})
	default:
		logger.Warn().Str("provider", cfg.STT.Provider).Msg("Unknown STT provider, transcription disabled")
		return nil
	}
}

func buildChat(cfg *config.Config, logger zerolog.Logger) llm.Provider {
	switch cfg.LLM.Provider {
	case "ollama":
		return llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
	case "claude":
		return llm.NewClaudeCLIProvider(llm.ClaudeCLIConfig{
			Binary:  cfg.LLM.Binary,
			Timeout: cfg.LLM.Timeout,
		})
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
	default:
		logger.Warn().Str("provider", cfg.LLM.Provider).Msg("Unknown LLM provider, chat disabled")
		return nil
	}
}

func buildSynthesizer(cfg *config.Config, logger zerolog.Logger) (tts.Provider, *tts.Reaper) {
	store, err := tts.NewArtifactStore(cfg.TTS.ArtifactDir, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Artifact store unavailable, synthesis disabled")
		return nil, nil
	}
	// The reaper runs even without a provider; it clears artifacts a
	// previous run left behind.
	reaper := tts.NewReaper(store, cfg.TTS.ArtifactMaxAge, 0, logger)

	switch cfg.TTS.Provider {
	case "edge":
		return tts.NewEdgeProvider(logger, store, tts.EdgeConfig{
			Voice:   cfg.TTS.Voice,
			Rate:    cfg.TTS.Rate,
			Timeout: cfg.TTS.Timeout,
		}), reaper
	case "system":
		provider, err := tts.NewSystemProvider(logger, store)
		if err != nil {
			logger.Warn().Err(err).Msg("System TTS unavailable, synthesis disabled")
			return nil, reaper
		}
		return provider, reaper
	default:
		logger.Warn().Str("provider", cfg.TTS.Provider).Msg("Unknown TTS provider, synthesis disabled")
		return nil, reaper
	}
}

func buildHistoryStore(cfg *config.Config, logger zerolog.Logger) history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("History store unavailable, persistence disabled")
		return nil
	}
	return store
}
