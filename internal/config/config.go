// Package config provides configuration management for CortexVoice.
// Configuration lives in ~/.cortexvoice/config.yaml and can be
// overridden by CORTEXVOICE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	dirName    = ".cortexvoice"
	configName = "config.yaml"
	envPrefix  = "CORTEXVOICE"
)

// Config holds all daemon configuration.
type Config struct {
	Daemon  DaemonConfig  `mapstructure:"daemon" yaml:"daemon" json:"daemon"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio" json:"audio"`
	STT     STTConfig     `mapstructure:"stt" yaml:"stt" json:"stt"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm" json:"llm"`
	TTS     TTSConfig     `mapstructure:"tts" yaml:"tts" json:"tts"`
	History HistoryConfig `mapstructure:"history" yaml:"history" json:"history"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// DaemonConfig holds conversation-level settings.
type DaemonConfig struct {
	MaxHistory    int    `mapstructure:"max_history" yaml:"max_history" json:"max_history"`
	RecordingMode string `mapstructure:"recording_mode" yaml:"recording_mode" json:"recording_mode"`
}

// AudioConfig holds capture gating parameters.
type AudioConfig struct {
	VADThreshold   float64       `mapstructure:"vad_threshold" yaml:"vad_threshold" json:"vad_threshold"`
	VADConsecutive int           `mapstructure:"vad_consecutive" yaml:"vad_consecutive" json:"vad_consecutive"`
	PreBuffer      time.Duration `mapstructure:"pre_buffer" yaml:"pre_buffer" json:"pre_buffer"`
	MinSpeech      time.Duration `mapstructure:"min_speech" yaml:"min_speech" json:"min_speech"`
	SilenceAfter   time.Duration `mapstructure:"silence_after" yaml:"silence_after" json:"silence_after"`
	MaxDuration    time.Duration `mapstructure:"max_duration" yaml:"max_duration" json:"max_duration"`
	InitialTimeout time.Duration `mapstructure:"initial_timeout" yaml:"initial_timeout" json:"initial_timeout"`
}

// STTConfig selects and configures the transcription backend.
type STTConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider" json:"provider"` // sensevoice, whisper
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Model    string        `mapstructure:"model" yaml:"model" json:"model"`
	Language string        `mapstructure:"language" yaml:"language" json:"language"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// LLMConfig selects and configures the chat backend.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider" json:"provider"` // ollama, claude, openai
	Model        string        `mapstructure:"model" yaml:"model" json:"model"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Binary       string        `mapstructure:"binary" yaml:"binary" json:"binary"`
	SystemPrompt string        `mapstructure:"system_prompt" yaml:"system_prompt" json:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// TTSConfig selects and configures the synthesis backend.
type TTSConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider" json:"provider"` // edge, system
	Voice          string        `mapstructure:"voice" yaml:"voice" json:"voice"`
	Rate           string        `mapstructure:"rate" yaml:"rate" json:"rate"`
	ArtifactDir    string        `mapstructure:"artifact_dir" yaml:"artifact_dir" json:"artifact_dir"`
	ArtifactMaxAge time.Duration `mapstructure:"artifact_max_age" yaml:"artifact_max_age" json:"artifact_max_age"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// HistoryConfig controls turn persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
}

// LoggingConfig controls the zerolog sinks.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level" json:"level"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Console bool   `mapstructure:"console" yaml:"console" json:"console"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			MaxHistory:    10,
			RecordingMode: "continuous",
		},
		Audio: AudioConfig{
			VADThreshold:   0.5,
			VADConsecutive: 3,
			PreBuffer:      300 * time.Millisecond,
			MinSpeech:      400 * time.Millisecond,
			SilenceAfter:   800 * time.Millisecond,
			MaxDuration:    30 * time.Second,
			InitialTimeout: 60 * time.Second,
		},
		STT: STTConfig{
			Provider: "sensevoice",
			BaseURL:  "http://localhost:8000",
			Model:    "iic/SenseVoiceSmall",
			Language: "auto",
			Timeout:  30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "qwen2.5:7b",
			BaseURL:  "http://localhost:11434",
			Timeout:  120 * time.Second,
		},
		TTS: TTSConfig{
			Provider:       "edge",
			Rate:           "+0%",
			ArtifactMaxAge: 10 * time.Minute,
			Timeout:        30 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "~/" + dirName + "/history.db",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Dir:     "~/" + dirName + "/logs",
			Console: true,
		},
	}
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, dirName), nil
}

// Load reads configuration from the default location, creating a
// default config file on first run.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads configuration from dir/config.yaml and merges
// environment overrides. A missing file is created with defaults.
func LoadFrom(dir string) (*Config, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	path := filepath.Join(dir, configName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, DefaultConfig()); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: CORTEXVOICE_LLM_MODEL overrides llm.model.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.History.DBPath = expandPath(cfg.History.DBPath)
	cfg.Logging.Dir = expandPath(cfg.Logging.Dir)
	cfg.TTS.ArtifactDir = expandPath(cfg.TTS.ArtifactDir)
	return cfg, nil
}

// Save writes the configuration to the default location.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return SaveTo(dir, cfg)
}

// SaveTo writes the configuration to dir/config.yaml.
func SaveTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return writeConfigFile(filepath.Join(dir, configName), cfg)
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
