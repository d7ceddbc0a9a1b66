// Package config provides the configuration structure for voice-studio.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// CharacterEngineConfig holds the configuration for the remote character
// voice engine.
type CharacterEngineConfig struct {
	BaseURL           string  `toml:"base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	DefaultSpeakerID  int     `toml:"default_speaker_id"`
}

// CloneEngineConfig holds the configuration for the local voice-cloning
// engine.
type CloneEngineConfig struct {
	BinaryPath     string `toml:"binary_path"`
	ModelDir       string `toml:"model_dir"`
	SamplesDir     string `toml:"samples_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// WhisperConfig holds the configuration for the transcription engine.
type WhisperConfig struct {
	BinaryPath       string `toml:"binary_path"`
	ModelsDir        string `toml:"models_dir"`
	DefaultModelSize string `toml:"default_model_size"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// NATSConfig holds the configuration for the headless worker mode.
type NATSConfig struct {
	URL                    string `toml:"url"`
	JobStreamName          string `toml:"job_stream_name"`
	JobConsumerName        string `toml:"job_consumer_name"`
	JobSubject             string `toml:"job_subject"`
	JobDoneSubject         string `toml:"job_done_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir   string `toml:"base_logs_dir"`
	OutputDir     string `toml:"output_dir"`
	TranscriptDir string `toml:"transcript_dir"`
	SettingsPath  string `toml:"settings_path"`
}

// Config is the root configuration structure.
type Config struct {
	Character CharacterEngineConfig `toml:"character_engine"`
	Clone     CloneEngineConfig     `toml:"clone_engine"`
	Whisper   WhisperConfig         `toml:"whisper"`
	NATS      NATSConfig            `toml:"nats"`
	Paths     PathsConfig           `toml:"paths"`
}

// Load loads the configuration for voice-studio.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
