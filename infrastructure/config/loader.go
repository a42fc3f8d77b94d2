package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where commands look for the config file
const DefaultPath = "config/config.yaml"

// Config represents the complete application configuration
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Audio    AudioConfig    `yaml:"audio"`
	Playback PlaybackConfig `yaml:"playback"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Google   GoogleConfig   `yaml:"google"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PathsConfig contains directory paths for media processing
type PathsConfig struct {
	SourceDirectory string `yaml:"source_directory"`
	OutputDirectory string `yaml:"output_directory"`
}

// AudioConfig contains audio extraction settings
type AudioConfig struct {
	BitRate      int  `yaml:"bitrate"`
	MaxInputSize int  `yaml:"max_input_size"`
	Streaming    bool `yaml:"streaming"`
}

// PlaybackConfig contains player timing and output settings
type PlaybackConfig struct {
	SyncThresholdMs int    `yaml:"sync_threshold_ms"`
	SyncRetryMs     int    `yaml:"sync_retry_ms"`
	PausePollMs     int    `yaml:"pause_poll_ms"`
	WindowTitle     string `yaml:"window_title"`
	Headless        bool   `yaml:"headless"`
}

// SyncThreshold is the audio/video drift tolerated before correcting
func (p PlaybackConfig) SyncThreshold() time.Duration {
	return time.Duration(p.SyncThresholdMs) * time.Millisecond
}

// SyncRetry is how long a leading audio stream waits before re-checking
func (p PlaybackConfig) SyncRetry() time.Duration {
	return time.Duration(p.SyncRetryMs) * time.Millisecond
}

// PausePoll is how often paused pumps re-check state
func (p PlaybackConfig) PausePoll() time.Duration {
	return time.Duration(p.PausePollMs) * time.Millisecond
}

// FFmpegConfig locates the ffmpeg binaries
type FFmpegConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	FFplayPath string `yaml:"ffplay_path"`
}

// GoogleConfig contains Google API settings
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderID        string `yaml:"folder_id"`
}

// EmailConfig contains upload notification settings
type EmailConfig struct {
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
	SenderName  string `yaml:"sender_name"` // signs the message body
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	cfg := &Config{Logging: LoggingConfig{Development: true}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	if c.Paths.OutputDirectory == "" {
		c.Paths.OutputDirectory = "."
	}
	if c.Audio.BitRate <= 0 {
		c.Audio.BitRate = 128000
	}
	if c.Audio.MaxInputSize <= 0 {
		c.Audio.MaxInputSize = 16384
	}
	if c.Playback.SyncThresholdMs <= 0 {
		c.Playback.SyncThresholdMs = 10
	}
	if c.Playback.SyncRetryMs <= 0 {
		c.Playback.SyncRetryMs = 5
	}
	if c.Playback.PausePollMs <= 0 {
		c.Playback.PausePollMs = 100
	}
	if c.Playback.WindowTitle == "" {
		c.Playback.WindowTitle = "audio-extractor"
	}
	if c.FFmpeg.FFmpegPath == "" {
		c.FFmpeg.FFmpegPath = "ffmpeg"
	}
	if c.FFmpeg.FFplayPath == "" {
		c.FFmpeg.FFplayPath = "ffplay"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
