package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Errors for config management
var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// setting reads and writes one dotted key of Config
type setting struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringSetting(field func(c *Config) *string, required bool) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if required && v == "" {
				return fmt.Errorf("%w: value is required", ErrInvalidValue)
			}
			*field(c) = v
			return nil
		},
	}
}

func positiveIntSetting(field func(c *Config) *int) setting {
	return setting{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: %q is not a positive integer", ErrInvalidValue, v)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolSetting(field func(c *Config) *bool) setting {
	return setting{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
			}
			*field(c) = b
			return nil
		},
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

var settings = map[string]setting{
	"paths.source_directory":     stringSetting(func(c *Config) *string { return &c.Paths.SourceDirectory }, false),
	"paths.output_directory":     stringSetting(func(c *Config) *string { return &c.Paths.OutputDirectory }, true),
	"audio.bitrate":              positiveIntSetting(func(c *Config) *int { return &c.Audio.BitRate }),
	"audio.max_input_size":       positiveIntSetting(func(c *Config) *int { return &c.Audio.MaxInputSize }),
	"audio.streaming":            boolSetting(func(c *Config) *bool { return &c.Audio.Streaming }),
	"playback.sync_threshold_ms": positiveIntSetting(func(c *Config) *int { return &c.Playback.SyncThresholdMs }),
	"playback.sync_retry_ms":     positiveIntSetting(func(c *Config) *int { return &c.Playback.SyncRetryMs }),
	"playback.pause_poll_ms":     positiveIntSetting(func(c *Config) *int { return &c.Playback.PausePollMs }),
	"playback.window_title":      stringSetting(func(c *Config) *string { return &c.Playback.WindowTitle }, true),
	"playback.headless":          boolSetting(func(c *Config) *bool { return &c.Playback.Headless }),
	"ffmpeg.ffmpeg_path":         stringSetting(func(c *Config) *string { return &c.FFmpeg.FFmpegPath }, true),
	"ffmpeg.ffplay_path":         stringSetting(func(c *Config) *string { return &c.FFmpeg.FFplayPath }, true),
	"google.credentials_file":    stringSetting(func(c *Config) *string { return &c.Google.CredentialsFile }, false),
	"google.token_file":          stringSetting(func(c *Config) *string { return &c.Google.TokenFile }, false),
	"google.folder_id":           stringSetting(func(c *Config) *string { return &c.Google.FolderID }, false),
	"email.from_name":            stringSetting(func(c *Config) *string { return &c.Email.FromName }, false),
	"email.from_address":         stringSetting(func(c *Config) *string { return &c.Email.FromAddress }, false),
	"email.sender_name":          stringSetting(func(c *Config) *string { return &c.Email.SenderName }, false),
	"logging.development":        boolSetting(func(c *Config) *bool { return &c.Logging.Development }),
	"logging.level": {
		get: func(c *Config) string { return c.Logging.Level },
		set: func(c *Config, v string) error {
			v = strings.ToLower(v)
			for _, l := range logLevels {
				if v == l {
					c.Logging.Level = v
					return nil
				}
			}
			return fmt.Errorf("%w: log level must be one of %s", ErrInvalidValue, strings.Join(logLevels, ", "))
		},
	},
}

// ConfigManager reads and updates config entries by dotted key
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// Keys returns every settable key in sorted order
func (m *ConfigManager) Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key
func (m *ConfigManager) Get(key string) (string, error) {
	s, ok := settings[normalizeKey(key)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return s.get(m.config), nil
}

// Set validates value, stores it under key and saves the file
func (m *ConfigManager) Set(key, value string) error {
	s, ok := settings[normalizeKey(key)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := s.set(m.config, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return Save(m.config, m.configPath)
}

// Show renders the whole configuration as YAML
func (m *ConfigManager) Show() (string, error) {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return "", fmt.Errorf("failed to serialize config: %w", err)
	}
	return string(data), nil
}

// SuggestSetCommand returns the command that sets key
func SuggestSetCommand(key string) string {
	return fmt.Sprintf("audio-extractor config set %s <value>", key)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
