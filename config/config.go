// Package config handles application configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go.aimuz.me/signal/transport"
)

const (
	appName        = "signal"
	configFileName = "config.json"

	envBackendURL = "SIGNAL_BACKEND_URL"
	envLogLevel   = "SIGNAL_LOG_LEVEL"
)

// Audio sources.
const (
	SourceAuto       = "auto" // loopback, falling back to the microphone
	SourceLoopback   = "loopback"
	SourceMicrophone = "microphone"
	SourceCommand    = "command"
)

// Config represents the application configuration.
type Config struct {
	BackendURL string        `json:"backend_url" yaml:"backend_url"`
	Audio      AudioConfig   `json:"audio" yaml:"audio"`
	Gesture    GestureConfig `json:"gesture" yaml:"gesture"`
	Hotkey     HotkeyConfig  `json:"hotkey" yaml:"hotkey"`
	Notify     NotifyConfig  `json:"notify" yaml:"notify"`
	Journal    JournalConfig `json:"journal" yaml:"journal"`

	// ImageDir receives generated images as PNG files. Empty disables saving.
	ImageDir string    `json:"image_dir,omitempty" yaml:"image_dir,omitempty"`
	Log      LogConfig `json:"log" yaml:"log"`
}

// AudioConfig selects the audio source and clip shape.
type AudioConfig struct {
	Source       string   `json:"source" yaml:"source"`
	Command      []string `json:"command,omitempty" yaml:"command,omitempty"` // s16le PCM producer for SourceCommand
	SampleRate   int      `json:"sample_rate" yaml:"sample_rate"`
	ClipDuration Duration `json:"clip_duration" yaml:"clip_duration"`
	Formats      []string `json:"formats,omitempty" yaml:"formats,omitempty"` // MIME preference order

	// VoiceThreshold is the RMS level shown as speech. 0 uses the default.
	VoiceThreshold float32 `json:"voice_threshold,omitempty" yaml:"voice_threshold,omitempty"`
}

// GestureConfig configures the camera gesture recognizer.
type GestureConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Command  []string `json:"command,omitempty" yaml:"command,omitempty"` // landmark helper argv
	Cooldown Duration `json:"cooldown" yaml:"cooldown"`
}

// HotkeyConfig configures the keyboard alternative to the gesture.
type HotkeyConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Keys    string `json:"keys" yaml:"keys"`
}

// NotifyConfig toggles side effects.
type NotifyConfig struct {
	Sound   bool `json:"sound" yaml:"sound"`
	Desktop bool `json:"desktop" yaml:"desktop"`
}

// JournalConfig configures the local clip journal.
type JournalConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`
	TTL     Duration `json:"ttl" yaml:"ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BackendURL: transport.DefaultURL,
		Audio: AudioConfig{
			Source:       SourceAuto,
			SampleRate:   48000,
			ClipDuration: Duration(3 * time.Second),
		},
		Gesture: GestureConfig{
			Cooldown: Duration(2 * time.Second),
		},
		Hotkey: HotkeyConfig{
			Enabled: true,
			Keys:    "ctrl+shift+c",
		},
		Notify: NotifyConfig{
			Sound:   true,
			Desktop: true,
		},
		Journal: JournalConfig{
			TTL: Duration(24 * time.Hour),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	return cfg.finish()
}

// LoadFile loads configuration from an explicit YAML or JSON file. Unknown
// keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml config %s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode json config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	return cfg.finish()
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BackendURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("backend_url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("backend_url: unsupported scheme %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("backend_url: missing host"))
	}

	switch c.Audio.Source {
	case SourceAuto, SourceLoopback, SourceMicrophone:
	case SourceCommand:
		if len(c.Audio.Command) == 0 {
			errs = append(errs, errors.New("audio.command required for command source"))
		}
	default:
		errs = append(errs, fmt.Errorf("audio.source: unknown source %q", c.Audio.Source))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}
	if c.Audio.VoiceThreshold < 0 || c.Audio.VoiceThreshold >= 1 {
		errs = append(errs, errors.New("audio.voice_threshold must be in [0, 1)"))
	}
	if c.Audio.ClipDuration.Std() < 100*time.Millisecond {
		errs = append(errs, errors.New("audio.clip_duration must be at least 100ms"))
	}

	if c.Gesture.Enabled && len(c.Gesture.Command) == 0 {
		errs = append(errs, errors.New("gesture.command required when gesture is enabled"))
	}
	if c.Gesture.Cooldown < 0 {
		errs = append(errs, errors.New("gesture.cooldown must not be negative"))
	}
	if c.Hotkey.Enabled && strings.TrimSpace(c.Hotkey.Keys) == "" {
		errs = append(errs, errors.New("hotkey.keys required when hotkey is enabled"))
	}
	if c.Journal.TTL < 0 {
		errs = append(errs, errors.New("journal.ttl must not be negative"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// JournalPath returns the journal directory, defaulting next to the config.
func (c *Config) JournalPath() (string, error) {
	if c.Journal.Path != "" {
		return c.Journal.Path, nil
	}
	path, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "journal"), nil
}

// Path returns the location of the user config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func (c *Config) finish() (*Config, error) {
	if v := os.Getenv(envBackendURL); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.Log.Level = v
	}
	c.BackendURL = NormalizeURL(c.BackendURL)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// NormalizeURL maps http(s) backend addresses to ws(s).
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// ─────────────────────────────────────────────────────────────────────────────
// Duration
// ─────────────────────────────────────────────────────────────────────────────

// Duration is a time.Duration written as text ("3s") in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}
