package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/signal/transport"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("AppData", dir)
	t.Setenv(envBackendURL, "")
	t.Setenv(envLogLevel, "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != transport.DefaultURL {
		t.Errorf("BackendURL = %q, want %q", cfg.BackendURL, transport.DefaultURL)
	}
	if cfg.Audio.ClipDuration.Std() != 3*time.Second {
		t.Errorf("ClipDuration = %v, want 3s", cfg.Audio.ClipDuration)
	}
	if cfg.Gesture.Cooldown.Std() != 2*time.Second {
		t.Errorf("Cooldown = %v, want 2s", cfg.Gesture.Cooldown)
	}
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.BackendURL = "ws://localhost:8000/ws-signal"
	cfg.Audio.Source = SourceMicrophone
	cfg.Audio.ClipDuration = Duration(1500 * time.Millisecond)
	cfg.ImageDir = "/tmp/images"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"clip_duration": "1.5s"`) {
		t.Errorf("saved config does not encode duration as text:\n%s", data)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.BackendURL != cfg.BackendURL || got.Audio.Source != SourceMicrophone || got.ImageDir != "/tmp/images" {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}
	if got.Audio.ClipDuration != cfg.Audio.ClipDuration {
		t.Errorf("ClipDuration = %v, want %v", got.Audio.ClipDuration, cfg.Audio.ClipDuration)
	}
	// Keys absent from the file keep their defaults.
	if got.Hotkey.Keys != "ctrl+shift+c" {
		t.Errorf("Hotkey.Keys = %q", got.Hotkey.Keys)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(envBackendURL, "https://backend.example.com/ws-signal")
	t.Setenv(envLogLevel, "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "wss://backend.example.com/ws-signal" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if level, _ := cfg.LogLevel(); level.String() != "DEBUG" {
		t.Errorf("LogLevel = %v, want DEBUG", level)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "yaml",
			file: "signal.yaml",
			content: `backend_url: http://localhost:8000/ws-signal
audio:
  source: command
  command: [ffmpeg, -f, pulse, -i, default, -f, s16le, -]
  clip_duration: 2s
gesture:
  enabled: true
  command: [python3, hands.py]
  cooldown: 1500ms
`,
			check: func(t *testing.T, c *Config) {
				if c.BackendURL != "ws://localhost:8000/ws-signal" {
					t.Errorf("BackendURL = %q", c.BackendURL)
				}
				if len(c.Audio.Command) != 8 || c.Audio.ClipDuration.Std() != 2*time.Second {
					t.Errorf("Audio = %+v", c.Audio)
				}
				if c.Gesture.Cooldown.Std() != 1500*time.Millisecond {
					t.Errorf("Gesture.Cooldown = %v", c.Gesture.Cooldown)
				}
			},
		},
		{
			name:    "yaml unknown key",
			file:    "bad.yml",
			content: "backend: ws://x\n",
			wantErr: "field backend not found",
		},
		{
			name:    "json unknown key",
			file:    "bad.json",
			content: `{"backend":"ws://x"}`,
			wantErr: "unknown field",
		},
		{
			name:    "bad duration",
			file:    "dur.yaml",
			content: "audio:\n  clip_duration: soon\n",
			wantErr: "parse duration",
		},
		{
			name:    "unsupported extension",
			file:    "signal.toml",
			content: "",
			wantErr: "unsupported config format",
		},
		{
			name:    "invalid",
			file:    "invalid.yaml",
			content: "audio:\n  source: command\n",
			wantErr: "audio.command required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadFile(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadFile() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"http scheme", func(c *Config) { c.BackendURL = "http://x" }, "unsupported scheme"},
		{"no host", func(c *Config) { c.BackendURL = "ws://" }, "missing host"},
		{"unknown source", func(c *Config) { c.Audio.Source = "tape" }, "unknown source"},
		{"short clip", func(c *Config) { c.Audio.ClipDuration = Duration(time.Millisecond) }, "clip_duration"},
		{"gesture without helper", func(c *Config) { c.Gesture.Enabled = true }, "gesture.command"},
		{"empty hotkey", func(c *Config) { c.Hotkey.Keys = " " }, "hotkey.keys"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	isolate(t)
	out, err := Default().YAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "clip_duration: 3s") {
		t.Errorf("YAML() missing text duration:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "round.yaml")
	if err := os.WriteFile(path, out, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Errorf("LoadFile(YAML()) error = %v", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"https://a.example/ws":  "wss://a.example/ws",
		"http://localhost:8000": "ws://localhost:8000",
		" wss://b.example ":     "wss://b.example",
	}
	for in, want := range tests {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
