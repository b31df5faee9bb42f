package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Hotkey modes.
const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"
)

const (
	DefaultModel   = "gemini-2.5-flash-preview-native-audio-dialog"
	DefaultBaseURL = "wss://generativelanguage.googleapis.com/ws"
)

type Config struct {
	Model        string      `json:"model"`
	APIKeyEnv    string      `json:"api_key_env"`
	BaseURL      string      `json:"base_url"`
	PersonaPath  string      `json:"persona_path"`
	Hotkey       string      `json:"hotkey"`
	HotkeyDarwin string      `json:"hotkey_darwin"`
	Mode         string      `json:"mode"` // "PushToTalk" or "Toggle"
	LogLevel     string      `json:"log_level"`
	Audio        AudioConfig `json:"audio"`
	ResetDelayMS int         `json:"reset_delay_ms"`
	MetricsAddr  string      `json:"metrics_addr"` // empty disables /metrics
}

type AudioConfig struct {
	InputDevice      string `json:"input_device"`  // empty = system default
	OutputDevice     string `json:"output_device"` // empty = system default
	CaptureRate      int    `json:"capture_rate"`
	PlaybackRate     int    `json:"playback_rate"`
	FrameSize        int    `json:"frame_size"`
	EchoCancellation bool   `json:"echo_cancellation"`
	NoiseSuppression bool   `json:"noise_suppression"`
	AutoGainControl  bool   `json:"auto_gain_control"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model:        DefaultModel,
		APIKeyEnv:    "GEMINI_API_KEY",
		BaseURL:      DefaultBaseURL,
		Hotkey:       "Alt+Space",
		HotkeyDarwin: "Ctrl+Space",
		Mode:         ModeToggle,
		LogLevel:     "info",
		Audio: AudioConfig{
			CaptureRate:      16000,
			PlaybackRate:     24000,
			FrameSize:        256,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		ResetDelayMS: 250,
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config at path over the defaults. A missing file is not
// an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks that cfg is usable. It returns a joined error listing every
// problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if cfg.Audio.CaptureRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", cfg.Audio.CaptureRate))
	}
	if cfg.Audio.PlaybackRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.playback_rate %d must be positive", cfg.Audio.PlaybackRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.ResetDelayMS < 0 {
		errs = append(errs, fmt.Errorf("reset_delay_ms %d must not be negative", cfg.ResetDelayMS))
	}
	if cfg.Mode != ModePushToTalk && cfg.Mode != ModeToggle {
		errs = append(errs, fmt.Errorf("mode %q is invalid; valid values: %s, %s", cfg.Mode, ModePushToTalk, ModeToggle))
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level %q is invalid", cfg.LogLevel))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// ResetDelay is the settling pause between closing and reopening a session.
func (c *Config) ResetDelay() time.Duration {
	return time.Duration(c.ResetDelayMS) * time.Millisecond
}

// APIKey reads the API key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "live-tray", "config.json")
}
