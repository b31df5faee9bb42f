package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Model != DefaultModel {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.Audio.CaptureRate != 16000 || cfg.Audio.PlaybackRate != 24000 || cfg.Audio.FrameSize != 256 {
		t.Errorf("unexpected audio defaults %+v", cfg.Audio)
	}
	if !cfg.Audio.EchoCancellation || !cfg.Audio.NoiseSuppression || !cfg.Audio.AutoGainControl {
		t.Errorf("expected voice processing enabled by default, got %+v", cfg.Audio)
	}
	if cfg.ResetDelay() != 250*time.Millisecond {
		t.Errorf("reset delay = %v", cfg.ResetDelay())
	}
	if cfg.Mode != ModeToggle {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestSaveThenLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live-tray", "config.json")

	cfg := Default()
	cfg.Audio.InputDevice = "USB Mic"
	cfg.ResetDelayMS = 500
	cfg.Mode = ModePushToTalk
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Audio.InputDevice != "USB Mic" || got.ResetDelayMS != 500 || got.Mode != ModePushToTalk {
		t.Errorf("round trip lost settings: %+v", got)
	}
}

func TestLoadFilePartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"audio": {"input_device": "hw:1"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Audio.InputDevice != "hw:1" {
		t.Errorf("input_device = %q", cfg.Audio.InputDevice)
	}
	if cfg.Audio.CaptureRate != 16000 {
		t.Errorf("capture_rate default lost: %d", cfg.Audio.CaptureRate)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed json", `{"model":`, "parse"},
		{"zero capture rate", `{"audio": {"capture_rate": 0}}`, "audio.capture_rate"},
		{"negative frame size", `{"audio": {"frame_size": -1}}`, "audio.frame_size"},
		{"negative reset delay", `{"reset_delay_ms": -5}`, "reset_delay_ms"},
		{"unknown mode", `{"mode": "Hold"}`, "mode"},
		{"bad log level", `{"log_level": "loud"}`, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Audio.CaptureRate = 0
	cfg.Audio.PlaybackRate = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "capture_rate") || !strings.Contains(msg, "playback_rate") {
		t.Errorf("expected both problems reported, got %q", msg)
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("LIVE_TRAY_TEST_KEY", "secret")
	cfg := Default()
	cfg.APIKeyEnv = "LIVE_TRAY_TEST_KEY"
	if cfg.APIKey() != "secret" {
		t.Errorf("APIKey = %q", cfg.APIKey())
	}
}

func TestPathUsesXDGConfigHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG paths only apply on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if got, want := Path(), filepath.Join(dir, "live-tray", "config.json"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestLoadPersonaFromReader(t *testing.T) {
	p, err := LoadPersonaFromReader(strings.NewReader(`
name: Guide
language_code: en-GB
instruction: |
  You are a museum guide.
`))
	if err != nil {
		t.Fatalf("LoadPersonaFromReader: %v", err)
	}
	if p.Name != "Guide" || p.LanguageCode != "en-GB" {
		t.Errorf("unexpected persona %+v", p)
	}
	if p.Voice != DefaultVoice {
		t.Errorf("voice = %q, want default %q", p.Voice, DefaultVoice)
	}
	if !strings.Contains(p.Instruction, "museum guide") {
		t.Errorf("instruction = %q", p.Instruction)
	}
}

func TestLoadPersonaFromReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"unknown key", "name: x\ninstruction: hi\ntemperature: 2\n"},
		{"missing instruction", "name: x\nvoice: Puck\n"},
		{"not yaml", "instruction: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadPersonaFromReader(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadPersonaDefaultsAndMissingFile(t *testing.T) {
	p, err := LoadPersona("")
	if err != nil {
		t.Fatalf("LoadPersona: %v", err)
	}
	if p.Voice != DefaultVoice || p.Instruction == "" {
		t.Errorf("unexpected default persona %+v", p)
	}

	_, err = LoadPersona(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
