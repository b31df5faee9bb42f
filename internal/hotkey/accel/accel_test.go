package accel

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Accelerator
	}{
		{"Alt+Space", Accelerator{Mods: Alt, Key: "Space"}},
		{"Ctrl+Space", Accelerator{Mods: Ctrl, Key: "Space"}},
		{"ctrl+shift+m", Accelerator{Mods: Ctrl | Shift, Key: "M"}},
		{"Cmd + Option + 5", Accelerator{Mods: Super | Alt, Key: "5"}},
		{"F9", Accelerator{Key: "F9"}},
		{"Shift+f12", Accelerator{Mods: Shift, Key: "F12"}},
		{"Control+Return", Accelerator{Mods: Ctrl, Key: "Enter"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"Alt+",
		"Ctrl+Shift",
		"Alt+Alt+Space",
		"A+B",
		"Hyper+Space",
		"F13",
		"F0",
		"Ctrl+é",
	} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", in, err)
		}
	}
}

func TestString(t *testing.T) {
	a, err := Parse("shift+alt+ctrl+k")
	if err != nil {
		t.Fatal(err)
	}
	if got := a.String(); got != "Ctrl+Shift+Alt+K" {
		t.Errorf("String() = %q", got)
	}
}

func TestX11Mapping(t *testing.T) {
	a, _ := Parse("Alt+Space")
	if a.X11Keysym() != "space" {
		t.Errorf("keysym = %q", a.X11Keysym())
	}
	// Mod1Mask, as grabbed before accelerators were configurable.
	if a.X11Modifiers() != 8 {
		t.Errorf("modifiers = %d, want 8", a.X11Modifiers())
	}

	b, _ := Parse("Ctrl+Shift+M")
	if b.X11Keysym() != "m" || b.X11Modifiers() != 5 {
		t.Errorf("got %q/%d", b.X11Keysym(), b.X11Modifiers())
	}
}

func TestMacMapping(t *testing.T) {
	a, _ := Parse("Ctrl+Space")
	code, ok := a.MacKeyCode()
	if !ok || code != 49 {
		t.Errorf("key code = %d, %v; want 49", code, ok)
	}
	if a.MacModifiers() != 0x1000 {
		t.Errorf("modifiers = %#x, want 0x1000", a.MacModifiers())
	}

	b, _ := Parse("Cmd+Shift+R")
	if got := b.MacModifiers(); got != 0x0300 {
		t.Errorf("modifiers = %#x, want 0x300", got)
	}
}
