// Package accel parses accelerator strings such as "Alt+Space" or
// "Ctrl+Shift+M" and maps them onto platform key codes.
package accel

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("accel: invalid accelerator")

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	Ctrl Modifier = 1 << iota
	Shift
	Alt
	Super
)

func (m Modifier) String() string {
	var parts []string
	for _, n := range modifierOrder {
		if m&n.mod != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{Ctrl, "Ctrl"},
	{Shift, "Shift"},
	{Alt, "Alt"},
	{Super, "Super"},
}

var modifierNames = map[string]Modifier{
	"ctrl":    Ctrl,
	"control": Ctrl,
	"shift":   Shift,
	"alt":     Alt,
	"option":  Alt,
	"super":   Super,
	"cmd":     Super,
	"command": Super,
	"meta":    Super,
}

// Accelerator is a parsed key combination. Key is canonical: upper-case
// letters and digits, or a named key like "Space" or "F5".
type Accelerator struct {
	Mods Modifier
	Key  string
}

func (a Accelerator) String() string {
	if a.Mods == 0 {
		return a.Key
	}
	return a.Mods.String() + "+" + a.Key
}

// Parse reads a "+"-separated accelerator. Names are case-insensitive and
// exactly one non-modifier key is required.
func Parse(s string) (Accelerator, error) {
	var a Accelerator
	if strings.TrimSpace(s) == "" {
		return a, fmt.Errorf("%w: empty", ErrInvalid)
	}

	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return a, fmt.Errorf("%w: %q has an empty component", ErrInvalid, s)
		}
		if mod, ok := modifierNames[strings.ToLower(part)]; ok {
			if a.Mods&mod != 0 {
				return a, fmt.Errorf("%w: %q repeats %s", ErrInvalid, s, mod)
			}
			a.Mods |= mod
			continue
		}
		if a.Key != "" {
			return a, fmt.Errorf("%w: %q has more than one key", ErrInvalid, s)
		}
		key, ok := canonicalKey(part)
		if !ok {
			return a, fmt.Errorf("%w: unknown key %q", ErrInvalid, part)
		}
		a.Key = key
	}

	if a.Key == "" {
		return a, fmt.Errorf("%w: %q has no key", ErrInvalid, s)
	}
	return a, nil
}

var namedKeys = map[string]string{
	"space":  "Space",
	"enter":  "Enter",
	"return": "Enter",
	"tab":    "Tab",
	"esc":    "Escape",
	"escape": "Escape",
}

func canonicalKey(s string) (string, bool) {
	if len(s) == 1 {
		c := s[0]
		switch {
		case c >= 'a' && c <= 'z':
			return string(c - 'a' + 'A'), true
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return s, true
		}
		return "", false
	}
	if k, ok := namedKeys[strings.ToLower(s)]; ok {
		return k, true
	}
	if n, ok := functionKey(s); ok {
		return fmt.Sprintf("F%d", n), true
	}
	return "", false
}

func functionKey(s string) (int, bool) {
	if len(s) < 2 || (s[0] != 'F' && s[0] != 'f') {
		return 0, false
	}
	n := 0
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, n >= 1 && n <= 12
}
