package accel

import "strings"

// X11 modifier masks.
const (
	x11ShiftMask   = 1 << 0
	x11ControlMask = 1 << 2
	x11Mod1Mask    = 1 << 3 // Alt
	x11Mod4Mask    = 1 << 6 // Super
)

// X11Keysym returns the keysym name for XStringToKeysym.
func (a Accelerator) X11Keysym() string {
	switch a.Key {
	case "Space":
		return "space"
	case "Enter":
		return "Return"
	case "Tab", "Escape":
		return a.Key
	}
	if len(a.Key) == 1 {
		return strings.ToLower(a.Key)
	}
	return a.Key
}

// X11Modifiers returns the modifier state mask for XGrabKey.
func (a Accelerator) X11Modifiers() uint {
	var m uint
	if a.Mods&Shift != 0 {
		m |= x11ShiftMask
	}
	if a.Mods&Ctrl != 0 {
		m |= x11ControlMask
	}
	if a.Mods&Alt != 0 {
		m |= x11Mod1Mask
	}
	if a.Mods&Super != 0 {
		m |= x11Mod4Mask
	}
	return m
}

// Carbon modifier flags.
const (
	carbonCmdKey     = 0x0100
	carbonShiftKey   = 0x0200
	carbonOptionKey  = 0x0800
	carbonControlKey = 0x1000
)

// ANSI virtual key codes from HIToolbox/Events.h.
var macKeyCodes = map[string]uint32{
	"A": 0x00, "S": 0x01, "D": 0x02, "F": 0x03, "H": 0x04, "G": 0x05,
	"Z": 0x06, "X": 0x07, "C": 0x08, "V": 0x09, "B": 0x0B, "Q": 0x0C,
	"W": 0x0D, "E": 0x0E, "R": 0x0F, "Y": 0x10, "T": 0x11, "1": 0x12,
	"2": 0x13, "3": 0x14, "4": 0x15, "6": 0x16, "5": 0x17, "9": 0x19,
	"7": 0x1A, "8": 0x1C, "0": 0x1D, "O": 0x1F, "U": 0x20, "I": 0x22,
	"P": 0x23, "L": 0x25, "J": 0x26, "K": 0x28, "N": 0x2D, "M": 0x2E,
	"Enter": 0x24, "Tab": 0x30, "Space": 0x31, "Escape": 0x35,
	"F1": 0x7A, "F2": 0x78, "F3": 0x63, "F4": 0x76, "F5": 0x60, "F6": 0x61,
	"F7": 0x62, "F8": 0x64, "F9": 0x65, "F10": 0x6D, "F11": 0x67, "F12": 0x6F,
}

// MacKeyCode returns the Carbon virtual key code for the key.
func (a Accelerator) MacKeyCode() (uint32, bool) {
	code, ok := macKeyCodes[a.Key]
	return code, ok
}

// MacModifiers returns the Carbon modifier flags for RegisterEventHotKey.
func (a Accelerator) MacModifiers() uint32 {
	var m uint32
	if a.Mods&Super != 0 {
		m |= carbonCmdKey
	}
	if a.Mods&Shift != 0 {
		m |= carbonShiftKey
	}
	if a.Mods&Alt != 0 {
		m |= carbonOptionKey
	}
	if a.Mods&Ctrl != 0 {
		m |= carbonControlKey
	}
	return m
}
