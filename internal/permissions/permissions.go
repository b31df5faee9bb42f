// Package permissions checks the OS privacy permissions the assistant needs:
// the microphone for capture and, on macOS, accessibility for the global
// hotkey.
package permissions

import "errors"

var (
	ErrMicrophoneDenied    = errors.New("microphone permission not granted")
	ErrAccessibilityDenied = errors.New("accessibility permission not granted")
)

// Status mirrors AVAuthorizationStatus.
type Status int

const (
	PermissionNotDetermined Status = iota
	PermissionRestricted
	PermissionDenied
	PermissionAuthorized
)

func (s Status) String() string {
	switch s {
	case PermissionNotDetermined:
		return "not determined"
	case PermissionRestricted:
		return "restricted"
	case PermissionDenied:
		return "denied"
	case PermissionAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Granted reports whether capture may proceed.
func (s Status) Granted() bool { return s == PermissionAuthorized }
