// Package hotkey registers a global push-to-talk / toggle key.
package hotkey

import "errors"

// ErrUnsupported is returned by New on platforms without a backend.
var ErrUnsupported = errors.New("hotkey: unsupported platform")

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}
