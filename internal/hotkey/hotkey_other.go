//go:build !linux && !darwin

package hotkey

// New always fails; there is no global hotkey backend for this platform.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
