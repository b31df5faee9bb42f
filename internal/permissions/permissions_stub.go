//go:build !darwin

package permissions

import "github.com/rs/zerolog"

// CheckMicrophone reports authorized; access is decided when the device
// is opened.
func CheckMicrophone() Status { return PermissionAuthorized }

// EnsurePermissions is a no-op on non-macOS platforms.
func EnsurePermissions(log zerolog.Logger) error {
	return nil
}
