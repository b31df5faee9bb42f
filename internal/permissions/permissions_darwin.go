//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}

int checkAccessibilityPermission() {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

import (
	"errors"

	"github.com/rs/zerolog"
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() Status {
	return Status(C.checkMicrophonePermission())
}

// RequestMicrophone triggers the system microphone permission dialog
func RequestMicrophone() {
	C.requestMicrophonePermission()
}

// CheckAccessibility checks if the app has accessibility permissions (needed
// for hotkeys). The system prompt is shown when it is missing.
func CheckAccessibility() bool {
	return C.checkAccessibilityPermission() == 1
}

// EnsurePermissions checks and requests all required permissions. Both
// checks run so that every prompt is shown on first launch.
func EnsurePermissions(log zerolog.Logger) error {
	var errs []error

	if status := CheckMicrophone(); !status.Granted() {
		log.Warn().Stringer("status", status).Msg("Microphone permission required")
		if status == PermissionNotDetermined {
			RequestMicrophone()
		}
		errs = append(errs, ErrMicrophoneDenied)
	}

	if !CheckAccessibility() {
		log.Warn().Msg("Accessibility permission required for hotkeys: System Settings → Privacy & Security → Accessibility")
		errs = append(errs, ErrAccessibilityDenied)
	}

	return errors.Join(errs...)
}
