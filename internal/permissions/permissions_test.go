package permissions

import "testing"

func TestStatus(t *testing.T) {
	tests := []struct {
		status  Status
		name    string
		granted bool
	}{
		{PermissionNotDetermined, "not determined", false},
		{PermissionRestricted, "restricted", false},
		{PermissionDenied, "denied", false},
		{PermissionAuthorized, "authorized", true},
		{Status(9), "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.name {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.name)
		}
		if got := tt.status.Granted(); got != tt.granted {
			t.Errorf("Status(%d).Granted() = %v", int(tt.status), got)
		}
	}
}
