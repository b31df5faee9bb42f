package app

import (
	"github.com/petems/live-tray/internal/live"
)

// event is anything the loop handles besides audio.Event.
type event interface{ appEvent() }

// Commands from the UI and hotkey.
type (
	cmdStart  struct{}
	cmdStop   struct{}
	cmdReset  struct{}
	cmdHotkey struct{ pressed bool }
	cmdDevice struct {
		id    string
		reply chan error
	}
	cmdMode struct {
		mode  string
		reply chan error
	}
)

// Session lifecycle. gen ties each event to the open() that produced it so
// that results from a replaced session are ignored.
type (
	sessionConnected struct {
		gen  uint64
		sess Session
		err  error
	}
	sessionOpened  struct{ gen uint64 }
	sessionMessage struct {
		gen uint64
		msg *live.ServerMessage
	}
	sessionError struct {
		gen uint64
		err error
	}
	sessionClosed struct {
		gen    uint64
		reason string
	}
	settleElapsed struct{ gen uint64 }
)

func (cmdStart) appEvent()         {}
func (cmdStop) appEvent()          {}
func (cmdReset) appEvent()         {}
func (cmdHotkey) appEvent()        {}
func (cmdDevice) appEvent()        {}
func (cmdMode) appEvent()          {}
func (sessionConnected) appEvent() {}
func (sessionOpened) appEvent()    {}
func (sessionMessage) appEvent()   {}
func (sessionError) appEvent()     {}
func (sessionClosed) appEvent()    {}
func (settleElapsed) appEvent()    {}
