//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

extern void goHotkeyCallback(UInt32 id, int pressed);

static EventHandlerRef handlerRef = NULL;

static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkID;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkID), NULL, &hkID);

    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback(hkID.id, pressed);

    return noErr;
}

static int installHandler() {
    if (handlerRef != NULL) return 1;

    EventTypeSpec eventTypes[2];
    eventTypes[0].eventClass = kEventClassKeyboard;
    eventTypes[0].eventKind = kEventHotKeyPressed;
    eventTypes[1].eventClass = kEventClassKeyboard;
    eventTypes[1].eventKind = kEventHotKeyReleased;

    OSStatus status = InstallApplicationEventHandler(NewEventHandlerUPP(hotkeyHandler), 2, eventTypes, NULL, &handlerRef);
    return (status == noErr) ? 1 : 0;
}

static EventHotKeyRef registerHotkey(UInt32 keyCode, UInt32 modifiers, UInt32 id) {
    EventHotKeyRef hotKeyRef = NULL;
    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'lvtr';
    hotKeyID.id = id;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, &hotKeyRef);
    if (status != noErr) return NULL;
    return hotKeyRef;
}

static void unregisterHotkey(EventHotKeyRef ref) {
    if (ref != NULL) UnregisterEventHotKey(ref);
}
*/
import "C"

import (
	"fmt"
	"sync"

	"github.com/petems/live-tray/internal/hotkey/accel"
)

type darwinHotkey struct {
	ref      C.EventHotKeyRef
	callback func(bool)
}

type darwinManager struct {
	mu     sync.Mutex
	nextID uint32
	byID   map[uint32]*darwinHotkey
	byName map[string]uint32
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	if C.installHandler() == 0 {
		return nil, fmt.Errorf("hotkey: failed to install event handler")
	}
	mgr := &darwinManager{
		byID:   make(map[uint32]*darwinHotkey),
		byName: make(map[string]uint32),
	}
	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()
	return mgr, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.UInt32, pressed C.int) {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()
	if m == nil {
		return
	}

	m.mu.Lock()
	hk := m.byID[uint32(id)]
	m.mu.Unlock()
	if hk != nil {
		hk.callback(pressed == 1)
	}
}

func (m *darwinManager) Register(accelStr string, callback func(pressed bool)) error {
	a, err := accel.Parse(accelStr)
	if err != nil {
		return err
	}
	keyCode, ok := a.MacKeyCode()
	if !ok {
		return fmt.Errorf("hotkey: no key code for %s", a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	ref := C.registerHotkey(C.UInt32(keyCode), C.UInt32(a.MacModifiers()), C.UInt32(id))
	if ref == nil {
		return fmt.Errorf("hotkey: failed to register %s", a)
	}
	m.byID[id] = &darwinHotkey{ref: ref, callback: callback}
	m.byName[a.String()] = id
	return nil
}

func (m *darwinManager) Unregister(accelStr string) error {
	a, err := accel.Parse(accelStr)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[a.String()]
	if !ok {
		return nil
	}
	C.unregisterHotkey(m.byID[id].ref)
	delete(m.byID, id)
	delete(m.byName, a.String())
	return nil
}

func (m *darwinManager) Close() error {
	m.mu.Lock()
	for id, hk := range m.byID {
		C.unregisterHotkey(hk.ref)
		delete(m.byID, id)
	}
	m.byName = make(map[string]uint32)
	m.mu.Unlock()

	globalMu.Lock()
	if globalManager == m {
		globalManager = nil
	}
	globalMu.Unlock()
	return nil
}
