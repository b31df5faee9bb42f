//go:build linux

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

Display* displayPtr = NULL;

static int openDisplay() {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    return displayPtr != NULL;
}

static int keycodeFor(const char* name) {
    if (!openDisplay()) return 0;
    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

// Grab the key with and without CapsLock/NumLock so the lock state does
// not swallow the hotkey.
static int grabKey(int keycode, unsigned int modifiers) {
    if (!openDisplay()) return 0;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int locks[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, keycode, modifiers | locks[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);
    return 1;
}

static void ungrabKey(int keycode, unsigned int modifiers) {
    if (displayPtr == NULL) return;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int locks[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | locks[i], root);
    }
    XSync(displayPtr, False);
}

// Auto-repeat delivers Release+Press pairs with the same timestamp; the
// release is dropped so a held key reads as one press.
static int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    while (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyRelease && XPending(displayPtr) > 0) {
            XEvent next;
            XPeekEvent(displayPtr, &next);
            if (next.type == KeyPress && next.xkey.time == event.xkey.time &&
                next.xkey.keycode == event.xkey.keycode) {
                XNextEvent(displayPtr, &next);
                continue;
            }
        }
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/petems/live-tray/internal/hotkey/accel"
)

type grab struct {
	keycode   int
	modifiers uint
	callback  func(bool)
	down      bool
}

type linuxManager struct {
	mu      sync.Mutex
	grabs   map[string]*grab
	stop    chan struct{}
	stopped sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	mgr := &linuxManager{
		grabs: make(map[string]*grab),
		stop:  make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func (m *linuxManager) Register(accelStr string, callback func(pressed bool)) error {
	a, err := accel.Parse(accelStr)
	if err != nil {
		return err
	}

	name := C.CString(a.X11Keysym())
	defer C.free(unsafe.Pointer(name))
	keycode := int(C.keycodeFor(name))
	if keycode == 0 {
		return fmt.Errorf("hotkey: no keycode for %s", a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if C.grabKey(C.int(keycode), C.uint(a.X11Modifiers())) == 0 {
		return fmt.Errorf("hotkey: failed to grab %s", a)
	}
	m.grabs[a.String()] = &grab{keycode: keycode, modifiers: a.X11Modifiers(), callback: callback}
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			for {
				m.mu.Lock()
				ok := C.checkEvent(&keycode, &pressed) != 0
				m.mu.Unlock()
				if !ok {
					break
				}
				m.dispatch(int(keycode), pressed == 1)
			}
		}
	}
}

func (m *linuxManager) dispatch(keycode int, pressed bool) {
	m.mu.Lock()
	var cb func(bool)
	for _, g := range m.grabs {
		if g.keycode == keycode && g.down != pressed {
			g.down = pressed
			cb = g.callback
			break
		}
	}
	m.mu.Unlock()
	if cb != nil {
		cb(pressed)
	}
}

func (m *linuxManager) Unregister(accelStr string) error {
	a, err := accel.Parse(accelStr)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grabs[a.String()]
	if !ok {
		return nil
	}
	C.ungrabKey(C.int(g.keycode), C.uint(g.modifiers))
	delete(m.grabs, a.String())
	return nil
}

func (m *linuxManager) Close() error {
	m.stopped.Do(func() {
		close(m.stop)
		m.mu.Lock()
		defer m.mu.Unlock()
		for name, g := range m.grabs {
			C.ungrabKey(C.int(g.keycode), C.uint(g.modifiers))
			delete(m.grabs, name)
		}
	})
	return nil
}
