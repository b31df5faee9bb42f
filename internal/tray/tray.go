package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/live-tray/internal/app"
	"github.com/petems/live-tray/internal/audio"
	"github.com/petems/live-tray/internal/config"
	"github.com/petems/live-tray/internal/logging"
	"github.com/rs/zerolog"
)

// Controller is the part of the app the menu drives.
type Controller interface {
	Start()
	Stop()
	Reset()
	SetMode(mode string) error
	SetDevice(id string) error
	ListDevices() ([]audio.AudioDevice, error)
	Snapshot() app.Snapshot
}

type UI struct {
	app     Controller
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger
	onQuit  func()
	mode    string

	mu    sync.Mutex
	ready bool
	last  app.Snapshot

	// Menu items
	mStatus  *systray.MenuItem
	mStart   *systray.MenuItem
	mStop    *systray.MenuItem
	mReset   *systray.MenuItem
	mCopy    *systray.MenuItem
	mMode    *systray.MenuItem
	mDevices *systray.MenuItem
}

func New(cfg *config.Config, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log,
		mode:    cfg.Mode,
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application Controller) {
	u.app = application
}

// OnQuit registers a function called when Quit is chosen.
func (u *UI) OnQuit(fn func()) {
	u.onQuit = fn
}

// Run blocks on the native tray loop. It must be called from the main
// goroutine.
func (u *UI) Run() {
	systray.Run(u.onReady, u.onExit)
}

// Quit ends Run.
func (u *UI) Quit() {
	systray.Quit()
}

// Update implements app.StatusUpdater. Snapshots that arrive before the menu
// exists are applied once it does.
func (u *UI) Update(s app.Snapshot) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.last = s
	if u.ready {
		u.render(s)
	}
}

func (u *UI) onReady() {
	systray.SetTooltip("Realtime voice assistant")

	u.mStatus = systray.AddMenuItem(app.StatusInitial, "Current status")
	u.mStatus.Disable()
	systray.AddSeparator()

	u.mStart = systray.AddMenuItem("Start Recording", "Stream the microphone to the assistant")
	u.mStop = systray.AddMenuItem("Stop Recording", "Stop streaming the microphone")
	u.mReset = systray.AddMenuItem("Reset Session", "Drop queued audio and start a new session")
	u.mCopy = systray.AddMenuItem("Copy Last Reply", "Copy the assistant's last reply")
	systray.AddSeparator()

	u.mMode = systray.AddMenuItem(modeTitle(u.mode), "Toggle between modes")
	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About LiveTray")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	u.mu.Lock()
	u.ready = true
	u.render(u.last)
	u.mu.Unlock()

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStart.ClickedCh:
			u.app.Start()
		case <-u.mStop.ClickedCh:
			u.app.Stop()
		case <-u.mReset.ClickedCh:
			u.app.Reset()
		case <-u.mCopy.ClickedCh:
			u.copyReply()
		case <-u.mMode.ClickedCh:
			u.toggleMode()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			if u.onQuit != nil {
				u.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	var itemsMu sync.Mutex
	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItemCheckbox(dev.Name, "", isSelected(dev, u.cfg.Audio.InputDevice))
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Cannot change audio device")
					continue
				}
				itemsMu.Lock()
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				itemsMu.Unlock()
				menuItem.Check()
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) toggleMode() {
	next := config.ModeToggle
	if u.mode == config.ModeToggle {
		next = config.ModePushToTalk
	}
	if err := u.app.SetMode(next); err != nil {
		u.log.Error().Err(err).Msg("Failed to change mode")
		return
	}
	u.mode = next
	u.mMode.SetTitle(modeTitle(next))
}

func (u *UI) copyReply() {
	text := u.app.Snapshot().Transcript
	if text == "" {
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		u.log.Error().Err(err).Msg("Failed to write clipboard")
	}
}

func (u *UI) openLogs() {
	cmd := "xdg-open"
	if runtime.GOOS == "darwin" {
		cmd = "open"
	}
	if err := exec.Command(cmd, logging.Path()).Start(); err != nil {
		u.log.Error().Err(err).Str("path", logging.Path()).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("LiveTray: realtime voice assistant")
	u.mStatus.SetTitle(fmt.Sprintf("LiveTray %s (%s)", u.version, u.commit))
}

func (u *UI) onExit() {
	// Cleanup
}

func (u *UI) render(s app.Snapshot) {
	v := viewFor(s)
	systray.SetTitle(v.title)
	systray.SetTooltip(v.tooltip)
	u.mStatus.SetTitle(v.tooltip)
	setEnabled(u.mStart, v.canStart)
	setEnabled(u.mStop, v.canStop)
	setEnabled(u.mReset, v.canReset)
	setEnabled(u.mCopy, v.canCopy)
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}

type view struct {
	title    string
	tooltip  string
	canStart bool
	canStop  bool
	canReset bool
	canCopy  bool
}

// viewFor maps a snapshot onto the menu. Reset is offered only while idle.
func viewFor(s app.Snapshot) view {
	return view{
		title:    fmt.Sprintf("🎤 %s", emojiForSnapshot(s)),
		tooltip:  s.Message(),
		canStart: !s.Recording,
		canStop:  s.Recording,
		canReset: !s.Recording,
		canCopy:  s.Transcript != "",
	}
}

// emojiForSnapshot returns the appropriate status emoji
func emojiForSnapshot(s app.Snapshot) string {
	switch {
	case s.Error != "":
		return "⚪️" // White - error
	case s.Recording:
		return "🔴" // Red - recording
	case s.Playing > 0:
		return "🔊" // Speaker - assistant talking
	case s.Session != app.Connected:
		return "🟡" // Yellow - connecting or disconnected
	default:
		return "🟢" // Green - ready/idle
	}
}

func modeTitle(mode string) string {
	if mode == config.ModeToggle {
		return "Mode: Toggle"
	}
	return "Mode: Push-to-Talk"
}

func isSelected(dev audio.AudioDevice, configured string) bool {
	if configured == "" {
		return dev.Default
	}
	return dev.ID == configured
}
