package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petems/live-tray/internal/app"
	"github.com/petems/live-tray/internal/audio"
	"github.com/petems/live-tray/internal/config"
	"github.com/petems/live-tray/internal/hotkey"
	"github.com/petems/live-tray/internal/live"
	"github.com/petems/live-tray/internal/logging"
	"github.com/petems/live-tray/internal/observe"
	"github.com/petems/live-tray/internal/permissions"
	"github.com/petems/live-tray/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	persona, err := config.LoadPersona(cfg.PersonaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load persona")
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		log.Fatal().Str("env", cfg.APIKeyEnv).Msg("API key not set")
	}

	// macOS requires explicit microphone + accessibility approval before capture or hotkeys work
	if err := permissions.EnsurePermissions(log); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownMetrics(sctx); err != nil {
			log.Warn().Err(err).Msg("Metrics shutdown error")
		}
	}()

	// Initialize audio devices
	devices, err := audio.New(logging.Component(log, "audio"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer devices.Close()

	if err := devices.OpenSpeaker(cfg.Audio.OutputDevice, cfg.Audio.PlaybackRate); err != nil {
		log.Fatal().Err(err).Msg("Failed to open speaker")
	}

	client := live.New(apiKey,
		live.WithBaseURL(cfg.BaseURL),
		live.WithLogger(logging.Component(log, "live")),
	)
	session := live.SessionConfig{
		Voice:             persona.Voice,
		LanguageCode:      persona.LanguageCode,
		SystemInstruction: persona.Instruction,
		Transcribe:        true,
	}
	connector := app.ConnectorFunc(func(ctx context.Context, cb live.Callbacks) (app.Session, error) {
		s, err := client.Connect(ctx, cfg.Model, cb, session)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(cfg, Version, Commit, logging.Component(log, "tray"))

	// Create app with tray as status updater
	application := app.New(app.Config{
		Input:         devices,
		Output:        devices,
		Connector:     connector,
		Config:        cfg,
		Logger:        logging.Component(log, "app"),
		SaveConfig:    cfg.Save,
		StatusUpdater: trayUI,
	})

	// Set app reference in tray
	trayUI.SetApp(application)
	trayUI.OnQuit(cancel)

	// Initialize hotkey manager
	hkManager, err := hotkey.New()
	if err != nil {
		log.Warn().Err(err).Msg("Global hotkey unavailable, use the tray menu")
	} else {
		defer hkManager.Close()
		if err := hkManager.Register(cfg.PlatformHotkey(), application.OnHotkey); err != nil {
			log.Fatal().Err(err).Str("hotkey", cfg.PlatformHotkey()).Msg("Failed to register hotkey")
		}
	}

	log.Info().
		Str("model", cfg.Model).
		Str("persona", persona.Name).
		Str("mode", cfg.Mode).
		Msg("LiveTray starting...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		srv := observe.NewServer(cfg.MetricsAddr)
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			return srv.Run(gctx)
		})
	}

	go func() {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")
		trayUI.Quit()
	}()

	// Start tray UI - MUST run on main thread
	trayUI.Run()

	cancel()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
