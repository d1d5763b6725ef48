package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"cadverse/internal/service/web"
	"cadverse/internal/shared/globalstate"
	"cadverse/internal/shared/logger"
	"cadverse/internal/shared/settings"
	"cadverse/internal/shared/types"
	"cadverse/internal/sim"
)

// AppServer is the application's main struct. It owns the simulation, the
// WebSocket hub and the HTTP server.
type AppServer struct {
	cfg *types.Config

	settingsManager *settings.SettingsManager
	store           *sim.Store
	hub             *web.Hub
	loop            *sim.Loop
	server          *web.Server
	status          *globalstate.StatusManager
}

// New builds an AppServer. A relative settings file and resource directory
// are resolved against configDir.
func New(cfg *types.Config, configDir string) (*AppServer, error) {
	settingsPath := cfg.ServerConf.SettingsFile
	if settingsPath != "" && !filepath.IsAbs(settingsPath) {
		settingsPath = filepath.Join(configDir, settingsPath)
	}
	sm, err := settings.NewSettingsManager(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings manager: %w", err)
	}

	resourceDir := cfg.ServerConf.ResourceDir
	if !filepath.IsAbs(resourceDir) {
		resourceDir = filepath.Join(configDir, resourceDir)
	}

	s := &AppServer{
		cfg:             cfg,
		settingsManager: sm,
		store:           sim.NewStore(nil),
		status:          globalstate.GlobalStatus,
	}
	s.hub = web.NewHub(s.store.MarshalSnapshot)
	s.loop = sim.NewLoop(s.store, s.hub, sm.Get().Simulation)
	sm.Register(settings.ModuleSimulation, s.loop)

	handler := web.NewHandler(resourceDir, sm, s.store, s.hub, s.status)
	s.server = web.NewServer(cfg.ServerConf, handler, s.hub)

	logger.Info().
		Str("resource_dir", resourceDir).
		Str("settings", settingsPath).
		Msg("AppServer initialized")
	return s, nil
}

func (s *AppServer) Settings() *settings.SettingsManager { return s.settingsManager }

// Run starts every component and blocks until ctx is done or one of them
// fails.
func (s *AppServer) Run(ctx context.Context) error {
	return s.run(ctx, s.server.Run)
}

// Serve is Run on a caller-supplied listener.
func (s *AppServer) Serve(ctx context.Context, listener net.Listener) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.server.Serve(ctx, listener)
	})
}

func (s *AppServer) run(ctx context.Context, serve func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.hub.Run(ctx) })
	g.Go(func() error { return s.loop.Run(ctx) })
	g.Go(func() error { return serve(ctx) })

	s.status.Set("Running")
	err := g.Wait()
	s.status.Set("Stopped")
	return err
}
