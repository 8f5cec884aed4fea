// Package internal wires configuration, storage, enrichment, and the
// HTTP surface into one runnable application.
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"sitepulse/internal/config"
	"sitepulse/internal/database"
	"sitepulse/internal/jobs"
	"sitepulse/internal/pkg/geoip"
)

// Application wraps cartridge.Application with sitepulse-specific components.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	geoReader *geoip.Reader
}

// NewApp creates a new application instance with default settings.
func NewApp() (*Application, error) {
	return NewAppWithRoutes(config.GetConfig(), MountAppRoutes)
}

// NewAppWithRoutes creates a new application with a custom route mounting function.
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Geolocation is optional; without an mmdb file events are simply
	// not geolocated.
	geoReader, err := geoip.NewReader(cfg.GeoDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	if geoReader != nil {
		geoip.SetDefault(geoReader)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		geoReader:   geoReader,
	}, nil
}

// Close releases resources not owned by the cartridge application.
func (a *Application) Close() error {
	return a.geoReader.Close()
}
