package http

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// HealthIndexAction reports process liveness and database reachability.
func HealthIndexAction(ctx *cartridge.Context) error {
	database := "ok"

	db := ctx.DBManager.GetConnection()
	if db == nil {
		database = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else if sqlDB, err := db.DB(); err != nil {
		database = "error"
		ctx.Logger.Error("Database connection error", slog.Any("error", err))
	} else if err := sqlDB.Ping(); err != nil {
		database = "error"
		ctx.Logger.Error("Database ping failed", slog.Any("error", err))
	}

	status := "ok"
	if database != "ok" {
		status = "degraded"
	}

	return ctx.JSON(HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Database:  database,
	})
}
