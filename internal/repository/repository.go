package repository

import (
	"context"
	"time"

	"aquadash/internal/models"
)

// TelemetryRepository is the append-only telemetry store.
type TelemetryRepository interface {
	// Insert persists one record and fills in its generated id.
	Insert(ctx context.Context, rec *models.TelemetryRecord) error
	// Recent returns the newest records, newest first.
	Recent(ctx context.Context, limit int) ([]*models.TelemetryRecord, error)
	// Range returns records with timestamp in [start, end] inclusive,
	// ascending.
	Range(ctx context.Context, start, end time.Time) ([]*models.TelemetryRecord, error)
}

// SettingsRepository owns the singleton control configuration document.
type SettingsRepository interface {
	// Get reads the settings, creating the row with defaults if absent.
	Get(ctx context.Context) (*models.ControlSettings, error)
	// Update merges the provided fields into the singleton row and returns
	// the merged document. Nil patch fields are left untouched.
	Update(ctx context.Context, patch *models.SettingsPatch) (*models.ControlSettings, error)
}
