package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"aquadash/internal/models"
)

// PostgresSettingsRepository owns the control_settings singleton row (id = 1).
// Partial updates are single-statement field-level merges, so concurrent
// writers are last-write-wins per field and a calibration-only update can
// never erase mode or gain fields.
type PostgresSettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ SettingsRepository = (*PostgresSettingsRepository)(nil)

func NewPostgresSettingsRepository(db *sql.DB, logger *zap.Logger) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db, logger: logger}
}

const settingsColumns = `
	active_mode, temperature_setpoint, turbidity_setpoint,
	kp_temperature, ki_temperature, kd_temperature,
	kp_turbidity, ki_turbidity, kd_turbidity,
	calibration_clear_adc, calibration_turbid_adc, updated_at`

// ensureRow creates the singleton with table defaults if it does not exist.
func (r *PostgresSettingsRepository) ensureRow(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO control_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to ensure settings row: %w", err)
	}
	return nil
}

// Get reads the settings, creating the row with defaults if absent.
func (r *PostgresSettingsRepository) Get(ctx context.Context) (*models.ControlSettings, error) {
	if err := r.ensureRow(ctx); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT`+settingsColumns+` FROM control_settings WHERE id = 1`)

	return scanSettings(row)
}

// Update merges the provided fields into the singleton row. The SET clause is
// built only from non-nil patch fields, in a fixed column order, and executes
// as one statement.
func (r *PostgresSettingsRepository) Update(ctx context.Context, patch *models.SettingsPatch) (*models.ControlSettings, error) {
	if patch == nil || patch.IsEmpty() {
		return r.Get(ctx)
	}

	if err := r.ensureRow(ctx); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	argN := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argN))
		args = append(args, value)
		argN++
	}

	if patch.ActiveMode != nil {
		add("active_mode", *patch.ActiveMode)
	}
	if patch.TemperatureSetpoint != nil {
		add("temperature_setpoint", *patch.TemperatureSetpoint)
	}
	if patch.TurbiditySetpoint != nil {
		add("turbidity_setpoint", *patch.TurbiditySetpoint)
	}
	if patch.KpTemperature != nil {
		add("kp_temperature", *patch.KpTemperature)
	}
	if patch.KiTemperature != nil {
		add("ki_temperature", *patch.KiTemperature)
	}
	if patch.KdTemperature != nil {
		add("kd_temperature", *patch.KdTemperature)
	}
	if patch.KpTurbidity != nil {
		add("kp_turbidity", *patch.KpTurbidity)
	}
	if patch.KiTurbidity != nil {
		add("ki_turbidity", *patch.KiTurbidity)
	}
	if patch.KdTurbidity != nil {
		add("kd_turbidity", *patch.KdTurbidity)
	}
	if patch.CalibrationClearADC != nil {
		add("calibration_clear_adc", *patch.CalibrationClearADC)
	}
	if patch.CalibrationTurbidADC != nil {
		add("calibration_turbid_adc", *patch.CalibrationTurbidADC)
	}

	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE control_settings SET ` + strings.Join(sets, ", ") +
		` WHERE id = 1 RETURNING` + settingsColumns

	row := r.db.QueryRowContext(ctx, query, args...)
	settings, err := scanSettings(row)
	if err != nil {
		return nil, err
	}

	return settings, nil
}

func scanSettings(row *sql.Row) (*models.ControlSettings, error) {
	var s models.ControlSettings
	var updatedAt sql.NullTime

	err := row.Scan(
		&s.ActiveMode,
		&s.TemperatureSetpoint,
		&s.TurbiditySetpoint,
		&s.KpTemperature,
		&s.KiTemperature,
		&s.KdTemperature,
		&s.KpTurbidity,
		&s.KiTurbidity,
		&s.KdTurbidity,
		&s.CalibrationClearADC,
		&s.CalibrationTurbidADC,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan control settings: %w", err)
	}
	if updatedAt.Valid {
		s.UpdatedAt = updatedAt.Time
	}

	return &s, nil
}
