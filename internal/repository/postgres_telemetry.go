package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aquadash/internal/models"
)

// PostgresTelemetryRepository persists telemetry samples in the telemetry
// table. The table is append-only; concurrent writers never conflict.
type PostgresTelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ TelemetryRepository = (*PostgresTelemetryRepository)(nil)

func NewPostgresTelemetryRepository(db *sql.DB, logger *zap.Logger) *PostgresTelemetryRepository {
	return &PostgresTelemetryRepository{db: db, logger: logger}
}

const telemetryColumns = `
	id, ts, temperature, turbidity_percent, turbidity_raw, active_mode,
	heater_pwm, pump_pwm, temperature_setpoint, turbidity_setpoint,
	temperature_error, turbidity_error, experiment_id, experiment_elapsed_s,
	extra`

// Insert persists one record and fills in the generated id.
func (r *PostgresTelemetryRepository) Insert(ctx context.Context, rec *models.TelemetryRecord) error {
	extra := []byte("{}")
	if len(rec.Extra) > 0 {
		b, err := json.Marshal(rec.Extra)
		if err != nil {
			return fmt.Errorf("failed to marshal extra fields: %w", err)
		}
		extra = b
	}

	query := `
		INSERT INTO telemetry (
			ts, temperature, turbidity_percent, turbidity_raw, active_mode,
			heater_pwm, pump_pwm, temperature_setpoint, turbidity_setpoint,
			temperature_error, turbidity_error, experiment_id, experiment_elapsed_s,
			extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		rec.Timestamp,
		rec.Temperature,
		rec.TurbidityPercent,
		rec.TurbidityRaw,
		rec.ActiveMode,
		rec.HeaterPWM,
		rec.PumpPWM,
		rec.TemperatureSetpoint,
		rec.TurbiditySetpoint,
		rec.TemperatureError,
		rec.TurbidityError,
		nullString(rec.ExperimentID),
		rec.ExperimentElapsedS,
		extra,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}

	return nil
}

// Recent returns the newest records, newest first.
func (r *PostgresTelemetryRepository) Recent(ctx context.Context, limit int) ([]*models.TelemetryRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT` + telemetryColumns + `
		FROM telemetry
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent telemetry: %w", err)
	}
	defer rows.Close()

	return scanTelemetryRows(rows)
}

// Range returns records with timestamp in [start, end] inclusive, ascending.
func (r *PostgresTelemetryRepository) Range(ctx context.Context, start, end time.Time) ([]*models.TelemetryRecord, error) {
	query := `SELECT` + telemetryColumns + `
		FROM telemetry
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry range: %w", err)
	}
	defer rows.Close()

	return scanTelemetryRows(rows)
}

func scanTelemetryRows(rows *sql.Rows) ([]*models.TelemetryRecord, error) {
	var records []*models.TelemetryRecord
	for rows.Next() {
		var rec models.TelemetryRecord
		var turbidityRaw sql.NullInt64
		var tempSetpoint, turbSetpoint, tempError, turbError, elapsed sql.NullFloat64
		var experimentID sql.NullString
		var extra []byte

		err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.Temperature,
			&rec.TurbidityPercent,
			&turbidityRaw,
			&rec.ActiveMode,
			&rec.HeaterPWM,
			&rec.PumpPWM,
			&tempSetpoint,
			&turbSetpoint,
			&tempError,
			&turbError,
			&experimentID,
			&elapsed,
			&extra,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry row: %w", err)
		}

		if turbidityRaw.Valid {
			rec.TurbidityRaw = &turbidityRaw.Int64
		}
		if tempSetpoint.Valid {
			rec.TemperatureSetpoint = &tempSetpoint.Float64
		}
		if turbSetpoint.Valid {
			rec.TurbiditySetpoint = &turbSetpoint.Float64
		}
		if tempError.Valid {
			rec.TemperatureError = &tempError.Float64
		}
		if turbError.Valid {
			rec.TurbidityError = &turbError.Float64
		}
		if experimentID.Valid {
			rec.ExperimentID = experimentID.String
		}
		if elapsed.Valid {
			rec.ExperimentElapsedS = &elapsed.Float64
		}
		if len(extra) > 0 && string(extra) != "{}" {
			if err := json.Unmarshal(extra, &rec.Extra); err != nil {
				return nil, fmt.Errorf("failed to unmarshal extra fields: %w", err)
			}
		}

		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate telemetry rows: %w", err)
	}

	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
