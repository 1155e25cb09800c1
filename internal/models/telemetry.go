package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Control modes reported by the embedded controller.
const (
	ModeFuzzy = "Fuzzy"
	ModePID   = "PID"
)

// TelemetryRecord is one sensor/control sample. Records are append-only:
// written once per ingested MQTT message, never updated or deleted.
type TelemetryRecord struct {
	ID                  int64     `json:"id,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	Temperature         float64   `json:"temperature"`
	TurbidityPercent    float64   `json:"turbidity_percent"`
	TurbidityRaw        *int64    `json:"turbidity_raw,omitempty"`
	ActiveMode          string    `json:"active_mode"`
	HeaterPWM           float64   `json:"heater_pwm"`
	PumpPWM             float64   `json:"pump_pwm"`
	TemperatureSetpoint *float64  `json:"temperature_setpoint,omitempty"`
	TurbiditySetpoint   *float64  `json:"turbidity_setpoint,omitempty"`
	TemperatureError    *float64  `json:"temperature_error,omitempty"`
	TurbidityError      *float64  `json:"turbidity_error,omitempty"`
	ExperimentID        string    `json:"experiment_id,omitempty"`
	ExperimentElapsedS  *float64  `json:"experiment_elapsed_s,omitempty"`

	// Extra keeps unknown device fields so firmware drift is not silently
	// dropped. Stored as JSONB alongside the typed columns.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// telemetryKnownFields are the JSON keys consumed into typed columns.
// Everything else lands in Extra.
var telemetryKnownFields = map[string]struct{}{
	"id": {}, "timestamp": {}, "timestamp_ms": {},
	"temperature": {}, "turbidity_percent": {}, "turbidity_raw": {},
	"active_mode": {}, "heater_pwm": {}, "pump_pwm": {},
	"temperature_setpoint": {}, "turbidity_setpoint": {},
	"temperature_error": {}, "turbidity_error": {},
	"experiment_id": {}, "experiment_elapsed_s": {},
}

// ParseTelemetry decodes a raw device payload into a TelemetryRecord.
// The payload must be a JSON object carrying at least temperature and
// turbidity_percent; active_mode, when present, must be a known mode. The
// server assigns the timestamp at parse time unless the device supplied
// timestamp_ms (milliseconds since epoch).
func ParseTelemetry(payload []byte) (*TelemetryRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("telemetry payload is not a JSON object")
	}
	if _, ok := raw["temperature"]; !ok {
		return nil, errors.New("telemetry payload missing temperature")
	}
	if _, ok := raw["turbidity_percent"]; !ok {
		return nil, errors.New("telemetry payload missing turbidity_percent")
	}

	var rec TelemetryRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	if rec.ActiveMode != "" && rec.ActiveMode != ModeFuzzy && rec.ActiveMode != ModePID {
		return nil, fmt.Errorf("unknown active_mode %q", rec.ActiveMode)
	}

	if ms, ok := raw["timestamp_ms"]; ok {
		var v int64
		if err := json.Unmarshal(ms, &v); err == nil && v > 0 {
			rec.Timestamp = time.UnixMilli(v)
		}
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	for k, v := range raw {
		if _, known := telemetryKnownFields[k]; known {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = v
	}

	return &rec, nil
}
