package models

import "time"

// Default control configuration, matching the firmware's boot values.
const (
	DefaultTemperatureSetpoint  = 28.0
	DefaultTurbiditySetpoint    = 10.0
	DefaultKpTemperature        = 25.0
	DefaultKiTemperature        = 1.5
	DefaultKdTemperature        = 4.0
	DefaultKpTurbidity          = 10.0
	DefaultKiTurbidity          = 0.5
	DefaultKdTurbidity          = 1.0
	DefaultCalibrationClearADC  = 9475
	DefaultCalibrationTurbidADC = 3550
)

// ControlSettings is the singleton control configuration for the deployment.
// Created lazily with defaults, mutated in place by partial updates.
type ControlSettings struct {
	ActiveMode           string    `json:"active_mode"`
	TemperatureSetpoint  float64   `json:"temperature_setpoint"`
	TurbiditySetpoint    float64   `json:"turbidity_setpoint"`
	KpTemperature        float64   `json:"kp_temperature"`
	KiTemperature        float64   `json:"ki_temperature"`
	KdTemperature        float64   `json:"kd_temperature"`
	KpTurbidity          float64   `json:"kp_turbidity"`
	KiTurbidity          float64   `json:"ki_turbidity"`
	KdTurbidity          float64   `json:"kd_turbidity"`
	CalibrationClearADC  int64     `json:"calibration_clear_adc"`
	CalibrationTurbidADC int64     `json:"calibration_turbid_adc"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultControlSettings returns the configuration a fresh deployment starts
// with before any operator edit.
func DefaultControlSettings() *ControlSettings {
	return &ControlSettings{
		ActiveMode:           ModeFuzzy,
		TemperatureSetpoint:  DefaultTemperatureSetpoint,
		TurbiditySetpoint:    DefaultTurbiditySetpoint,
		KpTemperature:        DefaultKpTemperature,
		KiTemperature:        DefaultKiTemperature,
		KdTemperature:        DefaultKdTemperature,
		KpTurbidity:          DefaultKpTurbidity,
		KiTurbidity:          DefaultKiTurbidity,
		KdTurbidity:          DefaultKdTurbidity,
		CalibrationClearADC:  DefaultCalibrationClearADC,
		CalibrationTurbidADC: DefaultCalibrationTurbidADC,
	}
}

// DevicePayload builds the flat, numeric payload published to the control
// topic. Storage internals (updated_at) are stripped; every field the device
// expects is present so a retained message fully describes the configuration.
func (s *ControlSettings) DevicePayload() map[string]interface{} {
	return map[string]interface{}{
		"active_mode":            s.ActiveMode,
		"temperature_setpoint":   s.TemperatureSetpoint,
		"turbidity_setpoint":     s.TurbiditySetpoint,
		"kp_temperature":         s.KpTemperature,
		"ki_temperature":         s.KiTemperature,
		"kd_temperature":         s.KdTemperature,
		"kp_turbidity":           s.KpTurbidity,
		"ki_turbidity":           s.KiTurbidity,
		"kd_turbidity":           s.KdTurbidity,
		"calibration_clear_adc":  s.CalibrationClearADC,
		"calibration_turbid_adc": s.CalibrationTurbidADC,
	}
}

// SettingsPatch is a partial update to ControlSettings. Nil fields are left
// untouched by the merge; a calibration-only patch never clobbers mode or
// gains and vice versa.
type SettingsPatch struct {
	ActiveMode           *string  `json:"active_mode,omitempty"`
	TemperatureSetpoint  *float64 `json:"temperature_setpoint,omitempty"`
	TurbiditySetpoint    *float64 `json:"turbidity_setpoint,omitempty"`
	KpTemperature        *float64 `json:"kp_temperature,omitempty"`
	KiTemperature        *float64 `json:"ki_temperature,omitempty"`
	KdTemperature        *float64 `json:"kd_temperature,omitempty"`
	KpTurbidity          *float64 `json:"kp_turbidity,omitempty"`
	KiTurbidity          *float64 `json:"ki_turbidity,omitempty"`
	KdTurbidity          *float64 `json:"kd_turbidity,omitempty"`
	CalibrationClearADC  *int64   `json:"calibration_clear_adc,omitempty"`
	CalibrationTurbidADC *int64   `json:"calibration_turbid_adc,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p *SettingsPatch) IsEmpty() bool {
	return p.ActiveMode == nil &&
		p.TemperatureSetpoint == nil && p.TurbiditySetpoint == nil &&
		p.KpTemperature == nil && p.KiTemperature == nil && p.KdTemperature == nil &&
		p.KpTurbidity == nil && p.KiTurbidity == nil && p.KdTurbidity == nil &&
		p.CalibrationClearADC == nil && p.CalibrationTurbidADC == nil
}
