package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelemetry_ValidPayload(t *testing.T) {
	payload := []byte(`{
		"temperature": 27.9,
		"turbidity_percent": 10.5,
		"active_mode": "PID",
		"heater_pwm": 60,
		"pump_pwm": 12,
		"temperature_setpoint": 28.0,
		"wifi_rssi": -61
	}`)

	rec, err := ParseTelemetry(payload)
	require.NoError(t, err)

	assert.Equal(t, 27.9, rec.Temperature)
	assert.Equal(t, 10.5, rec.TurbidityPercent)
	assert.Equal(t, ModePID, rec.ActiveMode)
	require.NotNil(t, rec.TemperatureSetpoint)
	assert.Equal(t, 28.0, *rec.TemperatureSetpoint)

	// Unknown keys are kept, known keys are not duplicated.
	require.Contains(t, rec.Extra, "wifi_rssi")
	assert.NotContains(t, rec.Extra, "temperature")

	// Server-assigned timestamp.
	assert.WithinDuration(t, time.Now(), rec.Timestamp, 5*time.Second)
}

func TestParseTelemetry_DeviceTimestamp(t *testing.T) {
	payload := []byte(`{"temperature":27.0,"turbidity_percent":10.0,"timestamp_ms":1756500000000}`)

	rec, err := ParseTelemetry(payload)
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1756500000000), rec.Timestamp)
}

func TestParseTelemetry_RejectsInvalidPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{not json`},
		{"json null", `null`},
		{"json array", `[1,2,3]`},
		{"json scalar", `42`},
		{"missing temperature", `{"turbidity_percent":10.0}`},
		{"missing turbidity", `{"temperature":27.0}`},
		{"unknown mode", `{"temperature":27.0,"turbidity_percent":10.0,"active_mode":"Banana"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTelemetry([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}

func TestParseTelemetry_ModeOptional(t *testing.T) {
	// Mode can be absent; it defaults downstream, not here.
	rec, err := ParseTelemetry([]byte(`{"temperature":27.0,"turbidity_percent":10.0}`))
	require.NoError(t, err)
	assert.Empty(t, rec.ActiveMode)
}
