package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aquadash/internal/config"
	"aquadash/internal/models"
	"aquadash/internal/mqtt"
)

type recordingSettingsRepo struct {
	settings *models.ControlSettings
	patches  []*models.SettingsPatch
	getErr   error
}

func (r *recordingSettingsRepo) Get(context.Context) (*models.ControlSettings, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.settings == nil {
		r.settings = models.DefaultControlSettings()
	}
	return r.settings, nil
}

func (r *recordingSettingsRepo) Update(ctx context.Context, patch *models.SettingsPatch) (*models.ControlSettings, error) {
	r.patches = append(r.patches, patch)
	s, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	if patch.ActiveMode != nil {
		s.ActiveMode = *patch.ActiveMode
	}
	if patch.TemperatureSetpoint != nil {
		s.TemperatureSetpoint = *patch.TemperatureSetpoint
	}
	if patch.TurbiditySetpoint != nil {
		s.TurbiditySetpoint = *patch.TurbiditySetpoint
	}
	if patch.CalibrationClearADC != nil {
		s.CalibrationClearADC = *patch.CalibrationClearADC
	}
	if patch.CalibrationTurbidADC != nil {
		s.CalibrationTurbidADC = *patch.CalibrationTurbidADC
	}
	return s, nil
}

type recordingBus struct {
	published [][]byte
	retained  []bool
	failNext  bool
}

func (b *recordingBus) Subscribe(string, byte, mqtt.MessageHandler) error { return nil }

func (b *recordingBus) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if b.failNext {
		b.failNext = false
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, payload)
	b.retained = append(b.retained, retained)
	return nil
}

func (b *recordingBus) OnConnect(func()) {}

type recordingPublisher struct {
	events []*models.LiveEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *models.LiveEvent) error {
	p.events = append(p.events, event)
	return nil
}

func newTestSettingsService() (*SettingsService, *recordingSettingsRepo, *recordingBus, *recordingPublisher) {
	cfg := &config.Config{}
	cfg.MQTT.QoS = 1
	cfg.MQTT.ControlTopic = "aquarium/control"

	repo := &recordingSettingsRepo{}
	bus := &recordingBus{}
	pub := &recordingPublisher{}
	svc := NewSettingsService(cfg, repo, bus, pub, zap.NewNop())
	return svc, repo, bus, pub
}

func TestSettingsUpdate_PersistsThenPublishesRetained(t *testing.T) {
	svc, repo, bus, pub := newTestSettingsService()

	mode := models.ModePID
	setpoint := 29.5
	settings, err := svc.Update(context.Background(), &models.SettingsPatch{
		ActiveMode:          &mode,
		TemperatureSetpoint: &setpoint,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ModePID, settings.ActiveMode)
	assert.Equal(t, 29.5, settings.TemperatureSetpoint)

	require.Len(t, bus.published, 1)
	assert.True(t, bus.retained[0])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(bus.published[0], &payload))
	assert.Equal(t, "PID", payload["active_mode"])
	assert.Equal(t, 29.5, payload["temperature_setpoint"])
	// Absent optional fields default rather than propagate as NaN/null.
	assert.Equal(t, 10.0, payload["turbidity_setpoint"])

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventDebugLog, pub.events[0].Kind)

	// Read-through immediately returns the merged document.
	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ModePID, got.ActiveMode)
	assert.Equal(t, 29.5, got.TemperatureSetpoint)
	assert.Len(t, repo.patches, 1)
}

func TestSettingsUpdate_PublishFailureKeepsPersistedState(t *testing.T) {
	svc, repo, bus, _ := newTestSettingsService()
	bus.failNext = true

	setpoint := 12.0
	settings, err := svc.Update(context.Background(), &models.SettingsPatch{TurbiditySetpoint: &setpoint})

	// Error surfaced to the caller, but the write already happened.
	require.Error(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, 12.0, settings.TurbiditySetpoint)
	assert.Len(t, repo.patches, 1)
}

func TestUpdateCalibration_RejectsEqualValues(t *testing.T) {
	svc, repo, bus, _ := newTestSettingsService()

	v := int64(5000)
	_, err := svc.UpdateCalibration(context.Background(), &v, &v)
	require.ErrorIs(t, err, ErrInvalidCalibration)

	// No persistence attempt, no publish: validated at the boundary.
	assert.Empty(t, repo.patches)
	assert.Empty(t, bus.published)
}

func TestUpdateCalibration_RejectsMissingValues(t *testing.T) {
	svc, repo, _, _ := newTestSettingsService()

	v := int64(5000)
	_, err := svc.UpdateCalibration(context.Background(), &v, nil)
	require.ErrorIs(t, err, ErrInvalidCalibration)
	_, err = svc.UpdateCalibration(context.Background(), nil, &v)
	require.ErrorIs(t, err, ErrInvalidCalibration)
	assert.Empty(t, repo.patches)
}

func TestUpdateCalibration_TouchesOnlyCalibrationFields(t *testing.T) {
	svc, repo, bus, pub := newTestSettingsService()

	clear, turbid := int64(9000), int64(3100)
	settings, err := svc.UpdateCalibration(context.Background(), &clear, &turbid)
	require.NoError(t, err)

	assert.Equal(t, int64(9000), settings.CalibrationClearADC)
	assert.Equal(t, int64(3100), settings.CalibrationTurbidADC)
	// Mode and gains ride through untouched.
	assert.Equal(t, models.ModeFuzzy, settings.ActiveMode)
	assert.Equal(t, 25.0, settings.KpTemperature)

	require.Len(t, repo.patches, 1)
	patch := repo.patches[0]
	assert.Nil(t, patch.ActiveMode)
	assert.Nil(t, patch.KpTemperature)
	require.NotNil(t, patch.CalibrationClearADC)

	require.Len(t, bus.published, 1)
	require.Len(t, pub.events, 1)

	var entry models.DebugLogPayload
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &entry))
	assert.Equal(t, models.DebugCalibration, entry.Type)
}
