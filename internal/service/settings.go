package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"aquadash/internal/bridge"
	"aquadash/internal/config"
	"aquadash/internal/fanout"
	"aquadash/internal/models"
	"aquadash/internal/repository"
)

// ErrInvalidCalibration rejects calibration writes with missing or equal ADC
// reference points. Equal points would make the turbidity interpolation
// divide by zero on the device.
var ErrInvalidCalibration = errors.New("calibration requires two distinct ADC values")

// SettingsService synchronizes the control configuration between the
// operator, the store and the device: persist first, then publish retained to
// the control topic, then notify browser clients. A publish failure is
// reported to the caller but never rolls back the persisted settings.
type SettingsService struct {
	cfg       *config.Config
	repo      repository.SettingsRepository
	bus       bridge.Bus
	publisher fanout.Publisher
	logger    *zap.Logger
}

func NewSettingsService(
	cfg *config.Config,
	repo repository.SettingsRepository,
	bus bridge.Bus,
	publisher fanout.Publisher,
	logger *zap.Logger,
) *SettingsService {
	return &SettingsService{
		cfg:       cfg,
		repo:      repo,
		bus:       bus,
		publisher: publisher,
		logger:    logger,
	}
}

// Get reads the current settings, creating defaults if none exist yet.
func (s *SettingsService) Get(ctx context.Context) (*models.ControlSettings, error) {
	return s.repo.Get(ctx)
}

// Update merges a partial settings document, then pushes the merged result to
// the device and the browser clients.
func (s *SettingsService) Update(ctx context.Context, patch *models.SettingsPatch) (*models.ControlSettings, error) {
	settings, err := s.repo.Update(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to persist settings update: %w", err)
	}

	if err := s.publishToDevice(settings); err != nil {
		// Persisted but not delivered; the caller decides how to retry.
		return settings, err
	}

	s.emitDebugLog(ctx, models.DebugControl, settings)

	s.logger.Info("Control settings updated",
		zap.String("active_mode", settings.ActiveMode),
		zap.Float64("temperature_setpoint", settings.TemperatureSetpoint),
		zap.Float64("turbidity_setpoint", settings.TurbiditySetpoint),
	)
	return settings, nil
}

// UpdateCalibration validates and writes only the two calibration fields.
func (s *SettingsService) UpdateCalibration(ctx context.Context, clearADC, turbidADC *int64) (*models.ControlSettings, error) {
	if clearADC == nil || turbidADC == nil || *clearADC == *turbidADC {
		return nil, ErrInvalidCalibration
	}

	patch := &models.SettingsPatch{
		CalibrationClearADC:  clearADC,
		CalibrationTurbidADC: turbidADC,
	}
	settings, err := s.repo.Update(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to persist calibration update: %w", err)
	}

	if err := s.publishToDevice(settings); err != nil {
		return settings, err
	}

	s.emitDebugLog(ctx, models.DebugCalibration, map[string]int64{
		"clear_adc":  settings.CalibrationClearADC,
		"turbid_adc": settings.CalibrationTurbidADC,
	})

	s.logger.Info("Turbidity calibration updated",
		zap.Int64("clear_adc", settings.CalibrationClearADC),
		zap.Int64("turbid_adc", settings.CalibrationTurbidADC),
	)
	return settings, nil
}

func (s *SettingsService) publishToDevice(settings *models.ControlSettings) error {
	payload, err := json.Marshal(settings.DevicePayload())
	if err != nil {
		return fmt.Errorf("failed to marshal device payload: %w", err)
	}
	if err := s.bus.Publish(s.cfg.MQTT.ControlTopic, s.cfg.MQTT.QoS, true, payload); err != nil {
		return fmt.Errorf("failed to publish settings to control topic: %w", err)
	}
	return nil
}

// emitDebugLog notifies browser clients; best-effort, failures swallowed.
func (s *SettingsService) emitDebugLog(ctx context.Context, logType string, data interface{}) {
	event, err := models.NewDebugLogEvent(logType, data)
	if err != nil {
		s.logger.Warn("Failed to build debug log event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to broadcast debug log", zap.Error(err))
	}
}
