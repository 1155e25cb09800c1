// Package bridge relays telemetry from the MQTT bus into the store and out
// to live subscribers, and pushes the retained control configuration back to
// the device on every (re)connect.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aquadash/internal/config"
	"aquadash/internal/fanout"
	"aquadash/internal/models"
	"aquadash/internal/mqtt"
	"aquadash/internal/repository"
	"aquadash/internal/series"
)

// Bus is the slice of the MQTT client the bridge uses.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	OnConnect(fn func())
}

// Bridge consumes raw bus messages, persists telemetry and fans it out. One
// bad message never stops the stream: every failure is isolated to its
// message, logged with the offending payload, and the loop continues.
type Bridge struct {
	cfg       *config.Config
	bus       Bus
	telemetry repository.TelemetryRepository
	settings  repository.SettingsRepository
	publisher fanout.Publisher
	watchdog  *series.Watchdog
	logger    *zap.Logger

	mu          sync.Mutex
	lastMessage time.Time
}

func New(
	cfg *config.Config,
	bus Bus,
	telemetry repository.TelemetryRepository,
	settings repository.SettingsRepository,
	publisher fanout.Publisher,
	watchdog *series.Watchdog,
	logger *zap.Logger,
) *Bridge {
	return &Bridge{
		cfg:       cfg,
		bus:       bus,
		telemetry: telemetry,
		settings:  settings,
		publisher: publisher,
		watchdog:  watchdog,
		logger:    logger,
	}
}

// Start subscribes the bus topics, performs the initial settings resync and
// arms the resync hook for every future reconnect.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.bus.Subscribe(b.cfg.MQTT.TelemetryTopic, b.cfg.MQTT.QoS, func(topic string, payload []byte) error {
		return b.handleTelemetry(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	// Control topic echo is subscribed for visibility only.
	if err := b.bus.Subscribe(b.cfg.MQTT.ControlTopic, b.cfg.MQTT.QoS, func(topic string, payload []byte) error {
		b.logger.Debug("Control topic message",
			zap.String("topic", topic),
			zap.ByteString("payload", payload),
		)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to subscribe to control topic: %w", err)
	}

	b.bus.OnConnect(func() {
		b.Resync(ctx)
	})
	b.Resync(ctx)

	b.logger.Info("Ingestion bridge started",
		zap.String("telemetry_topic", b.cfg.MQTT.TelemetryTopic),
		zap.String("control_topic", b.cfg.MQTT.ControlTopic),
		zap.Duration("debounce", b.cfg.Bridge.DebounceWindow),
	)
	return nil
}

// handleTelemetry processes one telemetry message end to end.
func (b *Bridge) handleTelemetry(ctx context.Context, topic string, payload []byte) error {
	if b.debounced() {
		b.logger.Debug("Telemetry message debounced", zap.String("topic", topic))
		return nil
	}

	rec, err := models.ParseTelemetry(payload)
	if err != nil {
		b.logger.Error("Discarding unparsable telemetry payload",
			zap.String("topic", topic),
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return fmt.Errorf("failed to parse telemetry payload: %w", err)
	}

	if err := b.telemetry.Insert(ctx, rec); err != nil {
		b.logger.Error("Failed to persist telemetry record",
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return err
	}

	if b.watchdog != nil {
		b.watchdog.Touch()
	}

	// Fanout is best-effort: persistence already succeeded.
	if event, err := models.NewDataEvent(rec); err != nil {
		b.logger.Warn("Failed to encode telemetry event", zap.Error(err))
	} else if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Warn("Failed to broadcast telemetry", zap.Error(err))
	}
	if event, err := models.NewDebugLogEvent(models.DebugData, json.RawMessage(payload)); err != nil {
		b.logger.Warn("Failed to encode debug log event", zap.Error(err))
	} else if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Warn("Failed to broadcast debug log", zap.Error(err))
	}

	b.logger.Debug("Telemetry record ingested",
		zap.Int64("id", rec.ID),
		zap.Float64("temperature", rec.Temperature),
		zap.Float64("turbidity_percent", rec.TurbidityPercent),
		zap.String("active_mode", rec.ActiveMode),
	)
	return nil
}

// debounced reports whether the message falls inside the optional guard
// window. Disabled by default: every message is a distinct sample.
func (b *Bridge) debounced() bool {
	window := b.cfg.Bridge.DebounceWindow
	if window <= 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.Sub(b.lastMessage) < window {
		return true
	}
	b.lastMessage = now
	return false
}

// Resync publishes the current persisted settings to the control topic with
// the retained flag, so a device joining after a server restart immediately
// receives the last-known configuration. Failures are logged and swallowed:
// resync is best-effort and will run again on the next reconnect.
func (b *Bridge) Resync(ctx context.Context) {
	settings, err := b.settings.Get(ctx)
	if err != nil {
		b.logger.Error("Settings resync failed: cannot read settings", zap.Error(err))
		return
	}

	payload, err := json.Marshal(settings.DevicePayload())
	if err != nil {
		b.logger.Error("Settings resync failed: cannot marshal payload", zap.Error(err))
		return
	}

	if err := b.bus.Publish(b.cfg.MQTT.ControlTopic, b.cfg.MQTT.QoS, true, payload); err != nil {
		b.logger.Error("Settings resync failed: publish error", zap.Error(err))
		return
	}

	b.logger.Info("Published retained settings resync",
		zap.String("topic", b.cfg.MQTT.ControlTopic),
		zap.String("active_mode", settings.ActiveMode),
	)
}
