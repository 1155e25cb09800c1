package models

import "encoding/json"

// LiveEvent kinds carried on the browser channel.
const (
	EventNewData  = "newData"
	EventDebugLog = "debugLog"
)

// Debug log types.
const (
	DebugData        = "data"
	DebugControl     = "control"
	DebugCalibration = "calibration"
)

// LiveEvent is the transient envelope broadcast to connected browser clients.
// It exists only on the wire: never persisted, never replayed.
type LiveEvent struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DebugLogPayload is the payload of an EventDebugLog event.
type DebugLogPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewDataEvent wraps a persisted telemetry record for broadcast.
func NewDataEvent(rec *TelemetryRecord) (*LiveEvent, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return &LiveEvent{Kind: EventNewData, Payload: b}, nil
}

// NewDebugLogEvent wraps a structured debug entry for broadcast.
func NewDebugLogEvent(logType string, data interface{}) (*LiveEvent, error) {
	b, err := json.Marshal(DebugLogPayload{Type: logType, Data: data})
	if err != nil {
		return nil, err
	}
	return &LiveEvent{Kind: EventDebugLog, Payload: b}, nil
}
