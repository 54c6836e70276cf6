package model

import (
	"encoding/json"
	"time"
)

// EventType names a pipeline lifecycle event.
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventStageStarted  EventType = "stage_started"
	EventStageFinished EventType = "stage_finished"
	EventRunFinished   EventType = "run_finished"
	EventRunFailed     EventType = "run_failed"
)

// RunEvent reports pipeline progress to live subscribers (WebSocket clients, logs).
type RunEvent struct {
	Type    EventType       `json:"type"`
	RunID   string          `json:"run_id"`
	Stage   string          `json:"stage,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	TS      time.Time       `json:"ts"`
}

// JSON returns the JSON-encoded event.
func (e *RunEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
