package model

import "time"

// RunState is the coarse state reported by /status.
type RunState string

const (
	RunStateIdle    RunState = "idle"
	RunStateRunning RunState = "running"
)

// RunStatus describes the current or most recent pipeline run.
type RunStatus struct {
	State      RunState   `json:"state"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	Error      string     `json:"error,omitempty"`
	Signals    int        `json:"signals"`
	Trades     int        `json:"trades"`
}
