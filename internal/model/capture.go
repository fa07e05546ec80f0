package model

import "time"

// CaptureRecord is the journal entry for one durable capture attempt.
// The frame itself is not kept, only the outcome.
type CaptureRecord struct {
	ID        string        `json:"id"`
	DeviceID  int           `json:"device_id"`
	Station   Station       `json:"station"`
	Manual    bool          `json:"manual"`
	Upload    bool          `json:"upload"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}
