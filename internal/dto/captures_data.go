package dto

import (
	"encoding/json"
	"time"
)

// CaptureInfo is one journal entry as shown by the ops server.
type CaptureInfo struct {
	ID        string        `json:"id"`
	DeviceID  int           `json:"deviceId"`
	Station   string        `json:"station"`
	Manual    bool          `json:"manual"`
	Upload    bool          `json:"upload"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"-"`
	Timestamp time.Time     `json:"-"`
}

// MarshalJSON formats the timestamp and duration for display.
func (c CaptureInfo) MarshalJSON() ([]byte, error) {
	type Alias CaptureInfo
	return json.Marshal(&struct {
		Date       string `json:"date"`
		TimeOfDay  string `json:"timeOfDay"`
		DurationMs int64  `json:"durationMs"`
		Alias
	}{
		Date:       c.Timestamp.Format("02-01-2006"),
		TimeOfDay:  c.Timestamp.Format("15:04:05"),
		DurationMs: c.Duration.Milliseconds(),
		Alias:      (Alias)(c),
	})
}

// CapturesData is the response of GET /api/captures.
type CapturesData struct {
	Captures []CaptureInfo `json:"captures"`
	Length   int           `json:"length"`
	Total    int           `json:"total"`
	Limit    int           `json:"limit"`
	Pending  int           `json:"pending"`
}

// StationCaptureStats summarises journal entries for one station.
type StationCaptureStats struct {
	Station   string    `json:"station"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Manual    int       `json:"manual"`
	LastAt    time.Time `json:"lastAt"`
}
