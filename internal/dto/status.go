package dto

import "time"

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	ActiveDevice    *int                     `json:"activeDevice"`
	ActiveStation   string                   `json:"activeStation,omitempty"`
	LastKnownActive *int                     `json:"lastKnownActive"`
	LiveFPS         float64                  `json:"liveFps"`
	Tasks           map[string]bool          `json:"tasks"`
	Stations        map[string]StationStatus `json:"stations,omitempty"`
	Viewers         int                      `json:"viewers"`
	PendingCaptures int                      `json:"pendingCaptures"`
	Uptime          string                   `json:"uptime"`
}

// StationStatus is the latest live-feed outcome for one station.
type StationStatus struct {
	Scratch   int       `json:"scratch"`
	Dent      int       `json:"dent"`
	Other     int       `json:"other"`
	Pushed    int       `json:"pushed"`
	Failed    int       `json:"failed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CaptureResponse is the body of POST /api/capture.
type CaptureResponse struct {
	Success  bool   `json:"success"`
	DeviceID int    `json:"deviceId"`
	Station  string `json:"station"`
	Error    string `json:"error,omitempty"`
}
