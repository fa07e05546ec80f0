package dto

import "encoding/json"

// ActiveCameraResponse is the body of GET /api/get-active-camera.
type ActiveCameraResponse struct {
	CameraID *int `json:"camera_id"`
}

// SetActiveCameraResponse is the body of POST /api/set-active-camera/{id}.
type SetActiveCameraResponse struct {
	Status string `json:"status"`
}

// UpdateResponse is the body of POST /api/update/{station}.
type UpdateResponse struct {
	Success bool   `json:"success"`
	Station string `json:"station"`
}

// StationFeed is whatever the backend stored for a station, or {}.
type StationFeed = json.RawMessage

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}
