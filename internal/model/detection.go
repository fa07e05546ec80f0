package model

import "image"

// Detection is one box reported by a detection model.
type Detection struct {
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Counts are the per-class tallies derived from a frame's detections.
type Counts struct {
	Scratch int `json:"scratch_count"`
	Dent    int `json:"dent_count"`
	Other   int `json:"other_count"`
}

// Total returns the number of counted (non-discarded) detections.
func (c Counts) Total() int {
	return c.Scratch + c.Dent + c.Other
}

// DetectionResult is the output of a single inference call.
type DetectionResult struct {
	Annotated  Frame
	Counts     Counts
	Detections []Detection
}
