package repository

import (
	"time"

	"stationagent/internal/dto"
	"stationagent/internal/model"
)

// CaptureRepository stores the durable capture journal.
type CaptureRepository interface {
	// Create operations
	Insert(rec *model.CaptureRecord) error
	InsertBatch(records []model.CaptureRecord) error

	// Read operations
	GetAll(filter *dto.CaptureFilter) ([]model.CaptureRecord, error)
	GetTotalCount(filter *dto.CaptureFilter) (int, error)
	GetStats() ([]dto.StationCaptureStats, error)

	// Delete operations
	DeleteBefore(t time.Time) (int64, error)
}
