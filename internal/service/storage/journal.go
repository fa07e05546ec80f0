package storage

import (
	"context"
	"sync"
	"time"

	"stationagent/internal/config"
	"stationagent/internal/logger"
	"stationagent/internal/model"
	"stationagent/internal/repository"
)

// retainFactor bounds how many unflushed records survive failing flushes,
// as a multiple of the buffer limit.
const retainFactor = 10

// JournalService buffers capture records in memory and periodically flushes
// them to the repository.
type JournalService struct {
	records  []model.CaptureRecord
	limit    int
	interval time.Duration
	flushNow chan struct{}
	mu       sync.Mutex
	logger   *logger.Logger
	repo     repository.CaptureRepository
}

// NewJournalService creates a JournalService flushing into repo.
func NewJournalService(cfg config.StorageConfig, logger *logger.Logger, repo repository.CaptureRepository) *JournalService {
	return &JournalService{
		records:  make([]model.CaptureRecord, 0, cfg.JournalBufferLimit),
		limit:    cfg.JournalBufferLimit,
		interval: cfg.JournalFlushInterval,
		flushNow: make(chan struct{}, 1),
		logger:   logger,
		repo:     repo,
	}
}

// Run flushes on a ticker, whenever the buffer fills up, and once more when
// ctx is done.
func (s *JournalService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		case <-s.flushNow:
			s.Flush()
		}
	}
}

// AddRecord appends a record to the in-memory buffer.
func (s *JournalService) AddRecord(record model.CaptureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if keep := s.limit * retainFactor; s.limit > 0 && len(s.records) > keep {
		dropped := len(s.records) - keep
		s.records = s.records[dropped:]
		s.logger.Warning("Capture journal full, dropped %d oldest records", dropped)
	}

	if s.limit > 0 && len(s.records) >= s.limit {
		select {
		case s.flushNow <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of records not yet flushed.
func (s *JournalService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Flush writes buffered records to the repository. On failure they stay
// buffered for the next attempt.
func (s *JournalService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return
	}

	if err := s.repo.InsertBatch(s.records); err != nil {
		s.logger.Error("Error saving %d capture records: %v", len(s.records), err)
		return
	}

	s.logger.Info("Flushed %d capture records to database", len(s.records))
	s.records = s.records[:0]
}
