package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stationagent/internal/config"
	"stationagent/internal/dto"
	"stationagent/internal/logger"
	"stationagent/internal/model"
)

type memRepo struct {
	mu      sync.Mutex
	saved   []model.CaptureRecord
	batches int
	fail    bool
}

func (r *memRepo) Insert(rec *model.CaptureRecord) error {
	return r.InsertBatch([]model.CaptureRecord{*rec})
}

func (r *memRepo) InsertBatch(records []model.CaptureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("disk full")
	}
	r.batches++
	r.saved = append(r.saved, records...)
	return nil
}

func (r *memRepo) GetAll(*dto.CaptureFilter) ([]model.CaptureRecord, error) { return r.saved, nil }
func (r *memRepo) GetTotalCount(*dto.CaptureFilter) (int, error) { return len(r.saved), nil }
func (r *memRepo) GetStats() ([]dto.StationCaptureStats, error) { return nil, nil }
func (r *memRepo) DeleteBefore(time.Time) (int64, error) { return 0, nil }

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func newJournal(repo *memRepo, limit int, interval time.Duration) *JournalService {
	return NewJournalService(config.StorageConfig{
		JournalBufferLimit:   limit,
		JournalFlushInterval: interval,
	}, logger.Nop(), repo)
}

func rec(id string) model.CaptureRecord {
	return model.CaptureRecord{ID: id, Station: model.StationFront, Timestamp: time.Now()}
}

func TestJournal_FlushWritesAndClears(t *testing.T) {
	repo := &memRepo{}
	j := newJournal(repo, 100, time.Hour)

	j.AddRecord(rec("a"))
	j.AddRecord(rec("b"))
	if j.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", j.Pending())
	}

	j.Flush()
	if repo.count() != 2 || j.Pending() != 0 {
		t.Errorf("saved=%d pending=%d", repo.count(), j.Pending())
	}

	j.Flush()
	if repo.batches != 1 {
		t.Errorf("an empty flush should not write, batches=%d", repo.batches)
	}
}

func TestJournal_FailedFlushKeepsRecords(t *testing.T) {
	repo := &memRepo{fail: true}
	j := newJournal(repo, 100, time.Hour)

	j.AddRecord(rec("a"))
	j.Flush()
	if j.Pending() != 1 {
		t.Fatalf("records must survive a failed flush, pending=%d", j.Pending())
	}

	repo.fail = false
	j.Flush()
	if repo.count() != 1 {
		t.Errorf("expected the retry to persist the record")
	}
}

func TestJournal_BoundedWhileFailing(t *testing.T) {
	repo := &memRepo{fail: true}
	j := newJournal(repo, 2, time.Hour)

	for i := 0; i < 50; i++ {
		j.AddRecord(rec("x"))
	}
	if j.Pending() != 20 {
		t.Errorf("expected the buffer to cap at 20, got %d", j.Pending())
	}
}

func TestJournal_RunFlushesWhenFull(t *testing.T) {
	repo := &memRepo{}
	j := newJournal(repo, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(ctx)
	}()

	for _, id := range []string{"a", "b", "c"} {
		j.AddRecord(rec(id))
	}

	deadline := time.Now().Add(2 * time.Second)
	for repo.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.count() != 3 {
		t.Errorf("a full buffer should trigger a flush, saved %d", repo.count())
	}

	j.AddRecord(rec("d"))
	cancel()
	<-done
	if repo.count() != 4 {
		t.Errorf("stopping should flush the remainder, saved %d", repo.count())
	}
}
