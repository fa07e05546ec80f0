package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stationagent/internal/dto"
	"stationagent/internal/model"
)

// ========================================
// Helpers
// ========================================

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func record(id string, deviceID int, station model.Station, manual, success bool, at time.Time) model.CaptureRecord {
	rec := model.CaptureRecord{
		ID:        id,
		DeviceID:  deviceID,
		Station:   station,
		Manual:    manual,
		Upload:    true,
		Success:   success,
		Bytes:     2048,
		Duration:  150 * time.Millisecond,
		Timestamp: at,
	}
	if !success {
		rec.Error = "status 500"
	}
	return rec
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "agent.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationIsRepeatable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "agent.db")

	for i := 0; i < 2; i++ {
		db, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		db.Close()
	}
}

// ========================================
// Capture Repository Tests
// ========================================

func TestCaptureRepository_InsertAndGetAll(t *testing.T) {
	repo := NewCaptureRepository(newTestDB(t))

	rec := record("a", 1, model.StationLeft, true, true, base)
	if err := repo.Insert(&rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetAll(nil)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	r := got[0]
	if r.ID != "a" || r.DeviceID != 1 || r.Station != model.StationLeft || !r.Manual || !r.Success {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Duration != 150*time.Millisecond {
		t.Errorf("duration = %v", r.Duration)
	}
	if !r.Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", r.Timestamp, base)
	}
}

func TestCaptureRepository_InsertBatchIsAtomic(t *testing.T) {
	repo := NewCaptureRepository(newTestDB(t))

	batch := []model.CaptureRecord{
		record("a", 0, model.StationFront, false, true, base),
		record("a", 1, model.StationLeft, false, true, base),
	}
	if err := repo.InsertBatch(batch); err == nil {
		t.Fatal("expected a duplicate key error")
	}

	count, err := repo.GetTotalCount(nil)
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("a failed batch must not leave rows, got %d", count)
	}
}

func TestCaptureRepository_Filters(t *testing.T) {
	repo := NewCaptureRepository(newTestDB(t))

	err := repo.InsertBatch([]model.CaptureRecord{
		record("1", 0, model.StationFront, false, true, base),
		record("2", 0, model.StationFront, true, true, base.Add(time.Minute)),
		record("3", 3, model.StationBrake, false, false, base.Add(2*time.Minute)),
		record("4", 1, model.StationLeft, false, true, base.Add(3*time.Minute)),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	manual := true
	tests := []struct {
		name    string
		filter  *dto.CaptureFilter
		wantIDs []string
	}{
		{"all newest first", &dto.CaptureFilter{}, []string{"4", "3", "2", "1"}},
		{"station", &dto.CaptureFilter{Station: "front"}, []string{"2", "1"}},
		{"manual", &dto.CaptureFilter{Manual: &manual}, []string{"2"}},
		{"after", &dto.CaptureFilter{After: base.Add(2 * time.Minute)}, []string{"4", "3"}},
		{"before", &dto.CaptureFilter{Before: base.Add(time.Minute)}, []string{"1"}},
		{"limit", &dto.CaptureFilter{Limit: 2}, []string{"4", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAll(tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("record %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestCaptureRepository_Stats(t *testing.T) {
	repo := NewCaptureRepository(newTestDB(t))

	err := repo.InsertBatch([]model.CaptureRecord{
		record("1", 0, model.StationFront, false, true, base),
		record("2", 0, model.StationFront, true, false, base.Add(time.Minute)),
		record("3", 3, model.StationBrake, false, true, base.Add(2*time.Minute)),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 stations, got %+v", stats)
	}

	brake, front := stats[0], stats[1]
	if brake.Station != "brake" || brake.Total != 1 || brake.Failed != 0 {
		t.Errorf("unexpected brake stats %+v", brake)
	}
	if front.Total != 2 || front.Succeeded != 1 || front.Failed != 1 || front.Manual != 1 {
		t.Errorf("unexpected front stats %+v", front)
	}
	if !front.LastAt.Equal(base.Add(time.Minute)) {
		t.Errorf("front last capture = %v", front.LastAt)
	}
}

func TestCaptureRepository_DeleteBefore(t *testing.T) {
	repo := NewCaptureRepository(newTestDB(t))

	err := repo.InsertBatch([]model.CaptureRecord{
		record("old", 0, model.StationFront, false, true, base.Add(-48*time.Hour)),
		record("new", 0, model.StationFront, false, true, base),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	n, err := repo.DeleteBefore(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}
	if count, _ := repo.GetTotalCount(nil); count != 1 {
		t.Errorf("expected 1 remaining record, got %d", count)
	}
}
