package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"stationagent/internal/dto"
	"stationagent/internal/model"
)

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new SQLite capture repository.
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

const insertCapture = `
	INSERT INTO captures (id, device_id, station, manual, upload, success, error, bytes, duration_ms, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func captureArgs(rec *model.CaptureRecord) []interface{} {
	return []interface{}{
		rec.ID, rec.DeviceID, string(rec.Station), rec.Manual, rec.Upload, rec.Success,
		rec.Error, rec.Bytes, rec.Duration.Milliseconds(), rec.Timestamp.UTC(),
	}
}

// Insert adds one capture record.
func (r *CaptureRepository) Insert(rec *model.CaptureRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(insertCapture, captureArgs(rec)...); err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

// InsertBatch adds multiple records in a single transaction.
func (r *CaptureRepository) InsertBatch(records []model.CaptureRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertCapture)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.Exec(captureArgs(&records[i])...); err != nil {
			return fmt.Errorf("failed to insert capture %s: %w", records[i].ID, err)
		}
	}

	return tx.Commit()
}

func whereClause(filter *dto.CaptureFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter == nil {
		return "", nil
	}
	if filter.Station != "" {
		conds = append(conds, "station = ?")
		args = append(args, filter.Station)
	}
	if filter.Manual != nil {
		conds = append(conds, "manual = ?")
		args = append(args, *filter.Manual)
	}
	if !filter.After.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.After.UTC())
	}
	if !filter.Before.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, filter.Before.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetAll returns matching records, newest first.
func (r *CaptureRepository) GetAll(filter *dto.CaptureFilter) ([]model.CaptureRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT id, device_id, station, manual, upload, success, error, bytes, duration_ms, timestamp
		FROM captures` + where + ` ORDER BY timestamp DESC`
	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var records []model.CaptureRecord
	for rows.Next() {
		var (
			rec        model.CaptureRecord
			station    string
			durationMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &station, &rec.Manual, &rec.Upload, &rec.Success,
			&rec.Error, &rec.Bytes, &durationMs, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		rec.Station = model.Station(station)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetTotalCount returns the number of matching records.
func (r *CaptureRepository) GetTotalCount(filter *dto.CaptureFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	var count int
	if err := r.db.Conn().QueryRow("SELECT COUNT(*) FROM captures"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return count, nil
}

// GetStats summarises the journal per station.
func (r *CaptureRepository) GetStats() ([]dto.StationCaptureStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT station, COUNT(*), SUM(success), SUM(manual), MAX(timestamp)
		FROM captures GROUP BY station ORDER BY station
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query capture stats: %w", err)
	}
	defer rows.Close()

	var stats []dto.StationCaptureStats
	for rows.Next() {
		var (
			s    dto.StationCaptureStats
			last sql.NullString
		)
		if err := rows.Scan(&s.Station, &s.Total, &s.Succeeded, &s.Manual, &last); err != nil {
			return nil, fmt.Errorf("failed to scan capture stats: %w", err)
		}
		s.Failed = s.Total - s.Succeeded
		if last.Valid {
			s.LastAt = parseTimestamp(last.String)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// parseTimestamp reads an aggregate DATETIME value, which the driver returns
// as text.
func parseTimestamp(v string) time.Time {
	v = strings.TrimSuffix(v, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DeleteBefore prunes records older than t.
func (r *CaptureRepository) DeleteBefore(t time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().Exec("DELETE FROM captures WHERE timestamp < ?", t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete captures: %w", err)
	}
	return res.RowsAffected()
}
