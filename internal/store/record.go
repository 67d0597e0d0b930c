package store

import (
	"database/sql"
	"errors"
	"time"
)

// AppendRecord inserts a record if its id is not already present.
// Returns true when a row was inserted, false when the id already existed.
// The duplicate case is success, not an error: send retries and event
// re-delivery both land here.
func (db *DB) AppendRecord(r *Record) (bool, error) {
	res, err := db.Exec(`
		INSERT INTO records (id, sender, content, timestamp, read, outgoing, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Sender, r.Content, r.Timestamp, r.Read, r.Outgoing, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasRecord reports whether a record with the given id exists.
func (db *DB) HasRecord(id string) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM records WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListRecords returns records newest-first, up to limit.
func (db *DB) ListRecords(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, sender, content, timestamp, read, outgoing
		FROM records
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Sender, &r.Content, &r.Timestamp, &r.Read, &r.Outgoing); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkAllRead flags every record as read.
func (db *DB) MarkAllRead() error {
	_, err := db.Exec(`UPDATE records SET read = 1 WHERE read = 0`)
	return err
}
