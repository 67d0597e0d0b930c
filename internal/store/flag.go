package store

// SetNewMessageFlag overwrites the single flag row for the given message.
func (db *DB) SetNewMessageFlag(msgID string, receivedAt int64) error {
	_, err := db.Exec(`
		UPDATE new_message_flag
		SET has_new = 1, last_message_at = ?, last_message_id = ?
		WHERE id = 1`,
		receivedAt, msgID)
	return err
}

// ClearNewMessageFlag resets has_new after a consumer polled the inbox.
// The last message fields are kept for diagnostics.
func (db *DB) ClearNewMessageFlag() error {
	_, err := db.Exec(`UPDATE new_message_flag SET has_new = 0 WHERE id = 1`)
	return err
}

// GetNewMessageFlag reads the flag row.
func (db *DB) GetNewMessageFlag() (*NewMessageFlag, error) {
	var f NewMessageFlag
	err := db.QueryRow(`
		SELECT has_new, last_message_at, last_message_id
		FROM new_message_flag WHERE id = 1`).
		Scan(&f.HasNew, &f.LastMessageAt, &f.LastMessageID)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
