package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Preference keys.
const PrefTheme = "theme"

// GetPref returns a preference value, or "" if the key is unset.
func (db *DB) GetPref(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pref %s: %w", key, err)
	}
	return value, nil
}

// SetPref stores a preference value, replacing any previous one.
func (db *DB) SetPref(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set pref %s: %w", key, err)
	}
	return nil
}
