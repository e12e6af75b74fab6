package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// KV is a string key-value store backed by the kv table.
// It is the persisted mirror for targets, selection and theme.
type KV struct {
	db *sql.DB
}

// NewKV wraps an open database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the value for key. ok is false if the key is absent.
func (kv *KV) Get(key string) (value string, ok bool, err error) {
	err = kv.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value.
func (kv *KV) Set(key, value string) error {
	if _, err := kv.db.Exec(upsertSQL, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// SetMany writes all pairs in one transaction.
func (kv *KV) SetMany(pairs map[string]string) error {
	tx, err := kv.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range pairs {
		if _, err := tx.Exec(upsertSQL, k, v); err != nil {
			return fmt.Errorf("set %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const upsertSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
