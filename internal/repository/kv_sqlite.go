package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore implements Store on the kv_store table. The connection is opened
// with _txlock=immediate (see db.InitDB) so every transaction takes the write
// lock up front and concurrent processes on the same file serialise.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

const (
	selectKVSQL = `SELECT value FROM kv_store WHERE key = ?`

	upsertKVSQL = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	deleteKVSQL = `DELETE FROM kv_store WHERE key = ?`
)

func (s *SQLiteStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, selectKVSQL, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertKVSQL, key, b, s.now().UTC()); err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteKVSQL, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Transact(ctx context.Context, key string, fn TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %q: %w", key, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var cur []byte
	err = tx.QueryRowContext(ctx, selectKVSQL, key).Scan(&cur)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("select %q: %w", key, err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next != nil {
		if _, err := tx.ExecContext(ctx, upsertKVSQL, key, next, s.now().UTC()); err != nil {
			return fmt.Errorf("upsert %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %q: %w", key, err)
	}
	return nil
}
