// Package storage хранит базу отпечатков устройств в SQLite
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT    NOT NULL UNIQUE,
		fingerprint BLOB    NOT NULL,
		last_seen   INTEGER NOT NULL,
		match_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen)`,
}

// SQLiteStore реализует fingerprint.Persister. Порядок загрузки совпадает
// с порядком первой записи, поэтому идентификаторы устройств сохраняются
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ fingerprint.Persister = (*SQLiteStore)(nil)

// Open открывает базу, включает WAL и создает схему
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// один писатель, иначе SQLITE_BUSY под нагрузкой
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("sqlite store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to migrate schema: %w", err)
			}
		}
		return nil
	})
}

// transaction выполняет fn в транзакции с откатом при ошибке или панике
func (s *SQLiteStore) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveDevice вставляет или обновляет запись устройства
func (s *SQLiteStore) SaveDevice(ctx context.Context, d fingerprint.Device) error {
	if !d.Fingerprint.Valid() {
		return fmt.Errorf("device %s: %w", d.Name, fingerprint.ErrHashMismatch)
	}
	blob, err := d.Fingerprint.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devices (name, fingerprint, last_seen, match_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			last_seen   = excluded.last_seen,
			match_count = excluded.match_count`,
		d.Name, blob, unixNano(d.LastSeen), d.MatchCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save device %s: %w", d.Name, err)
	}
	return nil
}

// DeleteDevice удаляет запись; отсутствие записи не ошибка
func (s *SQLiteStore) DeleteDevice(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete device %s: %w", name, err)
	}
	return nil
}

// LoadDevices все устройства в порядке регистрации
func (s *SQLiteStore) LoadDevices(ctx context.Context) ([]fingerprint.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, fingerprint, last_seen, match_count FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []fingerprint.Device
	for rows.Next() {
		var (
			d        fingerprint.Device
			blob     []byte
			lastSeen int64
		)
		if err := rows.Scan(&d.Name, &blob, &lastSeen, &d.MatchCount); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		if err := d.Fingerprint.UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("device %s: %w", d.Name, err)
		}
		d.LastSeen = fromUnixNano(lastSeen)
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

// unixNano нулевое время хранится как 0
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
