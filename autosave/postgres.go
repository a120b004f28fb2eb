package autosave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/wudi/pdfmark/annotation"
)

// PostgresStore keeps records in a single autosaves table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to connStr and creates the table if needed.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store := &PostgresStore{db: db, now: time.Now}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS autosaves (
			key VARCHAR(255) PRIMARY KEY,
			annotations JSONB NOT NULL,
			saved_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Save(ctx context.Context, key string, anns []annotation.Annotation) error {
	rec, err := newRecord(key, anns, s.now())
	if err != nil {
		return err
	}
	query := `
		INSERT INTO autosaves (key, annotations, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET annotations = EXCLUDED.annotations, saved_at = EXCLUDED.saved_at
	`
	if _, err := s.db.ExecContext(ctx, query, rec.Key, string(rec.Annotations), rec.SavedAt); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) (Record, error) {
	query := `SELECT key, annotations, saved_at FROM autosaves WHERE key = $1`
	var rec Record
	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&rec.Key, &data, &rec.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load record: %w", err)
	}
	rec.Annotations = data
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM autosaves WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
