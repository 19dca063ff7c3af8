package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStorage stores objects as rows of a single key/value table.
type PostgresStorage struct {
	db    *sql.DB
	table string
}

// NewPostgresStorage wraps an open database handle. Call Migrate once before use.
func NewPostgresStorage(db *sql.DB, table string) *PostgresStorage {
	if table == "" {
		table = "clawmart_objects"
	}
	return &PostgresStorage{db: db, table: pq.QuoteIdentifier(table)}
}

// OpenPostgres opens and pings a lib/pq connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

func (s *PostgresStorage) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	path TEXT PRIMARY KEY,
	data BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStorage) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE path = $1`, s.table), normalize(path)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (s *PostgresStorage) Write(ctx context.Context, path string, data []byte) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (path, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, s.table), normalize(path), data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStorage) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE path = $1`, s.table), normalize(path))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) List(ctx context.Context, prefix string) ([]string, error) {
	dir := dirPrefix(prefix)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT path FROM %s WHERE left(path, length($1)) = $1 AND strpos(substr(path, length($1) + 1), '/') = 0 ORDER BY path`,
		s.table), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return paths, nil
}

func (s *PostgresStorage) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE path = $1)`, s.table), normalize(path)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return exists, nil
}
