package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// NewPostgres wraps an open PostgreSQL handle. It does not migrate.
func NewPostgres(db *sql.DB) *Store {
	return &Store{db: db, dialect: dialectPostgres}
}

// OpenPostgres connects to url and runs migrations.
func OpenPostgres(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("open postgres: database url is empty")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := NewPostgres(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
