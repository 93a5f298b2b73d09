package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a PostgresStore over the named table.
func NewPostgresStore(ctx context.Context, connString, table string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, table: table}, nil
}

var _ Store = (*PostgresStore)(nil)

// Upsert implements Store. The same ID overwrites the prior row; there
// is no version check.
func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, house_number, street_address, town, zip)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			house_number = EXCLUDED.house_number,
			street_address = EXCLUDED.street_address,
			town = EXCLUDED.town,
			zip = EXCLUDED.zip`,
		pgx.Identifier{s.table}.Sanitize())

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.HouseNumber, rec.Street, rec.Town, rec.Zip)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, bool, error) {
	query := fmt.Sprintf(`
		SELECT id, house_number, street_address, town, zip
		FROM %s WHERE id = $1`,
		pgx.Identifier{s.table}.Sanitize())

	var rec Record
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.HouseNumber, &rec.Street, &rec.Town, &rec.Zip)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, true, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
