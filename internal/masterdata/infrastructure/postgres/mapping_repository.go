package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultLookupTable = "complex_lookup"

// MappingRepository loads the device-group to complex lookup from Postgres.
type MappingRepository struct {
	db    *sql.DB
	table string
}

// NewMappingRepository constructs a repository with the default table name.
func NewMappingRepository(db *sql.DB, opts ...RepositoryOption) *MappingRepository {
	repo := &MappingRepository{db: db, table: defaultLookupTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*MappingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *MappingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// LoadMapping reads the full lookup table. Duplicate group rows keep the
// first complex seen; a group can never map to more than one complex.
func (r *MappingRepository) LoadMapping(ctx context.Context) (map[string]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}

	query := fmt.Sprintf("SELECT remote_unit, complex_id FROM %s ORDER BY remote_unit, complex_id", r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var group, complexID string
		if err := rows.Scan(&group, &complexID); err != nil {
			return nil, err
		}
		if _, ok := mapping[group]; ok {
			continue
		}
		mapping[group] = complexID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mapping, nil
}
