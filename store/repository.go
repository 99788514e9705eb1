// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package store keeps the geocoding database in DuckDB and answers the
// lookups of the search engine.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jcodagnone/geosearch/search"
)

var identifierRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Repository is a DuckDB backed search.Store.
type Repository struct {
	db *sql.DB
}

var _ search.Store = (*Repository)(nil)

// New returns a repository over db, loading the spatial extension.
func New(db *sql.DB) (*Repository, error) {
	// DuckDB needs to load the spatial extension
	if _, err := db.Exec(`INSTALL spatial; LOAD spatial;`); err != nil {
		return nil, fmt.Errorf("loading spatial extension: %w", err)
	}

	return &Repository{db: db}, nil
}

// DB returns the underlying database connection.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// CreateSchema creates the place, search, postcode, interpolation and word
// tables.
func (r *Repository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS placex (
			place_id BIGINT PRIMARY KEY,
			parent_place_id BIGINT,
			linked_place_id BIGINT,
			class VARCHAR NOT NULL,
			type VARCHAR NOT NULL,
			name VARCHAR,
			housenumber VARCHAR,
			postcode VARCHAR,
			country_code VARCHAR,
			rank_search INTEGER NOT NULL,
			rank_address INTEGER NOT NULL,
			importance DOUBLE,
			geometry GEOMETRY NOT NULL,
			centroid GEOMETRY NOT NULL,
			h3_cell BIGINT
		);

		CREATE TABLE IF NOT EXISTS search_name (
			place_id BIGINT PRIMARY KEY,
			importance DOUBLE,
			search_rank INTEGER NOT NULL,
			address_rank INTEGER NOT NULL,
			name_vector BIGINT[] NOT NULL,
			nameaddress_vector BIGINT[] NOT NULL,
			country_code VARCHAR,
			centroid GEOMETRY NOT NULL,
			h3_cell BIGINT
		);

		CREATE TABLE IF NOT EXISTS location_postcode (
			place_id BIGINT PRIMARY KEY,
			parent_place_id BIGINT,
			postcode VARCHAR NOT NULL,
			country_code VARCHAR,
			geometry GEOMETRY NOT NULL
		);

		CREATE TABLE IF NOT EXISTS location_property_osmline (
			place_id BIGINT PRIMARY KEY,
			parent_place_id BIGINT,
			startnumber INTEGER,
			endnumber INTEGER,
			interpolationtype VARCHAR,
			linegeo GEOMETRY
		);

		CREATE TABLE IF NOT EXISTS location_property_tiger (
			place_id BIGINT PRIMARY KEY,
			parent_place_id BIGINT,
			startnumber INTEGER,
			endnumber INTEGER,
			interpolationtype VARCHAR,
			linegeo GEOMETRY
		);

		CREATE TABLE IF NOT EXISTS word (
			word_id BIGINT PRIMARY KEY,
			word_token VARCHAR NOT NULL,
			word VARCHAR,
			class VARCHAR,
			type VARCHAR,
			country_code VARCHAR,
			search_name_count INTEGER DEFAULT 0,
			operator VARCHAR
		);
	`)

	return err
}

// classTableName returns the name of the per class/type table.
func classTableName(class, typ string) (string, error) {
	if !identifierRe.MatchString(class) || !identifierRe.MatchString(typ) {
		return "", fmt.Errorf("invalid class/type %q/%q", class, typ)
	}

	return fmt.Sprintf("place_classtype_%s_%s", class, typ), nil
}

// CreateClassTypeTable materialises the places of a class/type into their
// own table, replacing a previous one.
func (r *Repository) CreateClassTypeTable(ctx context.Context, class, typ string) error {
	table, err := classTableName(class, typ)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	statements := []struct {
		sql  string
		args []any
	}{
		{sql: fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)},
		{sql: fmt.Sprintf(`
			CREATE TABLE %s (
				place_id BIGINT PRIMARY KEY,
				centroid GEOMETRY NOT NULL,
				h3_cell BIGINT
			)`, table)},
		{
			sql: fmt.Sprintf(`
				INSERT INTO %s
				SELECT place_id, centroid, h3_cell FROM placex
				WHERE class = ? AND type = ?`, table),
			args: []any{class, typ},
		},
	}

	for _, s := range statements {
		if _, err = tx.ExecContext(ctx, s.sql, s.args...); err != nil {
			return fmt.Errorf("creating %s: %w", table, rollback(tx, err))
		}
	}

	return tx.Commit()
}

// HasClassTable reports whether the per class/type table exists.
func (r *Repository) HasClassTable(ctx context.Context, class, typ string) (bool, error) {
	table, err := classTableName(class, typ)
	if err != nil {
		// no table can exist for a name we would never create
		return false, nil
	}

	var n int

	err = r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`,
		table,
	).Scan(&n)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// rollback aborts tx and returns err, joined with the rollback failure if
// any.
func rollback(tx *sql.Tx, err error) error {
	if rErr := tx.Rollback(); rErr != nil {
		return errors.Join(err, rErr)
	}

	return err
}

func (r *Repository) queryIDs(ctx context.Context, b sq.SelectBuilder) ([]int64, error) {
	rows, err := b.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
