// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/geosearch/geocoder"
	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/store"
	"github.com/jcodagnone/geosearch/tokenizer"
)

const dbFile = "geosearch.duckdb"

type Options struct {
	DbPath    string
	Workers   int
	Cadastral bool
}

var options = &Options{}

// dbPath returns the database file. GEOSEARCH_DB wins over the default
// directory but not over an explicit --db-path.
func (o *Options) dbPath() string {
	if env := os.Getenv("GEOSEARCH_DB"); env != "" && !rootCmd.PersistentFlags().Changed("db-path") {
		return env
	}

	return filepath.Join(o.DbPath, dbFile)
}

// openRepository opens an existing database.
func openRepository() (*sql.DB, *store.Repository, error) {
	dbpath := options.dbPath()
	if _, err := os.Stat(dbpath); errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("database not found at %s - run 'seed' first", dbpath)
	}

	db, err := sql.Open("duckdb", dbpath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo, err := store.New(db)
	if err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("initializing repository: %w", err)
	}

	return db, repo, nil
}

func newGeocoder(repo *store.Repository) (*geocoder.Geocoder, error) {
	engine, err := search.NewEngine(repo,
		search.WithWorkers(options.Workers),
		search.WithCadastralFallback(options.Cadastral),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	analyzer := tokenizer.NewAnalyzer(repo, tokenizer.Options{})

	return geocoder.New(analyzer, search.NewPlanner(), engine), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&options.DbPath,
		"db-path",
		"db",
		"Directory holding the database",
	)
	rootCmd.PersistentFlags().IntVar(
		&options.Workers,
		"workers",
		0,
		"Interpretations looked up concurrently. Defaults to the number of CPUs",
	)
	rootCmd.PersistentFlags().BoolVar(
		&options.Cadastral,
		"cadastral",
		false,
		"Fall back to cadastral house number ranges",
	)
}
