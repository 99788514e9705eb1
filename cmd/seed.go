// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/store"
	"github.com/jcodagnone/geosearch/tokenizer"
	"github.com/spf13/cobra"
)

// SeedData is the content of a seed file.
type SeedData struct {
	Words          []tokenizer.Word      `json:"words"`
	Places         []store.Place         `json:"places"`
	Postcodes      []store.Postcode      `json:"postcodes"`
	Interpolations []store.Interpolation `json:"interpolations"`
	Cadastral      []store.Interpolation `json:"cadastral"`
	ClassTables    []struct {
		Class string `json:"class"`
		Type  string `json:"type"`
	} `json:"class_tables"`
}

func newSeedCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seeds the database with the content of a seed file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbpath := options.dbPath()
			if err := os.MkdirAll(filepath.Dir(dbpath), 0o750); err != nil {
				return fmt.Errorf("creating db directory: %w", err)
			}

			if err := seedDatabase(cmd.Context(), dbpath, seedFile); err != nil {
				return err
			}

			fmt.Println("Database seeded successfully.")

			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "file", "cmd/testdata/seed.json", "Seed file to load")

	return cmd
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}

func readSeed(path string) (*SeedData, error) {
	jsonFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var data SeedData
	if err := json.Unmarshal(byteValue, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &data, nil
}

func seedDatabase(ctx context.Context, dbPath, seedFile string) error {
	data, err := readSeed(seedFile)
	if err != nil {
		return err
	}

	// remove old db if it exists
	_ = os.Remove(dbPath)
	_ = os.Remove(dbPath + ".wal")

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo, err := store.New(db)
	if err != nil {
		return fmt.Errorf("initializing repository: %w", err)
	}

	if err := repo.CreateSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := repo.SaveWords(ctx, data.Words); err != nil {
		return fmt.Errorf("failed to save words: %w", err)
	}

	if err := repo.SavePlaces(ctx, data.Places); err != nil {
		return fmt.Errorf("failed to save places: %w", err)
	}

	if err := repo.SavePostcodes(ctx, data.Postcodes); err != nil {
		return fmt.Errorf("failed to save postcodes: %w", err)
	}

	if err := repo.SaveInterpolations(ctx, search.TableInterpolation, data.Interpolations); err != nil {
		return fmt.Errorf("failed to save interpolations: %w", err)
	}

	if err := repo.SaveInterpolations(ctx, search.TableCadastral, data.Cadastral); err != nil {
		return fmt.Errorf("failed to save cadastral ranges: %w", err)
	}

	for _, ct := range data.ClassTables {
		if err := repo.CreateClassTypeTable(ctx, ct.Class, ct.Type); err != nil {
			return fmt.Errorf("failed to create class table %s/%s: %w", ct.Class, ct.Type, err)
		}
	}

	return nil
}
