// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/jcodagnone/geosearch/store"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports the named streets with their most frequent postcode as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		out := io.Writer(os.Stdout)

		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", exportOutput, err)
			}
			defer f.Close()

			out = f
		}

		return exportStreets(cmd.Context(), repo, out)
	},
}

func exportStreets(ctx context.Context, repo *store.Repository, out io.Writer) error {
	streets, err := repo.Streets(ctx)
	if err != nil {
		return fmt.Errorf("listing streets: %w", err)
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(streets),
			progressbar.OptionSetDescription("Exporting streets"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"place_id", "name", "country_code", "postcode"}); err != nil {
		return err
	}

	missing := 0

	for _, s := range streets {
		postcode, found, err := repo.MostFrequentPostcode(ctx, s.PlaceID)
		if err != nil {
			return fmt.Errorf("postcode of street %d: %w", s.PlaceID, err)
		}

		if !found {
			missing++
		}

		if err := w.Write([]string{strconv.FormatInt(s.PlaceID, 10), s.Name, s.CountryCode, postcode}); err != nil {
			return err
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				return fmt.Errorf("updating progress bar: %w", err)
			}
		}
	}

	w.Flush()

	log.Printf("Export complete - %d streets, %d without postcode", len(streets), missing)

	return w.Error()
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "File to write, - for stdout")
}
