// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jcodagnone/geosearch/geocoder"
	"github.com/jcodagnone/geosearch/tokenizer"
	"github.com/spf13/cobra"
)

// isTerminal reports whether f is a character device. When f cannot be
// inspected we say that it isn't.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return (info.Mode() & os.ModeCharDevice) != 0
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Prints the normalized form of each input line",
	Long: `Reads one text per line and prints it followed by the form the search
terms are looked up with.

$ echo "Avenida 18 de Julio, Montevideo" | geosearch debug normalize
Avenida 18 de Julio, Montevideo		avenida 18 de julio montevideo
`,
	Run: func(_ *cobra.Command, _ []string) {
		input := os.Stdin
		if isTerminal(input) {
			fmt.Fprintln(os.Stderr, "Enter texts to normalize, one per line…")
		}

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			fmt.Printf("%s\t\t%s\n", scanner.Text(), tokenizer.Normalize(scanner.Text()))
		}

		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", err)
			os.Exit(1)
		}
	},
}

var debugInterpretationsCmd = &cobra.Command{
	Use:   "interpretations",
	Short: "Prints the interpretations planned for each input query",
	Long: `Reads one query per line and prints the query followed by the groups of
interpretations, best first, as JSON.

$ echo "18 de julio 1234, montevideo" | geosearch debug interpretations
18 de julio 1234, montevideo		[[{"rank":2,"name_tokens":[...],...}]]
`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		g, err := newGeocoder(repo)
		if err != nil {
			return err
		}

		input := os.Stdin
		if isTerminal(input) {
			fmt.Fprintln(os.Stderr, "Enter queries to analyze, one per line…")
		}

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			query := scanner.Text()

			groups, err := g.Interpretations(cmd.Context(), geocoder.Request{Query: query})
			if err != nil {
				fmt.Printf("%s\t%q\n", query, err)

				continue
			}

			s, err := json.Marshal(geocoder.Infos(groups))
			if err != nil {
				return err
			}

			fmt.Printf("%s\t\t%s\n", query, s)
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugNormalizeCmd)
	debugCmd.AddCommand(debugInterpretationsCmd)
}
