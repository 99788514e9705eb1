// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jcodagnone/geosearch/tokenizer"
)

var _ tokenizer.WordLookup = (*Repository)(nil)

// LookupWords returns the dictionary entries of the tokens.
func (r *Repository) LookupWords(ctx context.Context, tokens []string) ([]tokenizer.Word, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := sq.Select(
		"word_id", "word_token", "word", "class", "type",
		"country_code", "search_name_count", "operator",
	).
		From("word").
		Where(sq.Eq{"word_token": tokens}).
		OrderBy("word_id").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []tokenizer.Word

	for rows.Next() {
		var (
			w                                   tokenizer.Word
			word, class, typ, country, operator sql.NullString
			count                               sql.NullInt64
		)

		if err := rows.Scan(&w.ID, &w.Token, &word, &class, &typ, &country, &count, &operator); err != nil {
			return nil, err
		}

		w.Word = word.String
		w.Class = class.String
		w.Type = typ.String
		w.CountryCode = country.String
		w.SearchNameCount = int(count.Int64)
		w.Operator = operator.String

		words = append(words, w)
	}

	return words, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// SaveWords inserts dictionary entries.
func (r *Repository) SaveWords(ctx context.Context, words []tokenizer.Word) error {
	return r.bulkInsert(ctx, `
		INSERT INTO word(
			word_id,
			word_token,
			word,
			class,
			type,
			country_code,
			search_name_count,
			operator
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(words), func(i int) ([]any, error) {
		w := words[i]

		return []any{
			w.ID,
			w.Token,
			nullString(w.Word),
			nullString(w.Class),
			nullString(w.Type),
			nullString(w.CountryCode),
			w.SearchNameCount,
			nullString(w.Operator),
		}, nil
	})
}
