// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package tokenizer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/jcodagnone/geosearch/search"
)

const (
	DefaultMaxWordFrequency  = 50000
	DefaultRareWordFrequency = 500
	// DefaultMaxWordSets holds every split of a phrase of up to 8 terms.
	DefaultMaxWordSets    = 128
	DefaultMaxPhraseTerms = 20
	// maxGroupSize is the longest run of terms looked up as a single word.
	maxGroupSize = 5
	// maxHouseNumberLength bounds the terms guessed to be house numbers.
	maxHouseNumberLength = 6
)

// Word is an entry of the word dictionary. Full words have a token starting
// with a space, partial terms do not.
type Word struct {
	ID              int64  `json:"id"`
	Token           string `json:"token"`
	Word            string `json:"word,omitempty"`
	Class           string `json:"class,omitempty"`
	Type            string `json:"type,omitempty"`
	CountryCode     string `json:"country_code,omitempty"`
	SearchNameCount int    `json:"search_name_count"`
	Operator        string `json:"operator,omitempty"`
}

// WordLookup finds the dictionary entries of word tokens.
type WordLookup interface {
	LookupWords(ctx context.Context, tokens []string) ([]Word, error)
}

// RawPhrase is a part of the query before analysis.
type RawPhrase struct {
	Type search.PhraseType
	Text string
}

// SplitPhrases splits a free text query on commas.
func SplitPhrases(query string) []RawPhrase {
	var phrases []RawPhrase

	for _, p := range strings.Split(query, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}

		phrases = append(phrases, RawPhrase{Type: search.PhraseAny, Text: p})
	}

	return phrases
}

// Analysis is the outcome of analysing a query.
type Analysis struct {
	Query search.Query
	// ids of the full words matching whole phrases
	FullNameTerms []int64
}

// Options are the frequency thresholds and size limits of the analyzer.
// Zero values take the defaults.
type Options struct {
	// number of places above which a partial term is only used as a stop
	// word
	MaxWordFrequency int
	// number of places below which a full word is selective enough to be
	// searched without the address index
	RareWordFrequency int
	// word sets computed per phrase, see WordSets
	MaxWordSets int
	// terms of a phrase past this one are ignored
	MaxPhraseTerms int
}

// Analyzer builds token candidates from the word dictionary.
type Analyzer struct {
	lookup WordLookup
	opts   Options
}

// NewAnalyzer returns an analyzer looking words up in lookup.
func NewAnalyzer(lookup WordLookup, opts Options) *Analyzer {
	if opts.MaxWordFrequency <= 0 {
		opts.MaxWordFrequency = DefaultMaxWordFrequency
	}

	if opts.RareWordFrequency <= 0 {
		opts.RareWordFrequency = DefaultRareWordFrequency
	}

	if opts.MaxWordSets <= 0 {
		opts.MaxWordSets = DefaultMaxWordSets
	}

	if opts.MaxPhraseTerms <= 0 {
		opts.MaxPhraseTerms = DefaultMaxPhraseTerms
	}

	return &Analyzer{lookup: lookup, opts: opts}
}

// Analyze normalizes the phrases, computes their word sets and looks up the
// tokens of every term. Phrases without terms are dropped.
func (a *Analyzer) Analyze(ctx context.Context, phrases []RawPhrase) (*Analysis, error) {
	var (
		query  search.Query
		wholes []string
		seen   = map[string]bool{}
		keys   []string
	)

	for _, raw := range phrases {
		terms := Terms(raw.Text)
		if len(terms) == 0 {
			continue
		}

		if len(terms) > a.opts.MaxPhraseTerms {
			terms = terms[:a.opts.MaxPhraseTerms]
		}

		sets := WordSets(terms, a.opts.MaxWordSets)
		query.Phrases = append(query.Phrases, search.Phrase{Type: raw.Type, WordSets: sets})
		wholes = append(wholes, strings.Join(terms, " "))

		for _, set := range sets {
			for _, term := range set {
				if seen[term] {
					continue
				}

				seen[term] = true
				keys = append(keys, " "+term, term)
			}
		}
	}

	if len(keys) == 0 {
		return &Analysis{Query: query}, nil
	}

	words, err := a.lookup.LookupWords(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("looking up %d word tokens: %w", len(keys), err)
	}

	query.Tokens = map[string][]search.Token{}
	full := map[string][]int64{}

	for _, w := range words {
		term := strings.TrimPrefix(w.Token, " ")
		if !seen[term] {
			continue
		}

		if t, ok := a.tokenOf(w, term); ok {
			query.Tokens[term] = append(query.Tokens[term], t)
		}

		if isFullWord(w) {
			full[term] = append(full[term], w.ID)
		}
	}

	for term := range seen {
		if looksLikeHouseNumber(term) && !hasHouseNumber(query.Tokens[term]) {
			query.Tokens[term] = append(query.Tokens[term], search.HouseNumberToken{Number: term})
		}

		slices.SortStableFunc(query.Tokens[term], compareTokens)
	}

	var fullNameTerms []int64
	for _, whole := range wholes {
		fullNameTerms = append(fullNameTerms, full[whole]...)
	}

	return &Analysis{Query: query, FullNameTerms: fullNameTerms}, nil
}

func isFullWord(w Word) bool {
	return strings.HasPrefix(w.Token, " ") && w.Class == "" && w.CountryCode == ""
}

// tokenOf classifies a dictionary entry.
func (a *Analyzer) tokenOf(w Word, term string) (search.Token, bool) {
	switch {
	case w.CountryCode != "":
		return search.CountryToken{ID: w.ID, CountryCode: w.CountryCode}, true
	case w.Class == "place" && w.Type == "house":
		return search.HouseNumberToken{ID: w.ID, Number: term}, true
	case w.Class == "place" && w.Type == "postcode":
		postcode := w.Word
		if postcode == "" {
			postcode = term
		}

		return search.PostcodeToken{ID: w.ID, Postcode: postcode}, true
	case w.Class != "":
		return search.SpecialTermToken{
			ID:       w.ID,
			Class:    w.Class,
			Type:     w.Type,
			Operator: search.ParseOperator(w.Operator),
		}, true
	case strings.HasPrefix(w.Token, " "):
		return search.WordToken{
			ID:        w.ID,
			TermCount: len(strings.Fields(term)),
			Rare:      w.SearchNameCount < a.opts.RareWordFrequency,
		}, true
	case !strings.Contains(term, " "):
		return search.PartialToken{
			ID:       w.ID,
			IsNumber: isDigits(term),
			Frequent: w.SearchNameCount > a.opts.MaxWordFrequency,
		}, true
	}

	return nil, false
}

// compareTokens orders the candidates of a term by kind then id, so the
// interpretations come out the same for the same dictionary.
func compareTokens(x, y search.Token) int {
	if c := kindOrder(x) - kindOrder(y); c != 0 {
		return c
	}

	switch {
	case x.WordID() < y.WordID():
		return -1
	case x.WordID() > y.WordID():
		return 1
	}

	return strings.Compare(x.String(), y.String())
}

func kindOrder(t search.Token) int {
	switch t.(type) {
	case search.WordToken:
		return 0
	case search.PartialToken:
		return 1
	case search.HouseNumberToken:
		return 2
	case search.PostcodeToken:
		return 3
	case search.CountryToken:
		return 4
	default:
		return 5
	}
}

func hasHouseNumber(tokens []search.Token) bool {
	return slices.ContainsFunc(tokens, func(t search.Token) bool {
		_, ok := t.(search.HouseNumberToken)

		return ok
	})
}

func looksLikeHouseNumber(term string) bool {
	return !strings.Contains(term, " ") &&
		len(term) <= maxHouseNumberLength &&
		strings.ContainsFunc(term, unicode.IsDigit)
}

func isDigits(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
}

// WordSets returns the ways of splitting terms into runs of consecutive
// terms, runs being at most maxGroupSize terms long. Sets with a shorter
// first run come first, and generation stops after limit sets.
func WordSets(terms []string, limit int) [][]string {
	var (
		sets [][]string
		set  []string
		walk func(rest []string)
	)

	walk = func(rest []string) {
		if len(rest) == 0 {
			sets = append(sets, slices.Clone(set))

			return
		}

		for n := 1; n <= len(rest) && n <= maxGroupSize && len(sets) < limit; n++ {
			set = append(set, strings.Join(rest[:n], " "))
			walk(rest[n:])
			set = set[:len(set)-1]
		}
	}

	if limit > 0 {
		walk(terms)
	}

	return sets
}
