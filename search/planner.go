// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "slices"

const (
	// DefaultMaxSearchRank drops interpretations whose rank reaches it.
	DefaultMaxSearchRank = 20
	// DefaultBeamWidth is how many interpretations survive each step.
	DefaultBeamWidth = 50
)

// Phrase is a part of the query, split by the user with commas or given as
// a field of a structured query. WordSets lists the alternative ways to
// split the phrase into terms.
type Phrase struct {
	Type     PhraseType `json:"type"`
	WordSets [][]string `json:"word_sets"`
}

// Query is an analysed query: its phrases and the token candidates for
// every term appearing in them.
type Query struct {
	Phrases []Phrase
	Tokens  map[string][]Token
}

// Planner builds the interpretations of a query.
type Planner struct {
	maxRank   int
	beamWidth int
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithMaxSearchRank sets the rank at which interpretations are dropped.
func WithMaxSearchRank(rank int) PlannerOption {
	return func(p *Planner) {
		if rank > 0 {
			p.maxRank = rank
		}
	}
}

// WithBeamWidth sets how many interpretations survive each step.
func WithBeamWidth(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.beamWidth = n
		}
	}
}

func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{maxRank: DefaultMaxSearchRank, beamWidth: DefaultBeamWidth}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Plan extends base with the tokens of every term, phrase by phrase, and
// returns the valid interpretations grouped by rank, best group first.
// Within a group interpretations keep the Compare order.
func (p *Planner) Plan(base Description, q Query) [][]Description {
	searches := []Description{base}

	for i, phrase := range q.Phrases {
		var phraseSearches []Description

		for _, words := range phrase.WordSets {
			current := searches

			for j, term := range words {
				pos := Position{
					Type:        phrase.Type,
					PhraseIndex: i,
					PhraseCount: len(q.Phrases),
					TokenIndex:  j,
					TokenCount:  len(words),
				}

				current = p.extendAll(current, q.Tokens[term], pos)
			}

			phraseSearches = append(phraseSearches, current...)
		}

		slices.SortStableFunc(phraseSearches, Compare)
		phraseSearches = truncate(dedupe(phraseSearches), p.beamWidth)

		searches = p.bestGroups(phraseSearches)
	}

	var valid []Description

	for _, d := range searches {
		if d.IsValid() {
			valid = append(valid, d)
		}
	}

	return groupByRank(valid)
}

func (p *Planner) extendAll(searches []Description, tokens []Token, pos Position) []Description {
	var out []Description

	for _, d := range searches {
		for _, tok := range tokens {
			if !IsExtendable(tok, d, pos) {
				continue
			}

			for _, nd := range Extend(tok, d, pos) {
				if nd.rank < p.maxRank {
					out = append(out, nd)
				}
			}
		}
	}

	slices.SortStableFunc(out, Compare)

	return truncate(out, p.beamWidth)
}

// bestGroups keeps whole rank groups, best first, until more than the beam
// width interpretations have been taken.
func (p *Planner) bestGroups(searches []Description) []Description {
	var out []Description

	for _, group := range groupByRank(searches) {
		if group[0].rank >= p.maxRank {
			break
		}

		out = append(out, group...)
		if len(out) > p.beamWidth {
			break
		}
	}

	return out
}

func groupByRank(searches []Description) [][]Description {
	sorted := slices.Clone(searches)
	slices.SortStableFunc(sorted, Compare)

	var groups [][]Description

	for _, d := range sorted {
		if n := len(groups); n > 0 && groups[n-1][0].rank == d.rank {
			groups[n-1] = append(groups[n-1], d)

			continue
		}

		groups = append(groups, []Description{d})
	}

	return groups
}

func dedupe(searches []Description) []Description {
	seen := make(map[string]bool, len(searches))
	out := searches[:0:0]

	for _, d := range searches {
		k := d.key()
		if seen[k] {
			continue
		}

		seen[k] = true

		out = append(out, d)
	}

	return out
}

func truncate(searches []Description, n int) []Description {
	if len(searches) > n {
		return searches[:n]
	}

	return searches
}
