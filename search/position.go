// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

// PhraseType labels a phrase of a structured query. Free text phrases
// carry PhraseAny.
type PhraseType string

const (
	PhraseAny        PhraseType = ""
	PhraseAmenity    PhraseType = "amenity"
	PhraseStreet     PhraseType = "street"
	PhraseCity       PhraseType = "city"
	PhraseCounty     PhraseType = "county"
	PhraseState      PhraseType = "state"
	PhrasePostalcode PhraseType = "postalcode"
	PhraseCountry    PhraseType = "country"
)

// Position locates a token inside the query: which phrase it belongs to
// and where it sits in the word set being processed.
type Position struct {
	Type        PhraseType
	PhraseIndex int
	PhraseCount int
	TokenIndex  int
	TokenCount  int
}

// IsPhrase reports whether the token is in a phrase of exactly this type.
func (p Position) IsPhrase(t PhraseType) bool {
	return p.Type == t
}

// MaybePhrase reports whether the token may belong to a phrase of type t,
// that is the phrase is unlabelled or labelled t.
func (p Position) MaybePhrase(t PhraseType) bool {
	return p.Type == PhraseAny || p.Type == t
}

func (p Position) IsFirstPhrase() bool {
	return p.PhraseIndex == 0
}

// IsFirstToken reports whether this is the very first token of the query.
func (p Position) IsFirstToken() bool {
	return p.PhraseIndex == 0 && p.TokenIndex == 0
}

// IsLastToken reports whether this is the very last token of the query.
func (p Position) IsLastToken() bool {
	return p.PhraseIndex+1 == p.PhraseCount && p.TokenIndex+1 == p.TokenCount
}

func (p Position) Phrase() int {
	return p.PhraseIndex
}
