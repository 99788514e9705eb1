// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"fmt"
	"unicode"
)

// Token is a candidate role for a term of the query, produced by the
// tokenizer. The set of implementations is closed.
type Token interface {
	// WordID is the dictionary id of the token, 0 when it has none.
	WordID() int64
	fmt.Stringer
	token()
}

// WordToken is a full word found in the dictionary.
type WordToken struct {
	ID int64
	// number of partial terms the word consists of
	TermCount int
	// selective enough to search by name alone
	Rare bool
}

// PartialToken is a single term that may be part of a longer name.
type PartialToken struct {
	ID       int64
	IsNumber bool
	// too frequent to be searched by, kept as a stop word
	Frequent bool
}

// HouseNumberToken is a term that may be a house number.
type HouseNumberToken struct {
	ID     int64
	Number string
}

// PostcodeToken is a term that may be a postcode.
type PostcodeToken struct {
	ID       int64
	Postcode string
}

// CountryToken is a term naming a country.
type CountryToken struct {
	ID          int64
	CountryCode string
}

// SpecialTermToken is a term naming a class/type of place, like "pub".
type SpecialTermToken struct {
	ID       int64
	Class    string
	Type     string
	Operator Operator
}

func (t WordToken) WordID() int64        { return t.ID }
func (t PartialToken) WordID() int64     { return t.ID }
func (t HouseNumberToken) WordID() int64 { return t.ID }
func (t PostcodeToken) WordID() int64    { return t.ID }
func (t CountryToken) WordID() int64     { return t.ID }
func (t SpecialTermToken) WordID() int64 { return t.ID }

func (WordToken) token()        {}
func (PartialToken) token()     {}
func (HouseNumberToken) token() {}
func (PostcodeToken) token()    {}
func (CountryToken) token()     {}
func (SpecialTermToken) token() {}

func (t WordToken) String() string {
	return fmt.Sprintf("W%d(terms=%d,rare=%t)", t.ID, t.TermCount, t.Rare)
}

func (t PartialToken) String() string {
	return fmt.Sprintf("w%d(number=%t,frequent=%t)", t.ID, t.IsNumber, t.Frequent)
}

func (t HouseNumberToken) String() string { return fmt.Sprintf("H%d(%s)", t.ID, t.Number) }
func (t PostcodeToken) String() string    { return fmt.Sprintf("P%d(%s)", t.ID, t.Postcode) }
func (t CountryToken) String() string     { return fmt.Sprintf("C%d(%s)", t.ID, t.CountryCode) }

func (t SpecialTermToken) String() string {
	return fmt.Sprintf("S%d(%s=%s,%s)", t.ID, t.Class, t.Type, t.Operator)
}

// IsExtendable reports whether tok can be added to d at position pos.
func IsExtendable(tok Token, d Description, pos Position) bool {
	switch t := tok.(type) {
	case WordToken:
		return !pos.IsPhrase(PhraseCountry) && !pos.IsPhrase(PhrasePostalcode)
	case PartialToken:
		return !pos.IsPhrase(PhraseCountry) && !pos.IsPhrase(PhrasePostalcode)
	case HouseNumberToken:
		return !d.HasHouseNumber() && !d.IsOperator(OperatorPostcode) && pos.MaybePhrase(PhraseStreet)
	case PostcodeToken:
		return !d.HasPostcode() && pos.MaybePhrase(PhrasePostalcode)
	case CountryToken:
		return !d.HasCountry() && pos.MaybePhrase(PhraseCountry) &&
			d.Constraints().IsCountryApplicable(t.CountryCode)
	case SpecialTermToken:
		return !d.HasOperator() && pos.IsPhrase(PhraseAny)
	default:
		return false
	}
}

// Extend derives the interpretations that result from adding tok to d at
// position pos. d itself is left unchanged and every derived description
// costs at least as much as d.
func Extend(tok Token, d Description, pos Position) []Description {
	switch t := tok.(type) {
	case WordToken:
		return extendWord(t, d, pos)
	case PartialToken:
		return extendPartial(t, d, pos)
	case HouseNumberToken:
		return extendHouseNumber(t, d, pos)
	case PostcodeToken:
		return extendPostcode(t, d, pos)
	case CountryToken:
		return extendCountry(t, d, pos)
	case SpecialTermToken:
		return extendSpecialTerm(t, d, pos)
	default:
		return nil
	}
}

// A full word is a name only at the start of a phrase; once there is a
// name, or in later free text phrases, it qualifies the address.
func extendWord(t WordToken, d Description, pos Position) []Description {
	if d.HasName(false) || (pos.IsPhrase(PhraseAny) && !pos.IsFirstPhrase()) {
		if t.TermCount > 1 && (pos.IsPhrase(PhraseAny) || !pos.IsFirstPhrase()) {
			return []Description{d.WithAddedCost(1).AddAddressToken(t.ID, true)}
		}

		return nil
	}

	if !d.HasName(true) {
		return []Description{d.WithAddedCost(1).AddNameToken(t.ID, t.Rare)}
	}

	return nil
}

func extendPartial(t PartialToken, d Description, pos Position) []Description {
	var out []Description

	if (pos.IsPhrase(PhraseAny) || !pos.IsFirstPhrase()) && d.HasName(false) {
		cost := 1
		if t.IsNumber {
			cost++
		}

		if t.Frequent {
			cost++
		}

		out = append(out, d.WithAddedCost(cost).AddAddressToken(t.ID, !t.Frequent))
	}

	if !d.HasPostcode() && !d.HasAddress() &&
		(!d.HasName(true) || d.NamePhrase() == pos.Phrase()) {
		cost := 1
		if !d.HasName(true) {
			cost++
		}

		if t.IsNumber {
			cost++
		}

		out = append(out, d.WithAddedCost(cost).AddPartialNameToken(t.ID, !t.Frequent, pos.Phrase()))
	}

	return out
}

func extendHouseNumber(t HouseNumberToken, d Description, pos Position) []Description {
	cost := 1
	if !mostlyDigits(t.Number) {
		cost++
	}

	if !pos.IsFirstToken() {
		cost++
	}

	if d.HasAddress() || d.HasPostcode() {
		cost++
	}

	out := []Description{d.WithAddedCost(cost).SetHouseNumber(t.Number)}

	// places may carry the house number as their own name
	if t.ID != 0 && (d.NamePhrase() >= 0 || !d.HasName(false)) && !d.HasAddress() {
		out = append(out, d.WithAddedCost(cost).SetHouseNumberAsName(t.ID))
	}

	return out
}

// mostlyDigits accepts numbers with at most two non digit characters.
func mostlyDigits(s string) bool {
	digits, others := 0, 0

	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		} else {
			others++
		}
	}

	return digits > 0 && others <= 2
}

func extendPostcode(t PostcodeToken, d Description, pos Position) []Description {
	var out []Description

	if pos.IsFirstToken() {
		out = append(out, d.WithAddedCost(0).SetPostcodeAsName(t.ID, t.Postcode))
	}

	if !d.IsOperator(OperatorPostcode) && (pos.IsPhrase(PhrasePostalcode) || d.HasName(false)) {
		cost := 1
		if n := len(t.Postcode); n < 4 {
			cost += 4 - n
		}

		out = append(out, d.WithAddedCost(cost).SetPostcode(t.Postcode))
	}

	return out
}

func extendCountry(t CountryToken, d Description, pos Position) []Description {
	cost := 6
	if pos.IsLastToken() {
		cost = 1
	}

	return []Description{d.WithAddedCost(cost).SetCountry(t.CountryCode)}
}

func extendSpecialTerm(t SpecialTermToken, d Description, pos Position) []Description {
	cost := 2

	op := t.Operator
	if op == OperatorNone {
		if d.HasName(false) || d.Constraints().IsBounded() {
			op = OperatorName
		} else {
			op = OperatorNear
		}

		cost += 2
	} else if !pos.IsFirstToken() && !pos.IsLastToken() {
		cost += 2
	}

	if d.HasHouseNumber() {
		cost++
	}

	return []Description{d.WithAddedCost(cost).SetPoiSearch(op, t.Class, t.Type)}
}
