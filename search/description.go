// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Description is one interpretation of a query: which tokens make up the
// name, which qualify the address and which fill the structural slots.
//
// Descriptions are values. Every mutator returns a modified copy and leaves
// the receiver untouched. The token id slices are sorted and never written
// after creation, so copies share them.
type Description struct {
	rank int

	countryCode string

	nameTokens []int64
	rareName   bool

	addressTokens []int64

	nameStopwords    []int64
	addressStopwords []int64

	operator Operator
	class    string
	typ      string

	houseNumber string
	postcode    string

	// postcode looked up by a postcode-as-name search
	postcodeName string

	// phrase that last contributed a partial name, -1 when unset
	namePhrase int

	constraints *Constraints
}

// NewDescription returns the empty interpretation all others derive from.
func NewDescription(c *Constraints) Description {
	return Description{namePhrase: -1, constraints: c}
}

var keyValueRe = regexp.MustCompile(`\[([\w_]*)=([\w_]*)\]`)

// WithKeyValuePairs removes every "[key=value]" term from query and turns
// the first one into a class/type search, unless the description already
// has an operator.
func (d Description) WithKeyValuePairs(query string) (Description, string) {
	for _, m := range keyValueRe.FindAllStringSubmatch(query, -1) {
		query = strings.ReplaceAll(query, m[0], " ")
		if !d.HasOperator() {
			d = d.SetPoiSearch(OperatorType, m[1], m[2])
		}
	}

	return d, query
}

func (d Description) Rank() int                 { return d.rank }
func (d Description) CountryCode() string       { return d.countryCode }
func (d Description) NameTokens() []int64       { return slices.Clone(d.nameTokens) }
func (d Description) AddressTokens() []int64    { return slices.Clone(d.addressTokens) }
func (d Description) NameStopwords() []int64    { return slices.Clone(d.nameStopwords) }
func (d Description) AddressStopwords() []int64 { return slices.Clone(d.addressStopwords) }
func (d Description) IsRareName() bool          { return d.rareName }
func (d Description) Operator() Operator        { return d.operator }
func (d Description) Class() string             { return d.class }
func (d Description) Type() string              { return d.typ }
func (d Description) HouseNumber() string       { return d.houseNumber }
func (d Description) Postcode() string          { return d.postcode }
func (d Description) PostcodeName() string      { return d.postcodeName }
func (d Description) NamePhrase() int           { return d.namePhrase }
func (d Description) Constraints() *Constraints { return d.constraints }

// IsValid reports whether the interpretation is worth executing. Without a
// name there must be no house number and either a class or a country.
func (d Description) IsValid() bool {
	if len(d.nameTokens) > 0 {
		return true
	}

	if d.HasHouseNumber() {
		return false
	}

	return d.class != "" || d.countryCode != ""
}

// HasName reports whether there are name tokens, counting stop words when
// includeStopwords is set.
func (d Description) HasName(includeStopwords bool) bool {
	return len(d.nameTokens) > 0 || (includeStopwords && len(d.nameStopwords) > 0)
}

// HasAddress reports whether there are address tokens, stop words included.
func (d Description) HasAddress() bool {
	return len(d.addressTokens) > 0 || len(d.addressStopwords) > 0
}

func (d Description) HasCountry() bool {
	return d.countryCode != ""
}

func (d Description) HasPostcode() bool {
	return d.postcode != ""
}

// HasHouseNumber reports whether a house number is set. "0" counts.
func (d Description) HasHouseNumber() bool {
	return d.houseNumber != ""
}

// HasOperator reports whether this is a special search of any kind.
func (d Description) HasOperator() bool {
	return d.operator != OperatorNone
}

// IsOperator reports whether this is a special search of kind op.
func (d Description) IsOperator(op Operator) bool {
	return d.operator == op
}

// WithAddedCost returns a copy with the rank increased by delta. Negative
// deltas are ignored.
func (d Description) WithAddedCost(delta int) Description {
	if delta > 0 {
		d.rank += delta
	}

	return d
}

func (d Description) AddNameToken(id int64, rare bool) Description {
	d.nameTokens = addID(d.nameTokens, id)
	d.rareName = rare

	return d
}

// AddPartialNameToken adds a partial word to the name and remembers the
// phrase it came from. Non searchable tokens go to the stop words.
func (d Description) AddPartialNameToken(id int64, searchable bool, phrase int) Description {
	if searchable {
		d.nameTokens = addID(d.nameTokens, id)
	} else {
		d.nameStopwords = addID(d.nameStopwords, id)
	}

	d.namePhrase = phrase

	return d
}

func (d Description) AddAddressToken(id int64, searchable bool) Description {
	if searchable {
		d.addressTokens = addID(d.addressTokens, id)
	} else {
		d.addressStopwords = addID(d.addressStopwords, id)
	}

	return d
}

func (d Description) SetCountry(code string) Description {
	d.countryCode = strings.ToLower(code)
	d.namePhrase = -1

	return d
}

func (d Description) SetPostcode(code string) Description {
	d.postcode = code
	d.namePhrase = -1

	return d
}

func (d Description) SetHouseNumber(number string) Description {
	d.houseNumber = number
	d.namePhrase = -1

	return d
}

func (d Description) SetPoiSearch(op Operator, class, typ string) Description {
	d.operator = op
	d.class = class
	d.typ = typ
	d.namePhrase = -1

	return d
}

// SetPostcodeAsName turns the interpretation into a lookup of the postcode
// itself. The name collected so far becomes address.
func (d Description) SetPostcodeAsName(id int64, postcode string) Description {
	d = d.nameToAddress()
	d.operator = OperatorPostcode
	d.nameTokens = []int64{id}
	d.postcodeName = postcode
	d.rareName = true

	return d
}

// SetHouseNumberAsName turns the interpretation into a search for a place
// named by a house number. The name collected so far becomes address.
func (d Description) SetHouseNumberAsName(id int64) Description {
	d = d.nameToAddress()
	d.nameTokens = []int64{id}
	d.rareName = false

	return d
}

func (d Description) nameToAddress() Description {
	d.addressTokens = mergeIDs(d.addressTokens, d.nameTokens)
	d.addressStopwords = mergeIDs(d.addressStopwords, d.nameStopwords)
	d.nameTokens = nil
	d.nameStopwords = nil
	d.namePhrase = -1

	return d
}

// Compare orders interpretations by rank. Equal ranks prefer the lower
// operator value plus house number length.
func Compare(a, b Description) int {
	if c := cmp.Compare(a.rank, b.rank); c != 0 {
		return c
	}

	return cmp.Compare(
		int(a.operator)+len(a.houseNumber),
		int(b.operator)+len(b.houseNumber),
	)
}

// key identifies the structure of an interpretation, constraints excluded.
func (d Description) key() string {
	return fmt.Sprintf("%d|%s|%v|%t|%v|%v|%v|%d|%s|%s|%s|%s|%s|%d",
		d.rank, d.countryCode, d.nameTokens, d.rareName, d.addressTokens,
		d.nameStopwords, d.addressStopwords, d.operator, d.class, d.typ,
		d.houseNumber, d.postcode, d.postcodeName, d.namePhrase)
}

// DescriptionInfo is the debug view of a Description.
type DescriptionInfo struct {
	Rank             int      `json:"rank"`
	CountryCode      string   `json:"country_code,omitempty"`
	NameTokens       []int64  `json:"name_tokens,omitempty"`
	NameStopwords    []int64  `json:"name_stopwords,omitempty"`
	RareName         bool     `json:"rare_name,omitempty"`
	AddressTokens    []int64  `json:"address_tokens,omitempty"`
	AddressStopwords []int64  `json:"address_stopwords,omitempty"`
	FullNameTerms    []int64  `json:"full_name_terms,omitempty"`
	Operator         Operator `json:"operator"`
	Class            string   `json:"class,omitempty"`
	Type             string   `json:"type,omitempty"`
	HouseNumber      string   `json:"house_number,omitempty"`
	Postcode         string   `json:"postcode,omitempty"`
	PostcodeName     string   `json:"postcode_name,omitempty"`
}

func (d Description) Info() DescriptionInfo {
	return DescriptionInfo{
		Rank:             d.rank,
		CountryCode:      d.countryCode,
		NameTokens:       d.NameTokens(),
		NameStopwords:    d.NameStopwords(),
		RareName:         d.rareName,
		AddressTokens:    d.AddressTokens(),
		AddressStopwords: d.AddressStopwords(),
		FullNameTerms:    d.constraints.FullNameTerms(),
		Operator:         d.operator,
		Class:            d.class,
		Type:             d.typ,
		HouseNumber:      d.houseNumber,
		Postcode:         d.postcode,
		PostcodeName:     d.postcodeName,
	}
}

func (d Description) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "rank=%d name=%v", d.rank, d.nameTokens)

	if len(d.nameStopwords) > 0 {
		fmt.Fprintf(&sb, " name_stop=%v", d.nameStopwords)
	}

	if d.HasAddress() {
		fmt.Fprintf(&sb, " address=%v address_stop=%v", d.addressTokens, d.addressStopwords)
	}

	if d.countryCode != "" {
		fmt.Fprintf(&sb, " country=%s", d.countryCode)
	}

	if d.HasOperator() {
		fmt.Fprintf(&sb, " %s=%s/%s", d.operator, d.class, d.typ)
	}

	if d.houseNumber != "" {
		fmt.Fprintf(&sb, " housenumber=%s", d.houseNumber)
	}

	if d.postcode != "" {
		fmt.Fprintf(&sb, " postcode=%s", d.postcode)
	}

	if d.postcodeName != "" {
		fmt.Fprintf(&sb, " postcode_name=%s", d.postcodeName)
	}

	return sb.String()
}

func addID(set []int64, id int64) []int64 {
	i, found := slices.BinarySearch(set, id)
	if found {
		return set
	}

	out := make([]int64, 0, len(set)+1)
	out = append(out, set[:i]...)
	out = append(out, id)

	return append(out, set[i:]...)
}

func mergeIDs(a, b []int64) []int64 {
	if len(b) == 0 {
		return a
	}

	if len(a) == 0 {
		return b
	}

	return sortedIDs(append(slices.Clone(a), b...))
}

func sortedIDs(ids []int64) []int64 {
	slices.Sort(ids)

	return slices.Compact(ids)
}
