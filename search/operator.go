// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"fmt"
	"strings"
)

// Operator classifies the kind of special (POI or postcode) search.
//
// The numeric values take part in the ordering of interpretations, lower
// values sort first on equal rank.
type Operator int

const (
	// OperatorNone is a plain search.
	OperatorNone Operator = 0
	// OperatorNear looks for places of a class/type close to the named place.
	OperatorNear Operator = 1
	// OperatorName looks for a named place with the given class/type.
	OperatorName Operator = 3
	// OperatorType looks for places of a class/type, named or nearby.
	OperatorType Operator = 4
	// OperatorPostcode looks up a postcode area.
	OperatorPostcode Operator = 5
)

var operatorNames = map[Operator]string{
	OperatorNone:     "none",
	OperatorNear:     "near",
	OperatorName:     "name",
	OperatorType:     "type",
	OperatorPostcode: "postcode",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}

	return fmt.Sprintf("operator(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(text []byte) error {
	*o = ParseOperator(string(text))

	return nil
}

// ParseOperator maps the operator names stored in the word table. "in" is
// an alias of name. Unknown values map to OperatorNone.
func ParseOperator(s string) Operator {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "near":
		return OperatorNear
	case "in", "name":
		return OperatorName
	case "type":
		return OperatorType
	case "postcode":
		return OperatorPostcode
	default:
		return OperatorNone
	}
}
