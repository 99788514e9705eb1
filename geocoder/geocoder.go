// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoder runs a search request through analysis, planning and
// lookup.
package geocoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcodagnone/geosearch/search"
	"github.com/jcodagnone/geosearch/spatial"
	"github.com/jcodagnone/geosearch/tokenizer"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// ErrInvalidRequest is wrapped by the errors of malformed requests.
var ErrInvalidRequest = errors.New("invalid request")

// Request is a free text or structured search. Query takes precedence over
// the structured fields.
type Request struct {
	Query string `json:"q,omitempty"`

	Amenity    string `json:"amenity,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	County     string `json:"county,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalcode,omitempty"`

	Viewbox    *spatial.Viewbox `json:"viewbox,omitempty"`
	Bounded    bool             `json:"bounded,omitempty"`
	Near       *spatial.Point   `json:"near,omitempty"`
	NearRadius float64          `json:"near_radius,omitempty"`
	Countries  []string         `json:"countrycodes,omitempty"`
	Exclude    []int64          `json:"exclude_place_ids,omitempty"`

	// address rank window, 0/0 for every rank
	MinRank int `json:"min_rank,omitempty"`
	MaxRank int `json:"max_rank,omitempty"`
	Limit   int `json:"limit,omitempty"`

	// report the interpretations in the response
	Debug bool `json:"debug,omitempty"`
}

// Response holds the results of a request, best first.
type Response struct {
	Results         []search.Result            `json:"results"`
	Interpretations [][]search.DescriptionInfo `json:"interpretations,omitempty"`
}

// Infos returns the debug view of groups of interpretations.
func Infos(groups [][]search.Description) [][]search.DescriptionInfo {
	infos := make([][]search.DescriptionInfo, len(groups))
	for i, group := range groups {
		infos[i] = make([]search.DescriptionInfo, len(group))
		for j, d := range group {
			infos[i][j] = d.Info()
		}
	}

	return infos
}

// phrases returns the phrases of the request, in the order structured
// fields are read.
func (r Request) phrases(text string) []tokenizer.RawPhrase {
	if r.Query != "" {
		return tokenizer.SplitPhrases(text)
	}

	fields := []tokenizer.RawPhrase{
		{Type: search.PhraseAmenity, Text: r.Amenity},
		{Type: search.PhraseStreet, Text: r.Street},
		{Type: search.PhraseCity, Text: r.City},
		{Type: search.PhraseCounty, Text: r.County},
		{Type: search.PhraseState, Text: r.State},
		{Type: search.PhraseCountry, Text: r.Country},
		{Type: search.PhrasePostalcode, Text: r.PostalCode},
	}

	var phrases []tokenizer.RawPhrase

	for _, f := range fields {
		if f.Text != "" {
			phrases = append(phrases, f)
		}
	}

	return phrases
}

func (r Request) window() (search.RankWindow, error) {
	if r.MinRank == 0 && r.MaxRank == 0 {
		return search.DefaultRankWindow, nil
	}

	w := search.RankWindow{Min: r.MinRank, Max: r.MaxRank}
	if w.Min < 0 || w.Max > search.DefaultRankWindow.Max || w.Min > w.Max {
		return w, fmt.Errorf("%w: rank window [%d, %d]", ErrInvalidRequest, w.Min, w.Max)
	}

	return w, nil
}

func (r Request) limit() (int, error) {
	switch {
	case r.Limit == 0:
		return DefaultLimit, nil
	case r.Limit < 0:
		return 0, fmt.Errorf("%w: limit %d", ErrInvalidRequest, r.Limit)
	case r.Limit > MaxLimit:
		return MaxLimit, nil
	}

	return r.Limit, nil
}

func (r Request) constraints(fullNameTerms []int64) (*search.Constraints, error) {
	opts := []search.ConstraintOption{
		search.WithCountries(r.Countries...),
		search.WithExcludedPlaces(r.Exclude...),
		search.WithFullNameTerms(fullNameTerms...),
	}

	if r.Viewbox != nil {
		opts = append(opts, search.WithViewbox(*r.Viewbox, r.Bounded))
	}

	if r.Near != nil {
		if err := r.Near.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}

		if r.NearRadius < 0 {
			return nil, fmt.Errorf("%w: radius %f", ErrInvalidRequest, r.NearRadius)
		}

		opts = append(opts, search.WithNearPoint(*r.Near, r.NearRadius))
	}

	return search.NewConstraints(opts...), nil
}

// Geocoder answers search requests.
type Geocoder struct {
	analyzer *tokenizer.Analyzer
	planner  *search.Planner
	engine   *search.Engine
}

// New returns a geocoder.
func New(analyzer *tokenizer.Analyzer, planner *search.Planner, engine *search.Engine) *Geocoder {
	return &Geocoder{analyzer: analyzer, planner: planner, engine: engine}
}

// Interpretations returns the groups of interpretations of the request, in
// the order they would be looked up.
func (g *Geocoder) Interpretations(ctx context.Context, req Request) ([][]search.Description, error) {
	if req.Query == "" && len(req.phrases("")) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidRequest)
	}

	// the key/value pairs are not words, take them out before analysis
	_, text := search.NewDescription(nil).WithKeyValuePairs(req.Query)

	analysis, err := g.analyzer.Analyze(ctx, req.phrases(text))
	if err != nil {
		return nil, err
	}

	c, err := req.constraints(analysis.FullNameTerms)
	if err != nil {
		return nil, err
	}

	base, _ := search.NewDescription(c).WithKeyValuePairs(req.Query)

	return g.planner.Plan(base, analysis.Query), nil
}

// Search looks the request up.
func (g *Geocoder) Search(ctx context.Context, req Request) (*Response, error) {
	window, err := req.window()
	if err != nil {
		return nil, err
	}

	limit, err := req.limit()
	if err != nil {
		return nil, err
	}

	groups, err := g.Interpretations(ctx, req)
	if err != nil {
		return nil, err
	}

	results, err := g.engine.Lookup(ctx, groups, window, limit)
	if err != nil {
		return nil, err
	}

	if results == nil {
		results = []search.Result{}
	}

	resp := &Response{Results: results}
	if req.Debug {
		resp.Interpretations = Infos(groups)
	}

	return resp, nil
}
