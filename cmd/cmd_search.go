// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jcodagnone/geosearch/geocoder"
	"github.com/jcodagnone/geosearch/spatial"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	viewbox   string
	bounded   bool
	near      string
	radius    float64
	countries []string
	exclude   []int64
	limit     int
	minRank   int
	maxRank   int
	debug     bool
}

var searchOpts = &searchOptions{}

// request builds the geocoder request for a free text query.
func (o *searchOptions) request(query string) (geocoder.Request, error) {
	req := geocoder.Request{
		Query:      query,
		Bounded:    o.bounded,
		NearRadius: o.radius,
		Countries:  o.countries,
		Exclude:    o.exclude,
		Limit:      o.limit,
		MinRank:    o.minRank,
		MaxRank:    o.maxRank,
		Debug:      o.debug,
	}

	if o.viewbox != "" {
		box, err := spatial.ParseViewbox(o.viewbox)
		if err != nil {
			return req, err
		}

		req.Viewbox = &box
	}

	if o.near != "" {
		var p spatial.Point
		if _, err := fmt.Sscanf(o.near, "%g,%g", &p.Lat, &p.Lng); err != nil {
			return req, fmt.Errorf("invalid near point %q, expected <lat>,<lon>", o.near)
		}

		req.Near = &p
	}

	return req, nil
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Looks up a free text query and prints the results as JSON",
	Example: `  geosearch search "avenida 18 de julio 1234, montevideo"
  geosearch search --near -34.9,-56.18 "[amenity=pub]"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := searchOpts.request(strings.Join(args, " "))
		if err != nil {
			return err
		}

		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		g, err := newGeocoder(repo)
		if err != nil {
			return err
		}

		resp, err := g.Search(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("searching %q: %w", req.Query, err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()
	flags.StringVar(&searchOpts.viewbox, "viewbox", "", "Preferred area as <lon1>,<lat1>,<lon2>,<lat2>")
	flags.BoolVar(&searchOpts.bounded, "bounded", false, "Restrict results to the viewbox")
	flags.StringVar(&searchOpts.near, "near", "", "Search around <lat>,<lon>")
	flags.Float64Var(&searchOpts.radius, "radius", 0, "Radius around --near, in degrees")
	flags.StringSliceVar(&searchOpts.countries, "countrycodes", nil, "Restrict results to these ISO country codes")
	flags.Int64SliceVar(&searchOpts.exclude, "exclude", nil, "Place ids to leave out")
	flags.IntVar(&searchOpts.limit, "limit", geocoder.DefaultLimit, "Maximum number of results")
	flags.IntVar(&searchOpts.minRank, "min-rank", 0, "Lowest address rank")
	flags.IntVar(&searchOpts.maxRank, "max-rank", 0, "Highest address rank")
	flags.BoolVar(&searchOpts.debug, "debug", false, "Include the interpretations in the output")
}
