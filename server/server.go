// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the geocoder over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/geosearch/geocoder"
	"github.com/jcodagnone/geosearch/spatial"
	"github.com/jcodagnone/geosearch/store"
)

// StatsSource reports the size of the search tables.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

type Server struct {
	geocoder *geocoder.Geocoder
	stats    StatsSource
	version  string
}

func NewServer(g *geocoder.Geocoder, stats StatsSource, version string) *Server {
	return &Server{geocoder: g, stats: stats, version: version}
}

// Router returns the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/search", s.search)
	r.GET("/search/interpretations", s.interpretations)
	r.GET("/status", s.status)

	return r
}

func (s *Server) Run(addr string) error {
	log.Printf("Listening on %s", addr)

	return s.Router().Run(addr)
}

func (s *Server) search(ctx *gin.Context) {
	req, err := parseRequest(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	resp, err := s.geocoder.Search(ctx.Request.Context(), req)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) interpretations(ctx *gin.Context) {
	req, err := parseRequest(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	groups, err := s.geocoder.Interpretations(ctx.Request.Context(), req)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, geocoder.Infos(groups))
}

func (s *Server) status(ctx *gin.Context) {
	stats, err := s.stats.Stats(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"version": s.version,
		"tables":  stats,
	})
}

func statusOf(err error) int {
	if errors.Is(err, geocoder.ErrInvalidRequest) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// parseRequest reads the Nominatim style query parameters.
func parseRequest(ctx *gin.Context) (geocoder.Request, error) {
	req := geocoder.Request{
		Query:      strings.TrimSpace(ctx.Query("q")),
		Amenity:    ctx.Query("amenity"),
		Street:     ctx.Query("street"),
		City:       ctx.Query("city"),
		County:     ctx.Query("county"),
		State:      ctx.Query("state"),
		Country:    ctx.Query("country"),
		PostalCode: ctx.Query("postalcode"),
		Bounded:    isTrue(ctx.Query("bounded")),
		Debug:      isTrue(ctx.Query("debug")),
	}

	if v := ctx.Query("viewbox"); v != "" {
		box, err := spatial.ParseViewbox(v)
		if err != nil {
			return req, err
		}

		req.Viewbox = &box
	}

	lat, lon := ctx.Query("lat"), ctx.Query("lon")
	if lat != "" || lon != "" {
		var p spatial.Point
		if _, err := fmt.Sscanf(lat, "%g", &p.Lat); err != nil {
			return req, fmt.Errorf("invalid lat %q", lat)
		}

		if _, err := fmt.Sscanf(lon, "%g", &p.Lng); err != nil {
			return req, fmt.Errorf("invalid lon %q", lon)
		}

		req.Near = &p
	}

	if r := ctx.Query("radius"); r != "" {
		if _, err := fmt.Sscanf(r, "%g", &req.NearRadius); err != nil {
			return req, fmt.Errorf("invalid radius %q", r)
		}
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &req.Limit},
		{"minrank", &req.MinRank},
		{"maxrank", &req.MaxRank},
	} {
		if v := ctx.Query(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid %s %q", p.name, v)
			}

			*p.dst = n
		}
	}

	for _, code := range splitList(ctx.Query("countrycodes")) {
		if len(code) != 2 {
			return req, fmt.Errorf("invalid country code %q", code)
		}

		req.Countries = append(req.Countries, strings.ToLower(code))
	}

	for _, v := range splitList(ctx.Query("exclude_place_ids")) {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid place id %q", v)
		}

		req.Exclude = append(req.Exclude, id)
	}

	return req, nil
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}

	return false
}
