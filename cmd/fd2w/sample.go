package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/excel"
	"github.com/couchcryptid/fd2w-etl/internal/forecast"
)

type sampleSite struct {
	code, name, street, city, country string
	lat, lon                          float64
	registered                        bool // coordinates present in the registry sheet
}

var sampleSites = []sampleSite{
	{"FR10", "Lyon DC", "12 Rue de la Republique", "Lyon", "France", 45.764, 4.8357, true},
	{"FR20", "Paris North", "5 Avenue de Flandre", "Paris", "France", 48.8566, 2.3522, false},
	{"DE10", "Hamburg Hub", "Grosse Elbstrasse 10", "Hamburg", "Germany", 53.5511, 9.9937, true},
	{"ES10", "Madrid Central", "Calle de Alcala 100", "Madrid", "Spain", 40.4168, -3.7038, false},
	{"IT10", "Milan Logistics", "Via Torino 20", "Milan", "Italy", 45.4642, 9.19, true},
	{"0101", "Brussels Depot", "Rue Neuve 1", "Brussels", "Belgium", 50.8503, 4.3517, false},
}

var sampleForecasts = []string{"Forecast at LDC", "Forecast at RDC", "Forecast at FW"}

var sampleMarkets = []string{"BE", "DE", "ES", "FR", "IT", "NL", "PL", "PT"}

func newSampleCmd() *cobra.Command {
	var (
		out     string
		markets int
		seed    uint64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic FD2W workbook for demos and local runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			if markets < 1 || markets > len(sampleMarkets) {
				return fmt.Errorf("--markets must be between 1 and %d", len(sampleMarkets))
			}
			fc, loc := sampleWorkbook(markets, seed)
			if err := excel.WriteFile(out, fc, loc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d markets, %d sites\n", out, markets, len(sampleSites))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output workbook path")
	cmd.Flags().IntVar(&markets, "markets", 4, "number of market rows")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for volumes")
	return cmd
}

// sampleWorkbook builds a forecast sheet shaped like the real export (eight
// preamble rows, merged forecast labels, a spacer row and a grand total) and
// a location registry where only some sites carry coordinates.
func sampleWorkbook(markets int, seed uint64) (excel.Sheet, excel.Sheet) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	fc := forecast.Grid{
		{"FD2W distribution export"},
		{"Version 12"},
		{},
		{"As of 2026-09-30"},
		{},
		{"Source: planning system"},
		{},
		{},
	}

	top := []any{nil}
	sub := []any{"Market"}
	for _, label := range sampleForecasts {
		for i, s := range sampleSites {
			if i == 0 {
				top = append(top, label)
			} else {
				top = append(top, nil)
			}
			sub = append(sub, s.code)
		}
	}
	top = append(top, "Comment")
	sub = append(sub, "")
	fc = append(fc, top, sub)

	width := len(sub) - 1
	totals := make([]float64, width-1)
	for m := range markets {
		row := []any{sampleMarkets[m]}
		for c := range width - 1 {
			var v any
			switch r := rng.IntN(10); {
			case r < 3:
				v = 0.0
			case r == 3:
				v = "-"
			default:
				vol := math.Round(rng.Float64()*500*100) / 100
				totals[c] += vol
				v = vol
			}
			row = append(row, v)
		}
		row = append(row, nil)
		fc = append(fc, row)
	}
	fc = append(fc, []any{})

	total := []any{"Grand Total"}
	for _, t := range totals {
		total = append(total, t)
	}
	fc = append(fc, total)

	loc := forecast.Grid{{"Location", "Full name", "Address", "City", "Country", "Lat", "Lon"}}
	for _, s := range sampleSites {
		row := []any{s.code, s.name, s.street, s.city, s.country, nil, nil}
		if s.registered {
			row[5], row[6] = s.lat, s.lon
		}
		loc = append(loc, row)
	}

	return excel.Sheet{Name: "full", Grid: fc}, excel.Sheet{Name: "Sheet1", Grid: loc}
}
