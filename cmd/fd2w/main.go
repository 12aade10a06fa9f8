// Command fd2w turns the FD2W forecast export into normalized volume and map
// records. It runs once and writes CSV files (process), serves the latest
// result over HTTP (serve), reports how a workbook is read (inspect), or
// writes a synthetic workbook to try it on (sample).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// sourceFlags override the file settings of the environment.
type sourceFlags struct {
	forecast       string
	forecastSheet  string
	locations      string
	locationsSheet string
	skipRows       int
	profile        string
	layoutFile     string
}

func newRootCmd() *cobra.Command {
	var flags sourceFlags

	root := &cobra.Command{
		Use:          "fd2w",
		Short:        "Normalize the FD2W forecast export",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.forecast, "forecast", "f", "", "forecast workbook (overrides FORECAST_FILE)")
	pf.StringVar(&flags.forecastSheet, "forecast-sheet", "", "forecast sheet (overrides FORECAST_SHEET)")
	pf.StringVarP(&flags.locations, "locations", "l", "", "location registry workbook (overrides LOCATIONS_FILE)")
	pf.StringVar(&flags.locationsSheet, "locations-sheet", "", "location registry sheet (overrides LOCATIONS_SHEET)")
	pf.IntVar(&flags.skipRows, "skip-rows", -1, "preamble rows above the header, -1 to detect")
	pf.StringVar(&flags.profile, "profile", "", "layout profile (overrides LAYOUT_PROFILE)")
	pf.StringVar(&flags.layoutFile, "layout-file", "", "YAML file of layout profiles (overrides LAYOUT_FILE)")

	root.AddCommand(
		newProcessCmd(&flags),
		newServeCmd(&flags),
		newInspectCmd(&flags),
		newSampleCmd(),
	)
	return root
}
