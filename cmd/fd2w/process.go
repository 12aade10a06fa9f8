package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/csvout"
	"github.com/couchcryptid/fd2w-etl/internal/app"
	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
)

func newProcessCmd(flags *sourceFlags) *cobra.Command {
	var (
		outDir   string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the pipeline once and write volumes.csv and points.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			rt := newRuntime(cfg, observability.NewLocalMetrics())
			return closeAll(rt, runProcess(cmd, rt, outDir, progress))
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "directory for the CSV files")
	cmd.Flags().BoolVar(&progress, "progress", false, "print geocoding progress to stderr")
	return cmd
}

func runProcess(cmd *cobra.Command, rt *runtime, outDir string, progress bool) error {
	profile, err := loadProfile(cmd, rt.cfg)
	if err != nil {
		return err
	}
	geocoder, err := rt.geocoder()
	if err != nil {
		return err
	}

	var report func(domain.GeocodeProgress)
	if progress {
		stderr := cmd.ErrOrStderr()
		report = func(p domain.GeocodeProgress) {
			fmt.Fprintf(stderr, "geocoding %d/%d %s: %s\n", p.Done, p.Total, p.Location, p.Source)
		}
	}
	p, err := rt.pipeline(profile, geocoder, report)
	if err != nil {
		return err
	}

	svc := app.NewService(rt.source(), p, nil, nil, rt.metrics, rt.logger)
	res, err := svc.Load(cmd.Context())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	volumesPath := filepath.Join(outDir, "volumes.csv")
	if err := writeFile(volumesPath, func(w io.Writer) error { return csvout.WriteVolumes(w, res.Volumes) }); err != nil {
		return err
	}
	pointsPath := filepath.Join(outDir, "points.csv")
	if err := writeFile(pointsPath, func(w io.Writer) error { return csvout.WritePoints(w, res.Points) }); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "header row %d (%s), %d records, %d aggregated rows, %d map points\n",
		res.Plan.HeaderRow, res.Plan.Strategy, res.Stats.Reshape.Records, len(res.Volumes), len(res.Points))
	fmt.Fprintf(out, "wrote %s and %s\n", volumesPath, pointsPath)
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
