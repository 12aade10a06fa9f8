package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/excel"
	"github.com/couchcryptid/fd2w-etl/internal/app"
	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
)

// phase tracks pass/fail for one group of checks.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func newInspectCmd(flags *sourceFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show how the workbook is read and check the result for consistency",
		Long: `inspect runs the pipeline without geocoding and reports the sheets, the
resolved header, the column roles and the registry coverage. It exits non-zero
when a consistency check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			cfg.GeocoderEnabled = false
			rt := newRuntime(cfg, observability.NewLocalMetrics())
			return closeAll(rt, runInspect(cmd, rt))
		},
	}
}

func runInspect(cmd *cobra.Command, rt *runtime) error {
	out := cmd.OutOrStdout()

	sheets, err := excel.SheetNames(rt.cfg.ForecastFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "workbook %s: sheets %s\n", rt.cfg.ForecastFile, strings.Join(sheets, ", "))

	profile, err := loadProfile(cmd, rt.cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "layout profile %s, forecast sheet %q\n", profile.Name, rt.cfg.ForecastSheet)

	p, err := rt.pipeline(profile, nil, nil)
	if err != nil {
		return err
	}
	res, err := app.NewService(rt.source(), p, nil, nil, rt.metrics, rt.logger).Load(cmd.Context())
	if err != nil {
		return err
	}

	phases := checkResult(res)
	if !report(out, phases) {
		return errors.New("consistency checks failed")
	}
	return nil
}

// checkResult verifies the header plan, the totals and the registry coverage
// of a pipeline result.
func checkResult(res *pipeline.Result) []*phase {
	return []*phase{
		checkHeader(res),
		checkTotals(res),
		checkRegistry(res),
	}
}

func checkHeader(res *pipeline.Result) *phase {
	ph := &phase{name: "header"}
	plan := res.Plan
	ph.notef("header row %d, data from row %d, strategy %s", plan.HeaderRow, plan.DataStartRow, plan.Strategy)

	byRole := make(map[domain.Role][]string)
	for _, c := range plan.Columns {
		role := domain.ClassifyRole(c.ForecastLabel)
		byRole[role] = append(byRole[role], fmt.Sprintf("%s/%s", c.ForecastLabel, c.LocationLabel))
	}
	for _, role := range append(slices.Clone(domain.Roles), domain.RoleUnknown) {
		if cols := byRole[role]; len(cols) > 0 {
			ph.notef("%s: %d columns", role, len(cols))
		}
	}
	if len(byRole[domain.RoleUnknown]) == len(plan.Columns) {
		ph.errorf("no column maps to a known role")
	}
	if res.Stats.Reshape.Coerced > 0 {
		ph.notef("%d non-numeric cells read as 0", res.Stats.Reshape.Coerced)
	}
	return ph
}

func checkTotals(res *pipeline.Result) *phase {
	ph := &phase{name: "totals"}
	var rows, markets, locations float64
	for _, r := range res.Volumes {
		rows += r.Volume
		if r.Volume <= 0 {
			ph.errorf("non-positive volume for %s/%s/%s", r.Market, r.WhRole, r.Location)
		}
	}
	for _, t := range res.MarketTotals {
		markets += t.Volume
	}
	for _, t := range res.LocationTotals {
		locations += t.Volume
	}
	ph.notef("%d aggregated rows, %d markets, total volume %.2f", len(res.Volumes), len(res.Markets), rows)
	if !approxEqual(rows, markets) {
		ph.errorf("market totals %.4f differ from row total %.4f", markets, rows)
	}
	if !approxEqual(rows, locations) {
		ph.errorf("location totals %.4f differ from row total %.4f", locations, rows)
	}
	return ph
}

func checkRegistry(res *pipeline.Result) *phase {
	ph := &phase{name: "registry"}
	if res.Locations == nil {
		ph.notef("no location registry loaded")
		return ph
	}
	st := res.Stats.Registry
	ph.notef("%d entries, %d with coordinates, %d duplicates, %d blank keys",
		st.Entries, st.WithCoords, st.Duplicates, st.BlankKeys)

	known := make(map[string]bool, len(res.Locations))
	for _, e := range res.Locations {
		known[domain.NormalizeKey(e.Location)] = true
	}
	missing := make(map[string]bool)
	for _, r := range res.Volumes {
		if !known[domain.NormalizeKey(r.Location)] {
			missing[r.Location] = true
		}
	}
	if len(missing) > 0 {
		ph.notef("%d locations have volume but no registry entry", len(missing))
	}
	if res.Stats.Points > len(res.Volumes) {
		ph.errorf("%d map points for %d aggregated rows", res.Stats.Points, len(res.Volumes))
	}
	return ph
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(a))
}

// report prints every phase and returns whether all passed.
func report(w io.Writer, phases []*phase) bool {
	ok := true
	for _, ph := range phases {
		status := "PASS"
		if !ph.passed() {
			status = "FAIL"
			ok = false
		}
		fmt.Fprintf(w, "[%s] %s\n", status, ph.name)
		for _, n := range ph.notes {
			fmt.Fprintf(w, "    %s\n", n)
		}
		for _, e := range ph.errors {
			fmt.Fprintf(w, "    error: %s\n", e)
		}
	}
	return ok
}
