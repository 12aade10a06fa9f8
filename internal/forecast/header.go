package forecast

import (
	"fmt"
	"regexp"
	"strings"
)

// KeyColumn is the name given to column 0, whatever its header text says.
const KeyColumn = "Market"

// ColumnLabel is the resolved two-level label of one data column.
type ColumnLabel struct {
	Index         int    `json:"index"`
	ForecastLabel string `json:"forecast_label"`
	LocationLabel string `json:"location_label"`
}

// HeaderPlan describes where the header and data of a forecast grid live.
type HeaderPlan struct {
	HeaderRow    int           `json:"header_row"`
	HeaderRows   int           `json:"header_rows"`
	DataStartRow int           `json:"data_start_row"`
	Strategy     string        `json:"strategy"`
	Columns      []ColumnLabel `json:"columns"`
}

// HeaderNotFoundError means no strategy found a header row in the grid.
type HeaderNotFoundError struct {
	RowsScanned int
	Strategies  []string
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("no header row located in first %d rows (tried %s)",
		e.RowsScanned, strings.Join(e.Strategies, ", "))
}

// NoColumnsError means a header row was found but no data column follows the key column.
type NoColumnsError struct {
	HeaderRow int
}

func (e *NoColumnsError) Error() string {
	return fmt.Sprintf("header row %d has no data columns beside %s", e.HeaderRow, KeyColumn)
}

// NoDataRegionError means the header was resolved but no row below it carries
// a market key.
type NoDataRegionError struct {
	HeaderRow    int
	DataStartRow int
	Rows         int
}

func (e *NoDataRegionError) Error() string {
	return fmt.Sprintf("header row %d leaves no %s rows (data starts at row %d of %d)",
		e.HeaderRow, KeyColumn, e.DataStartRow, e.Rows)
}

// Strategy proposes the index of the top header row, or declines.
type Strategy interface {
	Name() string
	Locate(g Grid) (row int, ok bool)
}

// FixedSkip treats row Rows as the top header row, i.e. skips Rows preamble rows.
type FixedSkip struct {
	Rows int
}

func (s FixedSkip) Name() string { return fmt.Sprintf("fixed-skip(%d)", s.Rows) }

func (s FixedSkip) Locate(g Grid) (int, bool) {
	if s.Rows < 0 || s.Rows >= len(g) {
		return 0, false
	}
	return s.Rows, true
}

// KeywordScan picks the first row whose joined text contains a keyword.
type KeywordScan struct {
	Keywords []string
}

func (s KeywordScan) Name() string { return "keyword-scan" }

func (s KeywordScan) Locate(g Grid) (int, bool) {
	keywords := make([]string, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		if k = FoldText(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	for i, row := range g {
		parts := make([]string, 0, len(row))
		for _, v := range row {
			if t := CellText(v); t != "" {
				parts = append(parts, t)
			}
		}
		text := FoldText(strings.Join(parts, " "))
		for _, k := range keywords {
			if strings.Contains(text, k) {
				return i, true
			}
		}
	}
	return 0, false
}

// FirstNonTitle picks the first row whose first cell is filled and is not a
// title or version banner.
type FirstNonTitle struct {
	TitlePatterns []*regexp.Regexp
}

func (s FirstNonTitle) Name() string { return "first-non-title" }

func (s FirstNonTitle) Locate(g Grid) (int, bool) {
	for i := range g {
		first := CellText(g.Cell(i, 0))
		if first == "" || s.isTitle(first) {
			continue
		}
		return i, true
	}
	return 0, false
}

func (s FirstNonTitle) isTitle(text string) bool {
	for _, re := range s.TitlePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Resolver turns a raw grid into a HeaderPlan using an ordered chain of
// strategies. The first strategy that locates a row wins.
type Resolver struct {
	profile    Profile
	strategies []Strategy
}

// NewResolver builds a resolver from a layout profile.
func NewResolver(p Profile) (*Resolver, error) {
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	titles := make([]*regexp.Regexp, 0, len(p.TitlePatterns))
	for _, pat := range p.TitlePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("profile %s: title pattern %q: %w", p.Name, pat, err)
		}
		titles = append(titles, re)
	}

	return &Resolver{
		profile: p,
		strategies: []Strategy{
			KeywordScan{Keywords: p.Keywords},
			FirstNonTitle{TitlePatterns: titles},
		},
	}, nil
}

// Profile returns the layout profile the resolver was built from.
func (r *Resolver) Profile() Profile {
	return r.profile
}

// Resolve locates the header of g. skipRows, when non-nil, takes precedence
// over the profile's skip count and over scanning.
func (r *Resolver) Resolve(g Grid, skipRows *int) (HeaderPlan, error) {
	strategies := r.strategies
	if skipRows == nil {
		skipRows = r.profile.SkipRows
	}
	if skipRows != nil {
		strategies = append([]Strategy{FixedSkip{Rows: *skipRows}}, strategies...)
	}

	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
		row, ok := s.Locate(g)
		if !ok {
			continue
		}
		return r.buildPlan(g, row, s.Name())
	}
	return HeaderPlan{}, &HeaderNotFoundError{RowsScanned: len(g), Strategies: names}
}

func (r *Resolver) buildPlan(g Grid, headerRow int, strategy string) (HeaderPlan, error) {
	width := g.Width()
	if width <= 1 {
		return HeaderPlan{}, &NoColumnsError{HeaderRow: headerRow}
	}

	top := make([]string, width)
	for c := range width {
		top[c] = CellText(g.Cell(headerRow, c))
	}

	var forecasts, locations []string
	if r.profile.HeaderRows == 1 {
		forecasts, locations = splitLabels(top, r.profile.LabelSeparators)
	} else {
		forecasts = top
		locations = make([]string, width)
		for c := range width {
			locations[c] = CellText(g.Cell(headerRow+1, c))
		}
	}
	forecasts = ForwardFill(forecasts)

	columns := make([]ColumnLabel, 0, width-1)
	for c := 1; c < width; c++ {
		columns = append(columns, ColumnLabel{
			Index:         c,
			ForecastLabel: forecasts[c],
			LocationLabel: locations[c],
		})
	}

	dataStart := headerRow + r.profile.HeaderRows
	if !hasKeyedRow(g, dataStart) {
		return HeaderPlan{}, &NoDataRegionError{HeaderRow: headerRow, DataStartRow: dataStart, Rows: len(g)}
	}

	return HeaderPlan{
		HeaderRow:    headerRow,
		HeaderRows:   r.profile.HeaderRows,
		DataStartRow: dataStart,
		Strategy:     strategy,
		Columns:      columns,
	}, nil
}

func hasKeyedRow(g Grid, from int) bool {
	for r := from; r < len(g); r++ {
		if CellText(g.Cell(r, 0)) != "" {
			return true
		}
	}
	return false
}

var unnamedRe = regexp.MustCompile(`(?i)^unnamed:\s*\d+$`)

// IsPlaceholder reports whether a header label is a merged-cell gap rather
// than real text.
func IsPlaceholder(label string) bool {
	l := strings.TrimSpace(label)
	switch strings.ToLower(l) {
	case "", "nan", "none", "null":
		return true
	}
	return unnamedRe.MatchString(l)
}

// ForwardFill replaces every placeholder label with the nearest preceding
// real label to its left. Leading placeholders stay empty. Labels are trimmed.
func ForwardFill(labels []string) []string {
	out := make([]string, len(labels))
	last := ""
	for i, l := range labels {
		if IsPlaceholder(l) {
			out[i] = last
			continue
		}
		last = strings.TrimSpace(l)
		out[i] = last
	}
	return out
}

// splitLabels splits single-row header labels such as "Forecast at LDC___AE01"
// into forecast and location parts. A label with no separator serves as both.
func splitLabels(labels, separators []string) (forecasts, locations []string) {
	forecasts = make([]string, len(labels))
	locations = make([]string, len(labels))
	for i, l := range labels {
		forecasts[i], locations[i] = l, l
		if IsPlaceholder(l) {
			forecasts[i], locations[i] = "", ""
			continue
		}
		for _, sep := range separators {
			if before, after, ok := strings.Cut(l, sep); ok {
				forecasts[i] = strings.TrimSpace(before)
				locations[i] = strings.TrimSpace(after)
				break
			}
		}
	}
	return forecasts, locations
}
