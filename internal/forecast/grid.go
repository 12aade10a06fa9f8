// Package forecast locates the header region of the FD2W forecast pivot and
// reshapes its data region into long-form volume records.
package forecast

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Grid is a sheet as read from a workbook: rows of untyped cells with no
// header assumed. Cells hold string, int, int64, float64, bool or nil.
// Rows may be ragged; missing cells read as blank.
type Grid [][]any

// Cell returns the value at (row, col), or nil when out of range.
func (g Grid) Cell(row, col int) any {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return nil
	}
	return g[row][col]
}

// Width returns the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, r := range g {
		w = max(w, len(r))
	}
	return w
}

// CellText renders a cell as trimmed text. Blank cells render as "".
func CellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// ParseVolume converts a cell to a volume with a strict numeric parse.
// Blank cells give 0. Anything else that is not a finite number (dashes,
// notes, stray spaces around text) also gives 0, with ok=false so callers can
// count the coercion.
func ParseVolume(v any) (volume float64, ok bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return finiteOrZero(t)
	case float32:
		return finiteOrZero(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finiteOrZero(f)
	default:
		return 0, false
	}
}

func finiteOrZero(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldText lowercases s, strips accents and collapses inner whitespace, for
// case-insensitive label matching ("Prévision  LDC" -> "prevision ldc").
func FoldText(s string) string {
	folded, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}
