package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVolume(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected float64
		ok       bool
	}{
		{"numeric string", "12", 12, true},
		{"float", 12.0, 12, true},
		{"int", 7, 7, true},
		{"int64", int64(9), 9, true},
		{"padded string", " 3.5 ", 3.5, true},
		{"blank string", " ", 0, true},
		{"nil", nil, 0, true},
		{"dash", "-", 0, false},
		{"text", "n/a", 0, false},
		{"thousands separator", "1,200", 0, false},
		{"NaN string", "NaN", 0, false},
		{"NaN float", math.NaN(), 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParseVolume(tt.in)
			assert.Equal(t, tt.expected, v)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", CellText(nil))
	assert.Equal(t, "AE01", CellText("  AE01 "))
	assert.Equal(t, "12.5", CellText(12.5))
	assert.Equal(t, "100", CellText(100.0))
	assert.Equal(t, "3", CellText(3))
}

func TestGrid_CellAndWidth(t *testing.T) {
	g := Grid{{"a"}, {"b", "c", "d"}, {}}

	assert.Equal(t, 3, g.Width())
	assert.Equal(t, "c", g.Cell(1, 1))
	assert.Nil(t, g.Cell(0, 2), "ragged rows read as blank")
	assert.Nil(t, g.Cell(9, 0))
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, "prevision ldc", FoldText("  Prévision \t LDC "))
	assert.Equal(t, "location", FoldText("LOCATION"))
}
