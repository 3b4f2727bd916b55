package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// isBlank reports a cell that counts as missing: empty or whitespace only.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// CleanColumnNames trims each column name and replaces internal spaces with
// underscores ("Future Index Long" -> "Future_Index_Long").
func CleanColumnNames(t *Table) *Table {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = strings.ReplaceAll(strings.TrimSpace(c), " ", "_")
	}
	return &Table{Name: t.Name, Columns: cols, Rows: t.Rows}
}

// FlattenHeaders collapses a Raw header into single-level column names.
//
// A single header level is taken as is. For two levels, blank level-0 cells
// inherit the label to their left (merged cells); a column that has no
// level-0 label yet becomes Instrument. Labelled columns are named
// "level0_level1" with spaces replaced by underscores and periods removed.
// A blank level 1 yields the cleaned level 0 alone.
func FlattenHeaders(name string, raw *Raw) (*Table, error) {
	if raw == nil {
		return nil, parseErr(name, -1, "", "no table decoded")
	}
	switch len(raw.Headers) {
	case 1:
		return &Table{Name: name, Columns: append([]string(nil), raw.Headers[0]...), Rows: raw.Rows}, nil
	case 2:
	default:
		return nil, parseErr(name, -1, "", "unsupported header depth %d", len(raw.Headers))
	}

	top, sub := raw.Headers[0], raw.Headers[1]
	width := max(len(top), len(sub))
	cols := make([]string, width)
	seen := make(map[string]int, width)

	var carried string
	for i := 0; i < width; i++ {
		l0, l1 := cellAt(top, i), cellAt(sub, i)
		if !isBlank(l0) {
			carried = strings.TrimSpace(l0)
		}

		var col string
		switch {
		case carried == "":
			col = InstrumentColumn
		case isBlank(l1):
			col = cleanHeader(carried)
		default:
			col = cleanHeader(carried + "_" + strings.TrimSpace(l1))
		}

		// Duplicate names would shadow each other on lookup.
		if n := seen[col]; n > 0 {
			seen[col] = n + 1
			col = fmt.Sprintf("%s_%d", col, n)
		} else {
			seen[col] = 1
		}
		cols[i] = col
	}
	return &Table{Name: name, Columns: cols, Rows: raw.Rows}, nil
}

func cleanHeader(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	return strings.ReplaceAll(s, ".", "")
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// DropIncompleteRows removes every row with a blank cell in any column,
// short rows included. Survivors keep their order. It returns the cleaned
// table and the number of rows dropped.
func DropIncompleteRows(t *Table) (*Table, int) {
	out := &Table{Name: t.Name, Columns: t.Columns, Rows: make([][]string, 0, len(t.Rows))}
	dropped := 0
	for _, row := range t.Rows {
		if len(row) < len(t.Columns) || isBlankAny(row[:len(t.Columns)]) {
			dropped++
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, dropped
}

func isBlankAny(cells []string) bool {
	for _, c := range cells {
		if isBlank(c) {
			return true
		}
	}
	return false
}

// ParseNumber parses a count or value cell: thousands separators are
// stripped and surrounding whitespace trimmed. NaN and infinities are rejected.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

// CoerceNumeric converts every column except Instrument and the named
// exclusions to float64. A row with any unparseable value is dropped; the
// second return value is the number of rows dropped.
func CoerceNumeric(t *Table, exclude ...string) (*NumericTable, int) {
	text := map[string]bool{InstrumentColumn: true}
	for _, c := range exclude {
		text[c] = true
	}

	nt := &NumericTable{Name: t.Name}
	var textIdx, numIdx []int
	for i, c := range t.Columns {
		if text[c] {
			nt.TextColumns = append(nt.TextColumns, c)
			textIdx = append(textIdx, i)
		} else {
			nt.NumberColumns = append(nt.NumberColumns, c)
			numIdx = append(numIdx, i)
		}
	}

	dropped := 0
rows:
	for _, row := range t.Rows {
		r := NumericRow{
			Text:    make([]string, len(textIdx)),
			Numbers: make([]float64, len(numIdx)),
		}
		for k, i := range textIdx {
			r.Text[k] = strings.TrimSpace(cellAt(row, i))
		}
		for k, i := range numIdx {
			v, err := ParseNumber(cellAt(row, i))
			if err != nil {
				dropped++
				continue rows
			}
			r.Numbers[k] = v
		}
		nt.Rows = append(nt.Rows, r)
	}
	return nt, dropped
}
