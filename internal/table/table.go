// Package table decodes the NSE archive documents into string tables and
// normalizes them: header cleanup and flattening, blank-row removal and
// numeric coercion, then mapping onto the typed rows in pkg/models.
package table

import (
	"fmt"
	"strings"
)

// InstrumentColumn is the name given to the unlabelled first column of the
// FII statistics spreadsheet.
const InstrumentColumn = "Instrument"

// Raw is a decoded document before normalization. Headers holds one slice per
// header level, outermost first; cells may carry stray whitespace,
// thousands separators or be blank.
type Raw struct {
	Headers [][]string
	Rows    [][]string
}

// Width returns the widest header or data row.
func (r *Raw) Width() int {
	w := 0
	for _, h := range r.Headers {
		w = max(w, len(h))
	}
	for _, row := range r.Rows {
		w = max(w, len(row))
	}
	return w
}

// Table is a single-level string table.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row i of the named column; short rows yield "".
func (t *Table) Cell(i int, column string) string {
	j := t.Index(column)
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// NumericTable is a Table after numeric coercion: excluded columns stay
// text, every other column is a float64.
type NumericTable struct {
	Name          string
	TextColumns   []string
	NumberColumns []string
	Rows          []NumericRow
}

// NumericRow is one row of a NumericTable.
type NumericRow struct {
	Text    []string
	Numbers []float64
}

// Number returns the value of a numeric column in row i.
func (t *NumericTable) Number(i int, column string) (float64, bool) {
	for j, c := range t.NumberColumns {
		if c == column {
			return t.Rows[i].Numbers[j], true
		}
	}
	return 0, false
}

// Text returns the value of a text column in row i.
func (t *NumericTable) Text(i int, column string) (string, bool) {
	for j, c := range t.TextColumns {
		if c == column {
			return t.Rows[i].Text[j], true
		}
	}
	return "", false
}

// HasColumn reports whether the column survived coercion under either kind.
func (t *NumericTable) HasColumn(column string) bool {
	for _, c := range t.TextColumns {
		if c == column {
			return true
		}
	}
	for _, c := range t.NumberColumns {
		if c == column {
			return true
		}
	}
	return false
}

// ParseError reports a document whose structure cannot be mapped: an
// undecodable file, a missing column, or a malformed required value.
type ParseError struct {
	Table  string
	Row    int // data row index, -1 when not row specific
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse %s", e.Table)
	if e.Row >= 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(table string, row int, column string, format string, args ...any) *ParseError {
	return &ParseError{Table: table, Row: row, Column: column, Err: fmt.Errorf(format, args...)}
}
