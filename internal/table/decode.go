package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipSignature = []byte("PK\x03\x04")
)

// DecodeCSV reads a comma-delimited document. The first skipLines lines are
// discarded (the archive opens with a banner line); the next line is the header.
func DecodeCSV(name string, r io.Reader, skipLines int) (*Raw, error) {
	br := bufio.NewReader(r)
	for i := 0; i < skipLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, parseErr(name, -1, "", "document has fewer than %d lines", skipLines+1)
			}
			return nil, &ParseError{Table: name, Row: -1, Err: err}
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &ParseError{Table: name, Row: -1, Err: err}
	}
	if len(records) == 0 {
		return nil, parseErr(name, -1, "", "no header line")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return &Raw{Headers: [][]string{header}, Rows: records[1:]}, nil
}

// DecodeSpreadsheet reads the first sheet of a legacy .xls (BIFF) or .xlsx
// workbook. The first skipRows rows are discarded, then headerRows rows form
// a compound header; the rest are data rows.
func DecodeSpreadsheet(name string, data []byte, skipRows, headerRows int) (*Raw, error) {
	var (
		grid [][]string
		err  error
	)
	switch {
	case bytes.HasPrefix(data, oleSignature):
		grid, err = readXLS(data)
	case bytes.HasPrefix(data, zipSignature):
		grid, err = readXLSX(data)
	default:
		return nil, parseErr(name, -1, "", "unrecognized spreadsheet format (%d bytes)", len(data))
	}
	if err != nil {
		return nil, &ParseError{Table: name, Row: -1, Err: err}
	}

	if len(grid) < skipRows {
		return nil, parseErr(name, -1, "", "sheet has %d rows, want at least %d", len(grid), skipRows+headerRows)
	}
	grid = grid[skipRows:]

	// Blank rows ahead of the header are not part of it.
	for len(grid) > 0 && isBlankRow(grid[0]) {
		grid = grid[1:]
	}
	if len(grid) < headerRows {
		return nil, parseErr(name, -1, "", "missing %d-row header", headerRows)
	}

	raw := &Raw{
		Headers: grid[:headerRows],
		Rows:    grid[headerRows:],
	}
	width := raw.Width()
	for i, h := range raw.Headers {
		raw.Headers[i] = pad(h, width)
	}
	return raw, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no Workbook stream")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	stream, err := workbookStream(data)
	if err != nil {
		return nil, err
	}
	scan, err := scanFirstSheet(stream)
	if err != nil {
		return nil, err
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		last, ok := scan.lastCol[i]
		if !ok {
			// Row panics on rows without cells.
			grid = append(grid, nil)
			continue
		}
		row := sheet.Row(i)
		cells := make([]string, last+1)
		for j := range cells {
			if v, ok := scan.numbers[cellRef{i, j}]; ok {
				cells[j] = strconv.FormatFloat(v, 'f', -1, 64)
				continue
			}
			cells[j] = row.Col(j)
		}
		grid = append(grid, trimTrailingBlanks(cells))
	}
	return grid, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if !isBlank(c) {
			return false
		}
	}
	return true
}

func trimTrailingBlanks(cells []string) []string {
	n := len(cells)
	for n > 0 && isBlank(cells[n-1]) {
		n--
	}
	return cells[:n]
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
