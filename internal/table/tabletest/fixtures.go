// Package tabletest builds NSE archive documents for tests: the participant
// OI CSV and the FII statistics workbook, in the layouts the archives publish.
package tabletest

import (
	"strconv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ParticipantRow is one client-type line of the participant OI CSV. Counts
// follow the archive column order: future index long/short, future stock
// long/short, option index call long/put long/call short/put short, option
// stock call long/put long/call short/put short.
type ParticipantRow struct {
	ClientType string
	Counts     [12]float64
}

// ParticipantHeader is the archive's header line, trailing tabs included.
var ParticipantHeader = []string{
	"Client Type", "Future Index Long", "Future Index Short", "Future Stock Long", "Future Stock Short\t",
	"Option Index Call Long", "Option Index Put Long", "Option Index Call Short", "Option Index Put Short",
	"Option Stock Call Long", "Option Stock Put Long", "Option Stock Call Short", "Option Stock Put Short",
	"Total Long Contracts\t", "Total Short Contracts\t",
}

// ParticipantCSV renders rows under a banner line and the header. Totals are
// derived from the counts.
func ParticipantCSV(rows []ParticipantRow) []byte {
	var b strings.Builder
	b.WriteString("\"Participant wise Open Interest (no. of contracts) in Equity Derivatives as on Feb 20, 2026\"\n")
	b.WriteString(strings.Join(ParticipantHeader, ",") + "\n")
	for _, r := range rows {
		cells := []string{r.ClientType}
		var long, short float64
		for i, c := range r.Counts {
			cells = append(cells, num(c))
			if isLongColumn(i) {
				long += c
			} else {
				short += c
			}
		}
		cells = append(cells, num(long), num(short))
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return []byte(b.String())
}

func isLongColumn(i int) bool {
	switch i {
	case 0, 2, 4, 5, 8, 9:
		return true
	}
	return false
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FIIRow is one instrument line of the FII statistics workbook.
type FIIRow struct {
	Instrument    string
	BuyContracts  float64
	BuyValue      float64
	SellContracts float64
	SellValue     float64
	OIContracts   float64
	OIValue       float64
}

// FIIStatsGrid lays rows out the way the archive does: a banner row, a
// merged-cell header over two rows, the data, then a blank row and a note.
func FIIStatsGrid(rows []FIIRow) [][]any {
	grid := [][]any{
		{"FII DERIVATIVES STATISTICS FOR 20-Feb-2026"},
		{"", "BUY", "", "SELL", "", "OPEN INTEREST AT THE END OF THE DAY", ""},
		{"", "No. of contracts", "Amt in Crores", "No. of contracts", "Amt in Crores", "No. of contracts", "Amt in Crores"},
	}
	for _, r := range rows {
		grid = append(grid, []any{r.Instrument, r.BuyContracts, r.BuyValue, r.SellContracts, r.SellValue, r.OIContracts, r.OIValue})
	}
	grid = append(grid, []any{}, []any{"Note: figures are provisional"})
	return grid
}

// XLSX writes grid to the first sheet of a new workbook and returns its bytes.
func XLSX(tb testing.TB, grid [][]any) []byte {
	tb.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range grid {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			tb.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			tb.Fatalf("set row %d: %v", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		tb.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// FIIStatsXLSX renders rows as an FII statistics workbook.
func FIIStatsXLSX(tb testing.TB, rows []FIIRow) []byte {
	tb.Helper()
	return XLSX(tb, FIIStatsGrid(rows))
}

// SampleParticipants is a small participant table with a TOTAL row.
func SampleParticipants() []ParticipantRow {
	rows := []ParticipantRow{
		{"Client", [12]float64{1000, 400, 2000, 1500, 900, 800, 700, 600, 300, 200, 100, 50}},
		{"DII", [12]float64{200, 100, 500, 700, 100, 100, 50, 50, 20, 20, 10, 10}},
		{"FII", [12]float64{300, 600, 800, 400, 500, 600, 400, 500, 50, 40, 30, 20}},
		{"Pro", [12]float64{100, 50, 300, 200, 400, 300, 350, 250, 30, 20, 60, 20}},
	}
	var total ParticipantRow
	total.ClientType = "TOTAL"
	for _, r := range rows {
		for i, c := range r.Counts {
			total.Counts[i] += c
		}
	}
	return append(rows, total)
}

// SampleFII returns an FII statistics table where OI is scaled by factor.
func SampleFII(factor float64) []FIIRow {
	return []FIIRow{
		{"INDEX FUTURES", 52000, 4100.25, 48000, 3900.5, 250 * factor, 19000},
		{"NIFTY FUTURES", 30000, 2500, 31000, 2600, 150 * factor, 11000},
		{"INDEX OPTIONS", 900000, 88000, 880000, 86000, 1200 * factor, 91000},
		{"STOCK FUTURES", 120000, 7000, 110000, 7600, 900 * factor, 60000},
		{"STOCK OPTIONS", 60000, 3500, 61000, 3550, 300 * factor, 20000},
		{"INTEREST RATE FUTURES", 10, 1, 10, 1, 5 * factor, 1},
	}
}
