package table

import (
	"strings"

	"github.com/seenimoa/fnopart/pkg/models"
)

// Participant OI column names after CleanColumnNames.
const (
	ColClientType           = "Client_Type"
	ColFutureIndexLong      = "Future_Index_Long"
	ColFutureIndexShort     = "Future_Index_Short"
	ColFutureStockLong      = "Future_Stock_Long"
	ColFutureStockShort     = "Future_Stock_Short"
	ColOptionIndexCallLong  = "Option_Index_Call_Long"
	ColOptionIndexPutLong   = "Option_Index_Put_Long"
	ColOptionIndexCallShort = "Option_Index_Call_Short"
	ColOptionIndexPutShort  = "Option_Index_Put_Short"
	ColOptionStockCallLong  = "Option_Stock_Call_Long"
	ColOptionStockPutLong   = "Option_Stock_Put_Long"
	ColOptionStockCallShort = "Option_Stock_Call_Short"
	ColOptionStockPutShort  = "Option_Stock_Put_Short"
	ColTotalLong            = "Total_Long_Contracts"
	ColTotalShort           = "Total_Short_Contracts"
)

// FII statistics column names after FlattenHeaders.
const (
	ColBuyContracts  = "BUY_No_of_contracts"
	ColBuyValue      = "BUY_Amt_in_Crores"
	ColSellContracts = "SELL_No_of_contracts"
	ColSellValue     = "SELL_Amt_in_Crores"
	ColOIContracts   = "OPEN_INTEREST_AT_THE_END_OF_THE_DAY_No_of_contracts"
	ColOIValue       = "OPEN_INTEREST_AT_THE_END_OF_THE_DAY_Amt_in_Crores"
)

// ParticipantRows maps a cleaned participant table onto typed rows. Every
// count column is required and must parse; the total columns are optional.
func ParticipantRows(t *Table) ([]models.ParticipantOIRow, error) {
	counts := []struct {
		col string
		dst func(*models.ParticipantOIRow) *float64
	}{
		{ColFutureIndexLong, func(r *models.ParticipantOIRow) *float64 { return &r.FutureIndexLong }},
		{ColFutureIndexShort, func(r *models.ParticipantOIRow) *float64 { return &r.FutureIndexShort }},
		{ColFutureStockLong, func(r *models.ParticipantOIRow) *float64 { return &r.FutureStockLong }},
		{ColFutureStockShort, func(r *models.ParticipantOIRow) *float64 { return &r.FutureStockShort }},
		{ColOptionIndexCallLong, func(r *models.ParticipantOIRow) *float64 { return &r.OptionIndexCallLong }},
		{ColOptionIndexPutLong, func(r *models.ParticipantOIRow) *float64 { return &r.OptionIndexPutLong }},
		{ColOptionIndexCallShort, func(r *models.ParticipantOIRow) *float64 { return &r.OptionIndexCallShort }},
		{ColOptionIndexPutShort, func(r *models.ParticipantOIRow) *float64 { return &r.OptionIndexPutShort }},
		{ColOptionStockCallLong, func(r *models.ParticipantOIRow) *float64 { return &r.OptionStockCallLong }},
		{ColOptionStockPutLong, func(r *models.ParticipantOIRow) *float64 { return &r.OptionStockPutLong }},
		{ColOptionStockCallShort, func(r *models.ParticipantOIRow) *float64 { return &r.OptionStockCallShort }},
		{ColOptionStockPutShort, func(r *models.ParticipantOIRow) *float64 { return &r.OptionStockPutShort }},
	}

	if t.Index(ColClientType) < 0 {
		return nil, parseErr(t.Name, -1, ColClientType, "missing column")
	}
	for _, c := range counts {
		if t.Index(c.col) < 0 {
			return nil, parseErr(t.Name, -1, c.col, "missing column")
		}
	}
	hasTotals := t.Index(ColTotalLong) >= 0 && t.Index(ColTotalShort) >= 0

	rows := make([]models.ParticipantOIRow, 0, len(t.Rows))
	for i := range t.Rows {
		r := models.ParticipantOIRow{ClientType: strings.TrimSpace(t.Cell(i, ColClientType))}
		for _, c := range counts {
			v, err := ParseNumber(t.Cell(i, c.col))
			if err != nil {
				return nil, &ParseError{Table: t.Name, Row: i, Column: c.col, Err: err}
			}
			*c.dst(&r) = v
		}
		if hasTotals {
			r.TotalLong = optionalNumber(t.Cell(i, ColTotalLong))
			r.TotalShort = optionalNumber(t.Cell(i, ColTotalShort))
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func optionalNumber(s string) *float64 {
	v, err := ParseNumber(s)
	if err != nil {
		return nil
	}
	return &v
}

// FIIStatsRows maps a coerced FII statistics table onto typed rows. The
// instrument and open-interest columns are required; trade and value
// columns are filled when present.
func FIIStatsRows(nt *NumericTable) ([]models.FIIStatsRow, error) {
	for _, col := range []string{InstrumentColumn, ColOIContracts} {
		if !nt.HasColumn(col) {
			return nil, parseErr(nt.Name, -1, col, "missing column")
		}
	}

	optional := func(i int, col string) *float64 {
		if v, ok := nt.Number(i, col); ok {
			return &v
		}
		return nil
	}

	rows := make([]models.FIIStatsRow, 0, len(nt.Rows))
	for i := range nt.Rows {
		label, _ := nt.Text(i, InstrumentColumn)
		oi, _ := nt.Number(i, ColOIContracts)
		rows = append(rows, models.FIIStatsRow{
			Instrument:    label,
			OIContracts:   oi,
			OIValue:       optional(i, ColOIValue),
			BuyContracts:  optional(i, ColBuyContracts),
			BuyValue:      optional(i, ColBuyValue),
			SellContracts: optional(i, ColSellContracts),
			SellValue:     optional(i, ColSellValue),
		})
	}
	return rows, nil
}

// DropCounts records rows removed while cleaning a table.
type DropCounts struct {
	Incomplete int `json:"incomplete"`
	NonNumeric int `json:"non_numeric"`
}

// Total returns all rows dropped.
func (d DropCounts) Total() int { return d.Incomplete + d.NonNumeric }

// NormalizeParticipant runs the participant path: column cleanup then typed mapping.
func NormalizeParticipant(name string, raw *Raw) ([]models.ParticipantOIRow, error) {
	t, err := FlattenHeaders(name, raw)
	if err != nil {
		return nil, err
	}
	return ParticipantRows(CleanColumnNames(t))
}

// NormalizeFIIStats runs the FII statistics path: header flattening, blank-row
// removal, numeric coercion, then typed mapping.
func NormalizeFIIStats(name string, raw *Raw) ([]models.FIIStatsRow, *NumericTable, DropCounts, error) {
	var drops DropCounts

	t, err := FlattenHeaders(name, raw)
	if err != nil {
		return nil, nil, drops, err
	}
	t, drops.Incomplete = DropIncompleteRows(t)

	nt, nonNumeric := CoerceNumeric(t)
	drops.NonNumeric = nonNumeric

	rows, err := FIIStatsRows(nt)
	if err != nil {
		return nil, nil, drops, err
	}
	return rows, nt, drops, nil
}
