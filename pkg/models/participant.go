// Package models defines the shared data types for fnopart: typed rows of the
// NSE participant OI and FII statistics archives, and the signal report.
package models

// ClientTypeTotal is the summary row in the participant OI archive.
// It repeats the sum of every other row and must never be aggregated.
const ClientTypeTotal = "TOTAL"

// ParticipantOIRow is one client-type row of the participant-wise open
// interest archive (fao_participant_oi_DDMMYYYY.csv). Counts are contracts.
type ParticipantOIRow struct {
	ClientType string `json:"client_type"` // "Client", "DII", "FII", "Pro", "TOTAL"

	FutureIndexLong  float64 `json:"future_index_long"`
	FutureIndexShort float64 `json:"future_index_short"`
	FutureStockLong  float64 `json:"future_stock_long"`
	FutureStockShort float64 `json:"future_stock_short"`

	OptionIndexCallLong  float64 `json:"option_index_call_long"`
	OptionIndexPutLong   float64 `json:"option_index_put_long"`
	OptionIndexCallShort float64 `json:"option_index_call_short"`
	OptionIndexPutShort  float64 `json:"option_index_put_short"`

	OptionStockCallLong  float64 `json:"option_stock_call_long"`
	OptionStockPutLong   float64 `json:"option_stock_put_long"`
	OptionStockCallShort float64 `json:"option_stock_call_short"`
	OptionStockPutShort  float64 `json:"option_stock_put_short"`

	TotalLong  *float64 `json:"total_long,omitempty"`
	TotalShort *float64 `json:"total_short,omitempty"`
}

// IsTotal reports whether this is the archive's summary row.
func (r ParticipantOIRow) IsTotal() bool {
	return r.ClientType == ClientTypeTotal
}

// FIIStatsRow is one instrument row of the FII derivatives statistics
// archive (fii_stats_DD-Mon-YYYY.xls). Values are in crores.
type FIIStatsRow struct {
	Instrument    string   `json:"instrument"`         // "INDEX FUTURES", "NIFTY OPTIONS", ...
	OIContracts   float64  `json:"oi_contracts"`       // open interest at end of day
	OIValue       *float64 `json:"oi_value,omitempty"` // open interest value, crores
	BuyContracts  *float64 `json:"buy_contracts,omitempty"`
	BuyValue      *float64 `json:"buy_value,omitempty"` // crores
	SellContracts *float64 `json:"sell_contracts,omitempty"`
	SellValue     *float64 `json:"sell_value,omitempty"` // crores
}

// NetSellValue returns sell value minus buy value, treating missing figures as zero.
func (r FIIStatsRow) NetSellValue() float64 {
	return valueOrZero(r.SellValue) - valueOrZero(r.BuyValue)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
