package models

import "time"

// InstrumentCategory is the participant-side bucket an FII instrument is compared against.
type InstrumentCategory string

const (
	IndexFutures InstrumentCategory = "INDEX FUTURES"
	StockFutures InstrumentCategory = "STOCK FUTURES"
	IndexOptions InstrumentCategory = "INDEX OPTIONS"
	StockOptions InstrumentCategory = "STOCK OPTIONS"
)

// Categories lists every category in display order.
var Categories = []InstrumentCategory{IndexFutures, StockFutures, IndexOptions, StockOptions}

// Direction is the directional bias of a signal.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// Signal is the directional call for one FII instrument.
type Signal struct {
	Instrument    string             `json:"instrument"`
	Category      InstrumentCategory `json:"category"`
	Direction     Direction          `json:"direction"`
	Explanation   string             `json:"explanation"`
	ParticipantOI float64            `json:"participant_oi"` // net OI of the category
	CurrentFIIOI  float64            `json:"current_fii_oi"`
	PreviousFIIOI float64            `json:"previous_fii_oi"` // 0 when absent from the previous table
	NetSellValue  float64            `json:"net_sell_value"`  // crores, value-weighted variant only
}

// Disclaimer accompanies every signal output.
const Disclaimer = "Disclaimer: This is educational content only and not investment advice. Do your own research before trading."

// Report is everything one computation returns for display.
type Report struct {
	PreviousDate  time.Time                      `json:"previous_date"`
	CurrentDate   time.Time                      `json:"current_date"`
	Variant       string                         `json:"variant"`
	Signals       []Signal                       `json:"signals"` // current FII table order
	CategoryOI    map[InstrumentCategory]float64 `json:"category_oi"`
	CurrentFIIOI  map[string]float64             `json:"current_fii_oi"`
	PreviousFIIOI map[string]float64             `json:"previous_fii_oi"`
	Participants  []ParticipantOIRow             `json:"participants"`
	FIICurrent    []FIIStatsRow                  `json:"fii_current"`
	FIIPrevious   []FIIStatsRow                  `json:"fii_previous"`
	DroppedRows   map[string]int                 `json:"dropped_rows,omitempty"` // table -> rows dropped while cleaning
	FromCache     bool                           `json:"from_cache"`
	FetchedAt     time.Time                      `json:"fetched_at"`
}

// SignalFor returns the signal for an instrument label.
func (r *Report) SignalFor(instrument string) (Signal, bool) {
	for _, s := range r.Signals {
		if s.Instrument == instrument {
			return s, true
		}
	}
	return Signal{}, false
}
