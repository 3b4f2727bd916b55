// Package participant derives directional F&O signals by comparing net
// participant open interest per instrument category against FII open
// interest on the previous trading day.
package participant

import (
	"fmt"
	"strings"

	"github.com/seenimoa/fnopart/pkg/models"
)

// Variant selects the signal rule.
type Variant string

const (
	// OIOnly compares participant OI with previous FII OI and requires the
	// current FII OI to agree in sign.
	OIOnly Variant = "oi_only"
	// ValueWeighted compares participant OI with previous FII OI and
	// requires FII net sell value to agree in sign.
	ValueWeighted Variant = "value_weighted"
)

// DefaultVariant is used when none is configured.
const DefaultVariant = ValueWeighted

// NeutralExplanation accompanies every NEUTRAL signal.
const NeutralExplanation = "No clear trading signal based on the current derivatives OI data."

// ParseVariant accepts a variant name; empty selects DefaultVariant.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return DefaultVariant, nil
	case OIOnly, ValueWeighted:
		return v, nil
	default:
		return "", fmt.Errorf("unknown signal variant %q (want %q or %q)", s, OIOnly, ValueWeighted)
	}
}

// AggregateCategoryOI sums long minus short per category over every
// participant row except TOTAL.
func AggregateCategoryOI(rows []models.ParticipantOIRow) map[models.InstrumentCategory]float64 {
	out := make(map[models.InstrumentCategory]float64, len(models.Categories))
	for _, c := range models.Categories {
		out[c] = 0
	}
	for _, r := range rows {
		if strings.TrimSpace(r.ClientType) == models.ClientTypeTotal {
			continue
		}
		out[models.IndexFutures] += r.FutureIndexLong - r.FutureIndexShort
		out[models.StockFutures] += r.FutureStockLong - r.FutureStockShort
		out[models.IndexOptions] += (r.OptionIndexCallLong + r.OptionIndexPutLong) - (r.OptionIndexCallShort + r.OptionIndexPutShort)
		out[models.StockOptions] += (r.OptionStockCallLong + r.OptionStockPutLong) - (r.OptionStockCallShort + r.OptionStockPutShort)
	}
	return out
}

// InstrumentOI maps an FII instrument label to its end-of-day open interest.
type InstrumentOI map[string]float64

// Lookup returns the open interest for label, 0 when absent.
func (m InstrumentOI) Lookup(label string) float64 {
	return m[label]
}

// OpenInterestByInstrument indexes FII rows by label; a repeated label keeps
// its last value.
func OpenInterestByInstrument(rows []models.FIIStatsRow) InstrumentOI {
	out := make(InstrumentOI, len(rows))
	for _, r := range rows {
		out[r.Instrument] = r.OIContracts
	}
	return out
}

// Classify maps an FII instrument label to the participant category it is
// compared against. Rules apply in order:
//
//	contains FUTURES, no STOCK -> INDEX FUTURES
//	equals STOCK FUTURES       -> STOCK FUTURES
//	contains OPTIONS, no STOCK -> INDEX OPTIONS
//	equals STOCK OPTIONS       -> STOCK OPTIONS
//
// Anything else is unclassified and gets no signal.
func Classify(label string) (models.InstrumentCategory, bool) {
	hasStock := strings.Contains(label, "STOCK")
	switch {
	case strings.Contains(label, "FUTURES") && !hasStock:
		return models.IndexFutures, true
	case label == string(models.StockFutures):
		return models.StockFutures, true
	case strings.Contains(label, "OPTIONS") && !hasStock:
		return models.IndexOptions, true
	case label == string(models.StockOptions):
		return models.StockOptions, true
	}
	return "", false
}

// Inputs are the figures one signal decision is made from.
type Inputs struct {
	ParticipantOI float64
	CurrentFIIOI  float64
	PreviousFIIOI float64
	NetSellValue  float64 // crores
}

// Decide applies the variant's rule. Comparisons are strict, so equal
// participant and previous FII OI is always NEUTRAL.
func Decide(v Variant, in Inputs) (models.Direction, string) {
	if v == OIOnly {
		switch {
		case in.ParticipantOI > in.PreviousFIIOI && in.CurrentFIIOI > 0:
			return models.Long, fmt.Sprintf("Possible LONG: Participant OI (%.0f) > Prev FII OI (%.0f) and Curr FII OI > 0 (%.0f)",
				in.ParticipantOI, in.PreviousFIIOI, in.CurrentFIIOI)
		case in.ParticipantOI < in.PreviousFIIOI && in.CurrentFIIOI < 0:
			return models.Short, fmt.Sprintf("Possible SHORT: Participant OI (%.0f) < Prev FII OI (%.0f) and Curr FII OI < 0 (%.0f)",
				in.ParticipantOI, in.PreviousFIIOI, in.CurrentFIIOI)
		}
		return models.Neutral, NeutralExplanation
	}

	switch {
	case in.NetSellValue > 0 && in.ParticipantOI > in.PreviousFIIOI:
		return models.Long, fmt.Sprintf("Possible LONG: FII net sell value (%.2f Cr) > 0 and Participant OI (%.0f) > Prev FII OI (%.0f)",
			in.NetSellValue, in.ParticipantOI, in.PreviousFIIOI)
	case in.NetSellValue < 0 && in.ParticipantOI < in.PreviousFIIOI:
		return models.Short, fmt.Sprintf("Possible SHORT: FII net sell value (%.2f Cr) < 0 and Participant OI (%.0f) < Prev FII OI (%.0f)",
			in.NetSellValue, in.ParticipantOI, in.PreviousFIIOI)
	}
	return models.Neutral, NeutralExplanation
}

// Result is the engine output for one date pair.
type Result struct {
	Signals       []models.Signal
	CategoryOI    map[models.InstrumentCategory]float64
	CurrentFIIOI  InstrumentOI
	PreviousFIIOI InstrumentOI
}

// Compute emits one signal per classified instrument of the current FII
// table, in table order. A label repeated in the table yields one signal at
// its first position using its last row.
func Compute(part []models.ParticipantOIRow, curr, prev []models.FIIStatsRow, v Variant) Result {
	res := Result{
		CategoryOI:    AggregateCategoryOI(part),
		CurrentFIIOI:  OpenInterestByInstrument(curr),
		PreviousFIIOI: OpenInterestByInstrument(prev),
	}

	last := make(map[string]models.FIIStatsRow, len(curr))
	for _, r := range curr {
		last[r.Instrument] = r
	}

	seen := make(map[string]bool, len(curr))
	for _, r := range curr {
		label := r.Instrument
		if seen[label] {
			continue
		}
		seen[label] = true

		category, ok := Classify(label)
		if !ok {
			continue
		}

		in := Inputs{
			ParticipantOI: res.CategoryOI[category],
			CurrentFIIOI:  res.CurrentFIIOI.Lookup(label),
			PreviousFIIOI: res.PreviousFIIOI.Lookup(label),
		}
		if v != OIOnly {
			in.NetSellValue = last[label].NetSellValue()
		}
		dir, why := Decide(v, in)

		res.Signals = append(res.Signals, models.Signal{
			Instrument:    label,
			Category:      category,
			Direction:     dir,
			Explanation:   why,
			ParticipantOI: in.ParticipantOI,
			CurrentFIIOI:  in.CurrentFIIOI,
			PreviousFIIOI: in.PreviousFIIOI,
			NetSellValue:  in.NetSellValue,
		})
	}
	return res
}

// Summary counts signals by direction.
func Summary(signals []models.Signal) map[models.Direction]int {
	out := map[models.Direction]int{models.Long: 0, models.Short: 0, models.Neutral: 0}
	for _, s := range signals {
		out[s.Direction]++
	}
	return out
}
