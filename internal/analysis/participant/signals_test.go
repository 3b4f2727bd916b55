package participant

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/seenimoa/fnopart/pkg/models"
)

func f(v float64) *float64 { return &v }

func sampleParticipants() []models.ParticipantOIRow {
	return []models.ParticipantOIRow{
		{ClientType: "Client", FutureIndexLong: 1000, FutureIndexShort: 400, FutureStockLong: 2000, FutureStockShort: 1500,
			OptionIndexCallLong: 900, OptionIndexPutLong: 800, OptionIndexCallShort: 700, OptionIndexPutShort: 600,
			OptionStockCallLong: 300, OptionStockPutLong: 200, OptionStockCallShort: 100, OptionStockPutShort: 50},
		{ClientType: "DII", FutureIndexLong: 200, FutureIndexShort: 100, FutureStockLong: 500, FutureStockShort: 700,
			OptionIndexCallLong: 100, OptionIndexPutLong: 100, OptionIndexCallShort: 50, OptionIndexPutShort: 50,
			OptionStockCallLong: 20, OptionStockPutLong: 20, OptionStockCallShort: 10, OptionStockPutShort: 10},
		{ClientType: "FII", FutureIndexLong: 300, FutureIndexShort: 600, FutureStockLong: 800, FutureStockShort: 400,
			OptionIndexCallLong: 500, OptionIndexPutLong: 600, OptionIndexCallShort: 400, OptionIndexPutShort: 500,
			OptionStockCallLong: 50, OptionStockPutLong: 40, OptionStockCallShort: 30, OptionStockPutShort: 20},
		{ClientType: "Pro", FutureIndexLong: 100, FutureIndexShort: 50, FutureStockLong: 300, FutureStockShort: 200,
			OptionIndexCallLong: 400, OptionIndexPutLong: 300, OptionIndexCallShort: 350, OptionIndexPutShort: 250,
			OptionStockCallLong: 30, OptionStockPutLong: 20, OptionStockCallShort: 60, OptionStockPutShort: 20},
		{ClientType: "TOTAL", FutureIndexLong: 99999, FutureIndexShort: 1, FutureStockLong: 3600, FutureStockShort: 2800,
			OptionIndexCallLong: 1900, OptionIndexPutLong: 1800, OptionIndexCallShort: 1500, OptionIndexPutShort: 1400,
			OptionStockCallLong: 400, OptionStockPutLong: 280, OptionStockCallShort: 200, OptionStockPutShort: 100},
	}
}

func TestAggregateCategoryOI(t *testing.T) {
	got := AggregateCategoryOI(sampleParticipants())
	want := map[models.InstrumentCategory]float64{
		models.IndexFutures: 450,
		models.StockFutures: 800,
		models.IndexOptions: 800,
		models.StockOptions: 380,
	}
	for c, w := range want {
		if got[c] != w {
			t.Errorf("%s: got %.0f, want %.0f", c, got[c], w)
		}
	}
}

func TestAggregateCategoryOIExcludesTotal(t *testing.T) {
	rows := sampleParticipants()
	without := AggregateCategoryOI(rows)

	// Renaming the summary row makes it count.
	rows[4].ClientType = "Total "
	with := AggregateCategoryOI(rows)
	if with[models.IndexFutures] == without[models.IndexFutures] {
		t.Error("including the TOTAL row should change INDEX FUTURES")
	}

	// Surrounding whitespace does not hide it.
	rows[4].ClientType = " TOTAL "
	if got := AggregateCategoryOI(rows); got[models.IndexFutures] != without[models.IndexFutures] {
		t.Errorf("padded TOTAL row was aggregated: %.0f", got[models.IndexFutures])
	}
}

func TestAggregateCategoryOIOrderIndependent(t *testing.T) {
	rows := sampleParticipants()
	want := AggregateCategoryOI(rows)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		got := AggregateCategoryOI(rows)
		for _, c := range models.Categories {
			if got[c] != want[c] {
				t.Fatalf("shuffle %d: %s got %.0f, want %.0f", i, c, got[c], want[c])
			}
		}
	}
}

func TestAggregateCategoryOIEmpty(t *testing.T) {
	got := AggregateCategoryOI(nil)
	if len(got) != 4 {
		t.Fatalf("expected all four categories, got %v", got)
	}
	for c, v := range got {
		if v != 0 {
			t.Errorf("%s: got %.0f, want 0", c, v)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  models.InstrumentCategory
		ok    bool
	}{
		{"INDEX FUTURES", models.IndexFutures, true},
		{"NIFTY FUTURES", models.IndexFutures, true},
		{"BANKNIFTY FUTURES", models.IndexFutures, true},
		{"STOCK FUTURES", models.StockFutures, true},
		{"INDEX OPTIONS", models.IndexOptions, true},
		{"FINNIFTY OPTIONS", models.IndexOptions, true},
		{"STOCK OPTIONS", models.StockOptions, true},
		{"STOCK FUTURES AND OPTIONS", "", false},
		{"INTEREST RATE FUTURES", models.IndexFutures, true},
		{"Total", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Classify(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOpenInterestByInstrument(t *testing.T) {
	m := OpenInterestByInstrument([]models.FIIStatsRow{
		{Instrument: "INDEX FUTURES", OIContracts: 10},
		{Instrument: "INDEX FUTURES", OIContracts: 20},
		{Instrument: "STOCK OPTIONS", OIContracts: 5},
	})
	if m.Lookup("INDEX FUTURES") != 20 {
		t.Errorf("last value should win, got %.0f", m.Lookup("INDEX FUTURES"))
	}
	if m.Lookup("NIFTY FUTURES") != 0 {
		t.Error("missing label should default to 0")
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		in      Inputs
		want    models.Direction
	}{
		{"oi long", OIOnly, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500, CurrentFIIOI: 200}, models.Long},
		{"oi short", OIOnly, Inputs{ParticipantOI: -100, PreviousFIIOI: 50, CurrentFIIOI: -20}, models.Short},
		{"oi long needs positive current", OIOnly, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500, CurrentFIIOI: 0}, models.Neutral},
		{"oi equal is neutral", OIOnly, Inputs{ParticipantOI: 500, PreviousFIIOI: 500, CurrentFIIOI: 200}, models.Neutral},
		{"oi ignores value", OIOnly, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500, CurrentFIIOI: 200, NetSellValue: -10}, models.Long},
		{"value long", ValueWeighted, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500, NetSellValue: 12.5}, models.Long},
		{"value short", ValueWeighted, Inputs{ParticipantOI: 100, PreviousFIIOI: 500, NetSellValue: -0.01}, models.Short},
		{"value mixed", ValueWeighted, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500, NetSellValue: -3}, models.Neutral},
		{"value zero net", ValueWeighted, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500}, models.Neutral},
		{"value equal is neutral", ValueWeighted, Inputs{ParticipantOI: 500, PreviousFIIOI: 500, NetSellValue: 99}, models.Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, why := Decide(tt.variant, tt.in)
			if got != tt.want {
				t.Errorf("direction: got %s, want %s (%s)", got, tt.want, why)
			}
			if got == models.Neutral && why != NeutralExplanation {
				t.Errorf("neutral explanation: got %q", why)
			}
			if got != models.Neutral && !strings.HasPrefix(why, "Possible "+string(got)) {
				t.Errorf("explanation: got %q", why)
			}
		})
	}
}

func TestDecideExplanationFormatting(t *testing.T) {
	_, why := Decide(OIOnly, Inputs{ParticipantOI: 1000, PreviousFIIOI: 500, CurrentFIIOI: 200})
	want := "Possible LONG: Participant OI (1000) > Prev FII OI (500) and Curr FII OI > 0 (200)"
	if why != want {
		t.Errorf("got %q\nwant %q", why, want)
	}

	_, why = Decide(ValueWeighted, Inputs{ParticipantOI: -1200.4, PreviousFIIOI: 300, NetSellValue: -199.756})
	want = "Possible SHORT: FII net sell value (-199.76 Cr) < 0 and Participant OI (-1200) < Prev FII OI (300)"
	if why != want {
		t.Errorf("got %q\nwant %q", why, want)
	}
}

func TestCompute(t *testing.T) {
	curr := []models.FIIStatsRow{
		{Instrument: "INDEX FUTURES", OIContracts: 500, BuyValue: f(4100.25), SellValue: f(3900.5)},
		{Instrument: "NIFTY FUTURES", OIContracts: 300, BuyValue: f(2500), SellValue: f(2600)},
		{Instrument: "GOVT SECURITIES", OIContracts: 1},
		{Instrument: "STOCK FUTURES", OIContracts: 1800, BuyValue: f(7600), SellValue: f(7000)},
		{Instrument: "STOCK OPTIONS", OIContracts: 600},
	}
	prev := []models.FIIStatsRow{
		{Instrument: "INDEX FUTURES", OIContracts: 250},
		{Instrument: "STOCK FUTURES", OIContracts: 900},
		{Instrument: "STOCK OPTIONS", OIContracts: 380},
	}

	res := Compute(sampleParticipants(), curr, prev, ValueWeighted)

	wantOrder := []string{"INDEX FUTURES", "NIFTY FUTURES", "STOCK FUTURES", "STOCK OPTIONS"}
	if len(res.Signals) != len(wantOrder) {
		t.Fatalf("got %d signals, want %d: %+v", len(res.Signals), len(wantOrder), res.Signals)
	}
	for i, s := range res.Signals {
		if s.Instrument != wantOrder[i] {
			t.Errorf("signal %d: got %q, want %q", i, s.Instrument, wantOrder[i])
		}
	}

	want := map[string]models.Direction{
		"INDEX FUTURES": models.Neutral, // net sell -199.75 but 450 > 250
		"NIFTY FUTURES": models.Long,    // net sell 100, 450 > 0 (no previous row)
		"STOCK FUTURES": models.Short,   // net sell -600, 800 < 900
		"STOCK OPTIONS": models.Neutral, // 380 == 380
	}
	for _, s := range res.Signals {
		if s.Direction != want[s.Instrument] {
			t.Errorf("%s: got %s, want %s (%s)", s.Instrument, s.Direction, want[s.Instrument], s.Explanation)
		}
	}

	nifty, _ := (&models.Report{Signals: res.Signals}).SignalFor("NIFTY FUTURES")
	if nifty.PreviousFIIOI != 0 {
		t.Errorf("missing previous entry should be 0, got %.0f", nifty.PreviousFIIOI)
	}
	if nifty.Category != models.IndexFutures || nifty.ParticipantOI != 450 {
		t.Errorf("NIFTY FUTURES inputs: %+v", nifty)
	}
	if nifty.NetSellValue != 100 {
		t.Errorf("NIFTY FUTURES net sell: got %.2f, want 100", nifty.NetSellValue)
	}
}

func TestComputeOIOnly(t *testing.T) {
	curr := []models.FIIStatsRow{{Instrument: "INDEX FUTURES", OIContracts: 200, SellValue: f(1)}}
	prev := []models.FIIStatsRow{{Instrument: "INDEX FUTURES", OIContracts: 500}}
	part := []models.ParticipantOIRow{{ClientType: "Client", FutureIndexLong: 1000}}

	res := Compute(part, curr, prev, OIOnly)
	if len(res.Signals) != 1 {
		t.Fatalf("got %d signals", len(res.Signals))
	}
	s := res.Signals[0]
	if s.Direction != models.Long {
		t.Errorf("direction: got %s, want LONG", s.Direction)
	}
	if !strings.Contains(s.Explanation, "1000") || !strings.Contains(s.Explanation, "500") {
		t.Errorf("explanation should carry the inputs: %q", s.Explanation)
	}
	if s.NetSellValue != 0 {
		t.Errorf("oi_only should not report net sell value, got %.2f", s.NetSellValue)
	}
}

func TestComputeDuplicateLabels(t *testing.T) {
	curr := []models.FIIStatsRow{
		{Instrument: "INDEX FUTURES", OIContracts: -5, BuyValue: f(10)},
		{Instrument: "STOCK FUTURES", OIContracts: 1},
		{Instrument: "INDEX FUTURES", OIContracts: 50, SellValue: f(10)},
	}
	part := []models.ParticipantOIRow{{ClientType: "Client", FutureIndexLong: 100}}

	res := Compute(part, curr, nil, ValueWeighted)
	if len(res.Signals) != 2 || res.Signals[0].Instrument != "INDEX FUTURES" {
		t.Fatalf("expected one INDEX FUTURES signal first, got %+v", res.Signals)
	}
	if res.Signals[0].CurrentFIIOI != 50 || res.Signals[0].Direction != models.Long {
		t.Errorf("last row should be used: %+v", res.Signals[0])
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{"", ValueWeighted, false},
		{"oi_only", OIOnly, false},
		{" Value_Weighted ", ValueWeighted, false},
		{"momentum", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseVariant(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSummary(t *testing.T) {
	got := Summary([]models.Signal{{Direction: models.Long}, {Direction: models.Long}, {Direction: models.Neutral}})
	if got[models.Long] != 2 || got[models.Short] != 0 || got[models.Neutral] != 1 {
		t.Errorf("Summary = %v", got)
	}
}
