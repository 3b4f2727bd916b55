package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/fnopart/internal/analysis/participant"
	"github.com/seenimoa/fnopart/internal/archive"
	"github.com/seenimoa/fnopart/internal/datasource"
	"github.com/seenimoa/fnopart/internal/datasource/sourcetest"
	"github.com/seenimoa/fnopart/internal/metrics"
	"github.com/seenimoa/fnopart/internal/table"
	"github.com/seenimoa/fnopart/pkg/models"
	"github.com/seenimoa/fnopart/pkg/utils"
)

var (
	testPrev = time.Date(2026, 2, 19, 0, 0, 0, 0, utils.IST)
	testCurr = time.Date(2026, 2, 20, 0, 0, 0, 0, utils.IST)
	testNow  = time.Date(2026, 2, 20, 18, 30, 0, 0, utils.IST)
)

func newTestService(f datasource.Fetcher, rec *metrics.Recorder) *Service {
	return New(Config{
		Fetcher: f,
		Cache:   datasource.NewSnapshotCache(time.Hour),
		Metrics: rec,
		Now:     func() time.Time { return testNow },
	})
}

func directions(r *models.Report) map[string]models.Direction {
	out := make(map[string]models.Direction, len(r.Signals))
	for _, s := range r.Signals {
		out[s.Instrument] = s.Direction
	}
	return out
}

func TestComputeSignalsValueWeighted(t *testing.T) {
	rec := metrics.New()
	svc := newTestService(sourcetest.NewFetcher(t), rec)

	report, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	require.NoError(t, err)

	assert.Equal(t, string(participant.ValueWeighted), report.Variant)
	assert.False(t, report.FromCache)
	assert.Equal(t, testCurr, report.CurrentDate)
	assert.Equal(t, testPrev, report.PreviousDate)
	assert.Len(t, report.Participants, 5)
	assert.Len(t, report.FIICurrent, 6)
	assert.Len(t, report.FIIPrevious, 6)

	assert.Equal(t, map[models.InstrumentCategory]float64{
		models.IndexFutures: 450,
		models.StockFutures: 800,
		models.IndexOptions: 800,
		models.StockOptions: 380,
	}, report.CategoryOI)

	assert.Equal(t, map[string]models.Direction{
		"INDEX FUTURES":         models.Neutral,
		"NIFTY FUTURES":         models.Long,
		"INDEX OPTIONS":         models.Short,
		"STOCK FUTURES":         models.Neutral,
		"STOCK OPTIONS":         models.Long,
		"INTEREST RATE FUTURES": models.Neutral,
	}, directions(report))

	order := make([]string, 0, len(report.Signals))
	for _, s := range report.Signals {
		order = append(order, s.Instrument)
	}
	assert.Equal(t, []string{"INDEX FUTURES", "NIFTY FUTURES", "INDEX OPTIONS", "STOCK FUTURES", "STOCK OPTIONS", "INTEREST RATE FUTURES"}, order)

	sig, ok := report.SignalFor("INDEX OPTIONS")
	require.True(t, ok)
	assert.Equal(t, 2400.0, sig.CurrentFIIOI)
	assert.Equal(t, 1200.0, sig.PreviousFIIOI)
	assert.InDelta(t, -2000.0, sig.NetSellValue, 1e-9)

	// Two blank/note rows fall out of each FII table.
	assert.Equal(t, map[string]int{TableFIICurrent: 2, TableFIIPrevious: 2}, report.DroppedRows)
	body := scrape(t, rec)
	assert.Contains(t, body, `fnopart_signals_total{direction="LONG"} 2`)
	assert.Contains(t, body, `fnopart_signals_total{direction="SHORT"} 1`)
	assert.Contains(t, body, `fnopart_signals_total{direction="NEUTRAL"} 3`)
	assert.Contains(t, body, `fnopart_rows_dropped_total{reason="incomplete",table="fii_current"} 2`)
	assert.Contains(t, body, `fnopart_cache_lookups_total{result="miss"} 1`)
}

func scrape(t *testing.T, rec *metrics.Recorder) string {
	t.Helper()
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestComputeOIOnly(t *testing.T) {
	svc := newTestService(sourcetest.NewFetcher(t), nil)

	report, err := svc.Compute(context.Background(), Request{Previous: testPrev, Current: testCurr, Variant: participant.OIOnly})
	require.NoError(t, err)
	assert.Equal(t, string(participant.OIOnly), report.Variant)
	assert.Equal(t, map[string]models.Direction{
		"INDEX FUTURES":         models.Long,
		"NIFTY FUTURES":         models.Long,
		"INDEX OPTIONS":         models.Neutral,
		"STOCK FUTURES":         models.Neutral,
		"STOCK OPTIONS":         models.Long,
		"INTEREST RATE FUTURES": models.Long,
	}, directions(report))

	for _, s := range report.Signals {
		assert.Zero(t, s.NetSellValue, s.Instrument)
	}
}

func TestComputeUsesCache(t *testing.T) {
	f := sourcetest.NewFetcher(t)
	rec := metrics.New()
	svc := newTestService(f, rec)
	ctx := context.Background()

	first, err := svc.ComputeSignals(ctx, testPrev, testCurr)
	require.NoError(t, err)
	second, err := svc.ComputeSignals(ctx, testPrev.Add(3*time.Hour), testCurr.Add(5*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, f.Calls())
	assert.False(t, first.FromCache)
	assert.True(t, second.FromCache)
	assert.Equal(t, directions(first), directions(second))
	assert.Contains(t, scrape(t, rec), `fnopart_cache_lookups_total{result="hit"} 1`)

	assert.Equal(t, 1, svc.ClearFetchCache())
	_, err = svc.ComputeSignals(ctx, testPrev, testCurr)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Calls())
}

func TestComputeWithoutCache(t *testing.T) {
	f := sourcetest.NewFetcher(t)
	svc := New(Config{Fetcher: f, Now: func() time.Time { return testNow }})

	for i := 0; i < 2; i++ {
		_, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, 0, svc.ClearFetchCache())
}

func TestComputeValidationBeforeFetch(t *testing.T) {
	tests := []struct {
		name      string
		prev      time.Time
		curr      time.Time
		wantField string
		wantMsg   string
	}{
		{"same day", testCurr, testCurr, "previous", MsgPreviousNotBeforeCurrent},
		{"inverted", testCurr, testPrev, "previous", MsgPreviousNotBeforeCurrent},
		{"future", testCurr, testCurr.AddDate(0, 0, 3), "current", MsgCurrentInFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sourcetest.NewFetcher(t)
			svc := newTestService(f, nil)

			_, err := svc.ComputeSignals(context.Background(), tt.prev, tt.curr)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, tt.wantMsg, ve.Error())
			assert.Zero(t, f.Calls())
		})
	}
}

func TestComputeFetchError(t *testing.T) {
	f := sourcetest.NewFetcher(t)
	f.SetErr(&datasource.FetchError{Resource: datasource.ResourceFIIPrevious, URL: "http://nse.test/p.xls", StatusCode: 404, Status: "404 Not Found"})
	svc := newTestService(f, nil)

	var events []Event
	svc.Subscribe(ObserverFunc(func(e Event) { events = append(events, e) }))

	_, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	var fe *datasource.FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.NotFound())

	require.Len(t, events, 2)
	assert.Equal(t, StageFetching, events[0].Stage)
	assert.Equal(t, StageFailed, events[1].Stage)
	assert.Contains(t, events[1].Error, "HTTP 404")
}

func TestComputeParseError(t *testing.T) {
	f := sourcetest.NewFetcher(t)
	f.ParticipantCSV = []byte("banner\nClient Type,Future Index Long\nClient,12x\n")
	svc := newTestService(f, nil)

	_, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	var pe *table.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, TableParticipant, pe.Table)
}

func TestComputeEvents(t *testing.T) {
	svc := newTestService(sourcetest.NewFetcher(t), nil)

	var stages []Stage
	svc.Subscribe(ObserverFunc(func(e Event) {
		stages = append(stages, e.Stage)
		assert.Equal(t, e.Stage.Label(), e.Label)
		assert.Equal(t, "2026-02-19", e.Previous)
		assert.Equal(t, "2026-02-20", e.Current)
	}))

	_, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageFetching, StageNormalizing, StageAnalyzing, StageComplete}, stages)
}

func TestComputeArchives(t *testing.T) {
	dir := t.TempDir()
	sink := archive.NewLocalSink(dir)
	svc := New(Config{
		Fetcher:  sourcetest.NewFetcher(t),
		Cache:    datasource.NewSnapshotCache(time.Hour),
		Archiver: archive.NewWithSink(sink, "nse", "snappy", nil),
		Now:      func() time.Time { return testNow },
	})

	_, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	require.NoError(t, err)

	curr, err := filepath.Glob(filepath.Join(dir, "nse", "date=2026-02-20", "*"))
	require.NoError(t, err)
	assert.Len(t, curr, 4) // participant csv, fii xls, two parquet tables
	prev, err := filepath.Glob(filepath.Join(dir, "nse", "date=2026-02-19", "*"))
	require.NoError(t, err)
	assert.Len(t, prev, 2)

	// Cache hits are not archived again.
	_, err = svc.ComputeSignals(context.Background(), testPrev, testCurr)
	require.NoError(t, err)
	curr, _ = filepath.Glob(filepath.Join(dir, "nse", "date=2026-02-20", "*"))
	assert.Len(t, curr, 4)
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}

func TestComputeArchiveFailureNotFatal(t *testing.T) {
	svc := New(Config{
		Fetcher:  sourcetest.NewFetcher(t),
		Archiver: archive.NewWithSink(failingSink{}, "nse", "none", nil),
		Now:      func() time.Time { return testNow },
	})

	report, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	require.NoError(t, err)
	assert.Len(t, report.Signals, 6)
}

func TestResolveDefaultDates(t *testing.T) {
	saturday := time.Date(2026, 2, 21, 11, 0, 0, 0, utils.IST)
	svc := New(Config{Now: func() time.Time { return saturday }})

	curr, prev := svc.ResolveDefaultDates()
	assert.Equal(t, testCurr, curr)
	assert.Equal(t, testPrev, prev)
}

func TestNoFetcher(t *testing.T) {
	svc := New(Config{Now: func() time.Time { return testNow }})
	_, err := svc.ComputeSignals(context.Background(), testPrev, testCurr)
	assert.ErrorContains(t, err, "no fetcher configured")
}
