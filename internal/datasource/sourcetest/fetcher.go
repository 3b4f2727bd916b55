// Package sourcetest provides an in-memory datasource.Fetcher for tests.
package sourcetest

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/fnopart/internal/datasource"
	"github.com/seenimoa/fnopart/internal/table"
	"github.com/seenimoa/fnopart/internal/table/tabletest"
)

// Fetcher serves fixture documents and decodes them the way the archives
// client does. Set Err to make every fetch fail.
type Fetcher struct {
	ParticipantCSV []byte
	FIICurrent     []byte
	FIIPrevious    []byte
	FetchedAt      time.Time

	mu    sync.Mutex
	err   error
	calls int
}

// NewFetcher returns a Fetcher over the sample tables: current FII open
// interest is twice the previous day's.
func NewFetcher(tb testing.TB) *Fetcher {
	tb.Helper()
	return &Fetcher{
		ParticipantCSV: tabletest.ParticipantCSV(tabletest.SampleParticipants()),
		FIICurrent:     tabletest.FIIStatsXLSX(tb, tabletest.SampleFII(2)),
		FIIPrevious:    tabletest.FIIStatsXLSX(tb, tabletest.SampleFII(1)),
	}
}

// SetErr makes subsequent fetches fail with err; nil restores success.
func (f *Fetcher) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Calls returns how many fetches were attempted.
func (f *Fetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Fetch implements datasource.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, previous, current time.Time) (*datasource.RawSnapshot, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &datasource.RawSnapshot{
		Previous:    previous,
		Current:     current,
		Participant: document(datasource.ResourceParticipant, "nsccl/fao_participant_oi.csv", current, f.ParticipantCSV),
		FIICurrent:  document(datasource.ResourceFIICurrent, "fo/fii_stats_current.xls", current, f.FIICurrent),
		FIIPrevious: document(datasource.ResourceFIIPrevious, "fo/fii_stats_previous.xls", previous, f.FIIPrevious),
		FetchedAt:   f.FetchedAt,
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}

	if snap.ParticipantTable, err = table.DecodeCSV(datasource.ResourceParticipant, bytes.NewReader(f.ParticipantCSV), 1); err != nil {
		return nil, err
	}
	if snap.FIICurrentTable, err = table.DecodeSpreadsheet(datasource.ResourceFIICurrent, f.FIICurrent, 1, 2); err != nil {
		return nil, err
	}
	if snap.FIIPreviousTable, err = table.DecodeSpreadsheet(datasource.ResourceFIIPrevious, f.FIIPrevious, 1, 2); err != nil {
		return nil, err
	}
	return snap, nil
}

func document(resource, path string, date time.Time, data []byte) datasource.Document {
	return datasource.Document{
		Resource: resource,
		URL:      "http://nse.test/content/" + path,
		Date:     date,
		Data:     data,
	}
}
