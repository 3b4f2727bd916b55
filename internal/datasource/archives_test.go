package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/fnopart/internal/metrics"
	"github.com/seenimoa/fnopart/internal/table"
	"github.com/seenimoa/fnopart/internal/table/tabletest"
	"github.com/seenimoa/fnopart/pkg/utils"
)

var (
	testPrev = time.Date(2026, 2, 19, 0, 0, 0, 0, utils.IST)
	testCurr = time.Date(2026, 2, 20, 0, 0, 0, 0, utils.IST)
)

// fakeNSE serves the home page and the three archive files.
type fakeNSE struct {
	t *testing.T

	mu        sync.Mutex
	requests  []*http.Request
	files     map[string][]byte
	status    map[string]int
	homeDelay time.Duration
}

func newFakeNSE(t *testing.T) *fakeNSE {
	return &fakeNSE{
		t: t,
		files: map[string][]byte{
			"/content/nsccl/fao_participant_oi_20022026.csv": tabletest.ParticipantCSV(tabletest.SampleParticipants()),
			"/content/fo/fii_stats_20-Feb-2026.xls":          tabletest.FIIStatsXLSX(t, tabletest.SampleFII(2)),
			"/content/fo/fii_stats_19-Feb-2026.xls":          tabletest.FIIStatsXLSX(t, tabletest.SampleFII(1)),
		},
		status: map[string]int{},
	}
}

func (f *fakeNSE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	status, hasStatus := f.status[r.URL.Path]
	data, hasFile := f.files[r.URL.Path]
	f.mu.Unlock()

	if r.URL.Path == "/" {
		if f.homeDelay > 0 {
			select {
			case <-time.After(f.homeDelay):
			case <-r.Context().Done():
				return
			}
		}
		if hasStatus {
			w.WriteHeader(status)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session-1", Path: "/"})
		w.Write([]byte("<html>home</html>"))
		return
	}
	if hasStatus {
		http.Error(w, "Resource not found", status)
		return
	}
	if !hasFile {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

func (f *fakeNSE) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		out = append(out, r.URL.Path)
	}
	return out
}

func newTestArchives(srv *httptest.Server, rec *metrics.Recorder) *Archives {
	return NewArchives(Options{
		BaseURL:           srv.URL + "/content",
		HomeURL:           srv.URL + "/",
		HandshakeTimeout:  time.Second,
		RequestsPerSecond: 1000,
		Metrics:           rec,
	})
}

func TestArchiveURLs(t *testing.T) {
	a := NewArchives(Options{})
	d := time.Date(2026, 3, 5, 0, 0, 0, 0, utils.IST)

	if got, want := a.ParticipantURL(d), "https://nsearchives.nseindia.com/content/nsccl/fao_participant_oi_05032026.csv"; got != want {
		t.Errorf("ParticipantURL = %q, want %q", got, want)
	}
	if got, want := a.FIIStatsURL(d), "https://nsearchives.nseindia.com/content/fo/fii_stats_05-Mar-2026.xls"; got != want {
		t.Errorf("FIIStatsURL = %q, want %q", got, want)
	}
}

func TestFetchSuccess(t *testing.T) {
	fake := newFakeNSE(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := metrics.New()
	snap, err := newTestArchives(srv, rec).Fetch(context.Background(), testPrev, testCurr)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	wantOrder := []string{
		"/",
		"/content/nsccl/fao_participant_oi_20022026.csv",
		"/content/fo/fii_stats_20-Feb-2026.xls",
		"/content/fo/fii_stats_19-Feb-2026.xls",
	}
	if got := fake.paths(); strings.Join(got, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("request order:\n got %v\nwant %v", got, wantOrder)
	}

	for _, r := range fake.requests[1:] {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("%s: User-Agent %q", r.URL.Path, r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept") != "*/*" {
			t.Errorf("%s: Accept %q", r.URL.Path, r.Header.Get("Accept"))
		}
		if r.Header.Get("Referer") != srv.URL+"/" {
			t.Errorf("%s: Referer %q", r.URL.Path, r.Header.Get("Referer"))
		}
		if c, err := r.Cookie("nsit"); err != nil || c.Value != "session-1" {
			t.Errorf("%s: handshake cookie not sent", r.URL.Path)
		}
	}

	if snap.ParticipantTable == nil || len(snap.ParticipantTable.Rows) != 5 {
		t.Fatalf("participant table not decoded: %+v", snap.ParticipantTable)
	}
	if len(snap.FIICurrentTable.Headers) != 2 {
		t.Errorf("FII header levels: got %d, want 2", len(snap.FIICurrentTable.Headers))
	}
	if snap.FIICurrent.Ext() != "xls" || snap.Participant.Ext() != "csv" {
		t.Errorf("document ext: %q %q", snap.Participant.Ext(), snap.FIICurrent.Ext())
	}
	if !snap.Current.Equal(testCurr) || !snap.Previous.Equal(testPrev) {
		t.Errorf("snapshot dates: %v %v", snap.Previous, snap.Current)
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestFetchNotFound(t *testing.T) {
	fake := newFakeNSE(t)
	fake.status["/content/fo/fii_stats_19-Feb-2026.xls"] = http.StatusNotFound
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newTestArchives(srv, nil).Fetch(context.Background(), testPrev, testCurr)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.Resource != ResourceFIIPrevious {
		t.Errorf("Resource: got %q, want %q", fe.Resource, ResourceFIIPrevious)
	}
	if !fe.NotFound() {
		t.Errorf("StatusCode: got %d, want 404", fe.StatusCode)
	}
	if !strings.Contains(fe.Body, "Resource not found") {
		t.Errorf("Body: got %q", fe.Body)
	}
}

func TestFetchHandshakeFailure(t *testing.T) {
	fake := newFakeNSE(t)
	fake.status["/"] = http.StatusForbidden
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newTestArchives(srv, nil).Fetch(context.Background(), testPrev, testCurr)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Resource != ResourceHandshake || fe.StatusCode != http.StatusForbidden {
		t.Errorf("got resource %q status %d", fe.Resource, fe.StatusCode)
	}
	if len(fake.paths()) != 1 {
		t.Errorf("no archive request should follow a failed handshake, got %v", fake.paths())
	}
}

func TestFetchHandshakeTimeout(t *testing.T) {
	fake := newFakeNSE(t)
	fake.homeDelay = 2 * time.Second
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := newTestArchives(srv, nil)
	a.opts.HandshakeTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := a.Fetch(context.Background(), testPrev, testCurr)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("handshake timeout not enforced, took %v", elapsed)
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Resource != ResourceHandshake {
		t.Fatalf("expected handshake FetchError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", fe.Err)
	}
}

func TestFetchUndecodableWorkbook(t *testing.T) {
	fake := newFakeNSE(t)
	fake.files["/content/fo/fii_stats_20-Feb-2026.xls"] = []byte("<html>maintenance</html>")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newTestArchives(srv, nil).Fetch(context.Background(), testPrev, testCurr)

	var pe *table.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *table.ParseError, got %v", err)
	}
	if pe.Table != ResourceFIICurrent {
		t.Errorf("Table: got %q", pe.Table)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(newFakeNSE(t))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestArchives(srv, nil).Fetch(ctx, testPrev, testCurr)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFetchErrorMessage(t *testing.T) {
	e := &FetchError{Resource: "participant", URL: "u", StatusCode: 503, Status: "503 Service Unavailable"}
	if got := e.Error(); !strings.Contains(got, "HTTP 503") {
		t.Errorf("Error() = %q", got)
	}
	e = &FetchError{Resource: "participant", URL: "u", Err: errors.New("connection reset")}
	if got := e.Error(); !strings.Contains(got, "connection reset") {
		t.Errorf("Error() = %q", got)
	}
}
