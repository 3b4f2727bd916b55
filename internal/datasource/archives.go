package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/seenimoa/fnopart/internal/config"
	"github.com/seenimoa/fnopart/internal/logger"
	"github.com/seenimoa/fnopart/internal/metrics"
	"github.com/seenimoa/fnopart/internal/table"
	"github.com/seenimoa/fnopart/pkg/utils"
)

const (
	defaultArchiveBase = "https://nsearchives.nseindia.com/content"
	defaultHomeURL     = "https://www.nseindia.com"
	defaultRate        = 3 // requests per second
	maxErrorBody       = 1024
)

// Options configures an Archives client. Zero values take defaults.
type Options struct {
	BaseURL           string
	HomeURL           string
	UserAgent         string
	Timeout           time.Duration
	HandshakeTimeout  time.Duration
	RequestsPerSecond float64

	Logger  logrus.FieldLogger
	Metrics *metrics.Recorder
}

// OptionsFromConfig maps the source config section onto Options.
func OptionsFromConfig(cfg config.SourceConfig) Options {
	return Options{
		BaseURL:           cfg.ArchiveBaseURL,
		HomeURL:           cfg.HomeURL,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// Archives fetches NSE archive files over one cookie-carrying session.
type Archives struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

// NewArchives creates an archives client.
func NewArchives(opts Options) *Archives {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultArchiveBase
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HomeURL == "" {
		opts.HomeURL = defaultHomeURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRate
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	jar, _ := cookiejar.New(nil)
	return &Archives{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:     log.WithField("component", "archives"),
		metrics: opts.Metrics,
	}
}

// ParticipantURL returns the participant OI CSV URL for a date.
func (a *Archives) ParticipantURL(d time.Time) string {
	return fmt.Sprintf("%s/nsccl/fao_participant_oi_%s.csv", a.opts.BaseURL, utils.FormatCompactDate(d))
}

// FIIStatsURL returns the FII statistics workbook URL for a date.
func (a *Archives) FIIStatsURL(d time.Time) string {
	return fmt.Sprintf("%s/fo/fii_stats_%s.xls", a.opts.BaseURL, utils.FormatArchiveDate(d))
}

// Fetch performs the session handshake, then retrieves and decodes the
// participant CSV for current and the FII workbooks for current and
// previous, in that order. Any failure aborts the whole fetch.
func (a *Archives) Fetch(ctx context.Context, previous, current time.Time) (*RawSnapshot, error) {
	if err := a.handshake(ctx); err != nil {
		return nil, err
	}

	snap := &RawSnapshot{Previous: previous, Current: current}

	var err error
	if snap.Participant, err = a.get(ctx, ResourceParticipant, a.ParticipantURL(current), current); err != nil {
		return nil, err
	}
	if snap.FIICurrent, err = a.get(ctx, ResourceFIICurrent, a.FIIStatsURL(current), current); err != nil {
		return nil, err
	}
	if snap.FIIPrevious, err = a.get(ctx, ResourceFIIPrevious, a.FIIStatsURL(previous), previous); err != nil {
		return nil, err
	}

	if snap.ParticipantTable, err = table.DecodeCSV(ResourceParticipant, bytes.NewReader(snap.Participant.Data), 1); err != nil {
		return nil, fmt.Errorf("decode participant OI: %w", err)
	}
	if snap.FIICurrentTable, err = table.DecodeSpreadsheet(ResourceFIICurrent, snap.FIICurrent.Data, 1, 2); err != nil {
		return nil, fmt.Errorf("decode current FII stats: %w", err)
	}
	if snap.FIIPreviousTable, err = table.DecodeSpreadsheet(ResourceFIIPrevious, snap.FIIPrevious.Data, 1, 2); err != nil {
		return nil, fmt.Errorf("decode previous FII stats: %w", err)
	}

	snap.FetchedAt = utils.NowIST()
	return snap, nil
}

// handshake visits the site home so the archive host sees session cookies.
// It is bounded by its own timeout independent of the caller's deadline.
func (a *Archives) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.HandshakeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := a.do(ctx, a.opts.HomeURL, "text/html,application/xhtml+xml")
	if err == nil {
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body
		err = checkStatus(ResourceHandshake, a.opts.HomeURL, resp)
	} else {
		err = &FetchError{Resource: ResourceHandshake, URL: a.opts.HomeURL, Err: err}
	}
	a.metrics.ObserveFetch(ResourceHandshake, err, time.Since(start))
	if err != nil {
		a.log.WithError(err).Warn("session handshake failed")
		return err
	}
	a.log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Debug("session handshake ok")
	return nil
}

// get retrieves one archive file.
func (a *Archives) get(ctx context.Context, resource, url string, date time.Time) (Document, error) {
	doc := Document{Resource: resource, URL: url, Date: date}

	if err := a.limiter.Wait(ctx); err != nil {
		return doc, &FetchError{Resource: resource, URL: url, Err: err}
	}

	start := time.Now()
	data, contentType, err := a.read(ctx, resource, url)
	a.metrics.ObserveFetch(resource, err, time.Since(start))

	entry := a.log.WithFields(logrus.Fields{
		"resource": resource,
		"url":      url,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		entry.WithError(err).Warn("archive fetch failed")
		return doc, err
	}
	entry.WithField("bytes", len(data)).Info("archive fetched")

	doc.Data = data
	doc.ContentType = contentType
	return doc, nil
}

func (a *Archives) read(ctx context.Context, resource, url string) ([]byte, string, error) {
	resp, err := a.do(ctx, url, "*/*")
	if err != nil {
		return nil, "", &FetchError{Resource: resource, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resource, url, resp); err != nil {
		return nil, "", err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &FetchError{Resource: resource, URL: url, StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// do performs a GET with the browser-like headers the archive host expects.
func (a *Archives) do(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.opts.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", a.opts.HomeURL)
	return a.client.Do(req)
}

func checkStatus(resource, url string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &FetchError{
		Resource:   resource,
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
