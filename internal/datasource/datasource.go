// Package datasource fetches the NSE derivatives archives a signal
// computation needs: the participant-wise open interest CSV for the current
// date and the FII derivatives statistics workbooks for both dates.
package datasource

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/seenimoa/fnopart/internal/table"
)

// Resource names, used in errors, logs and metrics.
const (
	ResourceHandshake   = "handshake"
	ResourceParticipant = "participant"
	ResourceFIICurrent  = "fii_current"
	ResourceFIIPrevious = "fii_previous"
)

// DefaultUserAgent is the user agent string used for archive requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Fetcher retrieves and decodes the three documents for a date pair.
type Fetcher interface {
	Fetch(ctx context.Context, previous, current time.Time) (*RawSnapshot, error)
}

// Document is one archive file as served.
type Document struct {
	Resource    string    `json:"resource"`
	URL         string    `json:"url"`
	Date        time.Time `json:"date"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
}

// Ext returns the file extension of the document's URL path, without the dot.
func (d Document) Ext() string {
	if ext := path.Ext(d.URL); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return "bin"
}

// RawSnapshot holds the fetched documents and their decoded tables.
type RawSnapshot struct {
	Previous time.Time
	Current  time.Time

	Participant Document
	FIICurrent  Document
	FIIPrevious Document

	ParticipantTable *table.Raw
	FIICurrentTable  *table.Raw
	FIIPreviousTable *table.Raw

	FetchedAt time.Time
}

// Documents lists the snapshot's documents in fetch order.
func (s *RawSnapshot) Documents() []Document {
	return []Document{s.Participant, s.FIICurrent, s.FIIPrevious}
}

// FetchError reports a failed archive request: a transport failure or a
// non-2xx response. Body holds at most the first KiB of the response.
type FetchError struct {
	Resource   string
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (%s): %v", e.Resource, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): HTTP %d %s", e.Resource, e.URL, e.StatusCode, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFound reports whether the archive answered 404, which usually means no
// file was published for that date (weekend or trading holiday).
func (e *FetchError) NotFound() bool { return e.StatusCode == 404 }
