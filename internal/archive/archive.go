// Package archive persists fetched NSE documents and their normalized tables
// to a local directory or an S3 bucket.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/fnopart/internal/config"
	"github.com/seenimoa/fnopart/internal/datasource"
	"github.com/seenimoa/fnopart/internal/logger"
	"github.com/seenimoa/fnopart/pkg/models"
	"github.com/seenimoa/fnopart/pkg/utils"
)

const parquetContentType = "application/vnd.apache.parquet"

// Batch is one computed date pair ready for archiving.
type Batch struct {
	Snapshot     *datasource.RawSnapshot
	Participants []models.ParticipantOIRow
	FIICurrent   []models.FIIStatsRow
	FIIPrevious  []models.FIIStatsRow
}

// Archiver writes batches to a Sink.
type Archiver struct {
	sink        Sink
	prefix      string
	compression string
	log         *logrus.Entry
	newID       func() string
}

// New builds an Archiver from cfg. It returns nil when archiving is disabled;
// a nil Archiver's Store is a no-op.
func New(ctx context.Context, cfg config.ArchiveConfig, log logrus.FieldLogger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var sink Sink
	switch cfg.Sink {
	case config.SinkLocal, "":
		sink = NewLocalSink(cfg.Dir)
	case config.SinkS3:
		s3Sink, err := NewS3Sink(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	default:
		return nil, fmt.Errorf("unknown archive sink %q", cfg.Sink)
	}
	return NewWithSink(sink, cfg.Prefix, cfg.Compression, log), nil
}

// NewWithSink builds an Archiver over an existing sink.
func NewWithSink(sink Sink, prefix, compression string, log logrus.FieldLogger) *Archiver {
	if log == nil {
		log = logger.Discard()
	}
	return &Archiver{
		sink:        sink,
		prefix:      strings.Trim(prefix, "/"),
		compression: compression,
		log:         logger.WithComponent(log, "archive"),
		newID:       uuid.NewString,
	}
}

// Key builds an object key: {prefix}/date=YYYY-MM-DD/{name}_{id}.{ext}
func (a *Archiver) Key(date time.Time, name, ext string) string {
	key := fmt.Sprintf("date=%s/%s_%s.%s", utils.DateOnly(date).Format("2006-01-02"), name, a.newID(), strings.TrimPrefix(ext, "."))
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// Store writes the raw documents and the normalized tables of b. It returns
// the keys written and the first error; remaining objects are still
// attempted after a failure.
func (a *Archiver) Store(ctx context.Context, b Batch) ([]string, error) {
	if a == nil || b.Snapshot == nil {
		return nil, nil
	}

	type object struct {
		key         string
		data        []byte
		contentType string
	}
	var objects []object

	for _, doc := range b.Snapshot.Documents() {
		if len(doc.Data) == 0 {
			continue
		}
		objects = append(objects, object{a.Key(doc.Date, doc.Resource, doc.Ext()), doc.Data, doc.ContentType})
	}

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	curr := b.Snapshot.Current
	prev := b.Snapshot.Previous
	if len(b.Participants) > 0 {
		data, err := encodeParquet(participantRecords(curr.Format("2006-01-02"), b.Participants), a.compression)
		if err != nil {
			keep(fmt.Errorf("encode participant table: %w", err))
		} else {
			objects = append(objects, object{a.Key(curr, "participant_oi", "parquet"), data, parquetContentType})
		}
	}
	for _, t := range []struct {
		date time.Time
		rows []models.FIIStatsRow
	}{{curr, b.FIICurrent}, {prev, b.FIIPrevious}} {
		if len(t.rows) == 0 {
			continue
		}
		data, err := encodeParquet(fiiStatsRecords(t.date.Format("2006-01-02"), t.rows), a.compression)
		if err != nil {
			keep(fmt.Errorf("encode fii stats table: %w", err))
			continue
		}
		objects = append(objects, object{a.Key(t.date, "fii_stats", "parquet"), data, parquetContentType})
	}

	var written []string
	for _, o := range objects {
		if err := ctx.Err(); err != nil {
			keep(err)
			break
		}
		if err := a.sink.Put(ctx, o.key, o.data, o.contentType); err != nil {
			a.log.WithError(err).WithField("key", o.key).Warn("archive write failed")
			keep(err)
			continue
		}
		written = append(written, o.key)
	}

	a.log.WithFields(logrus.Fields{
		"sink":    a.sink.Name(),
		"objects": len(written),
	}).Info("archived snapshot")
	return written, firstErr
}
