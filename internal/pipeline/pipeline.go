// Package pipeline runs one signal computation end to end: validate the
// date pair, fetch (or reuse) the archives, normalize the tables, run the
// signal engine and assemble the report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/fnopart/internal/analysis/participant"
	"github.com/seenimoa/fnopart/internal/archive"
	"github.com/seenimoa/fnopart/internal/datasource"
	"github.com/seenimoa/fnopart/internal/logger"
	"github.com/seenimoa/fnopart/internal/metrics"
	"github.com/seenimoa/fnopart/internal/table"
	"github.com/seenimoa/fnopart/pkg/models"
	"github.com/seenimoa/fnopart/pkg/utils"
)

// Table names used for drop counts in reports, logs and metrics.
const (
	TableParticipant = "participant"
	TableFIICurrent  = "fii_current"
	TableFIIPrevious = "fii_previous"
)

// Config wires a Service. Only Fetcher is required.
type Config struct {
	Fetcher  datasource.Fetcher
	Cache    *datasource.SnapshotCache // nil disables caching
	Archiver *archive.Archiver         // nil disables archiving
	Metrics  *metrics.Recorder
	Logger   logrus.FieldLogger
	Variant  participant.Variant
	Now      func() time.Time
}

// Request selects a date pair and signal rule.
type Request struct {
	Previous time.Time
	Current  time.Time
	Variant  participant.Variant // empty uses the service default
}

// Service computes signal reports.
type Service struct {
	fetcher   datasource.Fetcher
	cache     *datasource.SnapshotCache
	archiver  *archive.Archiver
	metrics   *metrics.Recorder
	log       *logrus.Entry
	variant   participant.Variant
	now       func() time.Time
	observers observers
}

// New creates a Service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Variant == "" {
		cfg.Variant = participant.DefaultVariant
	}
	if cfg.Now == nil {
		cfg.Now = utils.NowIST
	}
	return &Service{
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		archiver: cfg.Archiver,
		metrics:  cfg.Metrics,
		log:      logger.WithComponent(log, "pipeline"),
		variant:  cfg.Variant,
		now:      cfg.Now,
	}
}

// Subscribe registers an observer for progress events.
func (s *Service) Subscribe(o Observer) {
	s.observers.add(o)
}

// Variant returns the default signal rule.
func (s *Service) Variant() participant.Variant { return s.variant }

// ResolveDefaultDates returns the current and previous working days as of now.
func (s *Service) ResolveDefaultDates() (current, previous time.Time) {
	return utils.ResolveDefaultDates(s.now())
}

// ClearFetchCache drops all cached snapshots and returns how many there were.
func (s *Service) ClearFetchCache() int {
	if s.cache == nil {
		return 0
	}
	n := s.cache.Len()
	s.cache.Clear()
	s.log.WithField("entries", n).Info("fetch cache cleared")
	return n
}

// ComputeSignals runs the default variant for a date pair.
func (s *Service) ComputeSignals(ctx context.Context, previous, current time.Time) (*models.Report, error) {
	return s.Compute(ctx, Request{Previous: previous, Current: current})
}

// Compute runs one computation. Errors are a *ValidationError, or wrap a
// *datasource.FetchError or *table.ParseError.
func (s *Service) Compute(ctx context.Context, req Request) (*models.Report, error) {
	variant := req.Variant
	if variant == "" {
		variant = s.variant
	}
	previous, current := utils.DateOnly(req.Previous), utils.DateOnly(req.Current)

	if err := ValidateDates(previous, current, s.now()); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"previous": utils.FormatDateIST(previous),
		"current":  utils.FormatDateIST(current),
		"variant":  variant,
	})
	emit := func(stage Stage, err error) {
		e := Event{
			Stage:    stage,
			Label:    stage.Label(),
			Previous: utils.FormatDateIST(previous),
			Current:  utils.FormatDateIST(current),
			Time:     s.now(),
		}
		if err != nil {
			e.Error = err.Error()
		}
		s.observers.emit(e)
	}
	fail := func(err error) (*models.Report, error) {
		log.WithError(err).Error("signal computation failed")
		emit(StageFailed, err)
		return nil, err
	}

	emit(StageFetching, nil)
	snap, fromCache, err := s.snapshot(ctx, previous, current)
	if err != nil {
		return fail(err)
	}

	emit(StageNormalizing, nil)
	n, err := normalize(snap)
	if err != nil {
		return fail(err)
	}
	for name, d := range n.drops {
		if d.Total() == 0 {
			continue
		}
		s.metrics.RowsDropped(name, "incomplete", d.Incomplete)
		s.metrics.RowsDropped(name, "non_numeric", d.NonNumeric)
		log.WithFields(logrus.Fields{
			"table":       name,
			"incomplete":  d.Incomplete,
			"non_numeric": d.NonNumeric,
		}).Info("dropped rows while cleaning")
	}

	emit(StageAnalyzing, nil)
	res := participant.Compute(n.participants, n.fiiCurrent, n.fiiPrevious, variant)
	for _, sig := range res.Signals {
		s.metrics.Signal(string(sig.Direction))
	}

	if !fromCache && s.archiver != nil {
		_, err := s.archiver.Store(ctx, archive.Batch{
			Snapshot:     snap,
			Participants: n.participants,
			FIICurrent:   n.fiiCurrent,
			FIIPrevious:  n.fiiPrevious,
		})
		if err != nil {
			log.WithError(err).Warn("archive incomplete")
		}
	}

	report := &models.Report{
		PreviousDate:  previous,
		CurrentDate:   current,
		Variant:       string(variant),
		Signals:       res.Signals,
		CategoryOI:    res.CategoryOI,
		CurrentFIIOI:  res.CurrentFIIOI,
		PreviousFIIOI: res.PreviousFIIOI,
		Participants:  n.participants,
		FIICurrent:    n.fiiCurrent,
		FIIPrevious:   n.fiiPrevious,
		DroppedRows:   n.dropCounts(),
		FromCache:     fromCache,
		FetchedAt:     snap.FetchedAt,
	}

	summary := participant.Summary(res.Signals)
	log.WithFields(logrus.Fields{
		"signals":    len(res.Signals),
		"long":       summary[models.Long],
		"short":      summary[models.Short],
		"neutral":    summary[models.Neutral],
		"from_cache": fromCache,
	}).Info("signals computed")
	emit(StageComplete, nil)
	return report, nil
}

func (s *Service) snapshot(ctx context.Context, previous, current time.Time) (*datasource.RawSnapshot, bool, error) {
	if s.cache != nil {
		snap, ok := s.cache.Get(previous, current)
		s.metrics.CacheLookup(ok)
		if ok {
			return snap, true, nil
		}
	}
	if s.fetcher == nil {
		return nil, false, fmt.Errorf("pipeline: no fetcher configured")
	}

	snap, err := s.fetcher.Fetch(ctx, previous, current)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		s.cache.Set(snap)
	}
	return snap, false, nil
}

type normalized struct {
	participants []models.ParticipantOIRow
	fiiCurrent   []models.FIIStatsRow
	fiiPrevious  []models.FIIStatsRow
	drops        map[string]table.DropCounts
}

func (n normalized) dropCounts() map[string]int {
	out := make(map[string]int, len(n.drops))
	for name, d := range n.drops {
		out[name] = d.Total()
	}
	return out
}

func normalize(snap *datasource.RawSnapshot) (normalized, error) {
	var (
		n   = normalized{drops: make(map[string]table.DropCounts, 2)}
		err error
	)
	if n.participants, err = table.NormalizeParticipant(TableParticipant, snap.ParticipantTable); err != nil {
		return n, fmt.Errorf("normalize participant OI: %w", err)
	}

	var d table.DropCounts
	if n.fiiCurrent, _, d, err = table.NormalizeFIIStats(TableFIICurrent, snap.FIICurrentTable); err != nil {
		return n, fmt.Errorf("normalize current FII stats: %w", err)
	}
	n.drops[TableFIICurrent] = d
	if n.fiiPrevious, _, d, err = table.NormalizeFIIStats(TableFIIPrevious, snap.FIIPreviousTable); err != nil {
		return n, fmt.Errorf("normalize previous FII stats: %w", err)
	}
	n.drops[TableFIIPrevious] = d
	return n, nil
}
