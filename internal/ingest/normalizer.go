package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/turbolytics/cataloger/internal/blob"
	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/event"
	"github.com/turbolytics/cataloger/internal/store"
)

// Publisher announces records once they are durable.
type Publisher interface {
	Publish(ctx context.Context, r catalog.Record) error
}

type Option func(*Normalizer)

func WithLogger(logger *zap.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

func WithPublisher(p Publisher) Option {
	return func(n *Normalizer) {
		n.publisher = p
	}
}

// WithConcurrency sets how many targets of one notification are ingested in
// parallel. Values below 2 ingest sequentially.
func WithConcurrency(c int) Option {
	return func(n *Normalizer) {
		n.concurrency = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// Normalizer turns object created notifications into catalog records.
type Normalizer struct {
	fetcher     blob.Fetcher
	store       store.Store
	publisher   Publisher
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

type Result struct {
	Targets int
	Stored  int
}

func New(fetcher blob.Fetcher, s store.Store, opts ...Option) *Normalizer {
	n := &Normalizer{
		fetcher:     fetcher,
		store:       s,
		logger:      zap.NewNop(),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Handle ingests every object referenced by a raw notification payload. A
// payload of unknown shape is acknowledged without writes. Any fetch or
// store failure is returned so the delivery mechanism retries; records
// written before the failure stay written.
func (n *Normalizer) Handle(ctx context.Context, raw []byte) (Result, error) {
	notification, err := event.Parse(raw)
	if err != nil {
		if catalog.ErrMalformedEvent.Has(err) {
			n.logger.Warn("ignoring notification", zap.Error(err))
			return Result{}, nil
		}
		return Result{}, err
	}

	targets := notification.Targets()
	n.logger.Debug("notification parsed",
		zap.String("kind", string(notification.Kind)),
		zap.Int("targets", len(targets)),
	)
	return n.Ingest(ctx, targets)
}

func (n *Normalizer) Ingest(ctx context.Context, targets []event.Target) (Result, error) {
	res := Result{Targets: len(targets)}

	if n.concurrency < 2 {
		for _, t := range targets {
			if err := n.ingestOne(ctx, t); err != nil {
				return res, err
			}
			res.Stored++
		}
		return res, nil
	}

	var stored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := n.ingestOne(gctx, t); err != nil {
				return err
			}
			stored.Add(1)
			return nil
		})
	}
	err := g.Wait()
	res.Stored = int(stored.Load())
	return res, err
}

func (n *Normalizer) ingestOne(ctx context.Context, t event.Target) error {
	l := n.logger.With(
		zap.String("container", t.Container),
		zap.String("object_key", t.ObjectKey),
	)

	attrs, err := n.fetcher.Head(ctx, t.Container, t.ObjectKey)
	if err != nil {
		l.Error("fetching attributes",
			zap.String("kind", string(blob.KindOf(err))),
			zap.Error(err),
		)
		return catalog.ErrAttributeFetch.Wrap(err)
	}

	record := catalog.NewRecord(n.fetcher.Scheme(), attrs, n.now())

	if err := n.store.Put(ctx, record); err != nil {
		l.Error("storing record", zap.Error(err))
		if !catalog.ErrStoreWrite.Has(err) {
			err = catalog.ErrStoreWrite.Wrap(err)
		}
		return err
	}

	l.Info("record ingested",
		zap.String("source_system", record.SourceSystem),
		zap.String("sk", record.SortKey),
	)

	if n.publisher != nil {
		if err := n.publisher.Publish(ctx, record); err != nil {
			l.Warn("publishing record", zap.Error(err))
		}
	}
	return nil
}
