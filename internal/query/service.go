package query

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

const rangeUsage = "Provide container, start, end. Example: /objects?container=...&start=...&end=..."

// Request is one catalog query. A non empty SourceSystem selects the
// by-source mode, everything else is a container time window query.
type Request struct {
	SourceSystem string
	Container    string
	Start        string
	End          string
}

type Page struct {
	Records   []catalog.Record
	Truncated bool
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPageSize caps how many records a single query returns. Zero leaves
// the page size to the store.
func WithPageSize(n int) Option {
	return func(s *Service) {
		s.pageSize = n
	}
}

// Service translates catalog requests into record store queries.
type Service struct {
	store    store.Store
	logger   *zap.Logger
	pageSize int
}

func NewService(s store.Store, opts ...Option) *Service {
	svc := &Service{
		store:  s,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Handle(ctx context.Context, req Request) (Page, error) {
	if req.SourceSystem != "" {
		return s.BySource(ctx, req.SourceSystem)
	}
	return s.ByContainer(ctx, req.Container, req.Start, req.End)
}

// BySource returns the records of one source system, newest first.
func (s *Service) BySource(ctx context.Context, sourceSystem string) (Page, error) {
	if sourceSystem == "" {
		return Page{}, catalog.ErrBadRequest.New("missing sourceSystem")
	}

	return s.query(ctx, store.Query{
		Index:        store.PrimaryIndex,
		PartitionKey: sourceSystem,
		Descending:   true,
		Limit:        s.pageSize,
	})
}

// ByContainer returns the records of one container ingested between start
// and end inclusive, oldest first.
func (s *Service) ByContainer(ctx context.Context, container, start, end string) (Page, error) {
	var missing []string
	if container == "" {
		missing = append(missing, "container")
	}
	if start == "" {
		missing = append(missing, "start")
	}
	if end == "" {
		missing = append(missing, "end")
	}
	if len(missing) > 0 {
		return Page{}, catalog.ErrBadRequest.New("missing %s. %s", strings.Join(missing, ", "), rangeUsage)
	}

	lower, upper := catalog.TimeRange(start, end)
	if lower > upper {
		return Page{}, catalog.ErrBadRequest.New("start %q is after end %q", start, end)
	}

	return s.query(ctx, store.Query{
		Index:        store.SecondaryIndex,
		PartitionKey: container,
		Range:        &store.KeyRange{Lower: lower, Upper: upper},
		Limit:        s.pageSize,
	})
}

func (s *Service) query(ctx context.Context, q store.Query) (Page, error) {
	res, err := s.store.Query(ctx, q)
	if err != nil {
		if !catalog.ErrStoreRead.Has(err) {
			err = catalog.ErrStoreRead.Wrap(err)
		}
		return Page{}, err
	}

	if res.Truncated {
		s.logger.Warn("query result truncated",
			zap.String("index", string(q.Index)),
			zap.String("partition_key", q.PartitionKey),
			zap.Int("returned", len(res.Records)),
		)
	}

	return Page{Records: res.Records, Truncated: res.Truncated}, nil
}
