package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

// columns in catalog.Record db tag order
var columns = []string{
	"source_system",
	"sk",
	"gsi1pk",
	"gsi1sk",
	"bucket",
	"object_key",
	"s3_uri",
	"ingested_at",
	"size_bytes",
	"etag",
	"content_type",
	"status",
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store keeps catalog records in a Postgres table. Sort key columns use the
// "C" collation: locale collations ignore punctuation and would break the
// '#' and '~' range sentinels.
type Store struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

func New(ctx context.Context, connString, table string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	source_system TEXT NOT NULL,
	sk            TEXT COLLATE "C" NOT NULL,
	gsi1pk        TEXT NOT NULL,
	gsi1sk        TEXT COLLATE "C" NOT NULL,
	bucket        TEXT NOT NULL,
	object_key    TEXT NOT NULL,
	s3_uri        TEXT NOT NULL,
	ingested_at   TEXT NOT NULL,
	size_bytes    BIGINT NOT NULL,
	etag          TEXT NOT NULL,
	content_type  TEXT NOT NULL,
	status        TEXT NOT NULL,
	PRIMARY KEY (source_system, sk)
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (gsi1pk, gsi1sk)`,
			pgx.Identifier{strings.Trim(s.table, `"`) + "_gsi1"}.Sanitize(),
			s.table,
		),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating %s: %w", s.table, err)
		}
	}
	s.logger.Info("postgres schema ensured", zap.String("table", s.table))
	return nil
}

func (s *Store) Put(ctx context.Context, r catalog.Record) error {
	_, err := s.pool.Exec(ctx, upsertSQL(s.table),
		r.SourceSystem,
		r.SortKey,
		r.SecondaryPartKey,
		r.SecondarySortKey,
		r.Container,
		r.ObjectKey,
		r.Locator,
		r.IngestedAt,
		r.SizeBytes,
		r.ETag,
		r.ContentType,
		string(r.Status),
	)
	if err != nil {
		return catalog.ErrStoreWrite.Wrap(err)
	}
	return nil
}

func upsertSQL(table string) string {
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, c := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c == "source_system" || c == "sk" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (source_system, sk) DO UPDATE SET %s",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

func (s *Store) Query(ctx context.Context, q store.Query) (store.Result, error) {
	query, args := selectSQL(s.table, q)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return store.Result{}, catalog.ErrStoreRead.Wrap(err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[catalog.Record])
	if err != nil {
		return store.Result{}, catalog.ErrStoreRead.Wrap(err)
	}
	if records == nil {
		records = []catalog.Record{}
	}

	res := store.Result{Records: records}
	if q.Limit > 0 && len(records) > q.Limit {
		res.Records = records[:q.Limit]
		res.Truncated = true
	}
	return res, nil
}

func selectSQL(table string, q store.Query) (string, []any) {
	pk, sk := "source_system", "sk"
	if q.Index == store.SecondaryIndex {
		pk, sk = "gsi1pk", "gsi1sk"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s = $1", strings.Join(columns, ", "), table, pk)
	args := []any{q.PartitionKey}

	if q.Range != nil {
		fmt.Fprintf(&b, " AND %s BETWEEN $2 AND $3", sk)
		args = append(args, q.Range.Lower, q.Range.Upper)
	}

	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", sk, direction)

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit+1)
	}
	return b.String(), args
}

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
