package store

import (
	"context"

	"github.com/turbolytics/cataloger/internal/catalog"
)

// Index names one of the two access paths over catalog records.
type Index string

const (
	// PrimaryIndex is keyed by (sourceSystem, sk).
	PrimaryIndex Index = ""
	// SecondaryIndex is keyed by (gsi1pk, gsi1sk).
	SecondaryIndex Index = "GSI1"
)

// KeyRange bounds the sort key of a query. Both ends are inclusive.
type KeyRange struct {
	Lower string
	Upper string
}

type Query struct {
	Index        Index
	PartitionKey string
	Range        *KeyRange
	Descending   bool

	// Limit caps the page size. Zero leaves it to the backend.
	Limit int
}

type Result struct {
	Records []catalog.Record

	// Truncated is set when more records match than were returned.
	Truncated bool
}

// Store persists catalog records. Put is an upsert keyed by
// (SourceSystem, SortKey).
type Store interface {
	Put(ctx context.Context, r catalog.Record) error
	Query(ctx context.Context, q Query) (Result, error)

	// Migrate creates the table, indexes or collection the store needs.
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}

// Keys returns the partition and sort key of r on the given index.
func Keys(idx Index, r catalog.Record) (partition, sort string) {
	if idx == SecondaryIndex {
		return r.SecondaryPartKey, r.SecondarySortKey
	}
	return r.SourceSystem, r.SortKey
}
