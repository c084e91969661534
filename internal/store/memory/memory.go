package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

type primaryKey struct {
	sourceSystem string
	sortKey      string
}

// Store is an in-memory record store. It is used by tests and by local
// development setups.
type Store struct {
	mu      sync.RWMutex
	records map[primaryKey]catalog.Record

	CallCount struct {
		Put   int
		Query int
	}
}

func New() *Store {
	return &Store{
		records: make(map[primaryKey]catalog.Record),
	}
}

func (s *Store) Put(ctx context.Context, r catalog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount.Put++
	s.records[primaryKey{r.SourceSystem, r.SortKey}] = r
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) (store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount.Query++

	var matched []catalog.Record
	for _, r := range s.records {
		pk, sk := store.Keys(q.Index, r)
		if pk != q.PartitionKey {
			continue
		}
		if q.Range != nil && (sk < q.Range.Lower || sk > q.Range.Upper) {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		_, a := store.Keys(q.Index, matched[i])
		_, b := store.Keys(q.Index, matched[j])
		if q.Descending {
			return a > b
		}
		return a < b
	})

	res := store.Result{Records: matched}
	if q.Limit > 0 && len(matched) > q.Limit {
		res.Records = matched[:q.Limit]
		res.Truncated = true
	}
	return res, nil
}

// Len is the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
