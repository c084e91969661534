package mongo

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

func TestQueryFilter(t *testing.T) {
	t.Run("primary", func(t *testing.T) {
		filter, sortField := queryFilter(store.Query{PartitionKey: "crm"})
		assert.Equal(t, bson.D{{Key: "sourceSystem", Value: "crm"}}, filter)
		assert.Equal(t, "sk", sortField)
	})

	t.Run("secondary range", func(t *testing.T) {
		filter, sortField := queryFilter(store.Query{
			Index:        store.SecondaryIndex,
			PartitionKey: "bucket1",
			Range:        &store.KeyRange{Lower: "a#", Upper: "b~"},
		})
		assert.Equal(t, bson.D{
			{Key: "gsi1pk", Value: "bucket1"},
			{Key: "gsi1sk", Value: bson.D{{Key: "$gte", Value: "a#"}, {Key: "$lte", Value: "b~"}}},
		}, filter)
		assert.Equal(t, "gsi1sk", sortField)
	})
}

func TestIntegrationMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate mongoContainer: %s", err)
		}
	})

	connStr, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	uri, err := url.Parse(fmt.Sprintf("%s/testdb", connStr))
	require.NoError(t, err)

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	s, err := New(ctx, uri, "catalog", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx) })

	require.NoError(t, s.Migrate(ctx))

	put := func(sourceSystem, ingestedAt, key string) catalog.Record {
		r := catalog.Record{
			SourceSystem:     sourceSystem,
			SortKey:          catalog.SortKey(ingestedAt, key),
			SecondaryPartKey: "bucket1",
			SecondarySortKey: catalog.SecondarySortKey(ingestedAt, sourceSystem, key),
			Container:        "bucket1",
			ObjectKey:        key,
			IngestedAt:       ingestedAt,
			SizeBytes:        1,
			Status:           catalog.StatusIngested,
		}
		require.NoError(t, s.Put(ctx, r))
		return r
	}

	first := put("crm", "2024-01-15T10:00:00Z", "a.csv")
	put("crm", "2024-01-16T10:00:00Z", "b.csv")
	put("crm", "2024-02-01T00:00:00Z", "c.csv")

	// re-ingestion of the same event overwrites
	first.SizeBytes = 2
	require.NoError(t, s.Put(ctx, first))

	res, err := s.Query(ctx, store.Query{PartitionKey: "crm", Descending: true})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "c.csv", res.Records[0].ObjectKey)
	assert.Equal(t, "a.csv", res.Records[2].ObjectKey)
	assert.Equal(t, int64(2), res.Records[2].SizeBytes)

	lower, upper := catalog.TimeRange("2024-01-01T00:00:00Z", "2024-01-31T23:59:59Z")
	res, err = s.Query(ctx, store.Query{
		Index:        store.SecondaryIndex,
		PartitionKey: "bucket1",
		Range:        &store.KeyRange{Lower: lower, Upper: upper},
		Limit:        1,
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "a.csv", res.Records[0].ObjectKey)
	assert.True(t, res.Truncated)
}
