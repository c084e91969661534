package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store"
)

const defaultDatabase = "cataloger"

// Store keeps catalog records in a MongoDB collection. The primary key is
// enforced by a unique index on (sourceSystem, sk); GSI1 is a compound index
// on (gsi1pk, gsi1sk). String comparison in MongoDB is binary, so the range
// sentinels order the same way they do in DynamoDB.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// New connects to the MongoDB deployment at uri. The database is taken from
// the URI path, the collection is the catalog table name.
func New(ctx context.Context, uri *url.URL, collection string, logger *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri.String()))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	database := strings.TrimPrefix(uri.Path, "/")
	if database == "" {
		database = defaultDatabase
	}

	logger.Info("mongo store connected",
		zap.String("database", database),
		zap.String("collection", collection))

	return &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger,
	}, nil
}

func (s *Store) Put(ctx context.Context, r catalog.Record) error {
	filter := bson.D{
		{Key: "sourceSystem", Value: r.SourceSystem},
		{Key: "sk", Value: r.SortKey},
	}

	_, err := s.collection.ReplaceOne(ctx, filter, r, options.Replace().SetUpsert(true))
	if err != nil {
		return catalog.ErrStoreWrite.Wrap(err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) (store.Result, error) {
	filter, sortField := queryFilter(q)

	direction := 1
	if q.Descending {
		direction = -1
	}

	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: direction}})
	if q.Limit > 0 {
		// one extra document tells us whether the page was truncated
		opts.SetLimit(int64(q.Limit) + 1)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return store.Result{}, catalog.ErrStoreRead.Wrap(err)
	}

	records := []catalog.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return store.Result{}, catalog.ErrStoreRead.Wrap(err)
	}

	res := store.Result{Records: records}
	if q.Limit > 0 && len(records) > q.Limit {
		res.Records = records[:q.Limit]
		res.Truncated = true
	}
	return res, nil
}

func queryFilter(q store.Query) (bson.D, string) {
	pk, sk := "sourceSystem", "sk"
	if q.Index == store.SecondaryIndex {
		pk, sk = "gsi1pk", "gsi1sk"
	}

	filter := bson.D{{Key: pk, Value: q.PartitionKey}}
	if q.Range != nil {
		filter = append(filter, bson.E{Key: sk, Value: bson.D{
			{Key: "$gte", Value: q.Range.Lower},
			{Key: "$lte", Value: q.Range.Upper},
		}})
	}
	return filter, sk
}

func (s *Store) Migrate(ctx context.Context) error {
	names, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sourceSystem", Value: 1}, {Key: "sk", Value: 1}},
			Options: options.Index().SetName("primary").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "gsi1pk", Value: 1}, {Key: "gsi1sk", Value: 1}},
			Options: options.Index().SetName(string(store.SecondaryIndex)),
		},
	})
	if err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	s.logger.Info("mongo indexes ensured", zap.Strings("indexes", names))
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
