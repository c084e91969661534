package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turbolytics/cataloger/internal/blob"
	"github.com/turbolytics/cataloger/internal/ingest"
	"github.com/turbolytics/cataloger/internal/kafka"
	"github.com/turbolytics/cataloger/internal/local"
	"github.com/turbolytics/cataloger/internal/query"
	"github.com/turbolytics/cataloger/internal/s3"
	"github.com/turbolytics/cataloger/internal/store"
	"github.com/turbolytics/cataloger/internal/store/dynamodb"
	"github.com/turbolytics/cataloger/internal/store/memory"
	"github.com/turbolytics/cataloger/internal/store/mongo"
	"github.com/turbolytics/cataloger/internal/store/postgres"
)

func InitializeLogger(c *Cataloger) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Logger.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(c.Logger.Level); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func InitializeStore(ctx context.Context, c *Cataloger, logger *zap.Logger) (store.Store, error) {
	l := logger.Named("cataloger.store")

	switch c.Store.Type {
	case StoreDynamoDB:
		return dynamodb.New(c.Store.Table,
			dynamodb.WithLogger(l),
			dynamodb.WithRegion(c.Store.DynamoDB.Region),
			dynamodb.WithEndpoint(c.Store.DynamoDB.Endpoint),
		)
	case StoreMongo:
		uri, err := url.Parse(c.Store.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("parsing mongo uri: %w", err)
		}
		return mongo.New(ctx, uri, c.Store.Table, l)
	case StorePostgres:
		return postgres.New(ctx, c.Store.Postgres.ConnectionString, c.Store.Table,
			postgres.WithLogger(l),
		)
	case StoreMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unsupported store type: %q", c.Store.Type)
}

func InitializeBlob(c *Cataloger, logger *zap.Logger) (blob.Repository, error) {
	l := logger.Named("cataloger.blob")

	switch c.Blob.Type {
	case BlobS3:
		return s3.New(
			s3.WithLogger(l),
			s3.WithRegion(c.Blob.S3.Region),
			s3.WithEndpoint(c.Blob.S3.Endpoint),
			s3.WithForcePathStyle(c.Blob.S3.ForcePathStyle),
		)
	case BlobLocal:
		return local.New(c.Blob.Local.Root, local.WithLogger(l)), nil
	}
	return nil, fmt.Errorf("unsupported blob type: %q", c.Blob.Type)
}

func kafkaURI(brokers, topic string) (*url.URL, error) {
	if brokers == "" || topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	return url.Parse(fmt.Sprintf("kafka://%s/%s", brokers, topic))
}

// InitializePublisher returns nil when no catalog topic is configured.
func InitializePublisher(ctx context.Context, c *Cataloger, logger *zap.Logger) (*kafka.Publisher, error) {
	if c.Kafka.CatalogTopic == "" {
		return nil, nil
	}

	uri, err := kafkaURI(c.Kafka.Brokers, c.Kafka.CatalogTopic)
	if err != nil {
		return nil, err
	}

	p, err := kafka.NewPublisher(uri, logger.Named("cataloger.publisher"))
	if err != nil {
		return nil, err
	}
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func InitializeConsumer(c *Cataloger, logger *zap.Logger) (*kafka.Consumer, error) {
	uri, err := kafkaURI(c.Kafka.Brokers, c.Kafka.Topic)
	if err != nil {
		return nil, err
	}

	var opts []kafka.ConsumerOption
	if c.Kafka.MaxAttempts > 0 {
		opts = append(opts, kafka.WithMaxAttempts(c.Kafka.MaxAttempts))
	}
	return kafka.NewConsumer(uri, c.Kafka.GroupID, logger.Named("cataloger.consumer"), opts...)
}

// InitializeNormalizer wires the blob fetcher, record store and optional
// change feed publisher. The returned func releases them.
func InitializeNormalizer(ctx context.Context, c *Cataloger, logger *zap.Logger) (*ingest.Normalizer, func(), error) {
	fetcher, err := InitializeBlob(c, logger)
	if err != nil {
		return nil, nil, err
	}

	s, err := InitializeStore(ctx, c, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []ingest.Option{
		ingest.WithLogger(logger.Named("cataloger.ingest")),
		ingest.WithConcurrency(c.Ingest.Concurrency),
	}

	publisher, err := InitializePublisher(ctx, c, logger)
	if err != nil {
		s.Close(ctx)
		return nil, nil, err
	}
	if publisher != nil {
		opts = append(opts, ingest.WithPublisher(publisher))
	}

	closer := func() {
		if publisher != nil {
			publisher.Close(context.Background())
		}
		if err := s.Close(context.Background()); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
	return ingest.New(fetcher, s, opts...), closer, nil
}

func InitializeQueryService(ctx context.Context, c *Cataloger, logger *zap.Logger) (*query.Service, func(), error) {
	s, err := InitializeStore(ctx, c, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []query.Option{
		query.WithLogger(logger.Named("cataloger.query")),
	}
	if c.Store.PageSize > 0 {
		opts = append(opts, query.WithPageSize(c.Store.PageSize))
	}

	closer := func() {
		if err := s.Close(context.Background()); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
	return query.NewService(s, opts...), closer, nil
}

// Setup loads configuration from the optional file and the environment and
// builds the process logger from it.
func Setup(fpath string) (*Cataloger, *zap.Logger, error) {
	v := viper.New()
	v.AutomaticEnv()

	c, err := Load(fpath, v)
	if err != nil {
		return nil, nil, err
	}

	logger, err := InitializeLogger(c)
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}
