package config

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turbolytics/cataloger/internal/store/memory"
)

func TestNewFromFile(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		c, err := NewFromFile("testdata/cataloger.yml")
		require.NoError(t, err)
		assert.Equal(t, StorePostgres, c.Store.Type)
		assert.Equal(t, "object_catalog", c.Store.Table)
		assert.Equal(t, 500, c.Store.PageSize)
		assert.Equal(t, BlobLocal, c.Blob.Type)
		assert.Equal(t, "/tmp/cataloger/buckets", c.Blob.Local.Root)
		assert.Equal(t, 4, c.Ingest.Concurrency)
		assert.Equal(t, ":9090", c.Query.Addr)
		// unset fields keep their defaults
		assert.Equal(t, "cataloger", c.Kafka.GroupID)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFromFile("testdata/missing.yml")
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("table name is required", func(t *testing.T) {
		t.Setenv("TABLE_NAME", "")
		_, err := Load("", viper.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TABLE_NAME")
	})

	t.Run("environment only", func(t *testing.T) {
		t.Setenv("TABLE_NAME", "catalog")
		t.Setenv("AWS_REGION", "eu-west-1")
		t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")

		c, err := Load("", viper.New())
		require.NoError(t, err)
		assert.Equal(t, "catalog", c.Store.Table)
		assert.Equal(t, StoreDynamoDB, c.Store.Type)
		assert.Equal(t, "eu-west-1", c.Store.DynamoDB.Region)
		assert.Equal(t, "eu-west-1", c.Blob.S3.Region)
		assert.Equal(t, "http://localhost:4566", c.Blob.S3.Endpoint)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("TABLE_NAME", "override")
		t.Setenv("STORE_TYPE", "memory")
		t.Setenv("LOG_LEVEL", "warn")

		c, err := Load("testdata/cataloger.yml", viper.New())
		require.NoError(t, err)
		assert.Equal(t, "override", c.Store.Table)
		assert.Equal(t, StoreMemory, c.Store.Type)
		assert.Equal(t, "warn", c.Logger.Level)
		assert.Equal(t, "object-notifications", c.Kafka.Topic)
	})

	t.Run("unsupported store", func(t *testing.T) {
		t.Setenv("TABLE_NAME", "catalog")
		t.Setenv("STORE_TYPE", "cassandra")
		_, err := Load("", viper.New())
		assert.Error(t, err)
	})
}

func TestInitializeLogger(t *testing.T) {
	l, err := InitializeLogger(&Cataloger{Logger: Logger{Level: "warn"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = InitializeLogger(&Cataloger{Logger: Logger{Level: "loud"}})
	assert.Error(t, err)
}

func TestInitializeStore(t *testing.T) {
	c := Default()
	c.Store.Type = StoreMemory
	c.Store.Table = "catalog"

	s, err := InitializeStore(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	c.Store.Type = "cassandra"
	_, err = InitializeStore(context.Background(), c, zap.NewNop())
	assert.Error(t, err)
}

func TestInitializePublisher(t *testing.T) {
	c := Default()
	p, err := InitializePublisher(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestInitializeConsumer(t *testing.T) {
	c := Default()
	_, err := InitializeConsumer(c, zap.NewNop())
	assert.Error(t, err)

	c.Kafka.Brokers = "localhost:9092"
	c.Kafka.Topic = "object-notifications"
	consumer, err := InitializeConsumer(c, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "object-notifications", consumer.Topic())
}
