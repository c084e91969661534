package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	BlobS3    = "s3"
	BlobLocal = "local"
)

type Logger struct {
	Level string `yaml:"level"`
}

type DynamoDB struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type Mongo struct {
	URI string `yaml:"uri"`
}

type Postgres struct {
	ConnectionString string `yaml:"connection_string"`
}

type Store struct {
	Type     string   `yaml:"type"`
	Table    string   `yaml:"table"`
	PageSize int      `yaml:"page_size"`
	DynamoDB DynamoDB `yaml:"dynamodb"`
	Mongo    Mongo    `yaml:"mongo"`
	Postgres Postgres `yaml:"postgres"`
}

type S3 struct {
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type Local struct {
	Root string `yaml:"root"`
}

type Blob struct {
	Type  string `yaml:"type"`
	S3    S3     `yaml:"s3"`
	Local Local  `yaml:"local"`
}

type Kafka struct {
	Brokers      string `yaml:"brokers"`
	Topic        string `yaml:"topic"`
	GroupID      string `yaml:"group_id"`
	CatalogTopic string `yaml:"catalog_topic"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

type Ingest struct {
	Concurrency int `yaml:"concurrency"`
}

type Query struct {
	Addr string `yaml:"addr"`
}

type Cataloger struct {
	Logger Logger `yaml:"logger"`
	Store  Store  `yaml:"store"`
	Blob   Blob   `yaml:"blob"`
	Kafka  Kafka  `yaml:"kafka"`
	Ingest Ingest `yaml:"ingest"`
	Query  Query  `yaml:"query"`
}

func Default() *Cataloger {
	return &Cataloger{
		Logger: Logger{Level: "info"},
		Store:  Store{Type: StoreDynamoDB},
		Blob:   Blob{Type: BlobS3},
		Kafka:  Kafka{GroupID: "cataloger"},
		Ingest: Ingest{Concurrency: 1},
		Query:  Query{Addr: ":8080"},
	}
}

func NewFromFile(fpath string) (*Cataloger, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := yaml.Unmarshal(bs, c); err != nil {
		return nil, err
	}
	return c, nil
}

// env maps environment variables onto config fields. Set variables
// override values read from the file.
var env = map[string]func(c *Cataloger, v string){
	"TABLE_NAME":       func(c *Cataloger, v string) { c.Store.Table = v },
	"STORE_TYPE":       func(c *Cataloger, v string) { c.Store.Type = v },
	"AWS_REGION":       func(c *Cataloger, v string) { c.Store.DynamoDB.Region = v; c.Blob.S3.Region = v },
	"AWS_ENDPOINT_URL": func(c *Cataloger, v string) { c.Store.DynamoDB.Endpoint = v; c.Blob.S3.Endpoint = v },
	"MONGO_URI":        func(c *Cataloger, v string) { c.Store.Mongo.URI = v },
	"POSTGRES_URL":     func(c *Cataloger, v string) { c.Store.Postgres.ConnectionString = v },
	"KAFKA_BROKERS":    func(c *Cataloger, v string) { c.Kafka.Brokers = v },
	"KAFKA_TOPIC":      func(c *Cataloger, v string) { c.Kafka.Topic = v },
	"KAFKA_GROUP_ID":   func(c *Cataloger, v string) { c.Kafka.GroupID = v },
	"CATALOG_TOPIC":    func(c *Cataloger, v string) { c.Kafka.CatalogTopic = v },
	"LOG_LEVEL":        func(c *Cataloger, v string) { c.Logger.Level = v },
}

// Load reads the optional config file at fpath and applies environment
// overrides through v. The result is validated.
func Load(fpath string, v *viper.Viper) (*Cataloger, error) {
	c := Default()
	if fpath != "" {
		var err error
		if c, err = NewFromFile(fpath); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", fpath, err)
		}
	}

	for name, set := range env {
		if err := v.BindEnv(name); err != nil {
			return nil, err
		}
		if v.IsSet(name) {
			set(c, v.GetString(name))
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cataloger) Validate() error {
	if c.Store.Table == "" {
		return fmt.Errorf("TABLE_NAME is required")
	}

	switch c.Store.Type {
	case StoreDynamoDB, StoreMongo, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unsupported store type: %q", c.Store.Type)
	}

	switch c.Blob.Type {
	case BlobS3, BlobLocal:
	default:
		return fmt.Errorf("unsupported blob type: %q", c.Blob.Type)
	}
	return nil
}
