package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
)

// PublisherStats counts what a Publisher has sent. They are logged when the
// publisher closes.
type PublisherStats struct {
	TotalRecords      int64     `json:"total_records"`
	ErrorCount        int64     `json:"error_count"`
	LastPublishAt     time.Time `json:"last_publish_at,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	ConnectionHealthy bool      `json:"connection_healthy"`
}

// Publisher writes ingested catalog records to a Kafka topic, keyed by
// their primary key so that redeliveries of one record land in one
// partition.
type Publisher struct {
	config   kafka.ConfigMap
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger

	statsMu sync.RWMutex
	stats   PublisherStats
}

func NewPublisher(uri *url.URL, logger *zap.Logger) (*Publisher, error) {
	topic, config, err := parseURI(uri, kafka.ConfigMap{
		"client.id":           "cataloger-publisher",
		"acks":                "all",
		"retries":             "3",
		"linger.ms":           "5",
		"compression.type":    "snappy",
		"request.timeout.ms":  "5000",
		"delivery.timeout.ms": "10000",
	})
	if err != nil {
		return nil, err
	}

	return &Publisher{
		config: config,
		topic:  topic,
		logger: logger,
	}, nil
}

func (p *Publisher) Connect(ctx context.Context) error {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	producer, err := kafka.NewProducer(&p.config)
	if err != nil {
		p.stats.ConnectionHealthy = false
		p.stats.LastError = err.Error()
		return err
	}

	p.producer = producer
	p.stats.ConnectionHealthy = true
	p.stats.LastError = ""

	go func() {
		defer p.logger.Info("producer event loop closed")

		for e := range producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					p.recordError(ev.TopicPartition.Error)
					p.logger.Error("delivery failed", zap.Error(ev.TopicPartition.Error))
				} else {
					p.logger.Debug("record delivered",
						zap.String("topic", *ev.TopicPartition.Topic),
						zap.Int32("partition", ev.TopicPartition.Partition),
						zap.Int64("offset", int64(ev.TopicPartition.Offset)))
				}
			case kafka.Error:
				p.logger.Error("producer error", zap.Error(ev))
			}
		}
	}()

	p.logger.Info("kafka publisher connected", zap.String("topic", p.topic))
	return nil
}

func (p *Publisher) Publish(ctx context.Context, r catalog.Record) error {
	if p.producer == nil {
		err := errors.New("publisher is not connected")
		p.recordError(err)
		return err
	}

	msg, err := p.message(r)
	if err != nil {
		p.recordError(err)
		return err
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		p.recordError(err)
		return err
	}

	p.statsMu.Lock()
	p.stats.TotalRecords++
	p.stats.LastPublishAt = time.Now()
	p.statsMu.Unlock()
	return nil
}

func (p *Publisher) message(r catalog.Record) (*kafka.Message, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(r.SourceSystem + catalog.KeySeparator + r.SortKey),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(r.Status)},
		},
	}, nil
}

func (p *Publisher) recordError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.ErrorCount++
	p.stats.LastError = err.Error()
}

func (p *Publisher) Close(ctx context.Context) error {
	if p.producer != nil {
		p.producer.Flush(5000)
		p.producer.Close()
	}

	p.statsMu.Lock()
	p.stats.ConnectionHealthy = false
	p.statsMu.Unlock()

	stats := p.Stats()
	p.logger.Info("kafka publisher closed",
		zap.String("topic", p.topic),
		zap.Int64("published", stats.TotalRecords),
		zap.Int64("errors", stats.ErrorCount),
		zap.String("last_error", stats.LastError),
	)
	return nil
}

func (p *Publisher) Stats() PublisherStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}
