package kafka

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/blob"
)

const (
	pollTimeout        = 500 * time.Millisecond
	defaultBackoff     = 2 * time.Second
	maxBackoff         = time.Minute
	defaultMaxAttempts = 10
)

// HandlerFunc processes one raw notification payload. A non-nil error
// leaves the offset uncommitted so the message is redelivered.
type HandlerFunc func(ctx context.Context, value []byte) error

// client is the part of *kafka.Consumer the read loop needs.
type client interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Seek(partition kafka.TopicPartition, timeoutMs int) error
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
}

type ConsumerOption func(*Consumer)

// WithMaxAttempts bounds how often one message is handed to the handler
// before it is committed and skipped.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *Consumer) {
		c.maxAttempts = n
	}
}

func WithBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.backoff = d
	}
}

// Consumer feeds notification payloads from a Kafka topic into a handler.
// Offsets are committed after the handler succeeds, after a failure that
// cannot succeed on retry, or once the attempts for a message run out.
type Consumer struct {
	config kafka.ConfigMap
	topic  string
	logger *zap.Logger

	maxAttempts int
	backoff     time.Duration
}

func NewConsumer(uri *url.URL, groupID string, logger *zap.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if groupID == "" {
		groupID = "cataloger"
	}

	topic, config, err := parseURI(uri, kafka.ConfigMap{
		"group.id":           groupID,
		"enable.auto.commit": false,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		config:      config,
		topic:       topic,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Consumer) Topic() string {
	return c.topic
}

func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	consumer, err := kafka.NewConsumer(&c.config)
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return err
	}

	c.logger.Info("kafka consumer started",
		zap.String("topic", c.topic),
		zap.Any("group_id", c.config["group.id"]),
	)
	return c.run(ctx, consumer, handle)
}

// retryable reports whether a handler failure may succeed on redelivery.
// Missing or forbidden objects stay that way.
func retryable(err error) bool {
	return blob.KindOf(err) == blob.KindTransient
}

func (c *Consumer) backoffFor(attempt int) time.Duration {
	d := c.backoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (c *Consumer) run(ctx context.Context, consumer client, handle HandlerFunc) error {
	var (
		current  kafka.TopicPartition
		attempts int
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer stopping")
			return nil
		default:
		}

		msg, err := consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return kerr
				}
			}
			c.logger.Warn("read failed", zap.Error(err))
			continue
		}

		tp := msg.TopicPartition
		if tp.Partition != current.Partition || tp.Offset != current.Offset || !sameTopic(tp, current) {
			current, attempts = tp, 0
		}
		attempts++

		l := c.logger.With(
			zap.Int32("partition", tp.Partition),
			zap.Int64("offset", int64(tp.Offset)),
			zap.Int("attempt", attempts),
		)

		if err := handle(ctx, msg.Value); err != nil {
			switch {
			case !retryable(err):
				l.Error("dropping message, failure is permanent",
					zap.String("kind", string(blob.KindOf(err))),
					zap.Error(err),
				)
			case c.maxAttempts > 0 && attempts >= c.maxAttempts:
				l.Error("dropping message, attempts exhausted", zap.Error(err))
			default:
				l.Warn("handler failed, message will be redelivered", zap.Error(err))
				if serr := consumer.Seek(tp, 0); serr != nil {
					l.Error("seek failed", zap.Error(serr))
				}

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.backoffFor(attempts)):
				}
				continue
			}
		}

		if _, err := consumer.CommitMessage(msg); err != nil {
			l.Warn("commit failed", zap.Error(err))
		}
		current, attempts = kafka.TopicPartition{}, 0
	}
}

func sameTopic(a, b kafka.TopicPartition) bool {
	if a.Topic == nil || b.Topic == nil {
		return a.Topic == b.Topic
	}
	return *a.Topic == *b.Topic
}
