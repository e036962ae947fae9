package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON messages to a single topic.
type Producer struct {
	writer MessageWriter
	topic  string
	comp   string

	msgs    *prometheus.CounterVec
	bytes   prometheus.Counter
	latency prometheus.Histogram
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: 1,
		Compression:  "snappy",
		MaxAttempts:  3,
		WriteTimeout: 5 * time.Second,
		BatchSize:    10,
		BatchTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	w := cfg.Writer
	if w == nil {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("brokers are required")
		}
		w = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  parseCompression(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		}
	}

	f := promauto.With(cfg.Registerer)
	labels := prometheus.Labels{"topic": cfg.Topic}
	return &Producer{
		writer: w,
		topic:  cfg.Topic,
		comp:   cfg.Compression,
		msgs: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "fintrain_kafka_producer_messages_total",
			Help:        "Messages published to Kafka by result",
			ConstLabels: labels,
		}, []string{"result"}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Name:        "fintrain_kafka_producer_bytes_total",
			Help:        "Payload bytes published",
			ConstLabels: labels,
		}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "fintrain_kafka_producer_publish_seconds",
			Help:        "Publish latency",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
	}, nil
}

// Topic is the destination topic.
func (p *Producer) Topic() string { return p.topic }

// Publish sends one message. Values other than []byte and string are JSON encoded.
func (p *Producer) Publish(ctx context.Context, key []byte, value any) error {
	start := time.Now()
	v, err := encode(value)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: v, Time: start})
	p.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		p.msgs.WithLabelValues("error").Inc()
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.msgs.WithLabelValues("ok").Inc()
	p.bytes.Add(float64(len(v)))
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encode(value any) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}
