package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	"github.com/devsmilefactory/moversfinder-sub010/core/metrics"
)

const (
	// DefaultKafkaTopic is consumed when the config names none.
	DefaultKafkaTopic = "ride-status"
	// DefaultGroupID keeps replicas of this service in one consumer group so
	// each event is dispatched once.
	DefaultGroupID = "moversfinder-notify"
)

// KafkaConfig defines the consumer parameters for the Kafka bridge.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	GroupID string   `json:"group_id"`
}

type kafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

var newKafkaReader = func(cfg kafka.ReaderConfig) kafkaReader {
	return kafka.NewReader(cfg)
}

// KafkaSource consumes ride status payloads from a Kafka topic and feeds
// decoded events to the handler.
type KafkaSource struct {
	reader  kafkaReader
	handler Handler
	sink    metrics.MetricsSink
	log     logger.Logger
}

func NewKafkaSource(cfg KafkaConfig, handler Handler, sink metrics.MetricsSink, log logger.Logger) (*KafkaSource, error) {
	if handler == nil || log == nil {
		return nil, fmt.Errorf("ingest: nil parameter provided to NewKafkaSource")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("ingest: kafka brokers required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultKafkaTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &KafkaSource{
		reader: newKafkaReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		handler: handler,
		sink:    sink,
		log:     log,
	}, nil
}

// Run consumes messages until the context is canceled. Undecodable payloads
// are recorded and skipped; the offset still advances.
func (s *KafkaSource) Run(ctx context.Context) error {
	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Errorf("kafka read: %v", err)
			// keep a down broker from spinning the loop
			time.Sleep(time.Second)
			continue
		}
		ev, derr := decodeStatusChange(m.Value)
		recordIngest(s.sink, s.log, "kafka", ev, derr)
		if derr != nil {
			s.log.Errorf("payload at offset %d rejected: %v", m.Offset, derr)
			continue
		}
		s.log.Debugf("kafka event for ride %s: %s -> %s", ev.RideID, ev.OldStatus, ev.NewStatus)
		s.handler(ctx, ev)
	}
}

// Close releases the reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
