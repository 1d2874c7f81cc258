package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/config"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes every snapshot to a Kafka topic as one message.
// It implements aggregator.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Write serializes and publishes snap.
func (w *Writer) Write(ctx context.Context, snap domain.Snapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot message: %w", err)
	}
	w.logger.Debug("snapshot published to kafka", "tracks", len(snap.Tracks))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a snapshot into a Kafka message keyed by its
// generation time.
func serializeToMessage(snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(domain.NewCacheDocument(snap))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	generatedAt := snap.GeneratedAt.UTC().Format(time.RFC3339)
	return kafkago.Message{
		Key:   []byte(generatedAt),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "track_count", Value: []byte(strconv.Itoa(len(snap.Tracks)))},
			{Key: "generated_at", Value: []byte(generatedAt)},
		},
	}, nil
}
