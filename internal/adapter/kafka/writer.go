// Package kafka publishes pipeline results to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/fd2w-etl/internal/config"
	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
)

// Record types carried in the record_type header.
const (
	RecordTypeVolume = "volume"
	RecordTypePoint  = "point"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per aggregated row and per map point.
type Writer struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// Publish serializes the volumes and points of res and writes them in a
// single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, res *pipeline.Result) error {
	msgs := make([]kafkago.Message, 0, len(res.Volumes)+len(res.Points))
	for _, row := range res.Volumes {
		msg, err := serializeToMessage(RecordTypeVolume, recordKey(row.Market, row.WhRole, row.Location), row, res.GeneratedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	for _, pt := range res.Points {
		msg, err := serializeToMessage(RecordTypePoint, recordKey(pt.Market, pt.WhRole, pt.Location), pt, res.GeneratedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d messages: %w", len(msgs), err)
	}
	w.metrics.MessagesProduced.Add(float64(len(msgs)))
	w.logger.Info("result published",
		"volumes", len(res.Volumes),
		"points", len(res.Points),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func recordKey(market string, role domain.Role, location string) string {
	return strings.Join([]string{market, string(role), location}, "|")
}

// serializeToMessage marshals one record into a Kafka message.
func serializeToMessage(recordType, key string, record any, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", recordType, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
