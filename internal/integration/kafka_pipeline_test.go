//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/kafka"
	"github.com/couchcryptid/fd2w-etl/internal/config"
	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/forecast"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
)

const testTopic = "test-fd2w-records"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("fd2w-test"),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type publishedMessage struct {
	Key     string
	Headers map[string]string
	Value   []byte
}

func readMessages(ctx context.Context, t *testing.T, broker string, n int) []publishedMessage {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedMessage, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from topic")
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, publishedMessage{Key: string(msg.Key), Headers: headers, Value: msg.Value})
	}
	return out
}

// TestPipelinePublishesToKafka runs the pipeline on an in-memory export and
// reads the published volumes and points back from the topic.
func TestPipelinePublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	resolver, err := forecast.NewResolver(forecast.DefaultProfile())
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(resolver, nil, pipeline.Options{}, discardLogger(), metrics)

	res, err := p.Run(ctx, pipeline.Input{
		Forecast: forecast.Grid{
			{"Version 1"},
			{nil, "Forecast at LDC", "Forecast at RDC"},
			{"Market", "Loc1", "Loc2"},
			{"FR", 100.0, 25.0},
		},
		Locations: forecast.Grid{
			{"Location", "City", "Country", "lat", "lon"},
			{"Loc1", "Lyon", "France", 45.76, 4.83},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Volumes, 2)
	require.Len(t, res.Points, 1)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.Publish(ctx, res))

	msgs := readMessages(ctx, t, broker, 3)

	byType := map[string][]publishedMessage{}
	for _, m := range msgs {
		byType[m.Headers["record_type"]] = append(byType[m.Headers["record_type"]], m)
		_, err := time.Parse(time.RFC3339, m.Headers["generated_at"])
		assert.NoError(t, err, "generated_at should be valid RFC3339")
	}
	require.Len(t, byType[kafka.RecordTypeVolume], 2)
	require.Len(t, byType[kafka.RecordTypePoint], 1)

	var point domain.MappablePoint
	require.NoError(t, json.Unmarshal(byType[kafka.RecordTypePoint][0].Value, &point))
	assert.Equal(t, "FR|LDCs|Loc1", byType[kafka.RecordTypePoint][0].Key)
	assert.Equal(t, 100.0, point.Volume)
	assert.Equal(t, 45.76, point.Lat)
	assert.Equal(t, "Lyon", point.City)
}
