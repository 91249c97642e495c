//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/service"
	platformkafka "pulsegate/internal/platform/kafka"
	"pulsegate/internal/platform/kafka/consumer"
	"pulsegate/pkg/testutil/containers"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []service.TelemetrySample
}

func (s *recordingSink) IngestTelemetry(_ context.Context, sample service.TelemetrySample) (models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return models.Reading{HeartRate: sample.HeartRate}, nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestConsumerDeliversFrames(t *testing.T) {
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "telemetry-it"
	require.NoError(t, platformkafka.EnsureTopic(ctx, rp.Brokers, topic, 1, 1))
	require.NoError(t, platformkafka.EnsureTopic(ctx, rp.Brokers, topic, 1, 1), "second call must be a no-op")

	producer, err := kgo.NewClient(kgo.SeedBrokers(rp.Brokers...))
	require.NoError(t, err)
	defer producer.Close()
	res := producer.ProduceSync(ctx,
		&kgo.Record{Topic: topic, Key: []byte("s1"), Value: []byte(`{"participant_id":"alice","heart_rate":120}`)},
		&kgo.Record{Topic: topic, Value: []byte(`garbage`)},
		&kgo.Record{Topic: topic, Value: []byte(`{"session_id":"s2","participant_id":"bob","heart_rate":95}`)},
	)
	require.NoError(t, res.FirstErr())

	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewConsumer(consumer.Config{Brokers: rp.Brokers, GroupID: "pulsegate-it", Topics: []string{topic}}, sink, logger)
	require.NoError(t, err)
	defer c.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	assert.Eventually(t, func() bool { return sink.count() == 2 }, 30*time.Second, 100*time.Millisecond)
	stop()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "s1", sink.samples[0].SessionID)
	assert.False(t, sink.samples[0].At.IsZero())
	assert.Equal(t, "s2", sink.samples[1].SessionID)
}
