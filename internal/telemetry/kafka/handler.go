// Package kafka consumes telemetry frames from a Kafka topic. Records are
// keyed by session id; the key fills in a frame that omits session_id.
package kafka

import (
	"context"
	"log/slog"

	"github.com/goccy/go-json"

	"pulsegate/internal/platform/kafka/consumer"
	"pulsegate/internal/telemetry"
	dErrors "pulsegate/pkg/domain-errors"
)

const source = "kafka"

// Handler turns consumed records into telemetry samples.
type Handler struct {
	sink   telemetry.Sink
	logger *slog.Logger
}

// NewHandler builds a record handler.
func NewHandler(sink telemetry.Sink, logger *slog.Logger) *Handler {
	return &Handler{sink: sink, logger: logger}
}

// Handle ingests one record. Malformed frames and samples for unknown
// sessions are dropped; only unexpected failures are returned.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var frame telemetry.Frame
	if err := json.Unmarshal(msg.Value, &frame); err != nil {
		h.logger.DebugContext(ctx, "dropping malformed telemetry record",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if frame.SessionID == "" {
		frame.SessionID = string(msg.Key)
	}
	if err := frame.Validate(); err != nil {
		h.logger.DebugContext(ctx, "dropping invalid telemetry record",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	sample := frame.Sample(source)
	if !msg.Timestamp.IsZero() && sample.At.IsZero() {
		sample.At = msg.Timestamp.UTC()
	}
	if _, err := h.sink.IngestTelemetry(ctx, sample); err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeNotFound, dErrors.CodeInvalidInput:
			h.logger.DebugContext(ctx, "telemetry record not ingested",
				"session_id", frame.SessionID,
				"participant_id", frame.ParticipantID,
				"error", err,
			)
			return nil
		}
		return err
	}
	return nil
}

// NewConsumer wires a consumer group that feeds sink.
func NewConsumer(cfg consumer.Config, sink telemetry.Sink, logger *slog.Logger) (*consumer.Consumer, error) {
	return consumer.New(cfg, NewHandler(sink, logger), logger)
}
