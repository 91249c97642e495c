// Package telemetry carries heart-rate frames from device bridges into
// governed sessions.
package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/service"
	dErrors "pulsegate/pkg/domain-errors"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/telemetry-mocks.go -package=mocks Sink

// Sink accepts decoded samples. The governance service satisfies it.
type Sink interface {
	IngestTelemetry(ctx context.Context, sample service.TelemetrySample) (models.Reading, error)
}

// Frame is the wire shape shared by every bridge.
type Frame struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	HeartRate     int    `json:"heart_rate"`
	TimestampMs   int64  `json:"timestamp_ms,omitempty"`
}

// Decode parses and validates one frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed telemetry frame")
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate trims ids and range-checks the sample.
func (f *Frame) Validate() error {
	f.SessionID = strings.TrimSpace(f.SessionID)
	f.ParticipantID = strings.TrimSpace(f.ParticipantID)
	switch {
	case f.SessionID == "":
		return dErrors.New(dErrors.CodeInvalidInput, "session_id is required")
	case f.ParticipantID == "":
		return dErrors.New(dErrors.CodeInvalidInput, "participant_id is required")
	case !models.ValidHeartRate(f.HeartRate):
		return dErrors.New(dErrors.CodeInvalidInput, "heart_rate out of range")
	case f.TimestampMs < 0:
		return dErrors.New(dErrors.CodeInvalidInput, "timestamp_ms cannot be negative")
	}
	return nil
}

// Sample converts the frame for the service. A zero timestamp means the
// service clock decides.
func (f Frame) Sample(source string) service.TelemetrySample {
	s := service.TelemetrySample{
		SessionID:     f.SessionID,
		ParticipantID: f.ParticipantID,
		HeartRate:     f.HeartRate,
		Source:        source,
	}
	if f.TimestampMs > 0 {
		s.At = time.UnixMilli(f.TimestampMs).UTC()
	}
	return s
}
