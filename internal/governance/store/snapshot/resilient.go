package snapshot

import (
	"context"
	"errors"
	"log/slog"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/ports"
	"pulsegate/pkg/platform/circuit"
	"pulsegate/pkg/platform/sentinel"
)

// Primary is a shared snapshot backend that can also fan out.
type Primary interface {
	ports.SnapshotStore
	ports.SnapshotPublisher
}

// ResilientStore writes through to a shared primary and keeps an in-process
// copy. When the primary keeps failing the breaker opens and reads are
// served from the local copy until enough writes succeed again.
type ResilientStore struct {
	primary  Primary
	fallback *InMemoryStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// ResilientOption configures a ResilientStore.
type ResilientOption func(*ResilientStore)

// WithBreaker replaces the default breaker.
func WithBreaker(b *circuit.Breaker) ResilientOption {
	return func(s *ResilientStore) {
		if b != nil {
			s.breaker = b
		}
	}
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(logger *slog.Logger) ResilientOption {
	return func(s *ResilientStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewResilient(primary Primary, opts ...ResilientOption) *ResilientStore {
	s := &ResilientStore{
		primary:  primary,
		fallback: NewInMemoryStore(),
		breaker:  circuit.New("snapshot-store"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save always updates the local copy. A primary failure is returned only
// while the circuit is still closed. Conflicts come from a reachable primary
// and never count against the breaker.
func (s *ResilientStore) Save(ctx context.Context, sessionID string, snap models.Snapshot) error {
	_ = s.fallback.Save(ctx, sessionID, snap)
	if err := s.primary.Save(ctx, sessionID, snap); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.recordSuccess(ctx)
			return err
		}
		if s.recordFailure(ctx, err) {
			return nil
		}
		return err
	}
	s.recordSuccess(ctx)
	return nil
}

func (s *ResilientStore) Latest(ctx context.Context, sessionID string) (models.Snapshot, error) {
	if s.breaker.IsOpen() {
		return s.fallback.Latest(ctx, sessionID)
	}
	snap, err := s.primary.Latest(ctx, sessionID)
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		return snap, err
	}
	s.recordFailure(ctx, err)
	return s.fallback.Latest(ctx, sessionID)
}

func (s *ResilientStore) Delete(ctx context.Context, sessionID string) error {
	_ = s.fallback.Delete(ctx, sessionID)
	if err := s.primary.Delete(ctx, sessionID); err != nil {
		if s.recordFailure(ctx, err) {
			return nil
		}
		return err
	}
	return nil
}

// Publish is skipped while the circuit is open; there is no local audience.
func (s *ResilientStore) Publish(ctx context.Context, sessionID string, snap models.Snapshot) error {
	if s.breaker.IsOpen() {
		return sentinel.ErrUnavailable
	}
	return s.primary.Publish(ctx, sessionID, snap)
}

// Degraded reports whether reads are currently served locally.
func (s *ResilientStore) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *ResilientStore) recordFailure(ctx context.Context, err error) bool {
	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "snapshot_store_circuit_opened",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	return useFallback
}

func (s *ResilientStore) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "snapshot_store_circuit_closed", "breaker", s.breaker.Name())
	}
}
