// Package handler exposes governed sessions over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/service"
	"pulsegate/internal/governance/sessionconfig"
	dErrors "pulsegate/pkg/domain-errors"
	"pulsegate/pkg/platform/httputil"
	"pulsegate/pkg/requestcontext"
)

const maxConfigBytes = 1 << 20

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

// Service is the governance service as the HTTP layer sees it.
type Service interface {
	Configure(ctx context.Context, cfg *sessionconfig.File) (*service.SessionInfo, error)
	Sessions(ctx context.Context) []service.SessionInfo
	Teardown(ctx context.Context, sessionID string) error
	StartContent(ctx context.Context, sessionID string, item models.ContentItem) (bool, models.Snapshot, error)
	EndContent(ctx context.Context, sessionID string) (models.Snapshot, error)
	UpdateRoster(ctx context.Context, sessionID string, roster models.Roster) (models.Snapshot, error)
	IngestTelemetry(ctx context.Context, sample service.TelemetrySample) (models.Reading, error)
	Disconnect(ctx context.Context, sessionID, participantID string) error
	Snapshot(ctx context.Context, sessionID string) (models.Snapshot, error)
	Playback(ctx context.Context, sessionID string) (service.PlaybackStatus, error)
	Episodes(ctx context.Context, sessionID string) ([]models.Episode, error)
}

// Handler wires governance endpoints to the service.
type Handler struct {
	service   Service
	logger    *slog.Logger
	telemetry []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithTelemetryMiddleware wraps only the telemetry ingest route, e.g. with a
// rate limiter.
func WithTelemetryMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.telemetry = append(h.telemetry, mw...)
	}
}

// New constructs a governance handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the governance endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/governance/sessions", func(r chi.Router) {
		r.Post("/", h.HandleConfigure)
		r.Get("/", h.HandleListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", h.HandleTeardown)
			r.Post("/content", h.HandleStartContent)
			r.Delete("/content", h.HandleEndContent)
			r.Put("/roster", h.HandleUpdateRoster)
			r.With(h.telemetry...).Post("/telemetry", h.HandleTelemetry)
			r.Post("/participants/{participantID}/disconnect", h.HandleDisconnect)
			r.Get("/snapshot", h.HandleSnapshot)
			r.Get("/playback", h.HandlePlayback)
			r.Get("/episodes", h.HandleEpisodes)
		})
	})
}

// HandleConfigure handles POST /governance/sessions. The body is a session
// config in JSON, or YAML when sent as application/yaml.
func (h *Handler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cfg, err := decodeConfig(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid session config", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	info, err := h.service.Configure(ctx, cfg)
	if err != nil {
		h.logger.WarnContext(ctx, "session configuration rejected", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "session configured",
		"request_id", requestID,
		"session_id", info.ID,
		"rule", info.RuleLabel,
	)
	httputil.WriteJSON(w, http.StatusCreated, info)
}

// HandleListSessions handles GET /governance/sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, SessionListResponse[service.SessionInfo]{
		Sessions: h.service.Sessions(r.Context()),
	})
}

// HandleTeardown handles DELETE /governance/sessions/{sessionID}.
func (h *Handler) HandleTeardown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.service.Teardown(ctx, sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "session torn down",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStartContent handles POST /governance/sessions/{sessionID}/content.
func (h *Handler) HandleStartContent(w http.ResponseWriter, r *http.Request) {
	var req StartContentRequest
	if !decode(w, r, &req) {
		return
	}
	governed, snap, err := h.service.StartContent(r.Context(), chi.URLParam(r, "sessionID"), req.item())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StartContentResponse{Governed: governed, Snapshot: snap})
}

// HandleEndContent handles DELETE /governance/sessions/{sessionID}/content.
func (h *Handler) HandleEndContent(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.EndContent(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleUpdateRoster handles PUT /governance/sessions/{sessionID}/roster.
func (h *Handler) HandleUpdateRoster(w http.ResponseWriter, r *http.Request) {
	var req UpdateRosterRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.service.UpdateRoster(r.Context(), chi.URLParam(r, "sessionID"), req.Participants)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleTelemetry handles POST /governance/sessions/{sessionID}/telemetry.
func (h *Handler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	var req TelemetryRequest
	if !decode(w, r, &req) {
		return
	}
	reading, err := h.service.IngestTelemetry(r.Context(), service.TelemetrySample{
		SessionID:     chi.URLParam(r, "sessionID"),
		ParticipantID: req.ParticipantID,
		HeartRate:     req.HeartRate,
		At:            req.at(),
		Source:        "http",
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, TelemetryResponse{
		ParticipantID: req.ParticipantID,
		HeartRate:     reading.HeartRate,
		ZoneID:        reading.ZoneID,
	})
}

// HandleDisconnect handles POST .../participants/{participantID}/disconnect.
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	err := h.service.Disconnect(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSnapshot handles GET /governance/sessions/{sessionID}/snapshot.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandlePlayback handles GET /governance/sessions/{sessionID}/playback.
func (h *Handler) HandlePlayback(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Playback(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleEpisodes handles GET /governance/sessions/{sessionID}/episodes.
func (h *Handler) HandleEpisodes(w http.ResponseWriter, r *http.Request) {
	eps, err := h.service.Episodes(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EpisodeListResponse{Episodes: eps})
}

type validatable interface {
	Validate() error
}

// decode reads and validates a JSON body, writing the error response on
// failure.
func decode(w http.ResponseWriter, r *http.Request, req validatable) bool {
	if err := httputil.DecodeJSON(r, req); err != nil {
		httputil.WriteError(w, err)
		return false
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return false
	}
	return true
}

func decodeConfig(r *http.Request) (*sessionconfig.File, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		data, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable request body")
		}
		return sessionconfig.Parse(data, sessionconfig.FormatYAML)
	default:
		var cfg sessionconfig.File
		if err := httputil.DecodeJSON(r, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
}
