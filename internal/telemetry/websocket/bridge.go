// Package websocket accepts telemetry frames from device gateways over a
// long-lived WebSocket connection.
package websocket

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"pulsegate/internal/telemetry"
	"pulsegate/internal/telemetry/ratelimit"
	dErrors "pulsegate/pkg/domain-errors"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4 * 1024
	source       = "websocket"
)

// Ack answers every frame on the same connection.
type Ack struct {
	SessionID     string `json:"session_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	ZoneID        string `json:"zone_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Bridge upgrades connections and forwards frames to a sink.
type Bridge struct {
	sink     telemetry.Sink
	logger   *slog.Logger
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithCheckOrigin replaces the origin check. The default accepts any origin.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(b *Bridge) {
		b.upgrader.CheckOrigin = fn
	}
}

// WithLimiter throttles frames per session participant.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(b *Bridge) {
		b.limiter = l
	}
}

// New builds a bridge.
func New(sink telemetry.Sink, logger *slog.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		sink:   sink,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register mounts the bridge on r.
func (b *Bridge) Register(r chi.Router) {
	r.Get("/telemetry/ws", b.HandleConnect)
}

// HandleConnect upgrades the request and serves frames until the peer goes
// away.
func (b *Bridge) HandleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		b.logger.WarnContext(r.Context(), "telemetry websocket upgrade failed", "error", err)
		return
	}
	c := &connection{bridge: b, conn: conn, done: make(chan struct{})}
	go c.pingLoop()
	c.readLoop(r)
}

type connection struct {
	bridge  *Bridge
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

func (c *connection) readLoop(r *http.Request) {
	ctx := r.Context()
	logger := c.bridge.logger
	defer func() {
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnContext(ctx, "telemetry websocket closed unexpectedly", "error", err)
			}
			return
		}

		frame, err := telemetry.Decode(data)
		if err != nil {
			logger.DebugContext(ctx, "telemetry frame rejected", "error", err)
			if !c.write(Ack{Error: string(dErrors.CodeOf(err))}) {
				return
			}
			continue
		}

		ack := Ack{SessionID: frame.SessionID, ParticipantID: frame.ParticipantID}
		if c.bridge.limiter != nil {
			if _, ok := c.bridge.limiter.Allow(ctx, "participant:"+frame.SessionID+"/"+frame.ParticipantID); !ok {
				ack.Error = string(dErrors.CodeRateLimited)
				if !c.write(ack) {
					return
				}
				continue
			}
		}
		reading, err := c.bridge.sink.IngestTelemetry(ctx, frame.Sample(source))
		if err != nil {
			logger.DebugContext(ctx, "telemetry sample not ingested",
				"session_id", frame.SessionID,
				"participant_id", frame.ParticipantID,
				"error", err,
			)
			ack.Error = string(dErrors.CodeOf(err))
		} else {
			ack.ZoneID = reading.ZoneID
		}
		if !c.write(ack) {
			return
		}
	}
}

func (c *connection) write(ack Ack) bool {
	data, err := json.Marshal(ack)
	if err != nil {
		return false
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	return c.conn.WriteMessage(websocket.TextMessage, data) == nil
}

func (c *connection) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
