package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/hub"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

// Registry is the part of the hub a session needs.
type Registry interface {
	CreateRoom(ctx context.Context, host engine.Member, outbox chan types.Outbound) (hub.Handle, error)
	JoinRoom(ctx context.Context, code string, p engine.Member, outbox chan types.Outbound) (hub.Handle, error)
}

type Config struct {
	OutboxSize     int
	PingEvery      time.Duration // 0 disables keepalive pings
	WriteTimeout   time.Duration
	ReadLimit      int64
	RatePerSec     float64 // 0 disables the inbound limit
	Burst          int
	OriginPatterns []string
}

func (c Config) withDefaults() Config {
	if c.OutboxSize <= 0 {
		c.OutboxSize = 32
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 4096
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	return c
}

func Handler(reg Registry, cfg Config, log *slog.Logger) http.HandlerFunc {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			log.Warn("websocket accept", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(cfg.ReadLimit)

		limit := rate.Inf
		if cfg.RatePerSec > 0 {
			limit = rate.Limit(cfg.RatePerSec)
		}

		id := uuid.NewString()
		base := log.With("member", id, "remote", r.RemoteAddr)
		s := &session{
			id:      id,
			conn:    conn,
			reg:     reg,
			cfg:     cfg,
			limiter: rate.NewLimiter(limit, cfg.Burst),
			base:    base,
			log:     base,
		}

		s.log.Debug("session opened")
		s.run(r.Context())
		s.log.Debug("session closed")
	}
}
