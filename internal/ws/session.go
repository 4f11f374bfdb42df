package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/hub"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

// session binds one connection to at most one room at a time. Binding state
// and writes of room messages belong to the goroutine running run.
type session struct {
	id      string
	conn    *websocket.Conn
	reg     Registry
	cfg     Config
	limiter *rate.Limiter
	base    *slog.Logger
	log     *slog.Logger

	handle hub.Handle
	outbox chan types.Outbound // nil while unbound
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.leave()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLoop(ctx, frames, readErr)

	if s.cfg.PingEvery > 0 {
		go s.keepalive(ctx, cancel)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.log.Debug("client closed connection")
			default:
				s.log.Debug("read failed", "err", err)
			}
			return

		case data := <-frames:
			if err := s.handleFrame(ctx, data); err != nil {
				s.log.Debug("write failed", "err", err)
				return
			}

		case msg, ok := <-s.outbox:
			if !ok {
				// Dropped by the room for falling behind, or the server is stopping.
				s.unbind()
				s.conn.Close(websocket.StatusGoingAway, "room stopped delivering")
				return
			}
			if _, closed := msg.(types.RoomClosed); closed {
				s.handle.Detach()
				s.unbind()
			}
			if err := s.write(ctx, msg); err != nil {
				s.log.Debug("write failed", "err", err)
				return
			}
		}
	}
}

// keepalive pings on its own goroutine: a pong is only read while readLoop
// is free to call Read.
func (s *session) keepalive(ctx context.Context, stop context.CancelFunc) {
	t := time.NewTicker(s.cfg.PingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.log.Info("ping failed, closing session", "err", err)
				stop()
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context, frames chan<- []byte, readErr chan<- error) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			readErr <- err
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) handleFrame(ctx context.Context, data []byte) error {
	if !s.limiter.Allow() {
		return s.writeError(ctx, engine.CodeRateLimited, "too many messages")
	}

	msg, err := types.Decode(data)
	if err != nil {
		s.log.Debug("bad frame", "err", err)
		return s.writeError(ctx, engine.CodeDecodeError, err.Error())
	}

	switch m := msg.(type) {
	case types.HostNewGame:
		err = s.host(ctx, m.UserName)
	case types.UserLogin:
		switch {
		case m.RoomCode != "":
			err = s.join(ctx, m.RoomCode, m.UserName)
		case m.UserType == engine.RoleHost:
			err = s.host(ctx, m.UserName)
		default:
			err = fmt.Errorf("%w: room_code is required to join", engine.ErrInvalidState)
		}
	case types.HostStartGame:
		if err = s.bound(m.RoomCode); err == nil {
			err = s.handle.StartGame(ctx)
		}
	case types.PlayerHand:
		if err = s.bound(m.RoomCode); err == nil {
			err = s.handle.SubmitHand(ctx, m.Hand)
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.log.Debug("request rejected", "room", s.handle.Code, "err", err)
		return s.writeError(ctx, engine.Code(err), err.Error())
	}
	return nil
}

func (s *session) host(ctx context.Context, name string) error {
	m, out, err := s.prepare(name)
	if err != nil {
		return err
	}
	h, err := s.reg.CreateRoom(ctx, m, out)
	if err != nil {
		return err
	}
	s.bind(h, out)
	return nil
}

func (s *session) join(ctx context.Context, code, name string) error {
	m, out, err := s.prepare(name)
	if err != nil {
		return err
	}
	h, err := s.reg.JoinRoom(ctx, code, m, out)
	if err != nil {
		return err
	}
	s.bind(h, out)
	return nil
}

func (s *session) prepare(name string) (engine.Member, chan types.Outbound, error) {
	if s.handle.Valid() {
		return engine.Member{}, nil, fmt.Errorf("%w: already in room %s", engine.ErrInvalidState, s.handle.Code)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return engine.Member{}, nil, fmt.Errorf("%w: user_name is required", engine.ErrInvalidState)
	}
	return engine.Member{ID: s.id, Name: name}, make(chan types.Outbound, s.cfg.OutboxSize), nil
}

func (s *session) bind(h hub.Handle, out chan types.Outbound) {
	s.handle = h
	s.outbox = out
	s.log = s.base.With("room", h.Code)
	s.log.Info("bound to room")
}

// bound checks that the request names the room this connection is in.
func (s *session) bound(code string) error {
	if !s.handle.Valid() || hub.NormalizeCode(code) != s.handle.Code {
		return fmt.Errorf("%w: not a member of room %q", engine.ErrUnauthorized, code)
	}
	return nil
}

func (s *session) leave() {
	if !s.handle.Valid() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.handle.Leave(ctx); err != nil {
		s.log.Debug("leave", "err", err)
	}
	s.unbind()
}

func (s *session) unbind() {
	s.handle = hub.Handle{}
	s.outbox = nil
	s.log = s.base
}

func (s *session) write(ctx context.Context, msg types.Outbound) error {
	b, err := types.Encode(msg)
	if err != nil {
		s.log.Error("encode", "kind", types.Kind(msg), "err", err)
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return s.conn.Write(wctx, websocket.MessageText, b)
}

func (s *session) writeError(ctx context.Context, code, message string) error {
	return s.write(ctx, types.Error{Code: code, Message: message})
}
