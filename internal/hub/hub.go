package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/lobby"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

var ErrShuttingDown = errors.New("hub shutting down")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Host   engine.Member
	Outbox chan types.Outbound
	Reply  chan created
}

// ReserveJoin binds a member to an existing room before the lobby is asked to admit them.
type ReserveJoin struct {
	Code     string
	MemberID string
	Reply    chan reserved
}

// Admit marks a reserved member as let in by the room, so listings count them.
type Admit struct {
	MemberID string
	Code     string
}

// Unbind forgets a member's room; ignored when the member is bound elsewhere.
type Unbind struct {
	MemberID string
	Code     string
}

// RemoveRoom drops a destroyed room; Gen guards against a newer room reusing the code.
type RemoveRoom struct {
	Code string
	Gen  uint64
}

type ListRooms struct {
	Reply chan []RoomInfo
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (ReserveJoin) isHubMsg() {}
func (Admit) isHubMsg()       {}
func (Unbind) isHubMsg()      {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type created struct {
	lobby *lobby.Lobby
	err   error
}

type reserved struct {
	lobby *lobby.Lobby
	err   error
}

type RoomInfo struct {
	Code      string    `json:"code"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

type Options struct {
	MaxRooms     int // 0 means limited only by the code space
	CodeAttempts int
	Rules        engine.Rules
	Lobby        lobby.Options // template for every room; callbacks are set by the hub
	NewCode      CodeGen
	Logger       *slog.Logger
}

// binding is a member's claim on a room. Reserved joins are not yet admitted.
type binding struct {
	code     string
	admitted bool
}

type room struct {
	lobby   *lobby.Lobby
	gen     uint64
	created time.Time
}

type Hub struct {
	inbox chan HubMsg
	rooms map[string]*room
	bound map[string]binding // member id -> room
	gen   uint64
	opts  Options
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.NewCode == nil {
		opts.NewCode = GenerateCode
	}
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = 32
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room),
		bound:  make(map[string]binding),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				lb, err := h.createRoom(msg.Host, msg.Outbox)
				msg.Reply <- created{lobby: lb, err: err}

			case ReserveJoin:
				if b, ok := h.bound[msg.MemberID]; ok {
					msg.Reply <- reserved{err: fmt.Errorf("%w: already in room %s", engine.ErrInvalidState, b.code)}
					break
				}
				r := h.rooms[msg.Code]
				if r == nil {
					msg.Reply <- reserved{err: engine.ErrRoomNotFound}
					break
				}
				h.bound[msg.MemberID] = binding{code: msg.Code}
				msg.Reply <- reserved{lobby: r.lobby}

			case Unbind:
				if b, ok := h.bound[msg.MemberID]; ok && b.code == msg.Code {
					delete(h.bound, msg.MemberID)
				}

			case Admit:
				if b, ok := h.bound[msg.MemberID]; ok && b.code == msg.Code {
					b.admitted = true
					h.bound[msg.MemberID] = b
				}

			case RemoveRoom:
				if r := h.rooms[msg.Code]; r != nil && r.gen == msg.Gen {
					delete(h.rooms, msg.Code)
					h.log.Info("room code freed", "room", msg.Code, "active", len(h.rooms))
				}

			case ListRooms:
				msg.Reply <- h.list()

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) createRoom(host engine.Member, outbox chan types.Outbound) (*lobby.Lobby, error) {
	if b, ok := h.bound[host.ID]; ok {
		return nil, fmt.Errorf("%w: already in room %s", engine.ErrInvalidState, b.code)
	}
	if h.opts.MaxRooms > 0 && len(h.rooms) >= h.opts.MaxRooms {
		return nil, fmt.Errorf("%w: %d rooms active", engine.ErrCapacityExceeded, len(h.rooms))
	}

	code, err := h.allocate()
	if err != nil {
		return nil, err
	}

	h.gen++
	gen := h.gen

	opts := h.opts.Lobby
	opts.Logger = h.log
	opts.Released = func(id string) { h.send(Unbind{MemberID: id, Code: code}) }
	opts.Closed = func() { h.send(RemoveRoom{Code: code, Gen: gen}) }

	host.Role = engine.RoleHost
	lb := lobby.NewLobby(h.ctx, engine.NewState(code, host, h.opts.Rules), outbox, opts)
	h.rooms[code] = &room{lobby: lb, gen: gen, created: time.Now().UTC()}
	h.bound[host.ID] = binding{code: code, admitted: true}

	h.log.Info("room created", "room", code, "host", host.ID, "active", len(h.rooms))
	return lb, nil
}

func (h *Hub) allocate() (string, error) {
	for range h.opts.CodeAttempts {
		code, err := h.opts.NewCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
		h.log.Debug("collision on code, regenerating", "room", code)
	}
	return "", fmt.Errorf("%w: %d draws collided", engine.ErrCapacityExceeded, h.opts.CodeAttempts)
}

func (h *Hub) list() []RoomInfo {
	counts := make(map[string]int, len(h.rooms))
	for _, b := range h.bound {
		if b.admitted {
			counts[b.code]++
		}
	}
	out := make([]RoomInfo, 0, len(h.rooms))
	for code, r := range h.rooms {
		out = append(out, RoomInfo{Code: code, Members: counts[code], CreatedAt: r.created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.lobby.Close()
	}
	clear(h.rooms)
	clear(h.bound)
}

// send is used from lobby goroutines; it never blocks past hub shutdown.
func (h *Hub) send(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) request(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateRoom opens a room with host as its only member. outbox immediately
// receives the first PartyUpdate.
func (h *Hub) CreateRoom(ctx context.Context, host engine.Member, outbox chan types.Outbound) (Handle, error) {
	reply := make(chan created, 1)
	if err := h.request(ctx, CreateRoom{Host: host, Outbox: outbox, Reply: reply}); err != nil {
		return Handle{}, err
	}
	select {
	case r := <-reply:
		if r.err != nil {
			return Handle{}, r.err
		}
		return Handle{Code: r.lobby.Code(), MemberID: host.ID, hub: h, lobby: r.lobby}, nil
	case <-h.ctx.Done():
		return Handle{}, ErrShuttingDown
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	}
}

// JoinRoom adds p to the room with the given code as a Player.
func (h *Hub) JoinRoom(ctx context.Context, code string, p engine.Member, outbox chan types.Outbound) (Handle, error) {
	code = NormalizeCode(code)
	p.Role = engine.RolePlayer

	reply := make(chan reserved, 1)
	if err := h.request(ctx, ReserveJoin{Code: code, MemberID: p.ID, Reply: reply}); err != nil {
		return Handle{}, err
	}

	var lb *lobby.Lobby
	select {
	case r := <-reply:
		if r.err != nil {
			return Handle{}, r.err
		}
		lb = r.lobby
	case <-h.ctx.Done():
		return Handle{}, ErrShuttingDown
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	}

	if err := lb.Join(ctx, p, outbox); err != nil {
		h.send(Unbind{MemberID: p.ID, Code: code})
		return Handle{}, err
	}
	h.send(Admit{MemberID: p.ID, Code: code})
	return Handle{Code: code, MemberID: p.ID, hub: h, lobby: lb}, nil
}

// Rooms lists active rooms ordered by code.
func (h *Hub) Rooms(ctx context.Context) ([]RoomInfo, error) {
	reply := make(chan []RoomInfo, 1)
	if err := h.request(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-h.ctx.Done():
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes every room, which closes every member outbox.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
