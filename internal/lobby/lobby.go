package lobby

import (
	"context"
	"log/slog"
	"time"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/history"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

type Msg interface{ isLobbyMsg() }

type Join struct {
	Member engine.Member
	Outbox chan types.Outbound // where this member receives room messages
	Reply  chan error
}

func (Join) isLobbyMsg() {}

type Leave struct {
	MemberID string
	Reply    chan error
}

func (Leave) isLobbyMsg() {}

type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// roundTimeout is posted by the round timer; Round is the timer generation.
type roundTimeout struct{ Round int }

func (roundTimeout) isLobbyMsg() {}

type View struct {
	NumClients int
	State      engine.State
}

type Options struct {
	RoundTimeout time.Duration // 0 disables the round timer
	Dealer       engine.Dealer
	Recorder     history.Recorder

	// Released runs on the lobby goroutine for every member that stops
	// belonging to the room. Closed runs once when the room is destroyed.
	Released func(memberID string)
	Closed   func()

	Logger *slog.Logger
}

type Lobby struct {
	code    string
	inbox   chan Msg
	state   engine.State
	clients map[string]chan types.Outbound
	opts    Options
	log     *slog.Logger

	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLobby starts the room goroutine. initial must hold exactly the host,
// whose outbox receives the first PartyUpdate.
func NewLobby(parent context.Context, initial engine.State, hostOutbox chan types.Outbound, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	l := &Lobby{
		code:    initial.Code,
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[string]chan types.Outbound),
		opts:    opts,
		log:     log.With("room", initial.Code),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if host := initial.HostID(); host != "" && hostOutbox != nil {
		l.clients[host] = hostOutbox
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Done is closed once the room goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Close stops the room and closes every member outbox.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) loop() {
	defer close(l.done)

	l.dispatch([]engine.Event{{Type: engine.EvtPartyChanged, MemberID: l.state.HostID()}})

	for l.state.Phase != engine.PhaseDestroyed {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				events, err := l.step(engine.Command{Type: engine.CmdJoin, Member: msg.Member})
				if err == nil {
					l.clients[msg.Member.ID] = msg.Outbox
				}
				reply(msg.Reply, err)
				l.dispatch(events)

			case Leave:
				events, err := l.step(engine.Command{Type: engine.CmdLeave, MemberID: msg.MemberID})
				reply(msg.Reply, err)
				l.dispatch(events)

			case FromClient:
				events, err := l.step(msg.Cmd)
				reply(msg.Reply, err)
				l.dispatch(events)

			case roundTimeout:
				events, _ := l.step(engine.Command{Type: engine.CmdTimeoutRound, Round: msg.Round})
				l.dispatch(events)

			case GetState:
				msg.Reply <- View{NumClients: len(l.clients), State: l.state}
			}
		}
	}

	l.stopTimer()
	l.log.Info("room destroyed")
	if l.opts.Closed != nil {
		l.opts.Closed()
	}
	l.cancel()
}

// step applies cmd and commits the new state on success.
func (l *Lobby) step(cmd engine.Command) ([]engine.Event, error) {
	events, next, err := engine.Apply(l.state, cmd, l.opts.Dealer)
	if err != nil {
		l.log.Debug("command rejected", "cmd", cmd.Type, "member", cmd.MemberID, "err", err)
		return nil, err
	}
	l.state = next
	return events, nil
}

// dispatch delivers events, drops members that left, and applies a Leave for
// every member whose outbox was full.
func (l *Lobby) dispatch(events []engine.Event) {
	if len(events) == 0 {
		return
	}

	dropped := l.publish(Deliveries(l.state, events))
	l.prune()
	l.react(events)

	for _, id := range dropped {
		if l.state.IndexOf(id) < 0 {
			l.release(id)
			continue
		}
		l.log.Warn("dropping slow member", "member", id)
		evs, err := l.step(engine.Command{Type: engine.CmdLeave, MemberID: id})
		l.release(id)
		if err == nil {
			l.dispatch(evs)
		}
	}
}

func (l *Lobby) publish(ds []Delivery) (dropped []string) {
	for _, d := range ds {
		ch, ok := l.clients[d.To]
		if !ok {
			continue
		}
		select {
		case ch <- d.Msg:
			// ok
		default:
			close(ch)
			delete(l.clients, d.To)
			dropped = append(dropped, d.To)
		}
	}
	return dropped
}

// prune forgets outboxes of anyone who is no longer a member. Their channels
// stay open: the session owns them until it decides what to do next.
func (l *Lobby) prune() {
	for id := range l.clients {
		if l.state.IndexOf(id) >= 0 {
			continue
		}
		delete(l.clients, id)
		l.release(id)
	}
}

func (l *Lobby) release(id string) {
	if l.opts.Released != nil {
		l.opts.Released(id)
	}
}

func (l *Lobby) react(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPartyChanged:
			l.log.Info("party changed", "member", ev.MemberID, "members", len(l.state.Members))

		case engine.EvtGameStarted:
			l.log.Info("round started", "round", ev.Round)
			l.armTimer(ev.Round)

		case engine.EvtRoundResolved:
			l.stopTimer()
			l.log.Info("round resolved", "round", ev.Round, "server_hand", ev.ServerHand)
			if l.opts.Recorder != nil {
				l.opts.Recorder.Record(history.Round{
					RoomCode:   l.code,
					Number:     ev.Round,
					ServerHand: ev.ServerHand,
					Results:    ev.Results,
					ResolvedAt: time.Now().UTC(),
				})
			}

		case engine.EvtRoundCancelled:
			l.stopTimer()
			l.log.Info("round cancelled", "round", ev.Round, "reason", ev.Reason)

		case engine.EvtRoomClosed:
			l.log.Info("room closed", "reason", ev.Reason, "evicted", len(ev.Evicted))
		}
	}
}

func (l *Lobby) armTimer(round int) {
	l.stopTimer()
	if l.opts.RoundTimeout <= 0 {
		return
	}
	l.timer = time.AfterFunc(l.opts.RoundTimeout, func() {
		select {
		case l.inbox <- roundTimeout{Round: round}:
		case <-l.done:
		}
	})
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lobby) shutdown() {
	l.stopTimer()
	for id, ch := range l.clients {
		close(ch) // no more messages for this member
		delete(l.clients, id)
	}
}

func reply(ch chan error, err error) {
	if ch != nil {
		ch <- err
	}
}
