package lobby

import (
	"context"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

// Join adds m to the room; outbox starts receiving with the resulting PartyUpdate.
func (l *Lobby) Join(ctx context.Context, m engine.Member, outbox chan types.Outbound) error {
	r := make(chan error, 1)
	return l.request(ctx, Join{Member: m, Outbox: outbox, Reply: r}, r)
}

func (l *Lobby) Leave(ctx context.Context, memberID string) error {
	r := make(chan error, 1)
	return l.request(ctx, Leave{MemberID: memberID, Reply: r}, r)
}

// Do runs a member command (StartGame, SubmitHand) on the room goroutine.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) error {
	r := make(chan error, 1)
	return l.request(ctx, FromClient{Cmd: cmd, Reply: r}, r)
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	r := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: r}:
	case <-l.done:
		return View{}, engine.ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-r:
		return v, nil
	case <-l.done:
		return View{}, engine.ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// request never outlives the room: once it is gone the answer is ErrRoomClosed.
func (l *Lobby) request(ctx context.Context, m Msg, r chan error) error {
	select {
	case l.inbox <- m:
	case <-l.done:
		return engine.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r:
		return err
	case <-l.done:
		select {
		case err := <-r:
			return err
		default:
			return engine.ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
