package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/lobby"
)

// Handle is one member's binding to one room.
type Handle struct {
	Code     string
	MemberID string

	hub   *Hub
	lobby *lobby.Lobby
}

func (h Handle) Valid() bool { return h.lobby != nil }

func (h Handle) StartGame(ctx context.Context) error {
	return h.lobby.Do(ctx, engine.Command{Type: engine.CmdStartGame, MemberID: h.MemberID})
}

func (h Handle) SubmitHand(ctx context.Context, hand engine.Hand) error {
	return h.lobby.Do(ctx, engine.Command{Type: engine.CmdSubmitHand, MemberID: h.MemberID, Hand: hand})
}

// Leave removes the member from the room and frees their binding. Leaving a
// room that is already gone is not an error.
func (h Handle) Leave(ctx context.Context) error {
	err := h.lobby.Leave(ctx, h.MemberID)
	h.Detach()
	if errors.Is(err, engine.ErrRoomClosed) {
		return nil
	}
	return err
}

// Detach frees the binding after the room evicted the member.
func (h Handle) Detach() {
	h.hub.send(Unbind{MemberID: h.MemberID, Code: h.Code})
}
