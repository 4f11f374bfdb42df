package lobby

import (
	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

// Delivery is one outbound message addressed to one member.
type Delivery struct {
	To  string
	Msg types.Outbound
}

// Deliveries maps the events of a single Apply to the messages each member
// should receive. s is the state after the events.
func Deliveries(s engine.State, events []engine.Event) []Delivery {
	var out []Delivery
	toAll := func(msg types.Outbound) {
		for _, m := range s.Members {
			out = append(out, Delivery{To: m.ID, Msg: msg})
		}
	}

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPartyChanged:
			toAll(types.PartyUpdate{RoomCode: s.Code, Users: s.Names()})

		case engine.EvtGameStarted:
			toAll(types.GameStart{})

		case engine.EvtRoundResolved:
			results := make([]types.PlayerResult, 0, len(ev.Results))
			for _, r := range ev.Results {
				results = append(results, types.PlayerResult{UserName: r.Name, Hand: r.Hand, Outcome: r.Outcome})
			}
			for _, r := range ev.Results {
				out = append(out,
					Delivery{To: r.MemberID, Msg: types.ServerHand{Hand: ev.ServerHand}},
					Delivery{To: r.MemberID, Msg: types.RoundResult{
						RoomCode:   s.Code,
						Round:      ev.Round,
						ServerHand: ev.ServerHand,
						Hand:       r.Hand,
						Outcome:    r.Outcome,
						Results:    results,
					}},
				)
			}

		case engine.EvtRoundCancelled:
			toAll(types.RoundCancelled{RoomCode: s.Code, Round: ev.Round, Reason: ev.Reason})

		case engine.EvtRoomClosed:
			for _, m := range ev.Evicted {
				out = append(out, Delivery{To: m.ID, Msg: types.RoomClosed{RoomCode: s.Code, Reason: ev.Reason}})
			}
		}
	}
	return out
}
