package engine

import (
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleHost   Role = "Host"
	RolePlayer Role = "Player"
)

type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseInRound   Phase = "in_round"
	PhaseDestroyed Phase = "destroyed"
)

type RoundPhase string

const (
	RoundIdle          RoundPhase = "idle"
	RoundAwaitingHands RoundPhase = "awaiting_hands"
	RoundResolved      RoundPhase = "resolved"
)

type Member struct {
	ID   string
	Name string
	Role Role
}

type Result struct {
	MemberID string
	Name     string
	Hand     Hand
	Outcome  Outcome
}

type Round struct {
	Number     int
	Phase      RoundPhase
	Hands      map[string]Hand
	ServerHand Hand
	Results    []Result
}

type State struct {
	Code    string
	Phase   Phase
	Members []Member // join order, host first
	Round   Round
	Rules   Rules
}

type Rules struct {
	MinPlayers int
}

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdLeave        CommandType = "Leave"
	CmdStartGame    CommandType = "StartGame"
	CmdSubmitHand   CommandType = "SubmitHand"
	CmdTimeoutRound CommandType = "TimeoutRound"
)

/*
	CmdJoin         -> EvtPartyChanged
	CmdLeave        -> EvtPartyChanged (-> EvtRoundResolved if the leaver was the last one missing)
	                   EvtRoomClosed when the host leaves, EvtRoomEmptied when nobody is left
	CmdStartGame    -> EvtGameStarted
	CmdSubmitHand   -> EvtHandSubmitted (-> EvtRoundResolved once everyone has a hand in)
	CmdTimeoutRound -> EvtRoundCancelled, or nothing when the timer belongs to an older round
*/

type Command struct {
	Type     CommandType
	Member   Member // CmdJoin
	MemberID string // issuer of every other command
	Hand     Hand
	Round    int // CmdTimeoutRound
}

type EventType string

const (
	EvtPartyChanged   EventType = "PartyChanged"
	EvtGameStarted    EventType = "GameStarted"
	EvtHandSubmitted  EventType = "HandSubmitted"
	EvtRoundResolved  EventType = "RoundResolved"
	EvtRoundCancelled EventType = "RoundCancelled"
	EvtRoomClosed     EventType = "RoomClosed"
	EvtRoomEmptied    EventType = "RoomEmptied"
)

type Event struct {
	Type       EventType
	MemberID   string
	Round      int
	ServerHand Hand
	Results    []Result
	Reason     string
	Evicted    []Member // EvtRoomClosed: members still present at teardown
}

const defaultMinPlayers = 2

// Apply validates cmd against s and returns the resulting events and state.
// s itself is never modified; on error the returned state is s.
func Apply(s State, cmd Command, d Dealer) ([]Event, State, error) {
	if s.Phase == PhaseDestroyed {
		return nil, s, ErrRoomClosed
	}

	switch cmd.Type {
	case CmdJoin:
		return join(s, cmd.Member)
	case CmdLeave:
		return leave(s, cmd.MemberID, d)
	case CmdStartGame:
		return startGame(s, cmd.MemberID)
	case CmdSubmitHand:
		return submitHand(s, cmd.MemberID, cmd.Hand, d)
	case CmdTimeoutRound:
		return timeoutRound(s, cmd.Round)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func join(s State, m Member) ([]Event, State, error) {
	if s.Phase == PhaseInRound {
		return nil, s, fmt.Errorf("%w: round in progress", ErrRoomClosed)
	}
	if m.ID == "" || strings.TrimSpace(m.Name) == "" {
		return nil, s, fmt.Errorf("%w: participant needs an id and a name", ErrInvalidState)
	}
	if s.IndexOf(m.ID) >= 0 {
		return nil, s, fmt.Errorf("%w: already a member", ErrInvalidState)
	}
	if m.Role == RoleHost && s.HostID() != "" {
		return nil, s, fmt.Errorf("%w: room already has a host", ErrInvalidState)
	}

	newState := s.clone()
	newState.Members = append(newState.Members, m)
	return []Event{{Type: EvtPartyChanged, MemberID: m.ID}}, newState, nil
}

func leave(s State, id string, d Dealer) ([]Event, State, error) {
	idx := s.IndexOf(id)
	if idx < 0 {
		return nil, s, fmt.Errorf("%w: not a member", ErrUnauthorized)
	}

	newState := s.clone()
	gone := newState.Members[idx]
	newState.Members = slices.Delete(newState.Members, idx, idx+1)
	delete(newState.Round.Hands, id)

	if gone.Role == RoleHost {
		evicted := newState.Members
		newState.Members = nil
		newState.Phase = PhaseDestroyed
		return []Event{{Type: EvtRoomClosed, MemberID: id, Reason: "host left", Evicted: evicted}}, newState, nil
	}

	if len(newState.Members) == 0 {
		newState.Phase = PhaseDestroyed
		return []Event{{Type: EvtRoomEmptied, MemberID: id}}, newState, nil
	}

	events := []Event{{Type: EvtPartyChanged, MemberID: id}}
	if newState.awaitingHands() && newState.allSubmitted() {
		events = append(events, resolve(&newState, d))
	}
	return events, newState, nil
}

func startGame(s State, id string) ([]Event, State, error) {
	m, ok := s.Member(id)
	if !ok {
		return nil, s, fmt.Errorf("%w: not a member", ErrUnauthorized)
	}
	if m.Role != RoleHost {
		return nil, s, fmt.Errorf("%w: only the host can start a round", ErrUnauthorized)
	}
	if s.Phase == PhaseInRound {
		return nil, s, fmt.Errorf("%w: round already in progress", ErrInvalidState)
	}
	if need := s.minPlayers(); len(s.Members) < need {
		return nil, s, fmt.Errorf("%w: need at least %d participants", ErrInvalidState, need)
	}

	newState := s.clone()
	newState.Phase = PhaseInRound
	newState.Round = Round{
		Number: s.Round.Number + 1,
		Phase:  RoundAwaitingHands,
		Hands:  map[string]Hand{},
	}
	return []Event{{Type: EvtGameStarted, MemberID: id, Round: newState.Round.Number}}, newState, nil
}

func submitHand(s State, id string, h Hand, d Dealer) ([]Event, State, error) {
	if s.IndexOf(id) < 0 {
		return nil, s, fmt.Errorf("%w: not a member", ErrUnauthorized)
	}
	if !s.awaitingHands() {
		return nil, s, fmt.Errorf("%w: no round is awaiting hands", ErrInvalidState)
	}
	if !h.Valid() {
		return nil, s, fmt.Errorf("%w: unknown hand %q", ErrInvalidState, h)
	}
	if _, done := s.Round.Hands[id]; done {
		return nil, s, ErrDuplicateSubmission
	}

	newState := s.clone()
	newState.Round.Hands[id] = h

	events := []Event{{Type: EvtHandSubmitted, MemberID: id, Round: newState.Round.Number}}
	if newState.allSubmitted() {
		events = append(events, resolve(&newState, d))
	}
	return events, newState, nil
}

func timeoutRound(s State, round int) ([]Event, State, error) {
	// Stale timer: the round it was armed for already ended.
	if !s.awaitingHands() || s.Round.Number != round {
		return nil, s, nil
	}

	newState := s.clone()
	newState.Phase = PhaseLobby
	newState.Round.Phase = RoundIdle
	newState.Round.Hands = map[string]Hand{}
	return []Event{{Type: EvtRoundCancelled, Round: round, Reason: "round timed out"}}, newState, nil
}

func resolve(s *State, d Dealer) Event {
	if d == nil {
		d = RandomDealer
	}
	server := d.Deal()

	results := make([]Result, 0, len(s.Members))
	for _, m := range s.Members {
		h := s.Round.Hands[m.ID]
		results = append(results, Result{MemberID: m.ID, Name: m.Name, Hand: h, Outcome: Resolve(h, server)})
	}

	s.Phase = PhaseLobby
	s.Round.Phase = RoundResolved
	s.Round.ServerHand = server
	s.Round.Results = results

	return Event{Type: EvtRoundResolved, Round: s.Round.Number, ServerHand: server, Results: results}
}

func (s State) awaitingHands() bool {
	return s.Phase == PhaseInRound && s.Round.Phase == RoundAwaitingHands
}

func (s State) allSubmitted() bool {
	if len(s.Members) == 0 {
		return false
	}
	for _, m := range s.Members {
		if _, ok := s.Round.Hands[m.ID]; !ok {
			return false
		}
	}
	return true
}

// minPlayers never drops below two: a round needs a host and a player.
func (s State) minPlayers() int {
	if s.Rules.MinPlayers > defaultMinPlayers {
		return s.Rules.MinPlayers
	}
	return defaultMinPlayers
}

func (s State) clone() State {
	c := s
	c.Members = slices.Clone(s.Members)
	c.Round.Hands = make(map[string]Hand, len(s.Round.Hands))
	for id, h := range s.Round.Hands {
		c.Round.Hands[id] = h
	}
	c.Round.Results = slices.Clone(s.Round.Results)
	return c
}
