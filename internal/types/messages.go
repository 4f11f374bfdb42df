package types

import "github.com/DoyleJ11/rps-party-backend/internal/engine"

// Wire protocol: one JSON object per text frame, whose only key names the kind.
//
//	{"HostNewGame": {"user_name": "Alice", "user_type": "Host"}}
//	{"PartyUpdate": {"room_code": "QWER", "users": ["Alice", "Bob"]}}

// Client -> Server

type Inbound interface{ isInbound() }

type UserLogin struct {
	UserName string      `json:"user_name"`
	UserType engine.Role `json:"user_type"`
	RoomCode string      `json:"room_code,omitempty"`
}

type HostNewGame struct {
	UserName string      `json:"user_name"`
	UserType engine.Role `json:"user_type"`
}

type HostStartGame struct {
	RoomCode string `json:"room_code"`
}

type PlayerHand struct {
	UserName string      `json:"user_name"`
	RoomCode string      `json:"room_code"`
	Hand     engine.Hand `json:"hand"`
}

func (UserLogin) isInbound()     {}
func (HostNewGame) isInbound()   {}
func (HostStartGame) isInbound() {}
func (PlayerHand) isInbound()    {}

// Server -> Client

type Outbound interface{ isOutbound() }

type PartyUpdate struct {
	RoomCode string   `json:"room_code"`
	Users    []string `json:"users"`
}

type GameStart struct{}

type ServerHand struct {
	Hand engine.Hand `json:"hand"`
}

type PlayerResult struct {
	UserName string         `json:"user_name"`
	Hand     engine.Hand    `json:"hand"`
	Outcome  engine.Outcome `json:"outcome"`
}

// RoundResult follows ServerHand; Hand and Outcome are the recipient's own.
type RoundResult struct {
	RoomCode   string         `json:"room_code"`
	Round      int            `json:"round"`
	ServerHand engine.Hand    `json:"server_hand"`
	Hand       engine.Hand    `json:"hand"`
	Outcome    engine.Outcome `json:"outcome"`
	Results    []PlayerResult `json:"results"`
}

type RoundCancelled struct {
	RoomCode string `json:"room_code"`
	Round    int    `json:"round"`
	Reason   string `json:"reason"`
}

type RoomClosed struct {
	RoomCode string `json:"room_code"`
	Reason   string `json:"reason"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (PartyUpdate) isOutbound()    {}
func (GameStart) isOutbound()      {}
func (ServerHand) isOutbound()     {}
func (RoundResult) isOutbound()    {}
func (RoundCancelled) isOutbound() {}
func (RoomClosed) isOutbound()     {}
func (Error) isOutbound()          {}
