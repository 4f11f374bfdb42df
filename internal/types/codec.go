package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
)

var ErrDecode = errors.New("decode error")

// Kind returns the wire tag for any inbound or outbound message.
func Kind(m any) string {
	switch m.(type) {
	case UserLogin, *UserLogin:
		return "UserLogin"
	case HostNewGame, *HostNewGame:
		return "HostNewGame"
	case HostStartGame, *HostStartGame:
		return "HostStartGame"
	case PlayerHand, *PlayerHand:
		return "PlayerHand"
	case PartyUpdate, *PartyUpdate:
		return "PartyUpdate"
	case GameStart, *GameStart:
		return "GameStart"
	case ServerHand, *ServerHand:
		return "ServerHand"
	case RoundResult, *RoundResult:
		return "RoundResult"
	case RoundCancelled, *RoundCancelled:
		return "RoundCancelled"
	case RoomClosed, *RoomClosed:
		return "RoomClosed"
	case Error, *Error:
		return "Error"
	default:
		return ""
	}
}

// Encode renders a server message as a single tagged JSON object.
func Encode(m Outbound) ([]byte, error) {
	return encodeTagged(m)
}

// EncodeInbound renders a client message; used by the terminal client and tests.
func EncodeInbound(m Inbound) ([]byte, error) {
	return encodeTagged(m)
}

func encodeTagged(m any) ([]byte, error) {
	kind := Kind(m)
	if kind == "" {
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}
	return json.Marshal(map[string]any{kind: m})
}

// Decode parses a client frame. Any failure wraps ErrDecode.
func Decode(frame []byte) (Inbound, error) {
	kind, body, err := splitTagged(frame)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "UserLogin":
		var m UserLogin
		if err := decodeBody(kind, body, &m); err != nil {
			return nil, err
		}
		if err := checkRole(m.UserType); err != nil {
			return nil, err
		}
		return m, nil

	case "HostNewGame":
		var m HostNewGame
		if err := decodeBody(kind, body, &m); err != nil {
			return nil, err
		}
		if err := checkRole(m.UserType); err != nil {
			return nil, err
		}
		return m, nil

	case "HostStartGame":
		var m HostStartGame
		if err := decodeBody(kind, body, &m); err != nil {
			return nil, err
		}
		return m, nil

	case "PlayerHand":
		var m PlayerHand
		if err := decodeBody(kind, body, &m); err != nil {
			return nil, err
		}
		if !m.Hand.Valid() {
			return nil, fmt.Errorf("%w: PlayerHand needs a hand", ErrDecode)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w: unknown message kind %q", ErrDecode, kind)
	}
}

// DecodeOutbound parses a server frame.
func DecodeOutbound(frame []byte) (Outbound, error) {
	kind, body, err := splitTagged(frame)
	if err != nil {
		return nil, err
	}

	var m Outbound
	switch kind {
	case "PartyUpdate":
		var v PartyUpdate
		err, m = decodeBody(kind, body, &v), &v
	case "GameStart":
		var v GameStart
		err, m = decodeBody(kind, body, &v), &v
	case "ServerHand":
		var v ServerHand
		err, m = decodeBody(kind, body, &v), &v
	case "RoundResult":
		var v RoundResult
		err, m = decodeBody(kind, body, &v), &v
	case "RoundCancelled":
		var v RoundCancelled
		err, m = decodeBody(kind, body, &v), &v
	case "RoomClosed":
		var v RoomClosed
		err, m = decodeBody(kind, body, &v), &v
	case "Error":
		var v Error
		err, m = decodeBody(kind, body, &v), &v
	default:
		return nil, fmt.Errorf("%w: unknown message kind %q", ErrDecode, kind)
	}
	if err != nil {
		return nil, err
	}
	return deref(m), nil
}

func splitTagged(frame []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(frame, &obj); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("%w: want exactly one message kind, got %d keys", ErrDecode, len(obj))
	}
	for kind, body := range obj {
		return kind, body, nil
	}
	return "", nil, ErrDecode // unreachable
}

func decodeBody(kind string, body json.RawMessage, dst any) error {
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return fmt.Errorf("%w: %s payload must be an object", ErrDecode, kind)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
	}
	return nil
}

func checkRole(r engine.Role) error {
	switch r {
	case "", engine.RoleHost, engine.RolePlayer:
		return nil
	default:
		return fmt.Errorf("%w: unknown user_type %q", ErrDecode, r)
	}
}

func deref(m Outbound) Outbound {
	switch v := m.(type) {
	case *PartyUpdate:
		return *v
	case *GameStart:
		return *v
	case *ServerHand:
		return *v
	case *RoundResult:
		return *v
	case *RoundCancelled:
		return *v
	case *RoomClosed:
		return *v
	case *Error:
		return *v
	}
	return m
}
