package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

var errQuit = errors.New("quit")

// room tracks what the server told us about our membership.
type room struct {
	mu   sync.Mutex
	name string
	code string
}

func (r *room) setCode(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

func (r *room) snapshot() (name, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name, r.code
}

func play(ctx context.Context, url string, hello types.Inbound) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	st := &room{}
	switch m := hello.(type) {
	case types.HostNewGame:
		st.name = m.UserName
	case types.UserLogin:
		st.name = m.UserName
		st.code = m.RoomCode
	}

	if err := send(ctx, conn, hello); err != nil {
		return err
	}
	fmt.Println("commands: start | rock | paper | scissors | quit")

	lines := make(chan string)
	go scanLines(os.Stdin, lines)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readServer(ctx, conn, st, os.Stdout) })
	g.Go(func() error {
		err := readCommands(ctx, conn, st, lines)
		conn.Close(websocket.StatusNormalClosure, "bye")
		return err
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

func readServer(ctx context.Context, conn *websocket.Conn, st *room, out io.Writer) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := types.DecodeOutbound(data)
		if err != nil {
			fmt.Fprintf(out, "? %s\n", data)
			continue
		}
		switch m := msg.(type) {
		case types.PartyUpdate:
			st.setCode(m.RoomCode)
		case types.RoomClosed:
			st.setCode("")
		}
		fmt.Fprintln(out, render(msg))
	}
}

func scanLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

func readCommands(ctx context.Context, conn *websocket.Conn, st *room, lines <-chan string) error {
	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return errQuit
			}
			line = l
		}

		name, code := st.snapshot()
		msg, err := parseLine(line, name, code)
		if errors.Is(err, errQuit) {
			return errQuit
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if msg == nil {
			continue
		}
		if err := send(ctx, conn, msg); err != nil {
			return err
		}
	}
}

// parseLine turns one line of user input into a client message.
func parseLine(line, name, code string) (types.Inbound, error) {
	word := strings.ToLower(strings.TrimSpace(line))
	switch word {
	case "":
		return nil, nil
	case "quit", "exit":
		return nil, errQuit
	case "host":
		return types.HostNewGame{UserName: name, UserType: engine.RoleHost}, nil
	}

	if code == "" {
		return nil, fmt.Errorf("not in a room yet")
	}
	if word == "start" {
		return types.HostStartGame{RoomCode: code}, nil
	}
	for _, h := range engine.Hands {
		if word == strings.ToLower(string(h)) || word == strings.ToLower(string(h))[:1] {
			return types.PlayerHand{UserName: name, RoomCode: code, Hand: h}, nil
		}
	}
	return nil, fmt.Errorf("unknown command %q", line)
}

func render(msg types.Outbound) string {
	switch m := msg.(type) {
	case types.PartyUpdate:
		return fmt.Sprintf("room %s: %s", m.RoomCode, strings.Join(m.Users, ", "))
	case types.GameStart:
		return "round started, pick rock, paper or scissors"
	case types.ServerHand:
		return fmt.Sprintf("server played %s", m.Hand)
	case types.RoundResult:
		var b strings.Builder
		fmt.Fprintf(&b, "you played %s: %s", m.Hand, m.Outcome)
		for _, r := range m.Results {
			fmt.Fprintf(&b, "\n  %-12s %-8s %s", r.UserName, r.Hand, r.Outcome)
		}
		return b.String()
	case types.RoundCancelled:
		return fmt.Sprintf("round %d cancelled: %s", m.Round, m.Reason)
	case types.RoomClosed:
		return fmt.Sprintf("room %s closed: %s (type host to open a new one)", m.RoomCode, m.Reason)
	case types.Error:
		return fmt.Sprintf("error %s: %s", m.Code, m.Message)
	default:
		return fmt.Sprintf("%#v", msg)
	}
}

func send(ctx context.Context, conn *websocket.Conn, msg types.Inbound) error {
	b, err := types.EncodeInbound(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
