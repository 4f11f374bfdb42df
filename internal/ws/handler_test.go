package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/hub"
	"github.com/DoyleJ11/rps-party-backend/internal/lobby"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

func newServer(t *testing.T, opts hub.Options, cfg Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, opts)

	srv := httptest.NewServer(Handler(h, cfg, nil))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func fixedCode(code string) hub.CodeGen {
	return func() (string, error) { return code, nil }
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, msg types.Inbound) {
	t.Helper()
	b, err := types.EncodeInbound(msg)
	require.NoError(t, err)
	sendRaw(t, c, string(b))
}

func sendRaw(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(frame)))
}

func next(t *testing.T, c *websocket.Conn) types.Outbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	msg, err := types.DecodeOutbound(data)
	require.NoError(t, err)
	return msg
}

func nextError(t *testing.T, c *websocket.Conn) types.Error {
	t.Helper()
	msg := next(t, c)
	e, ok := msg.(types.Error)
	require.True(t, ok, "want Error, got %#v", msg)
	return e
}

// quiet asserts that nothing arrives on c within d. The expired read closes
// the connection, so call it last.
func quiet(t *testing.T, c *websocket.Conn, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.Error(t, err, "unexpected frame %s", data)
}

func party(code string, users ...string) types.PartyUpdate {
	return types.PartyUpdate{RoomCode: code, Users: users}
}

// hostAndJoin runs the Alice/Bob lobby setup on room QWER.
func hostAndJoin(t *testing.T, srv *httptest.Server) (alice, bob *websocket.Conn) {
	t.Helper()
	alice = dial(t, srv)
	send(t, alice, types.HostNewGame{UserName: "Alice", UserType: engine.RoleHost})
	assert.Equal(t, party("QWER", "Alice"), next(t, alice))

	bob = dial(t, srv)
	send(t, bob, types.UserLogin{UserName: "Bob", UserType: engine.RolePlayer, RoomCode: "QWER"})
	assert.Equal(t, party("QWER", "Alice", "Bob"), next(t, alice))
	assert.Equal(t, party("QWER", "Alice", "Bob"), next(t, bob))
	return alice, bob
}

func TestSession_AliceAndBobPlayARound(t *testing.T) {
	srv := newServer(t, hub.Options{
		NewCode: fixedCode("QWER"),
		Lobby:   lobby.Options{Dealer: engine.FixedDealer(engine.HandRock)},
	}, Config{})
	alice, bob := hostAndJoin(t, srv)

	send(t, alice, types.HostStartGame{RoomCode: "QWER"})
	assert.Equal(t, types.GameStart{}, next(t, alice))
	assert.Equal(t, types.GameStart{}, next(t, bob))

	send(t, alice, types.PlayerHand{UserName: "Alice", RoomCode: "QWER", Hand: engine.HandRock})
	send(t, bob, types.PlayerHand{UserName: "Bob", RoomCode: "QWER", Hand: engine.HandScissors})

	for conn, want := range map[*websocket.Conn]engine.Outcome{alice: engine.OutcomeTie, bob: engine.OutcomeLose} {
		assert.Equal(t, types.ServerHand{Hand: engine.HandRock}, next(t, conn))

		msg := next(t, conn)
		rr, ok := msg.(types.RoundResult)
		require.True(t, ok, "want RoundResult, got %#v", msg)
		assert.Equal(t, want, rr.Outcome)
		assert.Equal(t, engine.HandRock, rr.ServerHand)
		assert.Equal(t, []types.PlayerResult{
			{UserName: "Alice", Hand: engine.HandRock, Outcome: engine.OutcomeTie},
			{UserName: "Bob", Hand: engine.HandScissors, Outcome: engine.OutcomeLose},
		}, rr.Results)
	}
}

func TestSession_ErrorsGoToTheIssuerOnly(t *testing.T) {
	srv := newServer(t, hub.Options{NewCode: fixedCode("QWER")}, Config{})
	alice, bob := hostAndJoin(t, srv)

	send(t, bob, types.HostStartGame{RoomCode: "QWER"})
	assert.Equal(t, engine.CodeUnauthorized, nextError(t, bob).Code)

	send(t, bob, types.PlayerHand{UserName: "Bob", RoomCode: "QWER", Hand: engine.HandRock})
	assert.Equal(t, engine.CodeInvalidState, nextError(t, bob).Code)

	send(t, bob, types.HostStartGame{RoomCode: "ZZZZ"})
	assert.Equal(t, engine.CodeUnauthorized, nextError(t, bob).Code)

	// Alice saw none of it: her next message is the GameStart she asks for.
	send(t, alice, types.HostStartGame{RoomCode: "QWER"})
	assert.Equal(t, types.GameStart{}, next(t, alice))

	send(t, alice, types.PlayerHand{UserName: "Alice", RoomCode: "QWER", Hand: engine.HandPaper})
	send(t, alice, types.PlayerHand{UserName: "Alice", RoomCode: "QWER", Hand: engine.HandRock})
	assert.Equal(t, engine.CodeDuplicateSubmission, nextError(t, alice).Code)
}

func TestSession_StartNeedsTwoParticipants(t *testing.T) {
	srv := newServer(t, hub.Options{NewCode: fixedCode("QWER")}, Config{})
	alice := dial(t, srv)

	send(t, alice, types.HostNewGame{UserName: "Alice", UserType: engine.RoleHost})
	_ = next(t, alice)

	send(t, alice, types.HostStartGame{RoomCode: "QWER"})
	assert.Equal(t, engine.CodeInvalidState, nextError(t, alice).Code)
}

func TestSession_JoinUnknownRoom(t *testing.T) {
	srv := newServer(t, hub.Options{}, Config{})
	bob := dial(t, srv)

	send(t, bob, types.UserLogin{UserName: "Bob", UserType: engine.RolePlayer, RoomCode: "NOPE"})
	assert.Equal(t, engine.CodeRoomNotFound, nextError(t, bob).Code)
}

func TestSession_DecodeErrorKeepsConnectionOpen(t *testing.T) {
	srv := newServer(t, hub.Options{NewCode: fixedCode("QWER")}, Config{})
	c := dial(t, srv)

	sendRaw(t, c, `{"Teleport":{}}`)
	assert.Equal(t, engine.CodeDecodeError, nextError(t, c).Code)

	sendRaw(t, c, `not json`)
	assert.Equal(t, engine.CodeDecodeError, nextError(t, c).Code)

	send(t, c, types.HostNewGame{UserName: "Alice", UserType: engine.RoleHost})
	assert.Equal(t, party("QWER", "Alice"), next(t, c))
}

func TestSession_PlayerDisconnectUpdatesParty(t *testing.T) {
	srv := newServer(t, hub.Options{NewCode: fixedCode("QWER")}, Config{})
	alice, bob := hostAndJoin(t, srv)

	require.NoError(t, bob.Close(websocket.StatusNormalClosure, "bye"))
	assert.Equal(t, party("QWER", "Alice"), next(t, alice))
	quiet(t, alice, 100*time.Millisecond)
}

func TestSession_HostDisconnectClosesRoom(t *testing.T) {
	codes := make(chan string, 2)
	codes <- "QWER"
	codes <- "ASDF"
	srv := newServer(t, hub.Options{NewCode: func() (string, error) { return <-codes, nil }}, Config{})
	alice, bob := hostAndJoin(t, srv)

	require.NoError(t, alice.Close(websocket.StatusNormalClosure, "bye"))

	msg := next(t, bob)
	rc, ok := msg.(types.RoomClosed)
	require.True(t, ok, "want RoomClosed, got %#v", msg)
	assert.Equal(t, "QWER", rc.RoomCode)

	// Bob is unbound and may host a new room on the same connection.
	send(t, bob, types.HostNewGame{UserName: "Bob", UserType: engine.RoleHost})
	assert.Equal(t, party("ASDF", "Bob"), next(t, bob))
}

func TestSession_RateLimited(t *testing.T) {
	srv := newServer(t, hub.Options{}, Config{RatePerSec: 0.001, Burst: 1})
	c := dial(t, srv)

	sendRaw(t, c, `{}`)
	sendRaw(t, c, `{}`)

	assert.Equal(t, engine.CodeDecodeError, nextError(t, c).Code)
	assert.Equal(t, engine.CodeRateLimited, nextError(t, c).Code)
}
