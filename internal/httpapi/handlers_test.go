package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/history"
	"github.com/DoyleJ11/rps-party-backend/internal/hub"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

type failingSource struct{}

func (failingSource) Recent(context.Context, int) ([]history.Round, error) {
	return nil, errors.New("db down")
}

func newRouter(t *testing.T, d Deps) (http.Handler, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub(ctx, hub.Options{NewCode: func() (string, error) { return "QWER", nil }})
	d.Rooms = h
	if d.Rounds == nil {
		d.Rounds = history.NewMemory(10)
	}
	return SetupRoutes(d), h
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	r, _ := newRouter(t, Deps{})
	rec := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRooms(t *testing.T) {
	r, h := newRouter(t, Deps{})

	_, err := h.CreateRoom(context.Background(), engine.Member{ID: "a", Name: "Alice"}, make(chan types.Outbound, 4))
	require.NoError(t, err)

	rec := get(t, r, "/rooms")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []hub.RoomInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "QWER", body.Data[0].Code)
	assert.Equal(t, 1, body.Data[0].Members)
}

func TestRecentRounds(t *testing.T) {
	mem := history.NewMemory(10)
	for i := 1; i <= 3; i++ {
		require.NoError(t, mem.Save(context.Background(), history.Round{
			RoomCode:   "QWER",
			Number:     i,
			ServerHand: engine.HandRock,
			Results:    []engine.Result{{MemberID: "a", Name: "Alice", Hand: engine.HandPaper, Outcome: engine.OutcomeWin}},
			ResolvedAt: time.Now(),
		}))
	}
	r, _ := newRouter(t, Deps{Rounds: mem})

	rec := get(t, r, "/rounds?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []roundView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, 3, body.Data[0].Round)
	assert.Equal(t, "Win", body.Data[0].Results[0].Outcome)
}

func TestRecentRounds_Errors(t *testing.T) {
	r, _ := newRouter(t, Deps{})
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/rounds?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/rounds?limit=0").Code)

	r, _ = newRouter(t, Deps{Rounds: failingSource{}})
	assert.Equal(t, http.StatusInternalServerError, get(t, r, "/rounds").Code)
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>rps</h1>"), 0o600))

	r, _ := newRouter(t, Deps{StaticDir: dir})
	rec := get(t, r, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rps")
}
