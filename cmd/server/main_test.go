package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/rps-party-backend/internal/config"
	"github.com/DoyleJ11/rps-party-backend/internal/history"
)

func TestOptions_ZeroTimersReachRoomsAndSessions(t *testing.T) {
	cfg := config.Default()
	cfg.Game.RoundTimeout = 0
	cfg.WS.PingEvery = 0
	cfg.WS.RatePerSec = 0

	opts := hubOptions(&cfg, history.NewQueue(history.NewMemory(1), 1, nil), nil)
	assert.Zero(t, opts.Lobby.RoundTimeout)
	assert.Equal(t, 2, opts.Rules.MinPlayers)

	wc := wsConfig(&cfg)
	assert.Zero(t, wc.PingEvery)
	assert.Zero(t, wc.RatePerSec)
}

func TestOptions_CarryConfiguredValues(t *testing.T) {
	cfg := config.Default()
	cfg.Game.RoundTimeout = 45 * time.Second
	cfg.Game.MaxRooms = 7
	cfg.HTTP.AllowedOrigins = []string{"example.com"}

	rec := history.NewQueue(history.NewMemory(1), 1, nil)
	opts := hubOptions(&cfg, rec, nil)
	assert.Equal(t, 45*time.Second, opts.Lobby.RoundTimeout)
	assert.Equal(t, 7, opts.MaxRooms)
	require.NotNil(t, opts.Lobby.Dealer)
	assert.Same(t, rec, opts.Lobby.Recorder)

	wc := wsConfig(&cfg)
	assert.Equal(t, []string{"example.com"}, wc.OriginPatterns)
	assert.Equal(t, cfg.Game.OutboxSize, wc.OutboxSize)
}
