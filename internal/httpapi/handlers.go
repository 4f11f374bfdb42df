package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/rps-party-backend/internal/history"
	"github.com/DoyleJ11/rps-party-backend/internal/hub"
	"github.com/DoyleJ11/rps-party-backend/internal/ws"
)

// RoomDirectory is the hub as seen by HTTP: websocket sessions plus listing.
type RoomDirectory interface {
	ws.Registry
	Rooms(ctx context.Context) ([]hub.RoomInfo, error)
}

type RoundSource interface {
	Recent(ctx context.Context, limit int) ([]history.Round, error)
}

type roundResult struct {
	UserName string `json:"user_name"`
	Hand     string `json:"hand"`
	Outcome  string `json:"outcome"`
}

type roundView struct {
	RoomCode   string        `json:"room_code"`
	Round      int           `json:"round"`
	ServerHand string        `json:"server_hand"`
	ResolvedAt time.Time     `json:"resolved_at"`
	Results    []roundResult `json:"results"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ListRooms(rooms RoomDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rooms.Rooms(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": list})
	}
}

func RecentRounds(src RoundSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = n
		}

		rounds, err := src.Recent(r.Context(), limit)
		if err != nil {
			slog.Error("load rounds", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to load rounds")
			return
		}

		out := make([]roundView, 0, len(rounds))
		for _, rd := range rounds {
			v := roundView{
				RoomCode:   rd.RoomCode,
				Round:      rd.Number,
				ServerHand: string(rd.ServerHand),
				ResolvedAt: rd.ResolvedAt,
				Results:    make([]roundResult, 0, len(rd.Results)),
			}
			for _, res := range rd.Results {
				v.Results = append(v.Results, roundResult{
					UserName: res.Name,
					Hand:     string(res.Hand),
					Outcome:  string(res.Outcome),
				})
			}
			out = append(out, v)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}
