package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/leaderboard"
	"github.com/dukerupert/questtracker/internal/model"
)

type LeaderboardHandler struct {
	boards *leaderboard.Service
	logger *slog.Logger
}

func NewLeaderboardHandler(boards *leaderboard.Service, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{boards: boards, logger: logger}
}

// Family handles GET /api/leaderboard?period=today|week|month|total.
func (h *LeaderboardHandler) Family(w http.ResponseWriter, r *http.Request) {
	p, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.boards.FamilyBoard(r.Context(), auth.FamilyID(r.Context()), p)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Global handles GET /api/leaderboard/global?period=&limit=.
func (h *LeaderboardHandler) Global(w http.ResponseWriter, r *http.Request) {
	p, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ranks, err := h.boards.GlobalBoard(r.Context(), p, queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, ranks)
}

// Prizes handles GET /api/leaderboard/prizes.
func (h *LeaderboardHandler) Prizes(w http.ResponseWriter, r *http.Request) {
	p, err := h.boards.Prizes(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load prizes")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetPrize handles PUT /api/leaderboard/prizes/{period}.
func (h *LeaderboardHandler) SetPrize(w http.ResponseWriter, r *http.Request) {
	p, err := leaderboard.ParsePeriod(r.PathValue("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var prize model.Prize
	if !decodeJSON(w, r, &prize) {
		return
	}
	if err := h.boards.SetPrize(r.Context(), auth.FamilyID(r.Context()), p, prize); err != nil {
		writeServiceError(w, h.logger, err, "failed to save prize")
		return
	}
	writeJSON(w, http.StatusOK, prize)
}
