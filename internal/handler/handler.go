package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/backup"
	"github.com/dukerupert/questtracker/internal/geofence"
	"github.com/dukerupert/questtracker/internal/leaderboard"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/notify"
	"github.com/dukerupert/questtracker/internal/quest"
	"github.com/dukerupert/questtracker/internal/quiz"
	"github.com/dukerupert/questtracker/internal/reward"
	"github.com/dukerupert/questtracker/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func parseIDValue(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := parseIDValue(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return n
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

var (
	notFoundErrors = []error{
		quest.ErrNotFound, reward.ErrNotFound, quiz.ErrNotFound,
		geofence.ErrNotFound, notify.ErrNotFound, backup.ErrNotFound,
	}
	badRequestErrors = []error{
		quest.ErrInvalidTask, reward.ErrInvalidReward, quiz.ErrInvalidQuiz,
		geofence.ErrInvalidGeofence, geofence.ErrInvalidLocation,
		leaderboard.ErrInvalidPeriod, notify.ErrInvalidPreference, notify.ErrInvalidDevice,
	}
	forbiddenErrors = []error{
		quest.ErrNotChild, quest.ErrNotAssigned, reward.ErrNotChild,
		quiz.ErrNotChild, quiz.ErrNotTargeted, geofence.ErrNotChild,
	}
	conflictErrors = []error{
		quest.ErrInvalidTransition, reward.ErrInvalidTransition, reward.ErrUnavailable,
		reward.ErrInsufficientPoints, reward.ErrSoldOut,
		quiz.ErrNotActive, quiz.ErrAlreadySubmitted,
	}
)

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case matches(err, notFoundErrors):
		return http.StatusNotFound
	case matches(err, badRequestErrors):
		return http.StatusBadRequest
	case matches(err, forbiddenErrors):
		return http.StatusForbidden
	case matches(err, conflictErrors):
		return http.StatusConflict
	case errors.Is(err, backup.ErrDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError answers with the domain error's message for 4xx
// outcomes. Anything else is logged and reported as msg.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

// familyChild loads a child of the caller's family, writing 404 otherwise.
func familyChild(w http.ResponseWriter, r *http.Request, users *store.UserStore, logger *slog.Logger, childID int64) (*model.User, bool) {
	u, err := users.GetByID(childID)
	if err != nil {
		logger.Error("load child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load child")
		return nil, false
	}
	if u == nil || !u.IsChild() || u.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "child not found")
		return nil, false
	}
	return u, true
}

// currentUser loads the authenticated user.
func currentUser(w http.ResponseWriter, r *http.Request, users *store.UserStore, logger *slog.Logger) (*model.User, bool) {
	u, err := users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		logger.Error("load user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return nil, false
	}
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return u, true
}

// targetChild resolves the child a request is about: children always act
// on themselves, parents name a child with ?child_id=.
func targetChild(w http.ResponseWriter, r *http.Request, users *store.UserStore, logger *slog.Logger) (int64, bool) {
	if auth.IsChild(r.Context()) {
		return auth.UserID(r.Context()), true
	}
	id, err := parseIDValue(r.URL.Query().Get("child_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "child_id is required")
		return 0, false
	}
	if _, ok := familyChild(w, r, users, logger, id); !ok {
		return 0, false
	}
	return id, true
}
