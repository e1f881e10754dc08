package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

type HelpHandler struct {
	requests     *store.HelpRequestStore
	users        *store.UserStore
	mailer       Mailer
	supportEmail string
	logger       *slog.Logger
}

func NewHelpHandler(requests *store.HelpRequestStore, users *store.UserStore, mailer Mailer, supportEmail string, logger *slog.Logger) *HelpHandler {
	return &HelpHandler{requests: requests, users: users, mailer: mailer, supportEmail: supportEmail, logger: logger}
}

// Create handles POST /api/help. The request is stored first; forwarding
// it to the support inbox is best effort.
func (h *HelpHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.HelpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.FeedbackType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown feedback_type")
		return
	}
	req.AdditionalNotes = strings.TrimSpace(req.AdditionalNotes)
	if req.AdditionalNotes == "" && strings.TrimSpace(req.ErrorDetails) == "" {
		writeError(w, http.StatusBadRequest, "error_details or additional_notes is required")
		return
	}
	u, ok := currentUser(w, r, h.users, h.logger)
	if !ok {
		return
	}
	req.UserID = u.ID
	req.UserEmail = u.Email

	created, err := h.requests.Create(&req)
	if err != nil {
		h.logger.Error("create help request", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save request")
		return
	}
	if h.supportEmail != "" {
		if err := h.mailer.SendHelpRequest(r.Context(), h.supportEmail, created); err != nil {
			h.logger.Warn("forward help request", "id", created.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/help.
func (h *HelpHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.users, h.logger)
	if !ok {
		return
	}
	list, err := h.requests.ListByUser(u.ID)
	if err != nil {
		h.logger.Error("list help requests", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if list == nil {
		list = []model.HelpRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}
