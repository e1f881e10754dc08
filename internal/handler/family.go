package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/quest"
	"github.com/dukerupert/questtracker/internal/store"
	"github.com/dukerupert/questtracker/internal/websocket"
)

type FamilyHandler struct {
	families *store.FamilyStore
	users    *store.UserStore
	sessions *store.SessionStore
	quests   *quest.Service
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, us *store.UserStore, ss *store.SessionStore, quests *quest.Service, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, users: us, sessions: ss, quests: quests, hub: hub, logger: logger}
}

func (h *FamilyHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

// Get handles GET /api/family.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	fam, err := h.families.GetByID(familyID)
	if err != nil || fam == nil {
		h.logger.Error("load family", "family_id", familyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return
	}
	members, err := h.users.ListByFamily(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": fam, "members": members})
}

type familyRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Update handles PUT /api/family.
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "unknown timezone")
		return
	}
	fam, err := h.families.Update(auth.FamilyID(r.Context()), req.Name, req.Timezone)
	if err != nil {
		h.logger.Error("update family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update family")
		return
	}
	h.broadcast(fam.ID, websocket.NewMessage("family", "updated", fam.ID, nil))
	writeJSON(w, http.StatusOK, fam)
}

// Children handles GET /api/children.
func (h *FamilyHandler) Children(w http.ResponseWriter, r *http.Request) {
	children, err := h.users.ListChildren(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []model.User{}
	}
	writeJSON(w, http.StatusOK, children)
}

type childRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Gender string `json:"gender"`
	PIN    string `json:"pin"`
}

func validPIN(pin string) bool {
	return len(pin) >= 4 && len(pin) <= 8 && isDigits(pin)
}

// CreateChild handles POST /api/children.
func (h *FamilyHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validPIN(req.PIN) {
		writeError(w, http.StatusBadRequest, "PIN must be 4 to 8 digits")
		return
	}
	familyID := auth.FamilyID(r.Context())
	dup, err := h.users.GetChildByName(familyID, req.Name)
	if err != nil {
		h.logger.Error("check child name", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}
	if dup != nil {
		writeError(w, http.StatusConflict, "a child with this name already exists")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}
	child, err := h.users.CreateChild(familyID, req.Name, req.Avatar, req.Gender, string(hash))
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("child", "created", child.ID, nil))
	writeJSON(w, http.StatusCreated, child)
}

// UpdateChild handles PUT /api/children/{id}.
func (h *FamilyHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := familyChild(w, r, h.users, h.logger, id); !ok {
		return
	}
	var req childRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	child, err := h.users.UpdateProfile(id, req.Name, req.Avatar, req.Gender)
	if err != nil {
		h.logger.Error("update child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}
	h.broadcast(child.FamilyID, websocket.NewMessage("child", "updated", child.ID, nil))
	writeJSON(w, http.StatusOK, child)
}

// SetPIN handles PUT /api/children/{id}/pin. Existing child sessions are
// signed out.
func (h *FamilyHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := familyChild(w, r, h.users, h.logger, id); !ok {
		return
	}
	var req struct {
		PIN string `json:"pin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validPIN(req.PIN) {
		writeError(w, http.StatusBadRequest, "PIN must be 4 to 8 digits")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}
	if err := h.users.SetPIN(id, string(hash)); err != nil {
		h.logger.Error("set pin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}
	if err := h.sessions.DeleteByUserID(id); err != nil {
		h.logger.Error("revoke child sessions", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

// DeleteChild handles DELETE /api/children/{id}.
func (h *FamilyHandler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	child, ok := familyChild(w, r, h.users, h.logger, id)
	if !ok {
		return
	}
	if err := h.users.Delete(id); err != nil {
		h.logger.Error("delete child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}
	h.broadcast(child.FamilyID, websocket.NewMessage("child", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Progress handles GET /api/family/progress.
func (h *FamilyHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.quests.FamilyProgress(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
