package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/notify"
	"github.com/dukerupert/questtracker/internal/push"
)

type NotificationHandler struct {
	notes  *notify.Service
	push   *push.Service
	logger *slog.Logger
}

func NewNotificationHandler(notes *notify.Service, svc *push.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notes: notes, push: svc, logger: logger}
}

// List handles GET /api/notifications?limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.List(r.Context(), auth.UserID(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *NotificationHandler) mark(w http.ResponseWriter, r *http.Request, fn func(*http.Request, int64, int64) error, msg string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := fn(r, auth.UserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, func(r *http.Request, userID, id int64) error {
		return h.notes.MarkRead(r.Context(), userID, id)
	}, "failed to update notification")
}

// MarkClicked handles POST /api/notifications/{id}/clicked.
func (h *NotificationHandler) MarkClicked(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, func(r *http.Request, userID, id int64) error {
		return h.notes.MarkClicked(r.Context(), userID, id)
	}, "failed to update notification")
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, func(r *http.Request, userID, id int64) error {
		return h.notes.Delete(r.Context(), userID, id)
	}, "failed to delete notification")
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.MarkAllRead(r.Context(), auth.UserID(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "failed to update notifications")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/notifications.
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Clear(r.Context(), auth.UserID(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "failed to clear notifications")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	sub, err := h.notes.Subscribe(r.Context(), ac.UserID, ac.FamilyID, notify.Subscription{
		Endpoint:   req.Endpoint,
		P256dh:     req.P256dh,
		Auth:       req.Auth,
		DeviceName: req.DeviceName,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Subscriptions handles GET /api/push/subscriptions.
func (h *NotificationHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.notes.Subscriptions(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}.
func (h *NotificationHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, func(r *http.Request, userID, id int64) error {
		return h.notes.Unsubscribe(r.Context(), userID, id)
	}, "failed to delete subscription")
}

// VAPIDKey handles GET /api/push/vapid-key.
func (h *NotificationHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.push.VAPIDPublicKey()})
}

type deviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterDevice handles POST /api/devices with an FCM registration token.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.notes.RegisterDevice(r.Context(), auth.UserID(r.Context()), req.Token, req.Platform); err != nil {
		writeServiceError(w, h.logger, err, "failed to register device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnregisterDevice handles DELETE /api/devices.
func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.notes.UnregisterDevice(r.Context(), req.Token); err != nil {
		writeServiceError(w, h.logger, err, "failed to unregister device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preferences handles GET /api/notifications/preferences.
func (h *NotificationHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.notes.Preferences(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/notifications/preferences with a
// {"type": enabled} object.
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req map[string]bool
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := auth.UserID(r.Context())
	for typ, enabled := range req {
		if err := h.notes.SetPreference(r.Context(), userID, typ, enabled); err != nil {
			writeServiceError(w, h.logger, err, "failed to update preferences")
			return
		}
	}
	h.Preferences(w, r)
}

// Test handles POST /api/notifications/test.
func (h *NotificationHandler) Test(w http.ResponseWriter, r *http.Request) {
	h.notes.Notify(r.Context(), auth.UserID(r.Context()), model.Notification{
		Title:    "Test Notification",
		Message:  "Notifications are working!",
		Category: model.CategorySystem,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
