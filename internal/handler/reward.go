package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/reward"
	"github.com/dukerupert/questtracker/internal/store"
)

type RewardHandler struct {
	rewards *reward.Service
	users   *store.UserStore
	logger  *slog.Logger
}

func NewRewardHandler(rewards *reward.Service, users *store.UserStore, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, users: users, logger: logger}
}

// List handles GET /api/rewards. Children only see available rewards.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	availableOnly := auth.IsChild(r.Context()) || r.URL.Query().Get("available") == "true"
	rewards, err := h.rewards.Rewards(r.Context(), auth.FamilyID(r.Context()), availableOnly)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list rewards")
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

// Get handles GET /api/rewards/{id}.
func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rw, err := h.rewards.Reward(r.Context(), auth.FamilyID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load reward")
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

// Create handles POST /api/rewards.
func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Reward
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.rewards.CreateReward(r.Context(), auth.FamilyID(r.Context()), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create reward")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/rewards/{id}.
func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.Reward
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id
	updated, err := h.rewards.UpdateReward(r.Context(), auth.FamilyID(r.Context()), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update reward")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/rewards/{id}.
func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.rewards.DeleteReward(r.Context(), auth.FamilyID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete reward")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redeem handles POST /api/rewards/{id}/redeem.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	red, err := h.rewards.Redeem(r.Context(), auth.UserID(r.Context()), id, req.Notes)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to redeem reward")
		return
	}
	writeJSON(w, http.StatusCreated, red)
}

// Redemptions handles GET /api/redemptions?status=. Children see their own.
func (h *RewardHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	var (
		list []model.Redemption
		err  error
	)
	if auth.IsChild(r.Context()) {
		list, err = h.rewards.ChildRedemptions(r.Context(), auth.UserID(r.Context()))
	} else {
		status := model.RedemptionStatus(r.URL.Query().Get("status"))
		list, err = h.rewards.Redemptions(r.Context(), auth.FamilyID(r.Context()), status)
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list redemptions")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type resolveFunc[T any] func(ctx context.Context, familyID, id int64) (*T, error)

func resolve[T any](h *RewardHandler, w http.ResponseWriter, r *http.Request, fn resolveFunc[T], msg string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := fn(r.Context(), auth.FamilyID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, msg)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ApproveRedemption handles POST /api/redemptions/{id}/approve.
func (h *RewardHandler) ApproveRedemption(w http.ResponseWriter, r *http.Request) {
	resolve(h, w, r, h.rewards.ApproveRedemption, "failed to approve redemption")
}

// DeclineRedemption handles POST /api/redemptions/{id}/decline. The points
// go back to the child.
func (h *RewardHandler) DeclineRedemption(w http.ResponseWriter, r *http.Request) {
	resolve(h, w, r, h.rewards.DeclineRedemption, "failed to decline redemption")
}

// Wishlist handles GET /api/wishlist.
func (h *RewardHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	var (
		items []model.WishlistItem
		err   error
	)
	if auth.IsChild(r.Context()) {
		items, err = h.rewards.Wishlist(r.Context(), auth.UserID(r.Context()))
	} else {
		items, err = h.rewards.FamilyWishlist(r.Context(), auth.FamilyID(r.Context()))
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list wishlist")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// AddWish handles POST /api/wishlist.
func (h *RewardHandler) AddWish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.rewards.AddWish(r.Context(), auth.UserID(r.Context()), req.Title, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to add wish")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// RemoveWish handles DELETE /api/wishlist/{id}.
func (h *RewardHandler) RemoveWish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.rewards.RemoveWish(r.Context(), auth.UserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to remove wish")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveWish handles POST /api/wishlist/{id}/approve.
func (h *RewardHandler) ApproveWish(w http.ResponseWriter, r *http.Request) {
	resolve(h, w, r, h.rewards.ApproveWish, "failed to approve wish")
}

// DeclineWish handles POST /api/wishlist/{id}/decline.
func (h *RewardHandler) DeclineWish(w http.ResponseWriter, r *http.Request) {
	resolve(h, w, r, h.rewards.DeclineWish, "failed to decline wish")
}
