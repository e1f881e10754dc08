// Package reward implements the points economy: reward redemptions and
// wishlist requests, both approved or declined by a parent.
package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

var (
	ErrNotFound           = errors.New("reward not found")
	ErrNotChild           = errors.New("user is not a child")
	ErrUnavailable        = errors.New("reward is not available")
	ErrInsufficientPoints = errors.New("not enough points")
	ErrSoldOut            = errors.New("reward quantity limit reached")
	ErrInvalidTransition  = errors.New("request is no longer pending")
	ErrInvalidReward      = errors.New("invalid reward")
)

type Notifier interface {
	Notify(ctx context.Context, userID int64, n model.Notification)
	NotifyParents(ctx context.Context, familyID int64, n model.Notification)
}

type Service struct {
	db       *sql.DB
	rewards  *store.RewardStore
	wishlist *store.WishlistStore
	users    *store.UserStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		rewards:  store.NewRewardStore(db),
		wishlist: store.NewWishlistStore(db),
		users:    store.NewUserStore(db),
		notifier: notifier,
		logger:   logger.With("component", "reward"),
		now:      time.Now,
	}
}

func (s *Service) notify(ctx context.Context, userID int64, n model.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, n)
	}
}

func (s *Service) notifyParents(ctx context.Context, familyID int64, n model.Notification) {
	if s.notifier != nil {
		s.notifier.NotifyParents(ctx, familyID, n)
	}
}

func child(users *store.UserStore, id int64) (*model.User, error) {
	u, err := users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if !u.IsChild() {
		return nil, ErrNotChild
	}
	return u, nil
}

func validate(r *model.Reward) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidReward)
	}
	if r.PointsRequired < 0 {
		return fmt.Errorf("%w: points required must not be negative", ErrInvalidReward)
	}
	if r.QuantityLimit != nil && *r.QuantityLimit < 0 {
		return fmt.Errorf("%w: quantity limit must not be negative", ErrInvalidReward)
	}
	return nil
}

func (s *Service) CreateReward(ctx context.Context, familyID int64, r model.Reward) (*model.Reward, error) {
	if err := validate(&r); err != nil {
		return nil, err
	}
	r.FamilyID = familyID
	return s.rewards.Create(&r)
}

func (s *Service) UpdateReward(ctx context.Context, familyID int64, r model.Reward) (*model.Reward, error) {
	if _, err := s.Reward(ctx, familyID, r.ID); err != nil {
		return nil, err
	}
	if err := validate(&r); err != nil {
		return nil, err
	}
	r.FamilyID = familyID
	return s.rewards.Update(&r)
}

func (s *Service) DeleteReward(ctx context.Context, familyID, rewardID int64) error {
	if _, err := s.Reward(ctx, familyID, rewardID); err != nil {
		return err
	}
	return s.rewards.Delete(rewardID)
}

// Reward returns a reward owned by the family.
func (s *Service) Reward(ctx context.Context, familyID, rewardID int64) (*model.Reward, error) {
	r, err := s.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.FamilyID != familyID {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Service) Rewards(ctx context.Context, familyID int64, availableOnly bool) ([]model.Reward, error) {
	rewards, err := s.rewards.ListByFamily(familyID, availableOnly)
	if err != nil {
		return nil, err
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	return rewards, nil
}
