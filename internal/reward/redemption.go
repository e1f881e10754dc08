package reward

import (
	"context"
	"fmt"

	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

// Redeem spends the child's points on a reward. Rewards that need a
// parent's approval start out pending; the points are held either way.
func (s *Service) Redeem(ctx context.Context, childID, rewardID int64, notes string) (*model.Redemption, error) {
	var (
		redemption *model.Redemption
		owner      *model.User
	)
	err := store.InTx(s.db, func(tx *store.Tx) error {
		c, err := child(tx.Users, childID)
		if err != nil {
			return err
		}
		owner = c
		r, err := tx.Rewards.GetByID(rewardID)
		if err != nil {
			return err
		}
		if r == nil || r.FamilyID != c.FamilyID {
			return ErrNotFound
		}
		if !r.Available {
			return ErrUnavailable
		}
		if r.QuantityLimit != nil {
			n, err := tx.Rewards.CountActiveRedemptions(r.ID)
			if err != nil {
				return err
			}
			if n >= *r.QuantityLimit {
				return ErrSoldOut
			}
		}
		if c.Points < r.PointsRequired {
			return ErrInsufficientPoints
		}

		status := model.RedemptionRedeemed
		if r.RequiresApproval {
			status = model.RedemptionPendingApproval
		}
		if err := tx.Users.AddPoints(c.ID, -r.PointsRequired); err != nil {
			return err
		}
		redemption, err = tx.Rewards.CreateRedemption(&model.Redemption{
			RewardID:    r.ID,
			ChildID:     c.ID,
			RewardTitle: r.Title,
			PointsSpent: r.PointsRequired,
			Status:      status,
			Notes:       notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	n := model.Notification{
		Title:    "Reward Claimed!",
		Message:  fmt.Sprintf("%s redeemed %s", owner.Name, redemption.RewardTitle),
		Category: model.CategoryReward,
		Data:     model.NotificationData{Content: fmt.Sprint(redemption.ID), Action: "view_redemption"},
	}
	if redemption.Status == model.RedemptionPendingApproval {
		n.Title = "Reward For Approval!"
		n.Message = fmt.Sprintf("%s wants to redeem %s", owner.Name, redemption.RewardTitle)
		n.Data.Action = "review_redemption"
	}
	s.notifyParents(ctx, owner.FamilyID, n)
	return redemption, nil
}

// familyRedemption loads a redemption and checks that its reward belongs
// to the family.
func familyRedemption(rewards *store.RewardStore, familyID, id int64) (*model.Redemption, error) {
	red, err := rewards.GetRedemption(id)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, ErrNotFound
	}
	r, err := rewards.GetByID(red.RewardID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.FamilyID != familyID {
		return nil, ErrNotFound
	}
	return red, nil
}

// ApproveRedemption accepts a pending redemption.
func (s *Service) ApproveRedemption(ctx context.Context, familyID, redemptionID int64) (*model.Redemption, error) {
	red, err := familyRedemption(s.rewards, familyID, redemptionID)
	if err != nil {
		return nil, err
	}
	ok, err := s.rewards.SetRedemptionStatus(redemptionID, model.RedemptionPendingApproval, model.RedemptionApproved, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.notify(ctx, red.ChildID, model.Notification{
		Title:    "Reward Approved!",
		Message:  fmt.Sprintf("%s was approved", red.RewardTitle),
		Category: model.CategoryReward,
		Data:     model.NotificationData{Content: fmt.Sprint(redemptionID), Action: "view_redemption"},
	})
	return s.rewards.GetRedemption(redemptionID)
}

// DeclineRedemption rejects a pending redemption and refunds its points.
func (s *Service) DeclineRedemption(ctx context.Context, familyID, redemptionID int64) (*model.Redemption, error) {
	var red *model.Redemption
	err := store.InTx(s.db, func(tx *store.Tx) error {
		var err error
		red, err = familyRedemption(tx.Rewards, familyID, redemptionID)
		if err != nil {
			return err
		}
		ok, err := tx.Rewards.SetRedemptionStatus(redemptionID, model.RedemptionPendingApproval, model.RedemptionDeclined, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := tx.Users.AddPoints(red.ChildID, red.PointsSpent); err != nil {
			return err
		}
		red, err = tx.Rewards.GetRedemption(redemptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, red.ChildID, model.Notification{
		Title:    "Reward Declined",
		Message:  fmt.Sprintf("%s was declined. %d points were returned", red.RewardTitle, red.PointsSpent),
		Category: model.CategoryReward,
		Data:     model.NotificationData{Content: fmt.Sprint(redemptionID), Action: "view_redemption"},
	})
	return red, nil
}

// Redemptions lists the family's redemptions, optionally by status.
func (s *Service) Redemptions(ctx context.Context, familyID int64, status model.RedemptionStatus) ([]model.Redemption, error) {
	out, err := s.rewards.ListRedemptionsByFamily(familyID, status)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Redemption{}
	}
	return out, nil
}

func (s *Service) ChildRedemptions(ctx context.Context, childID int64) ([]model.Redemption, error) {
	out, err := s.rewards.ListRedemptionsByChild(childID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Redemption{}
	}
	return out, nil
}
