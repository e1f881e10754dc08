package reward

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/questtracker/internal/model"
)

func (s *Service) AddWish(ctx context.Context, childID int64, title, description string) (*model.WishlistItem, error) {
	c, err := child(s.users, childID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidReward)
	}
	item, err := s.wishlist.Create(childID, title, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}
	s.notifyParents(ctx, c.FamilyID, model.Notification{
		Title:    "Wishlist Request",
		Message:  fmt.Sprintf("%s added %s to their wishlist", c.Name, item.Title),
		Category: model.CategoryReward,
		Data:     model.NotificationData{Content: fmt.Sprint(item.ID), Action: "review_wishlist"},
	})
	return item, nil
}

// RemoveWish deletes one of the child's own items.
func (s *Service) RemoveWish(ctx context.Context, childID, itemID int64) error {
	item, err := s.wishlist.GetByID(itemID)
	if err != nil {
		return err
	}
	if item == nil || item.ChildID != childID {
		return ErrNotFound
	}
	return s.wishlist.Delete(itemID)
}

func (s *Service) familyWish(familyID, itemID int64) (*model.WishlistItem, error) {
	item, err := s.wishlist.GetByID(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	owner, err := s.users.GetByID(item.ChildID)
	if err != nil {
		return nil, err
	}
	if owner == nil || owner.FamilyID != familyID {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) resolveWish(ctx context.Context, familyID, itemID int64, status model.WishlistStatus) (*model.WishlistItem, error) {
	item, err := s.familyWish(familyID, itemID)
	if err != nil {
		return nil, err
	}
	ok, err := s.wishlist.SetStatus(itemID, status, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	n := model.Notification{
		Title:    "Wishlist Approved!",
		Message:  fmt.Sprintf("%s was approved", item.Title),
		Category: model.CategoryReward,
		Data:     model.NotificationData{Content: fmt.Sprint(itemID), Action: "view_wishlist"},
	}
	if status == model.WishlistDeclined {
		n.Title = "Wishlist Declined"
		n.Message = fmt.Sprintf("%s was declined", item.Title)
	}
	s.notify(ctx, item.ChildID, n)
	return s.wishlist.GetByID(itemID)
}

func (s *Service) ApproveWish(ctx context.Context, familyID, itemID int64) (*model.WishlistItem, error) {
	return s.resolveWish(ctx, familyID, itemID, model.WishlistApproved)
}

func (s *Service) DeclineWish(ctx context.Context, familyID, itemID int64) (*model.WishlistItem, error) {
	return s.resolveWish(ctx, familyID, itemID, model.WishlistDeclined)
}

func (s *Service) Wishlist(ctx context.Context, childID int64) ([]model.WishlistItem, error) {
	items, err := s.wishlist.ListByChild(childID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.WishlistItem{}
	}
	return items, nil
}

func (s *Service) FamilyWishlist(ctx context.Context, familyID int64) ([]model.WishlistItem, error) {
	items, err := s.wishlist.ListByFamily(familyID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.WishlistItem{}
	}
	return items, nil
}
