package model

import "time"

type Reward struct {
	ID               int64     `json:"id"`
	FamilyID         int64     `json:"family_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	PointsRequired   int       `json:"points_required"`
	QuantityLimit    *int      `json:"quantity_limit,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`
	Available        bool      `json:"available"`
	Icon             string    `json:"icon"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type RedemptionStatus string

const (
	RedemptionPendingApproval RedemptionStatus = "PENDING_APPROVAL"
	RedemptionApproved        RedemptionStatus = "APPROVED"
	RedemptionRedeemed        RedemptionStatus = "REDEEMED"
	RedemptionDeclined        RedemptionStatus = "DECLINED"
)

type Redemption struct {
	ID                int64            `json:"id"`
	RewardID          int64            `json:"reward_id"`
	ChildID           int64            `json:"child_id"`
	RewardTitle       string           `json:"reward_title"`
	PointsSpent       int              `json:"points_spent"`
	Status            RedemptionStatus `json:"status"`
	Notes             string           `json:"notes,omitempty"`
	ApprovalTimestamp *time.Time       `json:"approval_timestamp,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

type WishlistStatus string

const (
	WishlistPending  WishlistStatus = "PENDING"
	WishlistApproved WishlistStatus = "APPROVED"
	WishlistDeclined WishlistStatus = "DECLINED"
)

type WishlistItem struct {
	ID                int64          `json:"id"`
	ChildID           int64          `json:"child_id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Status            WishlistStatus `json:"status"`
	ApprovalTimestamp *time.Time     `json:"approval_timestamp,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}
