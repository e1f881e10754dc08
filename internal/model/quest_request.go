package model

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestDeclined RequestStatus = "Declined"
)

// QuestRequest is a child's proposal for a new quest.
type QuestRequest struct {
	ID              int64         `json:"id"`
	FamilyID        int64         `json:"family_id"`
	ChildID         int64         `json:"child_id"`
	ChildName       string        `json:"child_name"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	RewardXP        int           `json:"reward_xp"`
	RewardCoins     int           `json:"reward_coins"`
	Icon            string        `json:"icon"`
	Status          RequestStatus `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	TaskID          *int64        `json:"task_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}
