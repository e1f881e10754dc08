package model

import "time"

type NotificationCategory string

const (
	CategoryTaskChange      NotificationCategory = "TASK_CHANGE"
	CategoryLocationUpdate  NotificationCategory = "LOCATION_UPDATE"
	CategoryLocationRequest NotificationCategory = "LOCATION_REQUEST"
	CategoryReward          NotificationCategory = "REWARD"
	CategorySystem          NotificationCategory = "SYSTEM"
	CategoryOther           NotificationCategory = "OTHER"
	CategoryUnknown         NotificationCategory = "UNKNOWN"
)

// ParseCategory maps unrecognized names to CategoryUnknown.
func ParseCategory(s string) NotificationCategory {
	switch c := NotificationCategory(s); c {
	case CategoryTaskChange, CategoryLocationUpdate, CategoryLocationRequest,
		CategoryReward, CategorySystem, CategoryOther:
		return c
	}
	return CategoryUnknown
}

type NotificationData struct {
	Content string `json:"content,omitempty"`
	Action  string `json:"action,omitempty"`
}

type Notification struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Category  NotificationCategory `json:"category"`
	Data      NotificationData     `json:"data"`
	Read      bool                 `json:"read"`
	Clicked   bool                 `json:"clicked"`
	Timestamp time.Time            `json:"timestamp"`
}
