package model

import "time"

// Notification preference types
const (
	NotifTypeTaskReminder = "task_reminder"
	NotifTypeTaskChange   = "task_change"
	NotifTypeReward       = "reward"
	NotifTypeLocation     = "location"
	NotifTypeSystem       = "system"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	FamilyID   int64     `json:"family_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeviceToken is a Firebase Cloud Messaging registration token.
type DeviceToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NotificationPreference struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	NotificationType string    `json:"notification_type"`
	Enabled          bool      `json:"enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}
