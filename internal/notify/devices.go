package notify

import (
	"context"
	"slices"
	"strings"

	"github.com/dukerupert/questtracker/internal/model"
)

// PreferenceTypes lists the notification types a user can switch off.
var PreferenceTypes = []string{
	model.NotifTypeTaskReminder,
	model.NotifTypeTaskChange,
	model.NotifTypeReward,
	model.NotifTypeLocation,
	model.NotifTypeSystem,
}

type Subscription struct {
	Endpoint   string
	P256dh     string
	Auth       string
	DeviceName string
}

func (s *Service) Subscribe(ctx context.Context, userID, familyID int64, sub Subscription) (*model.PushSubscription, error) {
	if strings.TrimSpace(sub.Endpoint) == "" || sub.P256dh == "" || sub.Auth == "" {
		return nil, ErrInvalidDevice
	}
	return s.push.CreateSubscription(userID, familyID, sub.Endpoint, sub.P256dh, sub.Auth, sub.DeviceName)
}

func (s *Service) Subscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	subs, err := s.push.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	return subs, nil
}

func (s *Service) Unsubscribe(ctx context.Context, userID, id int64) error {
	return s.push.DeleteSubscription(id, userID)
}

// RegisterDevice stores an FCM token. A token moves to the latest user that
// registers it.
func (s *Service) RegisterDevice(ctx context.Context, userID int64, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidDevice
	}
	if platform == "" {
		platform = "android"
	}
	return s.push.SaveDeviceToken(userID, token, platform)
}

func (s *Service) UnregisterDevice(ctx context.Context, token string) error {
	return s.push.DeleteDeviceToken(token)
}

// Preferences returns every preference type with its effective setting.
func (s *Service) Preferences(ctx context.Context, userID int64) (map[string]bool, error) {
	stored, err := s.push.GetPreferences(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(PreferenceTypes))
	for _, t := range PreferenceTypes {
		out[t] = true
	}
	for _, p := range stored {
		out[p.NotificationType] = p.Enabled
	}
	return out, nil
}

func (s *Service) SetPreference(ctx context.Context, userID int64, notifType string, enabled bool) error {
	if !slices.Contains(PreferenceTypes, notifType) {
		return ErrInvalidPreference
	}
	return s.push.SetPreference(userID, notifType, enabled)
}
