// Package notify stores in-app notifications and fans them out to the
// recipient's open WebSocket connections, browsers (Web Push) and mobile
// devices (FCM).
package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/questtracker/internal/fcm"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/push"
	"github.com/dukerupert/questtracker/internal/store"
	"github.com/dukerupert/questtracker/internal/websocket"
)

var (
	ErrNotFound          = errors.New("notification not found")
	ErrInvalidPreference = errors.New("unknown notification type")
	ErrInvalidDevice     = errors.New("invalid device registration")
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Hub interface {
	SendToUser(familyID, userID int64, msg websocket.Message)
}

type WebPusher interface {
	Send(ctx context.Context, sub *model.PushSubscription, p push.Payload) error
}

type MobilePusher interface {
	Send(ctx context.Context, token string, msg fcm.Message) error
}

// Service implements the Notifier interfaces of the domain packages.
// Delivery problems are logged; callers never see them.
type Service struct {
	notifications *store.NotificationStore
	push          *store.PushStore
	users         *store.UserStore
	hub           Hub
	web           WebPusher
	mobile        MobilePusher
	logger        *slog.Logger

	wg sync.WaitGroup
}

// NewService wires the fan-out. hub, web and mobile may each be nil.
func NewService(db *sql.DB, hub Hub, web WebPusher, mobile MobilePusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		notifications: store.NewNotificationStore(db),
		push:          store.NewPushStore(db),
		users:         store.NewUserStore(db),
		hub:           hub,
		web:           web,
		mobile:        mobile,
		logger:        logger.With("component", "notify"),
	}
}

// preferenceFor maps a category onto the preference a user can switch off.
func preferenceFor(c model.NotificationCategory) string {
	switch c {
	case model.CategoryTaskChange:
		return model.NotifTypeTaskChange
	case model.CategoryReward:
		return model.NotifTypeReward
	case model.CategoryLocationUpdate, model.CategoryLocationRequest:
		return model.NotifTypeLocation
	default:
		return model.NotifTypeSystem
	}
}

func (s *Service) Notify(ctx context.Context, userID int64, n model.Notification) {
	s.NotifyAs(ctx, userID, preferenceFor(n.Category), n)
}

// NotifyAs is Notify with an explicit preference type, used for scheduled
// reminders.
func (s *Service) NotifyAs(ctx context.Context, userID int64, prefType string, n model.Notification) {
	if _, err := s.deliver(ctx, userID, prefType, n); err != nil {
		s.logger.Error("notify", "user_id", userID, "title", n.Title, "error", err)
	}
}

func (s *Service) NotifyParents(ctx context.Context, familyID int64, n model.Notification) {
	parents, err := s.users.ListParents(familyID)
	if err != nil {
		s.logger.Error("list parents", "family_id", familyID, "error", err)
		return
	}
	for _, p := range parents {
		s.Notify(ctx, p.ID, n)
	}
}

// deliver stores n for userID, pushes it to the hub and starts the remote
// fan-out when the user's preference allows it.
func (s *Service) deliver(ctx context.Context, userID int64, prefType string, n model.Notification) (*model.Notification, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	n.UserID = userID
	if n.Category == "" {
		n.Category = model.CategoryOther
	}
	stored, err := s.notifications.Create(&n)
	if err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.SendToUser(u.FamilyID, userID, websocket.NewMessage("notification", "created", stored.ID,
			map[string]any{"notification": stored}))
	}

	if s.web == nil && s.mobile == nil {
		return stored, nil
	}
	enabled, err := s.push.IsPreferenceEnabled(userID, prefType)
	if err != nil {
		return stored, err
	}
	if !enabled {
		return stored, nil
	}

	var subs []model.PushSubscription
	if s.web != nil {
		if subs, err = s.push.ListByUser(userID); err != nil {
			return stored, err
		}
	}
	var tokens []model.DeviceToken
	if s.mobile != nil {
		if tokens, err = s.push.ListDeviceTokens(userID); err != nil {
			return stored, err
		}
	}
	if len(subs) == 0 && len(tokens) == 0 {
		return stored, nil
	}

	// The originating request may finish before the push services answer.
	bg := context.WithoutCancel(ctx)
	s.wg.Go(func() { s.sendRemote(bg, stored, subs, tokens) })
	return stored, nil
}

func (s *Service) sendRemote(ctx context.Context, n *model.Notification, subs []model.PushSubscription, tokens []model.DeviceToken) {
	payload := push.PayloadFor(n)
	for i := range subs {
		sub := &subs[i]
		err := s.web.Send(ctx, sub, payload)
		switch {
		case errors.Is(err, push.ErrExpired):
			s.logger.Info("removing expired push subscription", "user_id", sub.UserID, "subscription_id", sub.ID)
			if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("delete push subscription", "error", err)
			}
		case err != nil:
			s.logger.Warn("web push failed", "user_id", sub.UserID, "subscription_id", sub.ID, "error", err)
		}
	}

	msg := fcm.Message{
		Title: n.Title,
		Body:  n.Message,
		Data: map[string]string{
			"notification_id": fmt.Sprint(n.ID),
			"category":        string(n.Category),
			"action":          n.Data.Action,
			"content":         n.Data.Content,
		},
	}
	for _, t := range tokens {
		err := s.mobile.Send(ctx, t.Token, msg)
		switch {
		case errors.Is(err, fcm.ErrUnregistered):
			s.logger.Info("removing unregistered device token", "user_id", t.UserID, "token_id", t.ID)
			if err := s.push.DeleteDeviceToken(t.Token); err != nil {
				s.logger.Error("delete device token", "error", err)
			}
		case err != nil:
			s.logger.Warn("fcm push failed", "user_id", t.UserID, "token_id", t.ID, "error", err)
		}
	}
}

// Wait blocks until in-flight remote deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// List returns the newest notifications for a user.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	out, err := s.notifications.ListByUser(userID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Notification{}
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.UnreadCount(userID)
}

func found(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	return found(s.notifications.MarkRead(id, userID))
}

func (s *Service) MarkClicked(ctx context.Context, userID, id int64) error {
	return found(s.notifications.MarkClicked(id, userID))
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return found(s.notifications.Delete(id, userID))
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) error {
	return s.notifications.MarkAllRead(userID)
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.notifications.Clear(userID)
}
