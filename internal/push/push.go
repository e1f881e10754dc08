// Package push delivers notifications to browsers over Web Push and runs
// the background jobs that produce scheduled notifications.
package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/questtracker/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when the push service reports 410 Gone for a
// subscription.
var ErrExpired = errors.New("push subscription expired")

const defaultTTL = 86400

// Payload is the JSON body the service worker receives.
type Payload struct {
	ID       int64                      `json:"id,omitempty"`
	Title    string                     `json:"title"`
	Body     string                     `json:"body"`
	Category model.NotificationCategory `json:"category,omitempty"`
	Action   string                     `json:"action,omitempty"`
	Content  string                     `json:"content,omitempty"`
	Tag      string                     `json:"tag,omitempty"`
}

// PayloadFor builds the push body for a stored notification.
func PayloadFor(n *model.Notification) Payload {
	return Payload{
		ID:       n.ID,
		Title:    n.Title,
		Body:     n.Message,
		Category: n.Category,
		Action:   n.Data.Action,
		Content:  n.Data.Content,
		Tag:      string(n.Category),
	}
}

type Service struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewService returns nil when either VAPID key is missing, leaving web
// push disabled.
func NewService(publicKey, privateKey, subscriber string) *Service {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	return &Service{publicKey: publicKey, privateKey: privateKey, subscriber: subscriber}
}

func (s *Service) VAPIDPublicKey() string {
	if s == nil {
		return ""
	}
	return s.publicKey
}

// Send delivers payload to one subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             defaultTTL,
		Topic:           payload.Tag,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a new P-256 key pair encoded for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pub, err := key.PublicKey.ECDH()
	if err != nil {
		return "", "", fmt.Errorf("convert public key: %w", err)
	}
	priv := make([]byte, 32)
	key.D.FillBytes(priv)

	return base64.RawURLEncoding.EncodeToString(pub.Bytes()), base64.RawURLEncoding.EncodeToString(priv), nil
}
