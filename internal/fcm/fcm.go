// Package fcm sends notifications to mobile devices through Firebase Cloud
// Messaging.
package fcm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrUnregistered means the device token is no longer valid and should be
// forgotten.
var ErrUnregistered = errors.New("device token unregistered")

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Sender struct {
	client *messaging.Client
	logger *slog.Logger
}

// Config selects the service account. CredentialsJSON may be raw JSON or
// base64 encoded; it wins over CredentialsFile.
type Config struct {
	CredentialsFile string
	CredentialsJSON string
}

func (c Config) Enabled() bool {
	return c.CredentialsFile != "" || c.CredentialsJSON != ""
}

func (c Config) option() (option.ClientOption, error) {
	if c.CredentialsJSON != "" {
		raw := []byte(c.CredentialsJSON)
		if decoded, err := base64.StdEncoding.DecodeString(c.CredentialsJSON); err == nil {
			raw = decoded
		}
		return option.WithCredentialsJSON(raw), nil
	}
	if c.CredentialsFile != "" {
		return option.WithCredentialsFile(c.CredentialsFile), nil
	}
	return nil, errors.New("no firebase credentials configured")
}

func NewSender(ctx context.Context, cfg Config, logger *slog.Logger) (*Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := cfg.option()
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &Sender{client: client, logger: logger.With("component", "fcm")}, nil
}

// Send delivers msg to a single device token.
func (s *Sender) Send(ctx context.Context, token string, msg Message) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	})
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return fmt.Errorf("%w: %v", ErrUnregistered, err)
		}
		return fmt.Errorf("send fcm message: %w", err)
	}
	return nil
}
