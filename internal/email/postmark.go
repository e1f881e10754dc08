// Package email sends transactional mail through the Postmark HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

const defaultEndpoint = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	endpoint    string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoint points the client at another Postmark-compatible URL.
func WithEndpoint(url string) Option {
	return func(cl *Client) {
		cl.endpoint = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		endpoint:    defaultEndpoint,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

func (c *Client) send(ctx context.Context, msg postmarkEmail) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	msg.From = c.fromEmail

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}

// SendLoginCode mails a one-time sign-in or registration code.
func (c *Client) SendLoginCode(ctx context.Context, toEmail, code, purpose string) error {
	subject, action := "Your QuestTracker sign-in code", "sign in"
	if purpose == "register" {
		subject, action = "Welcome to QuestTracker", "finish creating your family"
	}
	text := fmt.Sprintf("Use this code to %s:\n\n%s\n\nIt expires in 15 minutes.", action, code)
	htmlBody := fmt.Sprintf(`<p>Use this code to %s:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in 15 minutes.</p>`,
		action, html.EscapeString(code))

	return c.send(ctx, postmarkEmail{
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: text,
		Tag:      "login-code",
	})
}

// SendHelpRequest forwards a help-center ticket to the support inbox.
func (c *Client) SendHelpRequest(ctx context.Context, supportEmail string, r *model.HelpRequest) error {
	subject := fmt.Sprintf("[%s] Help request #%d", r.FeedbackType, r.ID)
	text := fmt.Sprintf("From: %s (user %d)\nType: %s\nApp version: %s\nDevice: %s\n\nDetails:\n%s\n\nNotes:\n%s\n",
		r.UserEmail, r.UserID, r.FeedbackType, r.AppVersion, r.DeviceInfo, r.ErrorDetails, r.AdditionalNotes)
	htmlBody := "<pre>" + html.EscapeString(text) + "</pre>"

	return c.send(ctx, postmarkEmail{
		To:       supportEmail,
		ReplyTo:  r.UserEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: text,
		Tag:      "help-request",
	})
}
