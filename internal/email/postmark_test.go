package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/questtracker/internal/model"
)

func newTestServer(t *testing.T, received *postmarkEmail, token *string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*token = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendLoginCode(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, &received, &gotToken, http.StatusOK)

	client := NewClient("test-token", "noreply@example.com", WithEndpoint(server.URL), WithHTTPClient(server.Client()))
	if err := client.SendLoginCode(context.Background(), "alice@example.com", "123456", "login"); err != nil {
		t.Fatalf("SendLoginCode: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" || received.From != "noreply@example.com" {
		t.Errorf("To/From = %q/%q", received.To, received.From)
	}
	if received.Subject != "Your QuestTracker sign-in code" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, "123456") {
		t.Errorf("TextBody missing code: %q", received.TextBody)
	}
}

func TestSendLoginCodeRegister(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, &received, &gotToken, http.StatusOK)

	client := NewClient("test-token", "noreply@example.com", WithEndpoint(server.URL))
	if err := client.SendLoginCode(context.Background(), "bob@example.com", "654321", "register"); err != nil {
		t.Fatalf("SendLoginCode: %v", err)
	}
	if received.Subject != "Welcome to QuestTracker" {
		t.Errorf("Subject = %q, want %q", received.Subject, "Welcome to QuestTracker")
	}
}

func TestSendHelpRequest(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, &received, &gotToken, http.StatusOK)

	client := NewClient("test-token", "noreply@example.com", WithEndpoint(server.URL))
	err := client.SendHelpRequest(context.Background(), "support@example.com", &model.HelpRequest{
		ID:           9,
		UserID:       3,
		UserEmail:    "parent@example.com",
		FeedbackType: model.FeedbackBugReport,
		ErrorDetails: "the <map> is blank",
	})
	if err != nil {
		t.Fatalf("SendHelpRequest: %v", err)
	}
	if received.To != "support@example.com" || received.ReplyTo != "parent@example.com" {
		t.Errorf("To/ReplyTo = %q/%q", received.To, received.ReplyTo)
	}
	if received.Subject != "[BUG_REPORT] Help request #9" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.HtmlBody, "&lt;map&gt;") {
		t.Errorf("HtmlBody not escaped: %q", received.HtmlBody)
	}
}

func TestSendServerError(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, &received, &gotToken, http.StatusUnprocessableEntity)

	client := NewClient("test-token", "noreply@example.com", WithEndpoint(server.URL))
	if err := client.SendLoginCode(context.Background(), "a@example.com", "1", "login"); err == nil {
		t.Error("expected error for 422 response")
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")
	if client.Configured() {
		t.Error("expected Configured() = false")
	}
	if err := client.SendLoginCode(context.Background(), "a@example.com", "1", "login"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
