package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	ac := AuthContext{UserID: 5, FamilyID: 9, Role: RoleParent, SessionID: 12}

	token, expires, err := m.Issue(ac)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Errorf("expires = %v, want in the future", expires)
	}
	got, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != ac {
		t.Errorf("parsed = %+v, want %+v", got, ac)
	}
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager("test-secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, _, err := m.Issue(AuthContext{UserID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.now = time.Now
	if _, err := m.Parse(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", time.Hour).Issue(AuthContext{UserID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("two", time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := NewTokenManager("one", time.Hour).Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage err = %v, want ErrInvalidToken", err)
	}
}
