package store

import (
	"testing"

	"github.com/dukerupert/questtracker/internal/model"
)

func TestPushSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	ps := NewPushStore(db)

	sub, err := ps.CreateSubscription(f.parent.ID, f.family.ID, "https://push.example.com/abc", "p256", "auth", "Phone")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	again, err := ps.CreateSubscription(f.child.ID, f.family.ID, "https://push.example.com/abc", "p256b", "authb", "Tablet")
	if err != nil {
		t.Fatalf("re-register subscription: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("re-registering an endpoint created row %d, want %d", again.ID, sub.ID)
	}
	if again.UserID != f.child.ID || again.DeviceName != "Tablet" {
		t.Errorf("subscription = %+v, want moved to child", again)
	}

	parentSubs, _ := ps.ListByUser(f.parent.ID)
	if len(parentSubs) != 0 {
		t.Errorf("parent subscriptions = %d, want 0", len(parentSubs))
	}

	// Only the owner can delete.
	if err := ps.DeleteSubscription(sub.ID, f.parent.ID); err != nil {
		t.Fatalf("delete as other user: %v", err)
	}
	childSubs, _ := ps.ListByUser(f.child.ID)
	if len(childSubs) != 1 {
		t.Fatalf("child subscriptions = %d, want 1", len(childSubs))
	}

	if err := ps.DeleteByEndpoint("https://push.example.com/abc"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	childSubs, _ = ps.ListByUser(f.child.ID)
	if len(childSubs) != 0 {
		t.Errorf("child subscriptions = %d, want 0", len(childSubs))
	}
}

func TestDeviceTokens(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	ps := NewPushStore(db)

	if err := ps.SaveDeviceToken(f.child.ID, "fcm-token-1", "android"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := ps.SaveDeviceToken(f.child.ID, "fcm-token-1", "ios"); err != nil {
		t.Fatalf("save token again: %v", err)
	}
	tokens, err := ps.ListDeviceTokens(f.child.ID)
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Platform != "ios" {
		t.Fatalf("tokens = %+v, want one ios token", tokens)
	}

	if err := ps.DeleteDeviceToken("fcm-token-1"); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	tokens, _ = ps.ListDeviceTokens(f.child.ID)
	if len(tokens) != 0 {
		t.Errorf("tokens = %d, want 0", len(tokens))
	}
}

func TestNotificationPreferences(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	ps := NewPushStore(db)

	on, err := ps.IsPreferenceEnabled(f.parent.ID, model.NotifTypeReward)
	if err != nil {
		t.Fatalf("check preference: %v", err)
	}
	if !on {
		t.Error("unset preference should default to enabled")
	}

	if err := ps.SetPreference(f.parent.ID, model.NotifTypeReward, false); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if err := ps.SetPreference(f.parent.ID, model.NotifTypeLocation, true); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	on, _ = ps.IsPreferenceEnabled(f.parent.ID, model.NotifTypeReward)
	if on {
		t.Error("reward notifications should be disabled")
	}

	prefs, err := ps.GetPreferences(f.parent.ID)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if len(prefs) != 2 {
		t.Fatalf("preferences = %d, want 2", len(prefs))
	}
	if prefs[0].NotificationType != model.NotifTypeLocation || !prefs[0].Enabled {
		t.Errorf("prefs[0] = %+v", prefs[0])
	}
}

func TestMarkSentDedupes(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	ps := NewPushStore(db)

	first, err := ps.MarkSent(f.child.ID, model.NotifTypeTaskReminder, "task:7", "2026-03-02")
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	second, err := ps.MarkSent(f.child.ID, model.NotifTypeTaskReminder, "task:7", "2026-03-02")
	if err != nil {
		t.Fatalf("mark sent again: %v", err)
	}
	nextDay, err := ps.MarkSent(f.child.ID, model.NotifTypeTaskReminder, "task:7", "2026-03-03")
	if err != nil {
		t.Fatalf("mark sent next day: %v", err)
	}
	if !first || second || !nextDay {
		t.Errorf("MarkSent = %v, %v, %v, want true, false, true", first, second, nextDay)
	}
}
