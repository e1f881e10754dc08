package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukerupert/questtracker/internal/database"
	"github.com/dukerupert/questtracker/internal/fcm"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/push"
	"github.com/dukerupert/questtracker/internal/store"
	"github.com/dukerupert/questtracker/internal/websocket"
)

type fakeHub struct {
	mu    sync.Mutex
	users []int64
	msgs  []websocket.Message
}

func (h *fakeHub) SendToUser(familyID, userID int64, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, userID)
	h.msgs = append(h.msgs, msg)
}

type fakeWeb struct {
	mu      sync.Mutex
	sent    []string
	expired string
}

func (w *fakeWeb) Send(ctx context.Context, sub *model.PushSubscription, p push.Payload) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, sub.Endpoint)
	if sub.Endpoint == w.expired {
		return push.ErrExpired
	}
	return nil
}

type fakeMobile struct {
	mu      sync.Mutex
	sent    []fcm.Message
	expired string
}

func (m *fakeMobile) Send(ctx context.Context, token string, msg fcm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if token == m.expired {
		return fcm.ErrUnregistered
	}
	return nil
}

type notifyFixture struct {
	svc    *Service
	hub    *fakeHub
	web    *fakeWeb
	mobile *fakeMobile
	pushes *store.PushStore
	family int64
	child  *model.User
	mom    *model.User
	dad    *model.User
}

func setupNotifyTest(t *testing.T) *notifyFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fam, err := store.NewFamilyStore(db).Create("Test Family", "UTC")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	users := store.NewUserStore(db)
	mom, err := users.CreateParent(fam.ID, "mom@example.com", "Mom", "Mother")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	dad, err := users.CreateParent(fam.ID, "dad@example.com", "Dad", "Father")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := users.CreateChild(fam.ID, "Ada", "cat", "female", "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	f := &notifyFixture{
		hub:    &fakeHub{},
		web:    &fakeWeb{expired: "https://push.example.com/gone"},
		mobile: &fakeMobile{expired: "stale-token"},
		pushes: store.NewPushStore(db),
		family: fam.ID,
		child:  child,
		mom:    mom,
		dad:    dad,
	}
	f.svc = NewService(db, f.hub, f.web, f.mobile, nil)
	return f
}

func TestNotifyStoresAndSignalsHub(t *testing.T) {
	f := setupNotifyTest(t)
	ctx := context.Background()

	f.svc.Notify(ctx, f.child.ID, model.Notification{Title: "Reward Approved!", Message: "Enjoy", Category: model.CategoryReward})
	f.svc.Notify(ctx, f.child.ID, model.Notification{Title: "Hello"})
	f.svc.Wait()

	list, err := f.svc.List(ctx, f.child.ID, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].Title != "Hello" || list[0].Category != model.CategoryOther {
		t.Errorf("newest = %q/%q, want Hello/OTHER", list[0].Title, list[0].Category)
	}
	if len(f.hub.msgs) != 2 || f.hub.msgs[0].Type != "notification_created" || f.hub.users[0] != f.child.ID {
		t.Errorf("hub got %+v for %v", f.hub.msgs, f.hub.users)
	}
}

func TestNotifyParents(t *testing.T) {
	f := setupNotifyTest(t)
	ctx := context.Background()

	f.svc.NotifyParents(ctx, f.family, model.Notification{Title: "Quest For Approval!", Category: model.CategoryTaskChange})
	f.svc.Wait()

	for _, p := range []*model.User{f.mom, f.dad} {
		list, err := f.svc.List(ctx, p.ID, 10)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("%s has %d notifications, want 1", p.Name, len(list))
		}
	}
	list, _ := f.svc.List(ctx, f.child.ID, 10)
	if len(list) != 0 {
		t.Errorf("child has %d notifications, want 0", len(list))
	}
}

func TestRemoteFanOutDropsDeadEndpoints(t *testing.T) {
	f := setupNotifyTest(t)
	ctx := context.Background()

	for _, ep := range []string{"https://push.example.com/live", f.web.expired} {
		if _, err := f.svc.Subscribe(ctx, f.child.ID, f.family, Subscription{Endpoint: ep, P256dh: "key", Auth: "auth"}); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}
	for _, tok := range []string{"live-token", f.mobile.expired} {
		if err := f.svc.RegisterDevice(ctx, f.child.ID, tok, ""); err != nil {
			t.Fatalf("RegisterDevice: %v", err)
		}
	}

	f.svc.Notify(ctx, f.child.ID, model.Notification{
		Title:    "New Quiz!",
		Category: model.CategorySystem,
		Data:     model.NotificationData{Content: "7", Action: "take_quiz"},
	})
	f.svc.Wait()

	if len(f.web.sent) != 2 {
		t.Errorf("web pushes = %d, want 2", len(f.web.sent))
	}
	if len(f.mobile.sent) != 2 {
		t.Fatalf("mobile pushes = %d, want 2", len(f.mobile.sent))
	}
	if got := f.mobile.sent[0].Data["action"]; got != "take_quiz" {
		t.Errorf("fcm action = %q, want take_quiz", got)
	}

	subs, _ := f.pushes.ListByUser(f.child.ID)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example.com/live" {
		t.Errorf("subscriptions after fan-out = %+v", subs)
	}
	tokens, _ := f.pushes.ListDeviceTokens(f.child.ID)
	if len(tokens) != 1 || tokens[0].Token != "live-token" {
		t.Errorf("tokens after fan-out = %+v", tokens)
	}
}

func TestPreferenceSuppressesRemoteOnly(t *testing.T) {
	f := setupNotifyTest(t)
	ctx := context.Background()

	if err := f.svc.RegisterDevice(ctx, f.child.ID, "live-token", "ios"); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if err := f.svc.SetPreference(ctx, f.child.ID, model.NotifTypeReward, false); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}

	f.svc.Notify(ctx, f.child.ID, model.Notification{Title: "Reward Declined", Category: model.CategoryReward})
	f.svc.Notify(ctx, f.child.ID, model.Notification{Title: "Quest Approved!", Category: model.CategoryTaskChange})
	f.svc.Wait()

	if len(f.mobile.sent) != 1 || f.mobile.sent[0].Title != "Quest Approved!" {
		t.Errorf("mobile pushes = %+v, want only the quest", f.mobile.sent)
	}
	n, err := f.svc.UnreadCount(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if n != 2 {
		t.Errorf("unread = %d, want 2", n)
	}
}

func TestNotificationOwnership(t *testing.T) {
	f := setupNotifyTest(t)
	ctx := context.Background()

	f.svc.Notify(ctx, f.child.ID, model.Notification{Title: "One"})
	f.svc.Notify(ctx, f.child.ID, model.Notification{Title: "Two"})
	list, _ := f.svc.List(ctx, f.child.ID, 10)
	id := list[0].ID

	if err := f.svc.MarkRead(ctx, f.mom.ID, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead by other user err = %v, want ErrNotFound", err)
	}
	if err := f.svc.MarkRead(ctx, f.child.ID, id); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := f.svc.MarkClicked(ctx, f.child.ID, id); err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}
	if n, _ := f.svc.UnreadCount(ctx, f.child.ID); n != 1 {
		t.Errorf("unread = %d, want 1", n)
	}
	if err := f.svc.Delete(ctx, f.mom.ID, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete by other user err = %v, want ErrNotFound", err)
	}
	if err := f.svc.Delete(ctx, f.child.ID, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.svc.Clear(ctx, f.child.ID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	list, _ = f.svc.List(ctx, f.child.ID, 10)
	if len(list) != 0 {
		t.Errorf("after Clear len = %d, want 0", len(list))
	}
}

func TestPreferences(t *testing.T) {
	f := setupNotifyTest(t)
	ctx := context.Background()

	if err := f.svc.SetPreference(ctx, f.mom.ID, "weather", false); !errors.Is(err, ErrInvalidPreference) {
		t.Errorf("unknown type err = %v, want ErrInvalidPreference", err)
	}
	if err := f.svc.SetPreference(ctx, f.mom.ID, model.NotifTypeLocation, false); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	prefs, err := f.svc.Preferences(ctx, f.mom.ID)
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if len(prefs) != len(PreferenceTypes) {
		t.Errorf("len(prefs) = %d, want %d", len(prefs), len(PreferenceTypes))
	}
	if prefs[model.NotifTypeLocation] || !prefs[model.NotifTypeReward] {
		t.Errorf("prefs = %v", prefs)
	}
}

func TestNotifyUnknownUserIsLogged(t *testing.T) {
	f := setupNotifyTest(t)
	f.svc.Notify(context.Background(), 9999, model.Notification{Title: "Lost"})
	if len(f.hub.msgs) != 0 {
		t.Errorf("hub got %d messages, want 0", len(f.hub.msgs))
	}
}
