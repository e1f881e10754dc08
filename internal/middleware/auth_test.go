package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/database"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

type authFixture struct {
	a        *Authenticator
	sessions *store.SessionStore
	tokens   *auth.TokenManager
	parent   *model.User
	child    *model.User
}

func setupAuthMiddleware(t *testing.T) *authFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fam, err := store.NewFamilyStore(db).Create("Rivera", "UTC")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	users := store.NewUserStore(db)
	parent, err := users.CreateParent(fam.ID, "ana@example.com", "Ana", "mom")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := users.CreateChild(fam.ID, "Leo", "fox", "boy", "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	sessions := store.NewSessionStore(db)
	tokens := auth.NewTokenManager(strings.Repeat("k", 32), time.Hour)
	return &authFixture{
		a:        NewAuthenticator(sessions, users, tokens, nil),
		sessions: sessions,
		tokens:   tokens,
		parent:   parent,
		child:    child,
	}
}

func (f *authFixture) bearer(t *testing.T, u *model.User) (string, *model.Session) {
	t.Helper()
	sess, err := f.sessions.Create(u.ID, u.FamilyID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	tok, _, err := f.tokens.Issue(auth.AuthContext{UserID: u.ID, FamilyID: u.FamilyID, Role: string(u.Role), SessionID: sess.ID})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok, sess
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	f := setupAuthMiddleware(t)
	h := f.a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	rec := serve(h, httptest.NewRequest("GET", "/api/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if rec := serve(h, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad bearer status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "nope"})
	if rec := serve(h, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad cookie status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthBearer(t *testing.T) {
	f := setupAuthMiddleware(t)
	tok, sess := f.bearer(t, f.child)

	var got auth.AuthContext
	h := f.a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if rec := serve(h, req); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.UserID != f.child.ID || got.Role != auth.RoleChild || got.SessionID != sess.ID {
		t.Errorf("auth context = %+v", got)
	}
}

func TestLogoutRevokesBearer(t *testing.T) {
	f := setupAuthMiddleware(t)
	tok, sess := f.bearer(t, f.parent)
	if err := f.sessions.DeleteByID(sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	h := f.a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if rec := serve(h, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthCookie(t *testing.T) {
	f := setupAuthMiddleware(t)
	sess, err := f.sessions.Create(f.parent.ID, f.parent.FamilyID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got auth.AuthContext
	h := f.a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	if rec := serve(h, req); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.UserID != f.parent.ID || got.Role != auth.RoleParent || got.FamilyID != f.parent.FamilyID {
		t.Errorf("auth context = %+v", got)
	}
}

func TestWebSocketQueryToken(t *testing.T) {
	f := setupAuthMiddleware(t)
	tok, _ := f.bearer(t, f.child)

	if _, ok := f.a.Authenticate(httptest.NewRequest("GET", "/ws?access_token="+tok, nil)); !ok {
		t.Error("expected /ws query token to authenticate")
	}
	if _, ok := f.a.Authenticate(httptest.NewRequest("GET", "/api/me?access_token="+tok, nil)); ok {
		t.Error("query token accepted outside /ws")
	}
}

func TestRoleGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	tests := []struct {
		name  string
		guard func(http.Handler) http.Handler
		role  string
		want  int
	}{
		{"parent on parent route", RequireParent, auth.RoleParent, http.StatusOK},
		{"child on parent route", RequireParent, auth.RoleChild, http.StatusForbidden},
		{"child on child route", RequireChild, auth.RoleChild, http.StatusOK},
		{"parent on child route", RequireChild, auth.RoleParent, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, FamilyID: 1, Role: tt.role}))
			if rec := serve(tt.guard(ok), req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
