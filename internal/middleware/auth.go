package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/store"
)

// SessionCookieName carries the raw session token for web clients.
const SessionCookieName = "qt_session"

type authSlotKey struct{}

// withAuthSlot lets outer middleware see who RequireAuth resolved.
func withAuthSlot(ctx context.Context, slot *auth.AuthContext) context.Context {
	return context.WithValue(ctx, authSlotKey{}, slot)
}

func fillAuthSlot(ctx context.Context, ac auth.AuthContext) {
	if slot, ok := ctx.Value(authSlotKey{}).(*auth.AuthContext); ok {
		*slot = ac
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Authenticator resolves a request to an AuthContext. Mobile clients send
// a bearer JWT; browsers send the session cookie. Either way the backing
// session row must still exist, so logging out revokes both.
type Authenticator struct {
	sessions *store.SessionStore
	users    *store.UserStore
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

func NewAuthenticator(sessions *store.SessionStore, users *store.UserStore, tokens *auth.TokenManager, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{sessions: sessions, users: users, tokens: tokens, logger: logger.With("component", "auth")}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	// WebSocket clients in browsers cannot set headers.
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Authenticate returns the caller's AuthContext, or false.
func (a *Authenticator) Authenticate(r *http.Request) (auth.AuthContext, bool) {
	var sessionID, userID int64
	if tok := bearerToken(r); tok != "" {
		claims, err := a.tokens.Parse(tok)
		if err != nil {
			return auth.AuthContext{}, false
		}
		sess, err := a.sessions.GetByID(claims.SessionID)
		if err != nil {
			a.logger.Error("load session", "error", err)
			return auth.AuthContext{}, false
		}
		if sess == nil || sess.UserID != claims.UserID {
			return auth.AuthContext{}, false
		}
		sessionID, userID = sess.ID, sess.UserID
	} else if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		sess, err := a.sessions.GetByToken(cookie.Value)
		if err != nil {
			a.logger.Error("load session", "error", err)
			return auth.AuthContext{}, false
		}
		if sess == nil {
			return auth.AuthContext{}, false
		}
		sessionID, userID = sess.ID, sess.UserID
	} else {
		return auth.AuthContext{}, false
	}

	u, err := a.users.GetByID(userID)
	if err != nil {
		a.logger.Error("load user", "error", err)
		return auth.AuthContext{}, false
	}
	if u == nil {
		return auth.AuthContext{}, false
	}
	return auth.AuthContext{
		UserID:    u.ID,
		FamilyID:  u.FamilyID,
		Role:      string(u.Role),
		SessionID: sessionID,
	}, true
}

// RequireAuth rejects requests without a valid session with 401.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := a.Authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		fillAuthSlot(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
	})
}

func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parents only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireChild(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsChild(r.Context()) {
			writeError(w, http.StatusForbidden, "children only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
