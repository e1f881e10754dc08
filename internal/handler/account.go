package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/middleware"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/store"
)

const maxCodeAttempts = 5

// Mailer sends account and support email.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, code, purpose string) error
	SendHelpRequest(ctx context.Context, supportEmail string, r *model.HelpRequest) error
}

type AccountHandler struct {
	db         *sql.DB
	families   *store.FamilyStore
	users      *store.UserStore
	sessions   *store.SessionStore
	loginCodes *store.LoginCodeStore
	tokens     *auth.TokenManager
	mailer     Mailer
	logger     *slog.Logger
}

func NewAccountHandler(db *sql.DB, sessions *store.SessionStore, tokens *auth.TokenManager, mailer Mailer, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		db:         db,
		families:   store.NewFamilyStore(db),
		users:      store.NewUserStore(db),
		sessions:   sessions,
		loginCodes: store.NewLoginCodeStore(db),
		tokens:     tokens,
		mailer:     mailer,
		logger:     logger,
	}
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *model.User   `json:"user"`
	Family    *model.Family `json:"family"`
}

// startSession creates the session row, sets the cookie and answers with
// a signed access token.
func (h *AccountHandler) startSession(w http.ResponseWriter, r *http.Request, u *model.User) {
	sess, err := h.sessions.Create(u.ID, u.FamilyID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	token, expires, err := h.tokens.Issue(auth.AuthContext{
		UserID:    u.ID,
		FamilyID:  u.FamilyID,
		Role:      string(u.Role),
		SessionID: sess.ID,
	})
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	fam, err := h.families.GetByID(u.FamilyID)
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	h.logger.Info("session started", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: expires, User: u, Family: fam})
}

type codeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// RequestCode handles POST /api/auth/code. The answer is the same whether
// or not the address has an account.
func (h *AccountHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Purpose == "" {
		req.Purpose = store.PurposeLogin
	}
	if req.Purpose != store.PurposeLogin && req.Purpose != store.PurposeRegister {
		writeError(w, http.StatusBadRequest, "purpose must be login or register")
		return
	}

	defer writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("code lookup", "error", err)
		return
	}
	switch {
	case req.Purpose == store.PurposeLogin && existing == nil:
		return
	case req.Purpose == store.PurposeRegister && existing != nil:
		// Already registered: send a sign-in code instead.
		req.Purpose = store.PurposeLogin
	}

	lc, err := h.loginCodes.Create(req.Email, req.Purpose)
	if err != nil {
		h.logger.Error("create login code", "error", err)
		return
	}
	if err := h.mailer.SendLoginCode(r.Context(), req.Email, lc.Code, lc.Purpose); err != nil {
		h.logger.Error("send login code", "error", err)
	}
}

// validateCode checks the code for the given email, handling attempts and
// expiry. It returns the code on success or a message for the client.
func (h *AccountHandler) validateCode(emailAddr, code string) (*model.LoginCode, string) {
	if emailAddr == "" || code == "" {
		return nil, "email and code are required"
	}
	latest, err := h.loginCodes.GetLatestByEmail(emailAddr)
	if err != nil {
		h.logger.Error("validate code lookup", "error", err)
		return nil, "internal error"
	}
	if latest == nil {
		return nil, "code has expired or already been used"
	}
	if latest.Attempts >= maxCodeAttempts {
		h.loginCodes.MarkUsed(latest.ID)
		return nil, "too many incorrect attempts, request a new code"
	}
	if latest.Code != code {
		n, err := h.loginCodes.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if n >= maxCodeAttempts {
			h.loginCodes.MarkUsed(latest.ID)
			return nil, "too many incorrect attempts, request a new code"
		}
		return nil, "incorrect code"
	}
	if err := h.loginCodes.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark code used", "error", err)
		return nil, "internal error"
	}
	return latest, ""
}

type verifyRequest struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
	SubRole    string `json:"sub_role"`
	Timezone   string `json:"timezone"`
}

// Verify handles POST /api/auth/verify. A registration code creates the
// family and its first parent.
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FamilyName = strings.TrimSpace(req.FamilyName)
	req.Name = strings.TrimSpace(req.Name)
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			writeError(w, http.StatusBadRequest, "unknown timezone")
			return
		}
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("verify lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil && (req.FamilyName == "" || req.Name == "") {
		writeError(w, http.StatusBadRequest, "family_name and name are required to register")
		return
	}

	lc, msg := h.validateCode(req.Email, strings.TrimSpace(req.Code))
	if msg != "" {
		writeError(w, http.StatusUnauthorized, msg)
		return
	}

	if existing != nil {
		h.startSession(w, r, existing)
		return
	}
	if lc.Purpose != store.PurposeRegister {
		writeError(w, http.StatusUnauthorized, "no account for this email")
		return
	}

	var parent *model.User
	err = store.InTx(h.db, func(tx *store.Tx) error {
		fam, err := tx.Families.Create(req.FamilyName, req.Timezone)
		if err != nil {
			return err
		}
		parent, err = tx.Users.CreateParent(fam.ID, req.Email, req.Name, req.SubRole)
		return err
	})
	if err != nil {
		h.logger.Error("register family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}
	h.logger.Info("family registered", "family_id", parent.FamilyID, "user_id", parent.ID)
	h.startSession(w, r, parent)
}

type childLoginRequest struct {
	LinkCode string `json:"link_code"`
	Name     string `json:"name"`
	PIN      string `json:"pin"`
}

// ChildLogin handles POST /api/auth/child.
func (h *AccountHandler) ChildLogin(w http.ResponseWriter, r *http.Request) {
	var req childLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fam, err := h.families.GetByLinkCode(strings.ToUpper(strings.TrimSpace(req.LinkCode)))
	if err != nil {
		h.logger.Error("child login family", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if fam == nil {
		writeError(w, http.StatusUnauthorized, "incorrect family code, name or PIN")
		return
	}
	child, err := h.users.GetChildByName(fam.ID, strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Error("child login user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if child == nil {
		writeError(w, http.StatusUnauthorized, "incorrect family code, name or PIN")
		return
	}
	hash, err := h.users.GetPINHash(child.ID)
	if err != nil {
		h.logger.Error("child login pin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) != nil {
		writeError(w, http.StatusUnauthorized, "incorrect family code, name or PIN")
		return
	}
	h.startSession(w, r, child)
}

// Refresh handles POST /api/auth/token: a new access token for the
// current session.
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	token, expires, err := h.tokens.Issue(ac)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": expires})
}

// Logout handles POST /api/auth/logout.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.sessions.DeleteByID(ac.SessionID); err != nil {
		h.logger.Error("delete session", "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.users, h.logger)
	if !ok {
		return
	}
	fam, err := h.families.GetByID(u.FamilyID)
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return
	}
	if err := h.users.Touch(u.ID, time.Now().UTC()); err != nil {
		h.logger.Warn("touch user", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "family": fam})
}
