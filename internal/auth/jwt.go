package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const tokenIssuer = "questtracker"

// Claims identify the server-side session a token was issued for. The
// session row stays authoritative; a valid token for a deleted session is
// rejected by the middleware.
type Claims struct {
	SessionID int64  `json:"sid"`
	FamilyID  int64  `json:"fid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for the session.
func (m *TokenManager) Issue(ac AuthContext) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		SessionID: ac.SessionID,
		FamilyID:  ac.FamilyID,
		Role:      ac.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(ac.UserID, 10),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse validates a token and returns the AuthContext it carries.
func (m *TokenManager) Parse(tokenString string) (AuthContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AuthContext{}, ErrExpiredToken
		}
		return AuthContext{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return AuthContext{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return AuthContext{}, ErrInvalidToken
	}
	return AuthContext{
		UserID:    userID,
		FamilyID:  claims.FamilyID,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}
