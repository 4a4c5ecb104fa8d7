// Package session resolves the caller's session from bearer tokens.
// "No session" is a first-class state for read paths, not an error.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrInvalidToken is a malformed, badly signed or expired token.
var ErrInvalidToken = errors.New("invalid or expired token")

// Session identifies an authenticated caller.
type Session struct {
	UserID string
}

// Claims is the JWT payload carried by session tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Manager parses and validates session tokens.
type Manager struct {
	secret []byte
}

// NewManager creates a manager validating tokens signed with the secret.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Parse validates a token string and returns the session it carries.
func (m *Manager) Parse(tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Session{UserID: claims.UserID}, nil
}

// FromRequest extracts the session from an Authorization bearer header.
// It returns nil when no valid session is present.
func (m *Manager) FromRequest(r *http.Request) *Session {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}
	sess, err := m.Parse(parts[1])
	if err != nil {
		log.Debug().Err(err).Msg("Rejected session token")
		return nil
	}
	return sess
}

type contextKey string

const sessionKey contextKey = "session"

// WithSession stores the session in the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the caller's session, or nil when unauthenticated.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// Optional attaches the session to the request context when a valid token
// is present and continues either way.
func (m *Manager) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := m.FromRequest(r); sess != nil {
			r = r.WithContext(WithSession(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without a valid session.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.FromRequest(r)
		if sess == nil {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}
