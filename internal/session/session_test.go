package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jikime/music-player-app-sub000/internal/session"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, userID string, expiresIn time.Duration) string {
	t.Helper()
	claims := session.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	m := session.NewManager(testSecret)
	token := signToken(t, testSecret, "user-1", time.Hour)

	sess, err := m.Parse(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", sess.UserID)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	m := session.NewManager(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", signToken(t, "other-secret", "user-1", time.Hour)},
		{"expired", signToken(t, testSecret, "user-1", -time.Hour)},
		{"missing user id", signToken(t, testSecret, "", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Parse(tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	m := session.NewManager(testSecret)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if m.FromRequest(r) != nil {
		t.Error("expected nil session without header")
	}

	r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-2", time.Hour))
	sess := m.FromRequest(r)
	if sess == nil || sess.UserID != "user-2" {
		t.Errorf("expected session for user-2, got %+v", sess)
	}

	r.Header.Set("Authorization", "Basic abc")
	if m.FromRequest(r) != nil {
		t.Error("expected nil session for non-bearer header")
	}
}

func TestRequireMiddleware(t *testing.T) {
	m := session.NewManager(testSecret)
	handler := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			t.Error("expected session in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-3", time.Hour))
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}
}
