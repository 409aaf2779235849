package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifyToken(t *testing.T) {
	v := NewJWTVerifier("secret")

	token := signToken(t, "secret", "42", time.Now().Add(time.Hour))
	uid, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if uid != 42 {
		t.Fatalf("uid = %d, want 42", uid)
	}

	if _, err := v.VerifyToken(signToken(t, "wrong", "42", time.Now().Add(time.Hour))); err == nil {
		t.Fatal("wrong secret must fail")
	}
	if _, err := v.VerifyToken(signToken(t, "secret", "42", time.Now().Add(-time.Hour))); err == nil {
		t.Fatal("expired token must fail")
	}
	if _, err := v.VerifyToken(signToken(t, "secret", "not-a-number", time.Now().Add(time.Hour))); err == nil {
		t.Fatal("non-numeric sub must fail")
	}
}

func TestAuthMiddleware(t *testing.T) {
	v := NewJWTVerifier("secret")
	var gotUID int64
	h := AuthMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserIDFromCtx(r.Context())
	}))

	// без токена
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	// валидный токен
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "7", time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotUID != 7 {
		t.Fatalf("ctx uid = %d, want 7", gotUID)
	}
}
