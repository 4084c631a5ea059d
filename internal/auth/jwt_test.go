package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"
)

var testSecret = []byte("test-secret")

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateUserToken(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("Expected user ID 'user-1', got '%s'", claims.UserID)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Expected subject 'user-1', got '%s'", claims.Subject)
	}
}

func TestGenerateUserToken_RequiresUser(t *testing.T) {
	if _, err := GenerateUserToken(testSecret, "", time.Hour); err == nil {
		t.Error("Expected error for empty user ID")
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	valid, _ := GenerateUserToken(testSecret, "user-1", time.Hour)

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(testSecret)

	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, &JWTClaims{
		UserID: "user-1",
	}).SignedString(testSecret)

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{}).SignedString(testSecret)

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{"wrong secret", []byte("other"), valid},
		{"expired", testSecret, expired},
		{"non HS256", testSecret, wrongAlg},
		{"missing user", testSecret, noUser},
		{"garbage", testSecret, "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.secret, tt.token); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	}, Middleware(testSecret, zaptest.NewLogger(t)))

	token, _ := GenerateUserToken(testSecret, "user-42", time.Hour)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "user-42"},
		{name: "lowercase scheme", header: "bearer " + token, wantStatus: http.StatusOK, wantBody: "user-42"},
		{name: "query token", query: "?token=" + token, wantStatus: http.StatusOK, wantBody: "user-42"},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("Expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}
