package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livegate/internal/core/services"

	"github.com/gin-gonic/gin"
)

func identityEcho(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identity": string(CallerIdentity(c))})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService("test-secret", time.Hour, 24*time.Hour)

	router := gin.New()
	router.GET("/private", AuthMiddleware(auth), identityEcho)

	// No header.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/private", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	// Malformed header.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed header, got %d", w.Code)
	}

	// Valid token.
	token, err := auth.GenerateToken("user-7")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService("test-secret", time.Hour, 24*time.Hour)

	router := gin.New()
	router.GET("/public", OptionalAuthMiddleware(auth), identityEcho)

	// Anonymous request passes with empty identity.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/public", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous request, got %d", w.Code)
	}

	// Garbage token is ignored, not rejected.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for bad optional token, got %d", w.Code)
	}

	// Valid token resolves the identity.
	token, _ := auth.GenerateToken("user-7")
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"identity":"user-7"}` {
		t.Errorf("body = %s, want identity user-7", body)
	}
}
