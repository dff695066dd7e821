package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-feedback/internal/shared/auth"
)

func newAuthRouter(t *testing.T, allowGuest bool) (*gin.Engine, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier, err := auth.NewVerifier("test-secret", false)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	router := gin.New()
	router.Use(Auth(AuthOptions{Verifier: verifier, AllowGuest: allowGuest, Public: []string{"/health"}}))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c), "guest": IsGuest(c)})
	})
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, verifier
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router, _ := newAuthRouter(t, false)
	router.OPTIONS("/whoami", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	router, verifier := newAuthRouter(t, false)
	token, err := verifier.Sign(auth.Claims{Sub: "user-9"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != `{"guest":false,"userId":"user-9"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	router, _ := newAuthRouter(t, true)

	for _, header := range []string{"Bearer nope", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", header)
		req.Header.Set("X-Guest-Id", "g1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
	}
}

func TestAuthGuestHeaderOnlyWhenAllowed(t *testing.T) {
	allowed, _ := newAuthRouter(t, true)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	allowed.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected guest accepted, got %d", resp.Code)
	}

	denied, _ := newAuthRouter(t, false)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp = httptest.NewRecorder()
	denied.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected guest rejected, got %d", resp.Code)
	}
}

func TestAuthSkipsPublicPaths(t *testing.T) {
	router, _ := newAuthRouter(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
