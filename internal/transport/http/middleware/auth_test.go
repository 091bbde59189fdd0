package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spaceuser/iam-service/internal/infra/security"
)

func newSessionService(t *testing.T) *security.SessionTokenService {
	t.Helper()
	svc, err := security.NewSessionTokenService(
		"0123456789abcdef0123456789abcdef", "iam-service", "spaceuser-web", time.Hour,
	)
	if err != nil {
		t.Fatalf("NewSessionTokenService returned error: %v", err)
	}
	return svc
}

func protectedRouter(sessions *security.SessionTokenService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	chain := append([]gin.HandlerFunc{RequireAuth(sessions)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		userID, _ := GetAuthenticatedUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	router.GET("/protected", chain...)
	return router
}

func TestRequireAuth_ValidToken(t *testing.T) {
	sessions := newSessionService(t)
	router := protectedRouter(sessions)

	token, err := sessions.Issue("user-1", "alice@example.com", []string{"Basic"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	sessions := newSessionService(t)
	router := protectedRouter(sessions)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	sessions := newSessionService(t)
	router := protectedRouter(sessions, RequireRole("Admin"))

	basicToken, err := sessions.Issue("user-1", "alice@example.com", []string{"Basic"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	adminToken, err := sessions.Issue("user-2", "root@example.com", []string{"Basic", "Admin"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+basicToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing role, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rr.Code)
	}
}
