package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spaceuser/iam-service/internal/usecase"
)

// AuthHandler exposes the sign-in and sign-out endpoints.
type AuthHandler struct {
	auth       *usecase.AuthService
	sessionTTL time.Duration
}

func NewAuthHandler(auth *usecase.AuthService, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		sessionTTL: sessionTTL,
	}
}

// Login verifies credentials and returns a bearer session token. Every
// failure mode answers 401 with the same message.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
		}, http.StatusInternalServerError, "failed to sign in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
		User:      newUserSummary(result.User, result.Roles),
	})
}

// Logout acknowledges the sign-out. Session tokens are stateless, so the
// client discards the token; signing out without one is an idempotent no-op.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: "signed out"})
}
