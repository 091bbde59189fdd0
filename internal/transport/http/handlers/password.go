package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spaceuser/iam-service/internal/infra/security"
	"github.com/spaceuser/iam-service/internal/usecase"
)

// PasswordHandler exposes the forgot-password / reset-password endpoints.
type PasswordHandler struct {
	recovery *usecase.PasswordRecoveryService
}

func NewPasswordHandler(recovery *usecase.PasswordRecoveryService) *PasswordHandler {
	return &PasswordHandler{recovery: recovery}
}

// ForgotPassword starts the recovery flow. The response is the same whether
// or not the email has an account.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.recovery.RequestReset(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "email is required"},
		}, http.StatusInternalServerError, "failed to process request")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "if the account exists, a reset mail has been sent"})
}

// ResetPasswordForm answers the GET leg of the mailed reset link. It only
// echoes the parameters back so a client can render the form; the token is
// not validated until redemption.
func (h *PasswordHandler) ResetPasswordForm(c *gin.Context) {
	email := c.Query("email")
	token := c.Query("token")
	if email == "" || token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "reset link is incomplete"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email": email,
		"token": token,
	})
}

// ResetPassword redeems the reset token and installs the new password.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email, token, and new password are required"))
		return
	}

	if err := h.recovery.PerformReset(c.Request.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: security.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: "reset link is invalid or has expired"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrConcurrentModification, Status: http.StatusConflict, Message: "account was modified concurrently, request a new link"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}
