package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spaceuser/iam-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the account view returned by the API. The password
// hash and stamps never leave the service.
type UserSummary struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Surname1         string   `json:"surname1"`
	Surname2         string   `json:"surname2,omitempty"`
	Email            string   `json:"email"`
	UserName         string   `json:"username"`
	PhoneNumber      *string  `json:"phone_number,omitempty"`
	BirthDate        string   `json:"birth_date"`
	ProfileImagePath string   `json:"profile_image_path"`
	EmailConfirmed   bool     `json:"email_confirmed"`
	Roles            []string `json:"roles,omitempty"`
}

func newUserSummary(user domain.User, roles []string) UserSummary {
	return UserSummary{
		ID:               user.ID,
		Name:             user.Name,
		Surname1:         user.Surname1,
		Surname2:         user.Surname2,
		Email:            user.Email,
		UserName:         user.UserName,
		PhoneNumber:      user.PhoneNumber,
		BirthDate:        user.BirthDate.Format("2006-01-02"),
		ProfileImagePath: user.ProfileImagePath,
		EmailConfirmed:   user.EmailConfirmed,
		Roles:            roles,
	}
}

// RegisterForm binds the multipart registration payload. The profile image
// arrives as the optional "Image" file part.
type RegisterForm struct {
	Name        string `form:"Name" binding:"required"`
	Surname1    string `form:"Surname1" binding:"required"`
	Surname2    string `form:"Surname2"`
	Email       string `form:"Email" binding:"required"`
	Password    string `form:"Password" binding:"required"`
	PhoneNumber string `form:"PhoneNumber"`
	BirthDate   string `form:"BirthDate" binding:"required"`
}

// RegisterResponse reports the pending account awaiting confirmation.
type RegisterResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// ConfirmEmailResponse is returned after a successful token redemption.
type ConfirmEmailResponse struct {
	Message string `json:"message"`
}

// ResendConfirmationRequest asks for a fresh confirmation mail.
type ResendConfirmationRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresIn int         `json:"expires_in"`
	User      UserSummary `json:"user"`
}

// ForgotPasswordRequest starts the password recovery flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest redeems a reset token with the replacement password.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdateAccountForm binds the multipart account update payload.
type UpdateAccountForm struct {
	Name        string `form:"Name" binding:"required"`
	Surname1    string `form:"Surname1" binding:"required"`
	Surname2    string `form:"Surname2"`
	Email       string `form:"Email" binding:"required"`
	PhoneNumber string `form:"PhoneNumber"`
	BirthDate   string `form:"BirthDate" binding:"required"`
	NewPassword string `form:"NewPassword"`
}

// UpdateAccountResponse reports the stored account after a mutation. A
// terminated session requires the client to sign in again.
type UpdateAccountResponse struct {
	Message           string      `json:"message"`
	User              UserSummary `json:"user"`
	SessionTerminated bool        `json:"session_terminated"`
}

// UsersResponse lists every account, for the admin view.
type UsersResponse struct {
	Users []UserSummary `json:"users"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
