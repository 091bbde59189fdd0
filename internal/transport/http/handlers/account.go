package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spaceuser/iam-service/internal/infra/security"
	"github.com/spaceuser/iam-service/internal/transport/http/middleware"
	"github.com/spaceuser/iam-service/internal/usecase"
)

const birthDateLayout = "2006-01-02"

// maxImageBytes caps profile image uploads at 5 MB.
const maxImageBytes = 5 << 20

// AccountHandler exposes registration, confirmation, and account mutation
// endpoints.
type AccountHandler struct {
	registration *usecase.RegistrationService
	accounts     *usecase.AccountService
}

func NewAccountHandler(registration *usecase.RegistrationService, accounts *usecase.AccountService) *AccountHandler {
	return &AccountHandler{
		registration: registration,
		accounts:     accounts,
	}
}

// Register creates a pending account from the multipart registration form.
func (h *AccountHandler) Register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	birthDate, err := time.Parse(birthDateLayout, strings.TrimSpace(form.BirthDate))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "birth date must use YYYY-MM-DD"))
		return
	}

	image, imageName, imageType, err := readImagePart(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile image"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Name:             form.Name,
		Surname1:         form.Surname1,
		Surname2:         form.Surname2,
		Email:            form.Email,
		Password:         form.Password,
		PhoneNumber:      form.PhoneNumber,
		BirthDate:        birthDate,
		Image:            image,
		ImageName:        imageName,
		ImageContentType: imageType,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "invalid registration data"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrDuplicateAccount, Status: http.StatusConflict, Message: "an account with this email already exists"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	c.JSON(http.StatusOK, RegisterResponse{
		Message: "account created; confirm your email to sign in",
		User:    newUserSummary(user, nil),
	})
}

// ConfirmEmail redeems the confirmation link parameters.
func (h *AccountHandler) ConfirmEmail(c *gin.Context) {
	userID := c.Query("userId")
	token := c.Query("token")

	if err := h.registration.ConfirmEmail(c.Request.Context(), userID, token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "unknown user"},
			{Err: security.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: "confirmation link is invalid or has expired"},
			{Err: usecase.ErrConcurrentModification, Status: http.StatusConflict, Message: "account was modified concurrently, request a new link"},
		}, http.StatusInternalServerError, "failed to confirm email")
		return
	}

	c.JSON(http.StatusOK, ConfirmEmailResponse{Message: "email confirmed"})
}

// ResendConfirmation dispatches a fresh confirmation mail. The response does
// not reveal whether the address has an account.
func (h *AccountHandler) ResendConfirmation(c *gin.Context) {
	var req ResendConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.registration.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to resend confirmation"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "if the account exists, a confirmation mail has been sent"})
}

// Update mutates the authenticated account from the multipart update form.
func (h *AccountHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var form UpdateAccountForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid update payload"))
		return
	}

	birthDate, err := time.Parse(birthDateLayout, strings.TrimSpace(form.BirthDate))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "birth date must use YYYY-MM-DD"))
		return
	}

	image, imageName, imageType, err := readImagePart(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile image"))
		return
	}

	result, err := h.accounts.Update(c.Request.Context(), usecase.UpdateAccountInput{
		UserID:           userID,
		Name:             form.Name,
		Surname1:         form.Surname1,
		Surname2:         form.Surname2,
		Email:            form.Email,
		PhoneNumber:      form.PhoneNumber,
		BirthDate:        birthDate,
		NewPassword:      form.NewPassword,
		Image:            image,
		ImageName:        imageName,
		ImageContentType: imageType,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "invalid update data"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrConcurrentModification, Status: http.StatusConflict, Message: "account was modified concurrently, reload and retry"},
			{Err: usecase.ErrDuplicateAccount, Status: http.StatusConflict, Message: "an account with this email already exists"},
		}, http.StatusInternalServerError, "failed to update account")
		return
	}

	c.JSON(http.StatusOK, UpdateAccountResponse{
		Message:           "account updated; sign in again",
		User:              newUserSummary(result.User, nil),
		SessionTerminated: result.SessionTerminated,
	})
}

// Delete removes the authenticated account.
func (h *AccountHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	result, err := h.accounts.Delete(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to delete account")
		return
	}

	c.JSON(http.StatusOK, UpdateAccountResponse{
		Message:           "account deleted",
		User:              newUserSummary(result.User, nil),
		SessionTerminated: result.SessionTerminated,
	})
}

// Users lists every account, for administrators.
func (h *AccountHandler) Users(c *gin.Context) {
	users, err := h.accounts.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list accounts"))
		return
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, newUserSummary(user, nil))
	}

	c.JSON(http.StatusOK, UsersResponse{Users: summaries})
}

// readImagePart extracts the optional "Image" file part from a multipart
// request. A missing part is not an error.
func readImagePart(c *gin.Context) (data []byte, name, contentType string, err error) {
	header, err := c.FormFile("Image")
	if err != nil {
		// no image part attached
		return nil, "", "", nil
	}

	if header.Size > maxImageBytes {
		return nil, "", "", multipart.ErrMessageTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, "", "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", "", multipart.ErrMessageTooLarge
	}

	return data, header.Filename, header.Header.Get("Content-Type"), nil
}
