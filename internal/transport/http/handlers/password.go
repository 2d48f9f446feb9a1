package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/transport/http/middleware"
	"github.com/kryptonation/restomate/internal/usecase"
)

// PasswordHandler exposes password change and the reset flow.
type PasswordHandler struct {
	passwords *usecase.PasswordService
}

// NewPasswordHandler constructs a PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

// RegisterRoutes binds the password endpoints. Reset request and confirm are
// unauthenticated; change requires a valid session.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, resetMiddlewares ...gin.HandlerFunc) {
	r.POST("/change", requireAuth, h.change)

	chain := append([]gin.HandlerFunc{}, resetMiddlewares...)
	chain = append(chain, h.requestReset)
	r.POST("/reset/request", chain...)

	r.POST("/reset", h.reset)
}

func (h *PasswordHandler) change(c *gin.Context) {
	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password change payload"))
		return
	}

	userID := middleware.CurrentUserID(c)
	if err := h.passwords.Change(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		if respondPasswordPolicyError(c, err) {
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Message: "new password must differ from the current one"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "password change failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

func (h *PasswordHandler) requestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	if err := h.passwords.RequestReset(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "reset request failed"))
		return
	}

	// Success regardless of whether the address exists.
	c.JSON(http.StatusAccepted, MessageResponse{Message: "password reset requested"})
}

func (h *PasswordHandler) reset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	if err := h.passwords.Reset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		if respondPasswordPolicyError(c, err) {
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid or expired reset token"},
			{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Message: "new password must differ from the current one"},
		}, http.StatusInternalServerError, "password reset failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset"})
}

// respondPasswordPolicyError surfaces validation failures with their policy
// message instead of a generic response.
func respondPasswordPolicyError(c *gin.Context, err error) bool {
	var policyErr *security.PasswordValidationError
	if errors.As(err, &policyErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
		return true
	}
	return false
}
