package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/transport/http/middleware"
	"github.com/kryptonation/restomate/internal/usecase"
)

// TwoFactorHandler exposes the two-factor enrollment lifecycle. Every
// endpoint requires an authenticated session.
type TwoFactorHandler struct {
	twofactor *usecase.TwoFactorService
}

// NewTwoFactorHandler constructs a TwoFactorHandler.
func NewTwoFactorHandler(twofactor *usecase.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twofactor: twofactor}
}

// RegisterRoutes binds the 2FA endpoints behind the auth middleware.
func (h *TwoFactorHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	group := r.Group("", requireAuth)
	group.POST("/setup", h.setup)
	group.POST("/enable", h.enable)
	group.POST("/disable", h.disable)
	group.POST("/backup-codes", h.regenerateBackupCodes)
	group.GET("/backup-codes", h.remainingBackupCodes)
}

func (h *TwoFactorHandler) setup(c *gin.Context) {
	setup, err := h.twofactor.Setup(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication already enabled"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "two-factor setup failed")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSetupResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
	})
}

func (h *TwoFactorHandler) enable(c *gin.Context) {
	var req TwoFactorEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid enable payload"))
		return
	}

	codes, err := h.twofactor.Enable(c.Request.Context(), middleware.CurrentUserID(c), req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication already enabled"},
			{Err: usecase.ErrTwoFactorSetupRequired, Status: http.StatusBadRequest, Message: "two-factor setup required first"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusUnauthorized, Message: "invalid two-factor code"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "two-factor enable failed")
		return
	}

	c.JSON(http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

func (h *TwoFactorHandler) disable(c *gin.Context) {
	var req TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid disable payload"))
		return
	}

	if err := h.twofactor.Disable(c.Request.Context(), middleware.CurrentUserID(c), req.Password); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorNotEnabled, Status: http.StatusConflict, Message: "two-factor authentication not enabled"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "password is incorrect"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "two-factor disable failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication disabled"})
}

func (h *TwoFactorHandler) regenerateBackupCodes(c *gin.Context) {
	var req TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	codes, err := h.twofactor.RegenerateBackupCodes(c.Request.Context(), middleware.CurrentUserID(c), req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorNotEnabled, Status: http.StatusConflict, Message: "two-factor authentication not enabled"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "password is incorrect"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "backup code regeneration failed")
		return
	}

	c.JSON(http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

func (h *TwoFactorHandler) remainingBackupCodes(c *gin.Context) {
	remaining, err := h.twofactor.RemainingBackupCodes(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "backup code lookup failed"))
		return
	}

	c.JSON(http.StatusOK, BackupCodeCountResponse{Remaining: remaining})
}
