package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/transport/http/middleware"
	"github.com/kryptonation/restomate/internal/usecase"
)

// AuthHandler exposes login, token refresh, and logout endpoints.
type AuthHandler struct {
	auth           *usecase.AuthService
	accessTokenTTL time.Duration
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, accessTokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, accessTokenTTL: accessTokenTTL}
}

// RegisterRoutes binds the auth endpoints. The extra login middlewares run
// ahead of the login handler only.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.login)
	r.POST("/login", chain...)

	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
	r.POST("/logout-all", requireAuth, h.logoutAll)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		var locked *usecase.AccountLockedError
		if errors.As(err, &locked) {
			c.Header("Retry-After", locked.Until.UTC().Format(http.TimeFormat))
			c.JSON(http.StatusLocked, NewErrorResponse(c, "account temporarily locked"))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many login attempts"},
			{Err: usecase.ErrTwoFactorRequired, Status: http.StatusUnauthorized, Message: "two-factor code required"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusUnauthorized, Message: "invalid two-factor code"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusForbidden, Message: "account is not active"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.accessTokenTTL.Seconds()),
		User:         newUserResponse(result.User),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	accessToken, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusForbidden, Message: "account is not active"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.accessTokenTTL.Seconds()),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid logout payload"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "logout failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	count, err := h.auth.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, LogoutAllResponse{SessionsRevoked: count})
}
