package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/usecase"
)

// ErrorResponse mirrors the handlers package shape so middleware rejections
// look the same as handler rejections.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		RequestID: GetRequestID(c),
	}
}

// RequireAuth validates the bearer access token and stores the subject in the
// gin context under UserIDKey. Only access-kind tokens pass; refresh and
// single-purpose tokens are rejected here regardless of validity.
func RequireAuth(codec *security.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := codec.Decode(token, security.TokenKindAccess)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid access token"))
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

// RequirePermission rejects requests whose authenticated user does not hold
// the (resource, action) pair. It must run after RequireAuth.
func RequirePermission(access *usecase.AccessService, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if err := access.Require(c.Request.Context(), userID, resource, action); err != nil {
			var denied *usecase.PermissionDeniedError
			if errors.As(err, &denied) {
				c.AbortWithStatusJSON(http.StatusForbidden,
					newErrorResponse(c, denied.Error()))
				return
			}
			if errors.Is(err, usecase.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "authentication required"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authorization check failed"))
			return
		}

		c.Next()
	}
}
