package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kryptonation/restomate/internal/infra/logger"
)

const (
	requestIDHeader = "X-Request-ID"

	// UserIDKey is the gin context key the auth middleware stores the
	// authenticated user id under.
	UserIDKey = "user_id"
)

// RequestID injects a correlation identifier into the request context and the
// response headers. An inbound X-Request-ID is honored so identifiers survive
// proxy hops.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the correlation identifier for the request, or an
// empty string outside the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Request.Context().Value(logger.RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// CurrentUserID returns the authenticated user's id, or an empty string when
// the request did not pass RequireAuth.
func CurrentUserID(c *gin.Context) string {
	if id, ok := c.Get(UserIDKey); ok {
		if userID, ok := id.(string); ok {
			return userID
		}
	}
	return ""
}
