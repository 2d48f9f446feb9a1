package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/transport/http/middleware"
	"github.com/kryptonation/restomate/internal/usecase"
)

// UserHandler exposes account administration plus the self-service /me
// endpoint. Administration endpoints are guarded by users:manage in the
// router; /me only needs a session.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterMeRoute binds the self-service profile endpoint.
func (h *UserHandler) RegisterMeRoute(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	r.GET("/me", requireAuth, h.me)
}

// RegisterRoutes binds the administration endpoints.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.PUT("/:id/role", h.assignRole)
	r.PUT("/:id/status", h.setStatus)
	r.DELETE("/:id", h.delete)
}

var userErrorCases = []ErrorCase{
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
}

func (h *UserHandler) me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "profile lookup failed")
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) list(c *gin.Context) {
	filter := port.UserFilter{
		Status: domain.UserStatus(c.Query("status")),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && offset >= 0 {
		filter.Offset = offset
	}

	users, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "user listing failed"))
		return
	}
	total, err := h.users.Count(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "user listing failed"))
		return
	}

	resp := UserListResponse{Total: total, Users: make([]UserResponse, 0, len(users))}
	for _, user := range users {
		resp.Users = append(resp.Users, newUserResponse(user))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "user lookup failed")
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) assignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role assignment payload"))
		return
	}

	if err := h.users.AssignRole(c.Request.Context(), c.Param("id"), req.RoleID); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "role assignment failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role assigned"})
}

func (h *UserHandler) setStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid status payload"))
		return
	}

	status := domain.UserStatus(req.Status)
	switch status {
	case domain.UserStatusActive, domain.UserStatusInactive, domain.UserStatusSuspended:
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown status"))
		return
	}

	if err := h.users.SetStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "status change failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "status updated"})
}

func (h *UserHandler) delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "user deletion failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "user deleted"})
}
