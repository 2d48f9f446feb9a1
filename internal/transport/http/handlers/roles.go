package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/usecase"
)

// RoleHandler exposes role and permission administration. The whole group is
// guarded by a roles:manage permission check in the router.
type RoleHandler struct {
	roles *usecase.RoleService
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(roles *usecase.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RegisterRoutes binds the role administration endpoints.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.PATCH("/:id", h.update)
	r.DELETE("/:id", h.delete)
	r.POST("/:id/permissions", h.attachPermissions)
	r.DELETE("/:id/permissions", h.detachPermissions)
}

// RegisterPermissionRoutes binds the permission catalogue endpoints.
func (h *RoleHandler) RegisterPermissionRoutes(r *gin.RouterGroup) {
	r.POST("", h.createPermission)
	r.GET("", h.listPermissions)
}

var roleErrorCases = []ErrorCase{
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
	{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role name already taken"},
	{Err: usecase.ErrRoleProtected, Status: http.StatusForbidden, Message: "system roles cannot be modified"},
	{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
}

func (h *RoleHandler) create(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, newRoleResponse(*role))
}

func (h *RoleHandler) list(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context(), port.RoleFilter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "role listing failed"))
		return
	}

	resp := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, newRoleResponse(role))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RoleHandler) get(c *gin.Context) {
	role, err := h.roles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role lookup failed")
		return
	}

	c.JSON(http.StatusOK, newRoleResponse(*role))
}

func (h *RoleHandler) update(c *gin.Context) {
	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.Update(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.IsActive)
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role update failed")
		return
	}

	c.JSON(http.StatusOK, newRoleResponse(*role))
}

func (h *RoleHandler) delete(c *gin.Context) {
	if err := h.roles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "role deletion failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role deleted"})
}

func (h *RoleHandler) attachPermissions(c *gin.Context) {
	var req PermissionIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permissions payload"))
		return
	}

	if err := h.roles.AttachPermissions(c.Request.Context(), c.Param("id"), req.PermissionIDs); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "attach permissions failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "permissions attached"})
}

func (h *RoleHandler) detachPermissions(c *gin.Context) {
	var req PermissionIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permissions payload"))
		return
	}

	if err := h.roles.DetachPermissions(c.Request.Context(), c.Param("id"), req.PermissionIDs); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "detach permissions failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "permissions detached"})
}

func (h *RoleHandler) createPermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permission payload"))
		return
	}

	permission, err := h.roles.CreatePermission(c.Request.Context(), req.Name, req.Resource, req.Action, req.Description)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, newPermissionResponse(*permission))
}

func (h *RoleHandler) listPermissions(c *gin.Context) {
	permissions, err := h.roles.ListPermissions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "permission listing failed"))
		return
	}

	resp := make([]PermissionResponse, 0, len(permissions))
	for _, permission := range permissions {
		resp = append(resp, newPermissionResponse(permission))
	}
	c.JSON(http.StatusOK, resp)
}
