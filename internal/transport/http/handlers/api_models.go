package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/transport/http/middleware"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse builds an error payload carrying the request's
// correlation identifier.
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		RequestID: middleware.GetRequestID(c),
	}
}

// MessageResponse is the payload for operations that return only an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness and optional readiness check outcomes.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// UserResponse is the public representation of an account.
type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	FirstName        *string    `json:"first_name,omitempty"`
	LastName         *string    `json:"last_name,omitempty"`
	PhoneNumber      *string    `json:"phone_number,omitempty"`
	Status           string     `json:"status"`
	IsActive         bool       `json:"is_active"`
	IsVerified       bool       `json:"is_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	RoleID           *string    `json:"role_id,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newUserResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		PhoneNumber:      user.PhoneNumber,
		Status:           string(user.Status),
		IsActive:         user.IsActive,
		IsVerified:       user.IsVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		RoleID:           user.RoleID,
		LastLoginAt:      user.LastLoginAt,
		CreatedAt:        user.CreatedAt,
	}
}

// LoginRequest carries credentials and the optional second factor.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code"`
}

// LoginResponse returns the issued token pair.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         UserResponse `json:"user"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshResponse returns the new access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// LogoutRequest revokes a single refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutAllResponse reports how many sessions were revoked.
type LogoutAllResponse struct {
	SessionsRevoked int `json:"sessions_revoked"`
}

// RegistrationRequest creates a new account.
type RegistrationRequest struct {
	Email       string  `json:"email" binding:"required"`
	Username    string  `json:"username" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
}

// VerificationRequest asks for a fresh email verification token.
type VerificationRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyEmailRequest redeems a verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// PasswordChangeRequest replaces the authenticated user's password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordResetRequest starts the forgotten-password flow.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetConfirmRequest redeems a reset token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// TwoFactorSetupResponse returns the pending secret and its provisioning URI.
type TwoFactorSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// TwoFactorEnableRequest confirms enrollment with a live code.
type TwoFactorEnableRequest struct {
	Code string `json:"code" binding:"required"`
}

// TwoFactorDisableRequest turns 2FA off after a password re-check.
type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
}

// BackupCodesResponse returns freshly generated backup codes. They are shown
// once and never retrievable again.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// BackupCodeCountResponse reports how many unspent backup codes remain.
type BackupCodeCountResponse struct {
	Remaining int `json:"remaining"`
}

// RoleRequest creates or updates a role.
type RoleRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// RoleUpdateRequest applies a partial role update.
type RoleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// RoleResponse is the public representation of a role.
type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description *string              `json:"description,omitempty"`
	IsActive    bool                 `json:"is_active"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func newRoleResponse(role domain.Role) RoleResponse {
	resp := RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		IsActive:    role.IsActive,
		IsSystem:    role.IsSystem,
		CreatedAt:   role.CreatedAt,
	}
	for _, p := range role.Permissions {
		resp.Permissions = append(resp.Permissions, newPermissionResponse(p))
	}
	return resp
}

// PermissionIDsRequest attaches or detaches permissions by id.
type PermissionIDsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

// PermissionRequest registers a new capability.
type PermissionRequest struct {
	Name        string  `json:"name" binding:"required"`
	Resource    string  `json:"resource" binding:"required"`
	Action      string  `json:"action" binding:"required"`
	Description *string `json:"description"`
}

// PermissionResponse is the public representation of a permission.
type PermissionResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Resource    string  `json:"resource"`
	Action      string  `json:"action"`
	Description *string `json:"description,omitempty"`
}

func newPermissionResponse(p domain.Permission) PermissionResponse {
	return PermissionResponse{
		ID:          p.ID,
		Name:        p.Name,
		Resource:    p.Resource,
		Action:      p.Action,
		Description: p.Description,
	}
}

// AssignRoleRequest attaches a role to a user; a null role id clears it.
type AssignRoleRequest struct {
	RoleID *string `json:"role_id"`
}

// SetStatusRequest transitions an account's status.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UserListResponse pages through accounts.
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}
