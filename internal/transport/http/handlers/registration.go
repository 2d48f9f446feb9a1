package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kryptonation/restomate/internal/usecase"
)

// RegistrationHandler exposes account creation and email verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	verification *usecase.VerificationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registration *usecase.RegistrationService, verification *usecase.VerificationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, verification: verification}
}

// RegisterRoutes binds registration and verification endpoints.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup, registerMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, registerMiddlewares...)
	chain = append(chain, h.register)
	r.POST("/register", chain...)

	r.POST("/verify-email/request", h.requestVerification)
	r.POST("/verify-email", h.verifyEmail)
}

func (h *RegistrationHandler) register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email address"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
		}, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(*user))
}

func (h *RegistrationHandler) requestVerification(c *gin.Context) {
	var req VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	if err := h.verification.Request(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "verification request failed"))
		return
	}

	// Success regardless of whether the address exists.
	c.JSON(http.StatusAccepted, MessageResponse{Message: "verification email requested"})
}

func (h *RegistrationHandler) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	if err := h.verification.Verify(c.Request.Context(), req.Token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid or expired verification token"},
			{Err: usecase.ErrAlreadyVerified, Status: http.StatusConflict, Message: "email already verified"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email verified"})
}
