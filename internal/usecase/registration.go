package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/logger"
	"github.com/kryptonation/restomate/internal/repository"
)

var (
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken indicates another account already uses the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidEmail indicates the supplied email does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}

// RegistrationService creates accounts and kicks off email verification.
type RegistrationService struct {
	users        port.UserRepository
	audit        port.AuditLogRepository
	hasher       port.PasswordHasher
	validator    port.PasswordValidator
	verification *VerificationService
	events       port.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	users port.UserRepository,
	audit port.AuditLogRepository,
	hasher port.PasswordHasher,
	validator port.PasswordValidator,
	verification *VerificationService,
	events port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		users:        users,
		audit:        audit,
		hasher:       hasher,
		validator:    validator,
		verification: verification,
		events:       events,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	s.now = now
	return s
}

// Register creates an unverified active account and requests email
// verification. The new account carries no role until an operator assigns one.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	username := strings.TrimSpace(input.Username)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PhoneNumber:  input.PhoneNumber,
		IsActive:     true,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateField(ctx, username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.events != nil {
		if err := s.events.UserRegistered(ctx, user.ID, user.Email); err != nil {
			s.logger.Error("publish user registered", zap.Error(err))
		}
	}
	if s.audit != nil {
		entry := domain.AuditLog{
			ID:        uuid.NewString(),
			UserID:    &user.ID,
			Action:    "register",
			Resource:  "user",
			CreatedAt: now,
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.logger.Error("append audit log", zap.Error(err))
		}
	}

	// Verification delivery is best-effort; the account exists either way.
	if s.verification != nil {
		if err := s.verification.Request(ctx, user.Email); err != nil {
			s.logger.Error("request email verification", zap.Error(err),
				zap.String("email", logger.MaskEmail(user.Email)))
		}
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// duplicateField decides which unique constraint a racing insert tripped. The
// pre-checks above already passed, so probe the username again and fall back
// to the email.
func (s *RegistrationService) duplicateField(ctx context.Context, username string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}
