package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/repository"
)

var (
	// ErrTwoFactorAlreadyEnabled indicates setup was attempted while 2FA is
	// active. The user must disable first.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrTwoFactorNotEnabled indicates the operation requires 2FA to be active.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrTwoFactorSetupRequired indicates enable was attempted before setup
	// generated a secret.
	ErrTwoFactorSetupRequired = errors.New("two-factor setup required")
)

// TwoFactorSetup is the outcome of starting 2FA enrollment.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// TwoFactorService drives the 2FA state machine: disabled, pending setup
// (secret stored but flag off), and enabled.
type TwoFactorService struct {
	users           port.UserRepository
	backupCodes     port.BackupCodeRepository
	audit           port.AuditLogRepository
	hasher          port.PasswordHasher
	totp            *security.TOTPEngine
	events          port.EventPublisher
	backupCodeCount int
	logger          *zap.Logger
	now             func() time.Time
}

// NewTwoFactorService constructs a TwoFactorService instance.
func NewTwoFactorService(
	users port.UserRepository,
	backupCodes port.BackupCodeRepository,
	audit port.AuditLogRepository,
	hasher port.PasswordHasher,
	totp *security.TOTPEngine,
	events port.EventPublisher,
	backupCodeCount int,
	log *zap.Logger,
) *TwoFactorService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TwoFactorService{
		users:           users,
		backupCodes:     backupCodes,
		audit:           audit,
		hasher:          hasher,
		totp:            totp,
		events:          events,
		backupCodeCount: backupCodeCount,
		logger:          log,
		now:             time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *TwoFactorService) WithClock(now func() time.Time) *TwoFactorService {
	s.now = now
	return s
}

func (s *TwoFactorService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Setup generates a fresh secret and moves the user to pending setup. The
// enabled flag stays off until Enable confirms a code. Re-running setup while
// enabled is rejected; re-running while pending replaces the secret.
func (s *TwoFactorService) Setup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, false, &secret); err != nil {
		return nil, fmt.Errorf("store two-factor secret: %w", err)
	}

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: s.totp.ProvisioningURI(secret, user.Email),
	}, nil
}

// Enable confirms enrollment with a live code and activates 2FA. The flag and
// secret are written in a single statement so a concurrent login never sees
// an enabled account without a secret. Returns the fresh backup codes; they
// are shown once and never retrievable again.
func (s *TwoFactorService) Enable(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil {
		return nil, ErrTwoFactorSetupRequired
	}
	if !s.totp.VerifyCode(*user.TwoFactorSecret, code) {
		return nil, ErrInvalidTwoFactorCode
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, true, user.TwoFactorSecret); err != nil {
		return nil, fmt.Errorf("enable two-factor: %w", err)
	}

	codes, err := s.totp.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		return nil, err
	}
	if err := s.backupCodes.Replace(ctx, user.ID, codes); err != nil {
		return nil, fmt.Errorf("store backup codes: %w", err)
	}

	s.publishStatusChanged(ctx, user.ID, true)
	s.appendAudit(ctx, user.ID, "two_factor_enabled")

	return codes, nil
}

// Disable turns 2FA off after re-verifying the current password. The secret
// and all backup codes are discarded.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, err := verifyPassword(s.hasher, password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, false, nil); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}
	if err := s.backupCodes.DeleteForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}

	s.publishStatusChanged(ctx, user.ID, false)
	s.appendAudit(ctx, user.ID, "two_factor_disabled")

	return nil
}

// RegenerateBackupCodes replaces the user's remaining backup codes with a
// fresh set after re-verifying the current password.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, err := verifyPassword(s.hasher, password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	codes, err := s.totp.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		return nil, err
	}
	if err := s.backupCodes.Replace(ctx, user.ID, codes); err != nil {
		return nil, fmt.Errorf("store backup codes: %w", err)
	}

	s.appendAudit(ctx, user.ID, "backup_codes_regenerated")
	return codes, nil
}

// RemainingBackupCodes reports how many unspent backup codes the user holds.
func (s *TwoFactorService) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	return s.backupCodes.CountForUser(ctx, userID)
}

func (s *TwoFactorService) publishStatusChanged(ctx context.Context, userID string, enabled bool) {
	if s.events == nil {
		return
	}
	if err := s.events.TwoFactorStatusChanged(ctx, userID, enabled); err != nil {
		s.logger.Error("publish two-factor status", zap.Error(err))
	}
}

func (s *TwoFactorService) appendAudit(ctx context.Context, userID, action string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    &userID,
		Action:    action,
		Resource:  "two_factor",
		CreatedAt: s.now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("append audit log", zap.Error(err), zap.String("action", action))
	}
}
