package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/config"
	"github.com/kryptonation/restomate/internal/infra/logger"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/infra/telemetry"
	"github.com/kryptonation/restomate/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are
	// incorrect. The two cases are intentionally indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive indicates the account status forbids authentication.
	ErrAccountInactive = errors.New("account is not active")
	// ErrAccountLocked indicates the account lockout is in force. Use
	// errors.As with *AccountLockedError to read the deadline.
	ErrAccountLocked = errors.New("account locked")
	// ErrTwoFactorRequired signals the client must prompt for a second factor.
	// This is the one deliberate asymmetry in login error specificity.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrInvalidTwoFactorCode indicates the supplied TOTP or backup code failed.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrInvalidToken covers expired, malformed, wrong-kind, and revoked
	// tokens uniformly.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTooManyAttempts indicates the sliding-window throttle rejected the
	// attempt before credentials were examined.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// AccountLockedError carries the lock deadline alongside the sentinel.
type AccountLockedError struct {
	Until time.Time
}

// Error implements error.
func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// verifyPassword wraps the hasher, downgrading a malformed stored digest to
// a failed match: a digest that cannot be parsed can never verify, and the
// caller is on an authentication path where an internal error would leak
// which accounts have corrupt rows.
func verifyPassword(hasher port.PasswordHasher, password, encoded string) (bool, error) {
	ok, err := hasher.Verify(password, encoded)
	if err != nil {
		if errors.Is(err, security.ErrInvalidHashFormat) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// AuthResult is the successful outcome of a login or refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.User
}

// AuthService orchestrates login, token refresh, and logout.
type AuthService struct {
	cfg         config.AuthSettings
	users       port.UserRepository
	tokens      port.TokenRepository
	backupCodes port.BackupCodeRepository
	audit       port.AuditLogRepository
	guard       *AccountGuard
	hasher      port.PasswordHasher
	codec       *security.TokenCodec
	totp        *security.TOTPEngine
	events      port.EventPublisher
	rateLimit   port.RateLimitStore
	rateCfg     config.RateLimitSettings
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance. The rate limit store and
// metrics are optional; pass nil to disable them.
func NewAuthService(
	cfg config.AuthSettings,
	users port.UserRepository,
	tokens port.TokenRepository,
	backupCodes port.BackupCodeRepository,
	audit port.AuditLogRepository,
	guard *AccountGuard,
	hasher port.PasswordHasher,
	codec *security.TokenCodec,
	totp *security.TOTPEngine,
	events port.EventPublisher,
	rateLimit port.RateLimitStore,
	rateCfg config.RateLimitSettings,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		cfg:         cfg,
		users:       users,
		tokens:      tokens,
		backupCodes: backupCodes,
		audit:       audit,
		guard:       guard,
		hasher:      hasher,
		codec:       codec,
		totp:        totp,
		events:      events,
		rateLimit:   rateLimit,
		rateCfg:     rateCfg,
		metrics:     metrics,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Authenticate validates credentials and an optional second factor, then
// issues an access and refresh token pair. The short-circuit order is part of
// the contract: lookup, lock check, password, status, second factor.
func (s *AuthService) Authenticate(ctx context.Context, email, password, totpCode string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if err := s.throttle(ctx, email); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.LoginAttempt("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if s.guard.IsLocked(user) {
		s.metrics.LoginAttempt("locked")
		return nil, &AccountLockedError{Until: user.LockedUntil.UTC()}
	}

	ok, err := verifyPassword(s.hasher, password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		if locked, gerr := s.guard.RecordFailure(ctx, user); gerr != nil {
			return nil, gerr
		} else if locked {
			s.metrics.Lockout()
		}
		s.metrics.LoginAttempt("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.metrics.LoginAttempt("inactive")
		return nil, ErrAccountInactive
	}

	if user.TwoFactorEnabled {
		if totpCode == "" {
			s.metrics.LoginAttempt("two_factor_required")
			return nil, ErrTwoFactorRequired
		}
		if err := s.verifySecondFactor(ctx, user, totpCode); err != nil {
			return nil, err
		}
	}

	return s.completeLogin(ctx, user)
}

// throttle applies the optional sliding-window limiter keyed by email before
// any credential work happens.
func (s *AuthService) throttle(ctx context.Context, email string) error {
	if s.rateLimit == nil || s.rateCfg.LoginMaxAttempts <= 0 {
		return nil
	}

	count, err := s.rateLimit.Increment(ctx, "login:"+email, s.rateCfg.WindowDuration)
	if err != nil {
		// The throttle is an auxiliary defense; never fail login on a
		// degraded ephemeral store.
		s.logger.Warn("login throttle unavailable", zap.Error(err))
		return nil
	}
	if count > int64(s.rateCfg.LoginMaxAttempts) {
		s.metrics.LoginAttempt("throttled")
		return ErrTooManyAttempts
	}
	return nil
}

func (s *AuthService) verifySecondFactor(ctx context.Context, user *domain.User, code string) error {
	if user.TwoFactorSecret != nil && s.totp.VerifyCode(*user.TwoFactorSecret, code) {
		s.metrics.TwoFactorCheck("totp")
		return nil
	}

	consumed, err := s.backupCodes.Consume(ctx, user.ID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return fmt.Errorf("consume backup code: %w", err)
	}
	if consumed {
		s.metrics.TwoFactorCheck("backup_code")
		return nil
	}

	s.metrics.TwoFactorCheck("failed")
	if locked, gerr := s.guard.RecordFailure(ctx, user); gerr != nil {
		return gerr
	} else if locked {
		s.metrics.Lockout()
	}
	s.metrics.LoginAttempt("invalid_two_factor")
	return ErrInvalidTwoFactorCode
}

func (s *AuthService) completeLogin(ctx context.Context, user *domain.User) (*AuthResult, error) {
	now := s.now().UTC()

	if err := s.guard.RecordSuccess(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}

	accessToken, err := s.codec.Issue(security.TokenKindAccess, user.ID, user.Email, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.TokenIssued(security.TokenKindAccess)

	refreshToken, err := s.issueRefreshToken(ctx, user, now)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    &user.ID,
		Action:    "login",
		Resource:  "auth",
		CreatedAt: now,
	})
	s.metrics.LoginAttempt("success")

	s.logger.Info("user authenticated",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitized(),
	}, nil
}

// issueRefreshToken mints a refresh token and persists its hash so the record
// can be revoked independently of the token's own expiry claim.
func (s *AuthService) issueRefreshToken(ctx context.Context, user *domain.User, now time.Time) (string, error) {
	refreshToken, err := s.codec.Issue(security.TokenKindRefresh, user.ID, user.Email, s.cfg.RefreshTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}

	record := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.tokens.CreateRefresh(ctx, record); err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}

	s.metrics.TokenIssued(security.TokenKindRefresh)
	return refreshToken, nil
}

// Refresh exchanges a valid refresh token for a new access token. The token's
// claims and the persisted record must agree; any disagreement is treated as
// an invalid token. Refresh tokens are not rotated here: a refresh returns
// only a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.Decode(refreshToken, security.TokenKindRefresh)
	if err != nil {
		return "", ErrInvalidToken
	}

	record, err := s.tokens.GetRefreshByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}

	now := s.now().UTC()
	if record.IsRevoked() || record.IsExpired(now) || record.UserID != claims.Subject {
		return "", ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !user.CanAuthenticate() {
		return "", ErrAccountInactive
	}

	accessToken, err := s.codec.Issue(security.TokenKindAccess, user.ID, user.Email, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.TokenIssued(security.TokenKindAccess)
	return accessToken, nil
}

// Logout revokes the refresh token record behind the supplied token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.codec.Decode(refreshToken, security.TokenKindRefresh); err != nil {
		return ErrInvalidToken
	}

	record, err := s.tokens.GetRefreshByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	now := s.now().UTC()
	if err := s.tokens.RevokeRefresh(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Already revoked.
			return nil
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.metrics.SessionsRevoked(1)
	s.appendAudit(ctx, domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    &record.UserID,
		Action:    "logout",
		Resource:  "auth",
		CreatedAt: now,
	})
	return nil
}

// LogoutAll revokes every live refresh token for the user and reports how
// many were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	now := s.now().UTC()

	count, err := s.tokens.RevokeAllRefreshForUser(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}

	if count > 0 {
		s.metrics.SessionsRevoked(count)
		s.publishSessionsRevoked(ctx, userID, count)
	}
	s.appendAudit(ctx, domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    &userID,
		Action:    "logout_all",
		Resource:  "auth",
		CreatedAt: now,
	})
	return count, nil
}

// appendAudit writes an audit entry best-effort: a failed write is logged and
// never fails the primary operation.
func (s *AuthService) appendAudit(ctx context.Context, entry domain.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("append audit log", zap.Error(err), zap.String("action", entry.Action))
	}
}

func (s *AuthService) publishSessionsRevoked(ctx context.Context, userID string, count int) {
	if s.events == nil {
		return
	}
	if err := s.events.SessionsRevoked(ctx, userID, count); err != nil {
		s.logger.Error("publish sessions revoked", zap.Error(err))
	}
}
