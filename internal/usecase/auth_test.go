package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/infra/config"
	"github.com/kryptonation/restomate/internal/infra/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testAuthSettings() config.AuthSettings {
	return config.AuthSettings{
		SigningSecret:        testSecret,
		Issuer:               "restomate-test",
		AccessTokenTTL:       30 * time.Minute,
		RefreshTokenTTL:      168 * time.Hour,
		ResetTokenTTL:        15 * time.Minute,
		VerificationTokenTTL: 72 * time.Hour,
		LockoutThreshold:     5,
		LockoutDuration:      30 * time.Minute,
		TOTPIssuer:           "Restomate",
		BackupCodeCount:      10,
	}
}

func activeUser() *domain.User {
	return &domain.User{
		ID:           "user-1",
		Email:        "diner@example.com",
		Username:     "diner",
		PasswordHash: "hashed:s3cret-pass",
		IsActive:     true,
		IsVerified:   true,
		Status:       domain.UserStatusActive,
	}
}

// authFixture wires an AuthService against in-memory stubs with a movable clock.
type authFixture struct {
	svc    *AuthService
	users  *stubUserRepo
	tokens *stubTokenRepo
	codes  *stubBackupCodeRepo
	audit  *stubAuditRepo
	events *stubEventPublisher
	codec  *security.TokenCodec
	totp   *security.TOTPEngine
	now    time.Time
}

func (fx *authFixture) advance(d time.Duration) {
	fx.now = fx.now.Add(d)
}

func newAuthFixture(t *testing.T, users ...*domain.User) *authFixture {
	t.Helper()

	fx := &authFixture{
		users:  newStubUserRepo(users...),
		tokens: newStubTokenRepo(),
		codes:  newStubBackupCodeRepo(),
		audit:  &stubAuditRepo{},
		events: newStubEventPublisher(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return fx.now }

	cfg := testAuthSettings()
	codec, err := security.NewTokenCodec(cfg.SigningSecret, cfg.Issuer)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	fx.codec = codec.WithClock(clock)
	fx.totp = security.NewTOTPEngine(cfg.TOTPIssuer).WithClock(clock)

	guard := NewAccountGuard(fx.users, cfg.LockoutThreshold, cfg.LockoutDuration, zap.NewNop()).WithClock(clock)

	fx.svc = NewAuthService(
		cfg,
		fx.users,
		fx.tokens,
		fx.codes,
		fx.audit,
		guard,
		stubHasher{},
		fx.codec,
		fx.totp,
		fx.events,
		nil,
		config.RateLimitSettings{},
		nil,
		zap.NewNop(),
	).WithClock(clock)

	return fx
}

func TestAuthenticateSuccess(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	result, err := fx.svc.Authenticate(ctx, "Diner@Example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if result.User.PasswordHash != "" {
		t.Error("returned user exposes the password hash")
	}

	claims, err := fx.codec.Decode(result.AccessToken, security.TokenKindAccess)
	if err != nil {
		t.Fatalf("decode access token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("access token subject = %q, want user-1", claims.Subject)
	}

	record, err := fx.tokens.GetRefreshByHash(ctx, security.HashToken(result.RefreshToken))
	if err != nil {
		t.Fatalf("refresh token hash not persisted: %v", err)
	}
	if record.UserID != "user-1" {
		t.Errorf("refresh record user = %q, want user-1", record.UserID)
	}

	stored, _ := fx.users.GetByID(ctx, "user-1")
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(fx.now) {
		t.Error("last login timestamp not recorded")
	}

	actions := fx.audit.actions()
	if len(actions) != 1 || actions[0] != "login" {
		t.Errorf("audit actions = %v, want [login]", actions)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	fx := newAuthFixture(t, activeUser())

	_, err := fx.svc.Authenticate(context.Background(), "nobody@example.com", "whatever", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateWrongPasswordIncrementsCounter(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "wrong", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	stored, _ := fx.users.GetByID(ctx, "user-1")
	if stored.FailedLoginAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", stored.FailedLoginAttempts)
	}
	if stored.LockedUntil != nil {
		t.Error("single failure should not lock the account")
	}
}

func TestAuthenticateMalformedStoredHash(t *testing.T) {
	user := activeUser()
	user.PasswordHash = "argon2id$corrupted"
	fx := newAuthFixture(t, user)
	ctx := context.Background()

	// A digest that cannot be parsed behaves as a failed match, not an
	// internal error.
	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	stored, _ := fx.users.GetByID(ctx, "user-1")
	if stored.FailedLoginAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", stored.FailedLoginAttempts)
	}
}

func TestAuthenticateLockoutEngagesAtThreshold(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := fx.svc.Authenticate(ctx, "diner@example.com", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	stored, _ := fx.users.GetByID(ctx, "user-1")
	if stored.LockedUntil == nil {
		t.Fatal("account not locked after reaching the threshold")
	}
	wantUntil := fx.now.Add(30 * time.Minute)
	if !stored.LockedUntil.Equal(wantUntil) {
		t.Errorf("locked until %v, want %v", stored.LockedUntil, wantUntil)
	}

	// The correct password is rejected while the lock is in force.
	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
	var lockedErr *AccountLockedError
	if !errors.As(err, &lockedErr) {
		t.Fatalf("err %T does not carry the lock deadline", err)
	}
	if !lockedErr.Until.Equal(wantUntil) {
		t.Errorf("lock deadline %v, want %v", lockedErr.Until, wantUntil)
	}

	// The lock expires lazily; afterwards login succeeds and clears the counter.
	fx.advance(31 * time.Minute)
	if _, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", ""); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	stored, _ = fx.users.GetByID(ctx, "user-1")
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Error("successful login did not clear the lockout state")
	}
}

func TestAuthenticateFailuresDoNotExtendLock(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fx.svc.Authenticate(ctx, "diner@example.com", "wrong", "")
	}
	stored, _ := fx.users.GetByID(ctx, "user-1")
	lockedUntil := *stored.LockedUntil

	fx.advance(10 * time.Minute)
	if _, err := fx.svc.Authenticate(ctx, "diner@example.com", "wrong", ""); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	stored, _ = fx.users.GetByID(ctx, "user-1")
	if !stored.LockedUntil.Equal(lockedUntil) {
		t.Error("failure against a locked account extended the lock")
	}
	if stored.FailedLoginAttempts != 5 {
		t.Errorf("failed attempts = %d, want 5 (unchanged while locked)", stored.FailedLoginAttempts)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	user := activeUser()
	user.Status = domain.UserStatusSuspended
	fx := newAuthFixture(t, user)
	ctx := context.Background()

	// Known password against a suspended account reveals the status.
	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}

	// A wrong password is reported before the status is examined.
	_, err = fx.svc.Authenticate(ctx, "diner@example.com", "wrong", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func twoFactorUser(t *testing.T, fx *authFixture) (string, *domain.User) {
	t.Helper()
	secret, err := fx.totp.GenerateSecret("diner@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	user := activeUser()
	user.TwoFactorEnabled = true
	user.TwoFactorSecret = &secret
	return secret, user
}

func TestAuthenticateTwoFactorRequired(t *testing.T) {
	fx := newAuthFixture(t)
	_, user := twoFactorUser(t, fx)
	fx.users.users[user.ID] = user
	ctx := context.Background()

	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("err = %v, want ErrTwoFactorRequired", err)
	}

	// Asking for the second factor is not a failed attempt.
	stored, _ := fx.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("failed attempts = %d, want 0", stored.FailedLoginAttempts)
	}
}

func TestAuthenticateTwoFactorCode(t *testing.T) {
	fx := newAuthFixture(t)
	secret, user := twoFactorUser(t, fx)
	fx.users.users[user.ID] = user
	ctx := context.Background()

	code, err := totp.GenerateCode(secret, fx.now)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	result, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", code)
	if err != nil {
		t.Fatalf("Authenticate with TOTP: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected an access token")
	}
}

func TestAuthenticateInvalidTwoFactorCodeIncrementsCounter(t *testing.T) {
	fx := newAuthFixture(t)
	_, user := twoFactorUser(t, fx)
	fx.users.users[user.ID] = user
	ctx := context.Background()

	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "000000")
	if !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("err = %v, want ErrInvalidTwoFactorCode", err)
	}

	stored, _ := fx.users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", stored.FailedLoginAttempts)
	}
}

func TestAuthenticateBackupCodeSingleUse(t *testing.T) {
	fx := newAuthFixture(t)
	_, user := twoFactorUser(t, fx)
	fx.users.users[user.ID] = user
	ctx := context.Background()

	fx.codes.Replace(ctx, user.ID, []string{"A1B2C3D4", "E5F60718"})

	if _, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "a1b2c3d4"); err != nil {
		t.Fatalf("Authenticate with backup code: %v", err)
	}

	// The spent code is rejected on replay.
	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "A1B2C3D4")
	if !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("replayed backup code: err = %v, want ErrInvalidTwoFactorCode", err)
	}

	remaining, _ := fx.codes.CountForUser(ctx, user.ID)
	if remaining != 1 {
		t.Errorf("remaining backup codes = %d, want 1", remaining)
	}
}

func TestAuthenticateThrottle(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	limiter := &stubRateLimitStore{}
	fx.svc.rateLimit = limiter
	fx.svc.rateCfg = config.RateLimitSettings{
		WindowDuration:   time.Minute,
		LoginMaxAttempts: 3,
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	_, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", err)
	}

	// A degraded throttle store never blocks login.
	limiter.err = errors.New("redis down")
	if _, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", ""); err != nil {
		t.Fatalf("login with degraded throttle: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	result, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	fx.advance(time.Hour)
	accessToken, err := fx.svc.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, err := fx.codec.Decode(accessToken, security.TokenKindAccess)
	if err != nil {
		t.Fatalf("decode refreshed access token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	result, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// An access token is never accepted where a refresh token is expected.
	if _, err := fx.svc.Refresh(ctx, result.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshAfterExpiry(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	result, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	fx.advance(169 * time.Hour)
	if _, err := fx.svc.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	result, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := fx.svc.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := fx.svc.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after logout: err = %v, want ErrInvalidToken", err)
	}

	// Logging out again is a no-op, not an error.
	if err := fx.svc.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("repeat Logout: %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	fx := newAuthFixture(t, activeUser())
	ctx := context.Background()

	var results []*AuthResult
	for i := 0; i < 3; i++ {
		result, err := fx.svc.Authenticate(ctx, "diner@example.com", "s3cret-pass", "")
		if err != nil {
			t.Fatalf("Authenticate %d: %v", i+1, err)
		}
		results = append(results, result)
		fx.advance(time.Second)
	}

	count, err := fx.svc.LogoutAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if count != 3 {
		t.Errorf("revoked %d sessions, want 3", count)
	}
	if fx.events.count("sessions.revoked") != 1 {
		t.Error("expected a sessions.revoked event")
	}

	for i, result := range results {
		if _, err := fx.svc.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("session %d still refreshable after LogoutAll", i+1)
		}
	}
}
