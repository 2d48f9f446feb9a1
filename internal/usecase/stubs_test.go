package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/repository"
)

// stubUserRepo is an in-memory port.UserRepository.
type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		copied := *user
		repo.users[user.ID] = &copied
	}
	return repo
}

func (r *stubUserRepo) get(id string) (*domain.User, bool) {
	user, ok := r.users[id]
	return user, ok
}

func (r *stubUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = &user
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) List(_ context.Context, _ port.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, user := range r.users {
		users = append(users, *user)
	}
	return users, nil
}

func (r *stubUserRepo) Count(_ context.Context, _ port.UserFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *stubUserRepo) Update(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	existing := r.users[user.ID]
	hash := existing.PasswordHash
	secret := existing.TwoFactorSecret
	enabled := existing.TwoFactorEnabled
	copied := user
	copied.PasswordHash = hash
	copied.TwoFactorSecret = secret
	copied.TwoFactorEnabled = enabled
	r.users[user.ID] = &copied
	return nil
}

func (r *stubUserRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Status = domain.UserStatusDeleted
	user.IsActive = false
	return nil
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, hash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	ts := changedAt
	user.PasswordChangedAt = &ts
	return nil
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	ts := at
	user.LastLoginAt = &ts
	return nil
}

func (r *stubUserRepo) UpdateLockout(_ context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.FailedLoginAttempts = failedAttempts
	user.LockedUntil = lockedUntil
	return nil
}

func (r *stubUserRepo) UpdateTwoFactor(_ context.Context, id string, enabled bool, secret *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.TwoFactorEnabled = enabled
	user.TwoFactorSecret = secret
	return nil
}

func (r *stubUserRepo) SetVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsVerified = verified
	return nil
}

// stubBackupCodeRepo is an in-memory port.BackupCodeRepository.
type stubBackupCodeRepo struct {
	mu    sync.Mutex
	codes map[string][]string
}

func newStubBackupCodeRepo() *stubBackupCodeRepo {
	return &stubBackupCodeRepo{codes: make(map[string][]string)}
}

func (r *stubBackupCodeRepo) Replace(_ context.Context, userID string, codes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[userID] = append([]string(nil), codes...)
	return nil
}

func (r *stubBackupCodeRepo) Consume(_ context.Context, userID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.codes[userID]
	for i, candidate := range remaining {
		if candidate == code {
			r.codes[userID] = append(remaining[:i], remaining[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *stubBackupCodeRepo) DeleteForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, userID)
	return nil
}

func (r *stubBackupCodeRepo) CountForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes[userID]), nil
}

// stubTokenRepo is an in-memory port.TokenRepository.
type stubTokenRepo struct {
	mu            sync.Mutex
	refresh       map[string]*domain.RefreshToken
	resets        map[string]*domain.PasswordResetToken
	verifications map[string]*domain.EmailVerificationToken
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{
		refresh:       make(map[string]*domain.RefreshToken),
		resets:        make(map[string]*domain.PasswordResetToken),
		verifications: make(map[string]*domain.EmailVerificationToken),
	}
}

func (r *stubTokenRepo) CreateRefresh(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh[token.ID] = &token
	return nil
}

func (r *stubTokenRepo) GetRefreshByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.refresh {
		if token.TokenHash == hash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubTokenRepo) RevokeRefresh(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.refresh[id]
	if !ok || token.RevokedAt != nil {
		return repository.ErrNotFound
	}
	ts := at
	token.RevokedAt = &ts
	return nil
}

func (r *stubTokenRepo) RevokeAllRefreshForUser(_ context.Context, userID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, token := range r.refresh {
		if token.UserID == userID && token.RevokedAt == nil {
			ts := at
			token.RevokedAt = &ts
			count++
		}
	}
	return count, nil
}

func (r *stubTokenRepo) DeleteExpiredRefresh(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.refresh {
		if token.ExpiresAt.Before(before) {
			delete(r.refresh, id)
			count++
		}
	}
	return count, nil
}

func (r *stubTokenRepo) CreatePasswordReset(_ context.Context, token domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[token.ID] = &token
	return nil
}

func (r *stubTokenRepo) GetPasswordResetByHash(_ context.Context, hash string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.resets {
		if token.TokenHash == hash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubTokenRepo) ConsumePasswordReset(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.resets[id]
	if !ok || token.UsedAt != nil {
		return false, nil
	}
	ts := at
	token.UsedAt = &ts
	return true, nil
}

func (r *stubTokenRepo) CreateVerification(_ context.Context, token domain.EmailVerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifications[token.ID] = &token
	return nil
}

func (r *stubTokenRepo) GetVerificationByHash(_ context.Context, hash string) (*domain.EmailVerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.verifications {
		if token.TokenHash == hash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubTokenRepo) ConsumeVerification(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.verifications[id]
	if !ok || token.UsedAt != nil {
		return false, nil
	}
	ts := at
	token.UsedAt = &ts
	return true, nil
}

// stubAuditRepo collects audit entries.
type stubAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *stubAuditRepo) Append(_ context.Context, entry domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

// stubEventPublisher counts published events by type.
type stubEventPublisher struct {
	mu     sync.Mutex
	counts map[string]int
	tokens []string
}

func newStubEventPublisher() *stubEventPublisher {
	return &stubEventPublisher{counts: make(map[string]int)}
}

func (p *stubEventPublisher) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[event]++
}

func (p *stubEventPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[event]
}

func (p *stubEventPublisher) UserRegistered(_ context.Context, _, _ string) error {
	p.record("user.registered")
	return nil
}

func (p *stubEventPublisher) EmailVerificationRequested(_ context.Context, _, token string) error {
	p.mu.Lock()
	p.tokens = append(p.tokens, token)
	p.mu.Unlock()
	p.record("email.verification.requested")
	return nil
}

func (p *stubEventPublisher) PasswordResetRequested(_ context.Context, _, _, token string) error {
	p.mu.Lock()
	p.tokens = append(p.tokens, token)
	p.mu.Unlock()
	p.record("password.reset.requested")
	return nil
}

func (p *stubEventPublisher) PasswordChanged(_ context.Context, _ string) error {
	p.record("password.changed")
	return nil
}

func (p *stubEventPublisher) TwoFactorStatusChanged(_ context.Context, _ string, _ bool) error {
	p.record("two_factor.status.changed")
	return nil
}

func (p *stubEventPublisher) SessionsRevoked(_ context.Context, _ string, _ int) error {
	p.record("sessions.revoked")
	return nil
}

// stubRoleRepo is an in-memory port.RoleRepository.
type stubRoleRepo struct {
	mu    sync.Mutex
	roles map[string]*domain.Role
}

func newStubRoleRepo(roles ...*domain.Role) *stubRoleRepo {
	repo := &stubRoleRepo{roles: make(map[string]*domain.Role)}
	for _, role := range roles {
		copied := *role
		repo.roles[role.ID] = &copied
	}
	return repo
}

func (r *stubRoleRepo) Create(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return repository.ErrDuplicate
		}
	}
	r.roles[role.ID] = &role
	return nil
}

func (r *stubRoleRepo) GetByID(_ context.Context, id string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[id]; ok {
		copied := *role
		copied.Permissions = append([]domain.Permission(nil), role.Permissions...)
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubRoleRepo) GetByName(_ context.Context, name string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			copied := *role
			copied.Permissions = append([]domain.Permission(nil), role.Permissions...)
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubRoleRepo) List(_ context.Context, _ port.RoleFilter) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var roles []domain.Role
	for _, role := range r.roles {
		roles = append(roles, *role)
	}
	return roles, nil
}

func (r *stubRoleRepo) Update(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.roles[role.ID]
	if !ok {
		return repository.ErrNotFound
	}
	role.Permissions = existing.Permissions
	r.roles[role.ID] = &role
	return nil
}

func (r *stubRoleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *stubRoleRepo) AttachPermissions(_ context.Context, roleID string, permissionIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[roleID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range permissionIDs {
		if role.HasPermissionID(id) {
			continue
		}
		role.Permissions = append(role.Permissions, domain.Permission{ID: id})
	}
	return nil
}

func (r *stubRoleRepo) DetachPermissions(_ context.Context, roleID string, permissionIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[roleID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range permissionIDs {
		for i, p := range role.Permissions {
			if p.ID == id {
				role.Permissions = append(role.Permissions[:i], role.Permissions[i+1:]...)
				break
			}
		}
	}
	return nil
}

// stubPermissionRepo is an in-memory port.PermissionRepository.
type stubPermissionRepo struct {
	mu          sync.Mutex
	permissions map[string]*domain.Permission
}

func newStubPermissionRepo(permissions ...*domain.Permission) *stubPermissionRepo {
	repo := &stubPermissionRepo{permissions: make(map[string]*domain.Permission)}
	for _, permission := range permissions {
		copied := *permission
		repo.permissions[permission.ID] = &copied
	}
	return repo
}

func (r *stubPermissionRepo) Create(_ context.Context, permission domain.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.permissions {
		if existing.Name == permission.Name {
			return repository.ErrDuplicate
		}
	}
	r.permissions[permission.ID] = &permission
	return nil
}

func (r *stubPermissionRepo) GetByID(_ context.Context, id string) (*domain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if permission, ok := r.permissions[id]; ok {
		copied := *permission
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubPermissionRepo) GetByName(_ context.Context, name string) (*domain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, permission := range r.permissions {
		if permission.Name == name {
			copied := *permission
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubPermissionRepo) List(_ context.Context) ([]domain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var permissions []domain.Permission
	for _, permission := range r.permissions {
		permissions = append(permissions, *permission)
	}
	return permissions, nil
}

func (r *stubPermissionRepo) ListByRole(_ context.Context, _ string) ([]domain.Permission, error) {
	return nil, nil
}

// stubRateLimitStore counts increments per key without a real window. A
// non-nil err makes every Increment fail, simulating a degraded store.
type stubRateLimitStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (s *stubRateLimitStore) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *stubRateLimitStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], nil
}

func (s *stubRateLimitStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	return nil
}

func (s *stubRateLimitStore) TTL(_ context.Context, _ string) (time.Duration, error) {
	return 0, nil
}

// stubHasher is a deterministic port.PasswordHasher for tests. Hashing is
// a reversible tag so tests can construct users without running argon2.
type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, security.ErrInvalidHashFormat
	}
	return encoded == "hashed:"+password, nil
}

// stubValidator approves or rejects every password uniformly.
type stubValidator struct {
	err error
}

func (v stubValidator) Validate(_ string) error {
	return v.err
}

// stubCache is an in-memory port.Cache. TTLs are recorded but never enforced.
type stubCache struct {
	values map[string]string
	sets   int
}

func newStubCache() *stubCache {
	return &stubCache{values: make(map[string]string)}
}

func (c *stubCache) Get(_ context.Context, key string) (string, error) {
	value, ok := c.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return value, nil
}

func (c *stubCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.values[key] = value
	c.sets++
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	delete(c.values, key)
	return nil
}
