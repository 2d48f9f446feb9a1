package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/repository"
)

// TokenRepository implements port.TokenRepository using PostgreSQL. All three
// token families are stored as SHA-256 hashes, never in the clear.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.TokenRepository = (*TokenRepository)(nil)

// NewTokenRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// CreateRefresh inserts a refresh token record.
func (r *TokenRepository) CreateRefresh(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert("auth.refresh_tokens").
		Columns("id", "user_id", "token_hash", "created_at", "expires_at", "revoked_at").
		Values(token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.RevokedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshByHash retrieves a refresh token record by its hash.
func (r *TokenRepository) GetRefreshByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "created_at", "expires_at", "revoked_at").
		From("auth.refresh_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	var token domain.RefreshToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &token, nil
}

// RevokeRefresh marks a single refresh token as revoked.
func (r *TokenRepository) RevokeRefresh(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke refresh token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeAllRefreshForUser revokes every live refresh token for the user and
// returns the number affected.
func (r *TokenRepository) RevokeAllRefreshForUser(ctx context.Context, userID string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked_at", at).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"revoked_at": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke user refresh tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpiredRefresh removes refresh token rows past their expiry.
func (r *TokenRepository) DeleteExpiredRefresh(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("auth.refresh_tokens").
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired refresh tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CreatePasswordReset inserts a password reset token record.
func (r *TokenRepository) CreatePasswordReset(ctx context.Context, token domain.PasswordResetToken) error {
	stmt, args, err := r.builder.Insert("auth.password_reset_tokens").
		Columns("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		Values(token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert reset token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// GetPasswordResetByHash retrieves a reset token record by its hash.
func (r *TokenRepository) GetPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		From("auth.password_reset_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset token sql: %w", err)
	}

	var token domain.PasswordResetToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset token: %w", err)
	}
	return &token, nil
}

// ConsumePasswordReset marks the token used if it is still unused. The
// WHERE used_at IS NULL guard makes redemption single-winner under
// concurrency.
func (r *TokenRepository) ConsumePasswordReset(ctx context.Context, id string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("auth.password_reset_tokens").
		Set("used_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"used_at": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build consume reset token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("consume reset token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateVerification inserts an email verification token record.
func (r *TokenRepository) CreateVerification(ctx context.Context, token domain.EmailVerificationToken) error {
	stmt, args, err := r.builder.Insert("auth.email_verification_tokens").
		Columns("id", "email", "token_hash", "created_at", "expires_at", "used_at").
		Values(token.ID, token.Email, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert verification token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert verification token: %w", err)
	}
	return nil
}

// GetVerificationByHash retrieves a verification token record by its hash.
func (r *TokenRepository) GetVerificationByHash(ctx context.Context, hash string) (*domain.EmailVerificationToken, error) {
	stmt, args, err := r.builder.
		Select("id", "email", "token_hash", "created_at", "expires_at", "used_at").
		From("auth.email_verification_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification token sql: %w", err)
	}

	var token domain.EmailVerificationToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.Email,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification token: %w", err)
	}
	return &token, nil
}

// ConsumeVerification marks the token used if it is still unused.
func (r *TokenRepository) ConsumeVerification(ctx context.Context, id string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("auth.email_verification_tokens").
		Set("used_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"used_at": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build consume verification token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("consume verification token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
