// Package auth_repo provides PostgreSQL implementations for the auth
// repositories.
package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/storage/postgres"
)

const usersTable = "sys_users"

var userColumns = []string{
	"id", "tenant_id", "email", "password_hash", "name",
	"active", "is_admin", "roles",
	"failed_login_attempts", "locked_until", "last_login_at",
	"created_at", "updated_at",
}

// UserRepo implements auth.UserRepository over PostgreSQL. Roles are a
// text[] column; pgx maps it to []string directly.
type UserRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID, user.TenantID, user.Email, user.PasswordHash, user.Name,
			user.Active, user.IsAdmin, user.Roles,
			user.FailedLoginAttempts, user.LockedUntil, user.LastLoginAt,
			user.CreatedAt, user.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert user: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": userID}, userID.String())
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email}, email)
}

func (r *UserRepo) getOne(ctx context.Context, pred squirrel.Eq, key string) (*auth.User, error) {
	q := r.builder.Select(userColumns...).From(usersTable).Where(pred)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	q := r.builder.Update(usersTable).
		Set("email", user.Email).
		Set("password_hash", user.PasswordHash).
		Set("name", user.Name).
		Set("active", user.Active).
		Set("is_admin", user.IsAdmin).
		Set("roles", user.Roles).
		Set("failed_login_attempts", user.FailedLoginAttempts).
		Set("locked_until", user.LockedUntil).
		Set("last_login_at", user.LastLoginAt).
		Set("updated_at", user.UpdatedAt).
		Where(squirrel.Eq{"id": user.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", postgres.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", user.ID.String())
	}
	return nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	sql := `SELECT EXISTS (SELECT 1 FROM sys_users WHERE email = $1)`

	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

var _ auth.UserRepository = (*UserRepo)(nil)
