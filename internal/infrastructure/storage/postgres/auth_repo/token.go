package auth_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/storage/postgres"
)

// TokenRepo implements auth.TokenRepository over PostgreSQL.
type TokenRepo struct {
	txm *postgres.TxManager
}

// NewTokenRepo creates a new refresh token repository.
func NewTokenRepo(txm *postgres.TxManager) *TokenRepo {
	return &TokenRepo{txm: txm}
}

func (r *TokenRepo) SaveRefreshToken(ctx context.Context, token *auth.RefreshToken) error {
	sql := `
		INSERT INTO sys_refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, sql,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *TokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	sql := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM sys_refresh_tokens
		WHERE token_hash = $1
	`

	var token auth.RefreshToken
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &token, sql, tokenHash); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("refresh token", "")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &token, nil
}

func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID) error {
	sql := `UPDATE sys_refresh_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, tokenID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID) error {
	sql := `UPDATE sys_refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

var _ auth.TokenRepository = (*TokenRepo)(nil)
