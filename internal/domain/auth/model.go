// Package auth provides operator authentication: bcrypt credentials,
// short-lived HS256 access tokens and hashed refresh tokens.
package auth

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// User is one operator account.
type User struct {
	ID           id.ID  `db:"id" json:"id"`
	TenantID     string `db:"tenant_id" json:"tenantId"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Name         string `db:"name" json:"name,omitempty"`

	Active  bool     `db:"active" json:"active"`
	IsAdmin bool     `db:"is_admin" json:"isAdmin"`
	Roles   []string `db:"roles" json:"roles,omitempty"`

	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewUser creates an active user with the given credentials.
func NewUser(tenantID, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           id.New(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsLocked reports whether the account is temporarily locked.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// CanLogin checks account status before password verification.
func (u *User) CanLogin() error {
	if !u.Active {
		return apperror.NewForbidden("account is disabled")
	}
	if u.IsLocked() {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin increments the failure counter and locks the account
// once the limit is reached.
func (u *User) RecordFailedLogin(maxAttempts int, lockDuration time.Duration) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		lockUntil := time.Now().Add(lockDuration)
		u.LockedUntil = &lockUntil
	}
}

// RecordSuccessfulLogin resets the failure counter.
func (u *User) RecordSuccessfulLogin() {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	now := time.Now().UTC()
	u.LastLoginAt = &now
}

// RefreshToken is a stored refresh token; only its SHA-256 hash is kept.
type RefreshToken struct {
	ID        id.ID      `db:"id"`
	UserID    id.ID      `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

// IsValid reports whether the token can still be exchanged.
func (t *RefreshToken) IsValid() bool {
	return t.RevokedAt == nil && time.Now().Before(t.ExpiresAt)
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
