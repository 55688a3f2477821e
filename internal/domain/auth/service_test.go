package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

type memUserRepo struct {
	byID    map[id.ID]*User
	byEmail map[string]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[id.ID]*User),
		byEmail: make(map[string]*User),
	}
}

func (r *memUserRepo) Create(ctx context.Context, user *User) error {
	clone := *user
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	user, ok := r.byID[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, apperror.NewNotFound("user", email)
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *User) error {
	clone := *user
	r.byID[user.ID] = &clone
	r.byEmail[user.Email] = &clone
	return nil
}

func (r *memUserRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

type memTokenRepo struct {
	byHash map[string]*RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{byHash: make(map[string]*RefreshToken)}
}

func (r *memTokenRepo) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	clone := *token
	r.byHash[token.TokenHash] = &clone
	return nil
}

func (r *memTokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	token, ok := r.byHash[tokenHash]
	if !ok {
		return nil, apperror.NewNotFound("refresh token", tokenHash)
	}
	return token, nil
}

func (r *memTokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID) error {
	for _, token := range r.byHash {
		if token.ID == tokenID {
			now := time.Now()
			token.RevokedAt = &now
		}
	}
	return nil
}

func (r *memTokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID) error {
	for _, token := range r.byHash {
		if token.UserID == userID {
			now := time.Now()
			token.RevokedAt = &now
		}
	}
	return nil
}

func newTestService() (*Service, *memUserRepo) {
	userRepo := newMemUserRepo()
	jwtService := NewJWTService(DefaultJWTConfig("test-secret"))
	return NewService(userRepo, newMemTokenRepo(), jwtService, DefaultServiceConfig()), userRepo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "default", "alice@example.com", "s3cret-pass", "Alice")
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	tokens, loggedIn, err := svc.Login(ctx, Credentials{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), "default", "bob@example.com", "short", "Bob")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "default", "alice@example.com", "s3cret-pass", "Alice")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "default", "alice@example.com", "another-pass", "Alice II")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	svc, userRepo := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "default", "alice@example.com", "s3cret-pass", "Alice")
	require.NoError(t, err)

	for i := 0; i < DefaultServiceConfig().MaxLoginAttempts; i++ {
		_, _, err = svc.Login(ctx, Credentials{Email: "alice@example.com", Password: "wrong"})
		require.Error(t, err)
	}

	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsLocked())

	// The right password no longer helps until the lock expires.
	_, _, err = svc.Login(ctx, Credentials{Email: "alice@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "default", "alice@example.com", "s3cret-pass", "Alice")
	require.NoError(t, err)
	tokens, _, err := svc.Login(ctx, Credentials{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err, "a spent refresh token must not be exchangeable again")
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "default", "alice@example.com", "s3cret-pass", "Alice")
	require.NoError(t, err)
	tokens, _, err := svc.Login(ctx, Credentials{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	jwtService := NewJWTService(DefaultJWTConfig("test-secret"))

	user := NewUser("default", "alice@example.com", "hash")
	user.Roles = []string{"clerk"}
	user.IsAdmin = true

	tokenString, expiresAt, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	actor, err := jwtService.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), actor.ActorID)
	assert.Equal(t, "default", actor.TenantID)
	assert.Equal(t, "alice@example.com", actor.Email)
	assert.Equal(t, []string{"clerk"}, actor.Roles)
	assert.True(t, actor.IsAdmin)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	signer := NewJWTService(DefaultJWTConfig("secret-a"))
	verifier := NewJWTService(DefaultJWTConfig("secret-b"))

	tokenString, _, err := signer.GenerateAccessToken(NewUser("default", "alice@example.com", "hash"))
	require.NoError(t, err)

	_, err = verifier.ValidateToken(tokenString)
	require.Error(t, err)
}
