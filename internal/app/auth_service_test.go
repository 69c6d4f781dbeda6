package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfshelf/internal/model"
	"pdfshelf/internal/pkg/jwtutil"
	"pdfshelf/internal/repository"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T) (*AuthService, *ProfileService) {
	t.Helper()
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	return NewAuthService(users, tokens, testSecret, time.Hour, 7*24*time.Hour), NewProfileService(users, tokens)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: " ADA@example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.Equal(t, model.DefaultPreferences(), result.User.Preferences.Data())
	assert.Equal(t, int64(3600), result.ExpiresIn)

	claims, err := jwtutil.ParseToken(testSecret, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	login, err := svc.Login(ctx, LoginInput{Email: "Ada@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.RefreshToken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	for _, in := range []RegisterInput{
		{Name: "A", Email: "a@example.com", Password: "longenough"},
		{Name: "Ada", Email: "not-an-email", Password: "longenough"},
		{Name: "Ada", Email: "a@example.com", Password: "short"},
	} {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput, in)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	first, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.NoError(t, svc.Logout(ctx, second.User.ID, second.RefreshToken))
	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	result, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = svc.Refresh(ctx, result.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	auth, profile := newAuthService(t)
	ctx := context.Background()
	reg, err := auth.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	id := reg.User.ID

	user, err := profile.Update(ctx, id, UpdateProfileInput{Theme: strPtr(model.ThemeDark), Avatar: strPtr("https://img.test/a.png")})
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, user.Preferences.Data().Theme)
	assert.Equal(t, model.ViewGrid, user.Preferences.Data().DefaultView)

	reloaded, err := profile.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, reloaded.Preferences.Data().Theme)
	assert.Equal(t, "https://img.test/a.png", reloaded.Avatar)

	_, err = profile.Update(ctx, id, UpdateProfileInput{DefaultView: strPtr("table")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = profile.Update(ctx, id, UpdateProfileInput{})
	assert.ErrorIs(t, err, ErrNoUpdateFields)

	err = profile.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "another-pass"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	require.NoError(t, profile.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "s3cret-pass", NewPassword: "another-pass"}))
	_, err = auth.Refresh(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = auth.Login(ctx, LoginInput{Email: "ada@example.com", Password: "another-pass"})
	assert.NoError(t, err)
}
