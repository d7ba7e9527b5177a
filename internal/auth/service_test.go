package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository/memory"
	"github.com/iliyamo/movie-reservation/internal/utils"
)

const secret = "auth-test-secret"

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	cfg := Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	return NewService(st, st, cfg, nil), st
}

func register(t *testing.T, s *Service, email string) *Session {
	t.Helper()
	sess, err := s.Register(context.Background(), RegisterInput{
		Email: email, Password: "s3cret-pass", ConfirmPassword: "s3cret-pass", Name: "Ada",
	})
	require.NoError(t, err)
	return sess
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	sess := register(t, s, "  Ada@Example.com ")
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, []string{model.RoleCustomer}, sess.User.Roles)
	claims, err := utils.ParseAccessToken(secret, sess.Access.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id)

	_, err = s.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "another-pass", ConfirmPassword: "another-pass"})
	assert.True(t, apperr.Is(err, apperr.Conflict))

	_, err = s.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "password1", ConfirmPassword: "password2"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	got, err := s.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, got.User.ID)

	_, err = s.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
	_, err = s.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	sess := register(t, s, "ada@example.com")

	next, err := s.Refresh(ctx, sess.Refresh.Token)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.Token, next.Refresh.Token)

	_, err = s.Refresh(ctx, sess.Refresh.Token)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated), "a rotated token must not be reusable")

	at, err := s.RefreshAccess(ctx, next.Refresh.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, at.Token)
	_, err = s.RefreshAccess(ctx, next.Refresh.Token)
	assert.NoError(t, err, "refresh-access keeps the refresh token alive")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	sess := register(t, s, "ada@example.com")
	other, err := s.Login(ctx, LoginInput{Email: "ada@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, 0, sess.Refresh.Token))
	_, err = s.Refresh(ctx, sess.Refresh.Token)
	assert.Error(t, err)
	_, err = s.RefreshAccess(ctx, other.Refresh.Token)
	assert.NoError(t, err)

	require.NoError(t, s.Logout(ctx, sess.User.ID, ""))
	_, err = s.RefreshAccess(ctx, other.Refresh.Token)
	assert.Error(t, err)

	assert.True(t, apperr.Is(s.Logout(ctx, 0, ""), apperr.InvalidInput))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	sess := register(t, s, "ada@example.com")
	uid := sess.User.ID

	err := s.ChangePassword(ctx, uid, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "brand-new-pass", ConfirmPassword: "brand-new-pass"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	require.NoError(t, s.ChangePassword(ctx, uid, ChangePasswordInput{
		CurrentPassword: "s3cret-pass", NewPassword: "brand-new-pass", ConfirmPassword: "brand-new-pass",
	}))
	_, err = s.Login(ctx, LoginInput{Email: "ada@example.com", Password: "s3cret-pass"})
	assert.Error(t, err)
	_, err = s.Login(ctx, LoginInput{Email: "ada@example.com", Password: "brand-new-pass"})
	assert.NoError(t, err)
	_, err = s.Refresh(ctx, sess.Refresh.Token)
	assert.Error(t, err, "changing the password signs out old sessions")
}

func TestProfileAndAdminSeed(t *testing.T) {
	ctx := context.Background()
	s, st := newService(t)
	sess := register(t, s, "ada@example.com")

	p, err := s.Profile(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	_, err = s.Profile(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	require.NoError(t, s.EnsureAdmin(ctx, "root@example.com", "admin-pass"))
	require.NoError(t, s.EnsureAdmin(ctx, "root@example.com", "admin-pass"))
	u, err := st.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	require.NoError(t, s.EnsureAdmin(ctx, "", ""))
}
