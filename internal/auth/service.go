// Package auth issues and rotates credentials: bcrypt passwords, short
// lived HS256 access tokens and opaque refresh tokens stored hashed.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
	"github.com/iliyamo/movie-reservation/internal/utils"
)

// Config carries the token and hashing parameters.
type Config struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Service implements the /api/Auth operations.
type Service struct {
	users  repository.UserStore
	tokens repository.TokenStore
	cfg    Config
	log    *zap.Logger
}

// NewService returns a Service.
func NewService(users repository.UserStore, tokens repository.TokenStore, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, cfg: cfg, log: log}
}

// RegisterInput is the body of a registration.
type RegisterInput struct {
	Email           string     `json:"email" validate:"required,email,max=255"`
	Password        string     `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string     `json:"confirmPassword" validate:"required"`
	Name            string     `json:"name" validate:"max=100"`
	Phone           string     `json:"phone" validate:"max=30"`
	Birthday        *time.Time `json:"birthday"`
}

// LoginInput is the body of a login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordInput is the body of a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// Token is an issued credential and its expiry.
type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Session is returned by register, login and refresh.
type Session struct {
	User    model.Profile `json:"user"`
	Access  Token         `json:"access"`
	Refresh Token         `json:"refresh"`
}

var errBadCredentials = apperr.New(apperr.Unauthenticated, "Invalid email or password")
var errBadRefresh = apperr.New(apperr.Unauthenticated, "invalid refresh token")

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := normEmail(in.Email)
	if email == "" {
		return nil, apperr.Invalid("Email is required")
	}
	if len(in.Password) < utils.MinPasswordLength {
		return nil, apperr.Invalid("Password must be at least %d characters", utils.MinPasswordLength)
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperr.Invalid("Passwords do not match")
	}
	u, err := s.create(ctx, email, in.Password, model.RoleCustomer, func(u *model.User) {
		u.Name = strings.TrimSpace(in.Name)
		u.Phone = strings.TrimSpace(in.Phone)
		u.Birthday = in.Birthday
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID))
	return s.issue(ctx, u)
}

func (s *Service) create(ctx context.Context, email, password, role string, fill func(*model.User)) (*model.User, error) {
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := &model.User{Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if fill != nil {
		fill(u)
	}
	switch err := s.users.CreateUser(ctx, u); {
	case errors.Is(err, repository.ErrEmailExists):
		return nil, apperr.New(apperr.Conflict, "Email already registered")
	case err != nil:
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// Login checks credentials and issues a new token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	u, err := s.users.GetUserByEmail(ctx, normEmail(in.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return nil, errBadCredentials
	}
	return s.issue(ctx, u)
}

// Refresh exchanges a live refresh token for a new pair.  The presented
// token is revoked.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash, u, err := s.checkRefresh(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.issue(ctx, u)
}

// RefreshAccess issues an access token and leaves the refresh token
// untouched.
func (s *Service) RefreshAccess(ctx context.Context, raw string) (*Token, error) {
	_, u, err := s.checkRefresh(ctx, raw)
	if err != nil {
		return nil, err
	}
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Token{Token: at.Token, Expires: at.Exp}, nil
}

// Logout revokes the given refresh token, or every token of userID when
// raw is empty.
func (s *Service) Logout(ctx context.Context, userID uint64, raw string) error {
	if raw = strings.TrimSpace(raw); raw != "" {
		hash, _, err := s.checkRefresh(ctx, raw)
		if err != nil {
			return err
		}
		if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
			return apperr.Internal(err)
		}
		return nil
	}
	if userID == 0 {
		return apperr.Invalid("provide Authorization header or refresh_token")
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ChangePassword replaces the password and signs out every session.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, in ChangePasswordInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return apperr.Invalid("Passwords do not match")
	}
	if len(in.NewPassword) < utils.MinPasswordLength {
		return apperr.Invalid("Password must be at least %d characters", utils.MinPasswordLength)
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return apperr.Invalid("Current password is incorrect")
	}
	hash, err := utils.HashPassword(in.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperr.Internal(err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	s.log.Info("password changed", zap.Uint64("user_id", userID))
	return nil
}

// Profile returns the public record of userID.
func (s *Service) Profile(ctx context.Context, userID uint64) (*model.Profile, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// EnsureAdmin creates an admin account for email unless one exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normEmail(email)
	if email == "" || password == "" {
		return nil
	}
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	u, err := s.create(ctx, email, password, model.RoleAdmin, nil)
	if apperr.Is(err, apperr.Conflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("admin account created", zap.Uint64("user_id", u.ID))
	return nil
}

func (s *Service) user(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("User with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *Service) checkRefresh(ctx context.Context, raw string) (string, *model.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, apperr.Invalid("refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, errBadRefresh
	}
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	u, err := s.users.GetUserByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, errBadRefresh
	}
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	if !u.IsActive {
		return "", nil, errBadRefresh
	}
	return hash, u, nil
}

func (s *Service) issue(ctx context.Context, u *model.User) (*Session, error) {
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{
		User:    u.Profile(),
		Access:  Token{Token: at.Token, Expires: at.Exp},
		Refresh: Token{Token: rt.Raw, Expires: rt.Exp},
	}, nil
}
