package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"pdfshelf/internal/model"
	"pdfshelf/internal/pkg/jwtutil"
	"pdfshelf/internal/repository"
)

type AuthService struct {
	userRepo       *repository.UserRepository
	tokenRepo      *repository.RefreshTokenRepository
	jwtSecret      string
	jwtExpiration  time.Duration
	refreshExpires time.Duration
	now            func() time.Time
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *model.User `json:"user"`
}

func NewAuthService(
	userRepo *repository.UserRepository,
	tokenRepo *repository.RefreshTokenRepository,
	jwtSecret string,
	jwtExpiration time.Duration,
	refreshExpires time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
		jwtSecret:      jwtSecret,
		jwtExpiration:  jwtExpiration,
		refreshExpires: refreshExpires,
		now:            time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := input.Password

	err := validation.Errors{
		"name":     validation.Validate(name, validation.Required, validation.RuneLength(2, 50)),
		"email":    validation.Validate(email, validation.Required, is.EmailFormat),
		"password": validation.Validate(password, validation.Required, validation.Length(8, 128)),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Preferences:  datatypes.NewJSONType(model.DefaultPreferences()),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token: the presented one is consumed and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	hash := hashToken(strings.TrimSpace(refreshToken))
	stored, err := s.tokenRepo.GetValid(ctx, hash, s.now())
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrInvalidRefreshToken
	}
	consumed, err := s.tokenRepo.DeleteByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	return s.issue(ctx, user)
}

// Logout revokes one refresh token, or all of the user's when token is empty.
func (s *AuthService) Logout(ctx context.Context, userID uint, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return s.tokenRepo.DeleteByUserID(ctx, userID)
	}
	_, err := s.tokenRepo.DeleteByHash(ctx, hashToken(strings.TrimSpace(refreshToken)))
	return err
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	access, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token failed: %w", err)
	}
	refresh := hex.EncodeToString(raw)
	if err := s.tokenRepo.Create(ctx, &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: s.now().Add(s.refreshExpires),
	}); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
		User:         user,
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
